package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	defaultLogLevel  = "info"
	defaultLogFormat = "text"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "docxtpl",
		Short: "Fill placeholders in Word templates and merge documents",
		Long: `docxtpl fills {{placeholder}} markers in .docx templates with text
and images, and merges several .docx documents into one.

Parts the tool does not need to change are copied through untouched, so
the output keeps the template's styles, headers and settings.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().String("log-level", defaultLogLevel, "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("log-format", defaultLogFormat, "Log format (text, json)")
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging (overrides --log-level)")

	cmd.AddCommand(newRenderCmd(), newMergeCmd(), newInspectCmd())
	return cmd
}

// readLogger builds the logger described by the persistent logging flags.
func readLogger(cmd *cobra.Command) (*zap.Logger, error) {
	level, _ := cmd.Flags().GetString("log-level")
	format, _ := cmd.Flags().GetString("log-format")
	verbose, _ := cmd.Flags().GetBool("verbose")

	level = strings.ToLower(level)
	switch level {
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("invalid --log-level %q: must be one of debug, info, warn, error", level)
	}
	format = strings.ToLower(format)
	if format != "text" && format != "json" {
		return nil, fmt.Errorf("invalid --log-format %q: must be text or json", format)
	}
	if verbose {
		level = "debug"
	}
	return buildLogger(cmd.ErrOrStderr(), level, format), nil
}

func buildLogger(w io.Writer, level, format string) *zap.Logger {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
		lvl = zapcore.InfoLevel
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var enc zapcore.Encoder
	if strings.EqualFold(format, "json") {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	}
	return zap.New(zapcore.NewCore(enc, zapcore.AddSync(w), lvl))
}

// defaultOutputPath places the rendered document next to its template.
func defaultOutputPath(templatePath string) string {
	return strings.TrimSuffix(templatePath, filepath.Ext(templatePath)) + ".out.docx"
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
