package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yuanying/docxtpl/internal/media"
	"github.com/yuanying/docxtpl/internal/render"
)

const (
	defaultTimeout    = 100 * time.Second
	defaultMaxWidthCM = 10.5
)

type renderOptions struct {
	TemplatePath string
	OutputPath   string
	DataPath     string
	Values       map[string]string

	Timeout       time.Duration
	MaxWidthCM    float64
	DefaultSize   *media.Size
	MaxPixelWidth int

	LegacySubstitution bool
	ContentTypes       bool

	Logger *zap.Logger
}

func newRenderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render TEMPLATE",
		Short: "Fill the placeholders of a template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := readRenderOptions(cmd, args)
			if err != nil {
				return err
			}
			return runRender(cmd, opts)
		},
	}

	cmd.Flags().StringP("output", "o", "", "Output file path (default: <template>.out.docx)")
	cmd.Flags().StringP("data", "d", "", "YAML or JSON file with text, html and images sections")
	cmd.Flags().StringArray("set", nil, "Text value as placeholder=value (repeatable)")
	cmd.Flags().Duration("timeout", defaultTimeout, "Timeout for fetching remote images")
	cmd.Flags().Float64("max-width", defaultMaxWidthCM, "Maximum width in cm for images without an explicit size")
	cmd.Flags().String("default-size", "native", "Size of images without an explicit size (native, standard)")
	cmd.Flags().Int("max-pixel-width", 0, "Resample images wider than this many pixels (0 keeps original bytes)")
	cmd.Flags().Bool("legacy-substitution", false, "Replace text placeholders one after another instead of in a single pass")
	cmd.Flags().Bool("content-types", true, "Register content types for new media extensions")
	return cmd
}

func readRenderOptions(cmd *cobra.Command, args []string) (renderOptions, error) {
	logger, err := readLogger(cmd)
	if err != nil {
		return renderOptions{}, err
	}

	opts := renderOptions{
		TemplatePath: args[0],
		Logger:       logger,
		Values:       make(map[string]string),
	}
	opts.OutputPath, _ = cmd.Flags().GetString("output")
	opts.DataPath, _ = cmd.Flags().GetString("data")
	opts.Timeout, _ = cmd.Flags().GetDuration("timeout")
	opts.MaxWidthCM, _ = cmd.Flags().GetFloat64("max-width")
	opts.MaxPixelWidth, _ = cmd.Flags().GetInt("max-pixel-width")
	opts.LegacySubstitution, _ = cmd.Flags().GetBool("legacy-substitution")
	opts.ContentTypes, _ = cmd.Flags().GetBool("content-types")

	if opts.OutputPath == "" {
		opts.OutputPath = defaultOutputPath(opts.TemplatePath)
	}
	if opts.Timeout <= 0 {
		return renderOptions{}, fmt.Errorf("invalid --timeout %s: must be positive", opts.Timeout)
	}
	if opts.MaxWidthCM <= 0 {
		return renderOptions{}, fmt.Errorf("invalid --max-width %g: must be positive", opts.MaxWidthCM)
	}
	if opts.MaxPixelWidth < 0 {
		return renderOptions{}, fmt.Errorf("invalid --max-pixel-width %d: must not be negative", opts.MaxPixelWidth)
	}

	defaultSize, _ := cmd.Flags().GetString("default-size")
	switch strings.ToLower(defaultSize) {
	case "native":
	case "standard":
		size := media.StandardSize
		opts.DefaultSize = &size
	default:
		return renderOptions{}, fmt.Errorf("invalid --default-size %q: must be native or standard", defaultSize)
	}

	sets, _ := cmd.Flags().GetStringArray("set")
	for _, kv := range sets {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return renderOptions{}, fmt.Errorf("invalid --set %q: want placeholder=value", kv)
		}
		opts.Values[placeholderKey(key)] = value
	}
	return opts, nil
}

func runRender(cmd *cobra.Command, opts renderOptions) error {
	logger := opts.Logger
	defer func() { _ = logger.Sync() }()

	resolver := media.NewResolver(media.Options{
		Timeout:       opts.Timeout,
		MaxWidth:      media.CMToEMU(opts.MaxWidthCM),
		DefaultSize:   opts.DefaultSize,
		MaxPixelWidth: opts.MaxPixelWidth,
		Logger:        logger,
	})
	reg := render.NewRegistry(resolver, render.RegistryOptions{Logger: logger})

	if opts.DataPath != "" {
		data, err := loadDataFile(opts.DataPath)
		if err != nil {
			return err
		}
		if err := data.apply(cmd.Context(), reg); err != nil {
			return err
		}
	}
	// --set wins over the data file
	reg.SetTexts(opts.Values)

	logger.Info("rendering",
		zap.String("template", opts.TemplatePath),
		zap.String("output", opts.OutputPath),
		zap.Int("placeholders", len(reg.Placeholders())))

	p := render.NewPipeline(reg, render.Options{
		Logger:             logger,
		LegacySubstitution: opts.LegacySubstitution,
		EnsureContentTypes: opts.ContentTypes,
	})
	if err := p.Render(opts.TemplatePath, opts.OutputPath); err != nil {
		return fmt.Errorf("render failed: %w", err)
	}

	logger.Info("done", zap.String("output", opts.OutputPath))
	return nil
}
