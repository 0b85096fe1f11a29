package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yuanying/docxtpl/internal/merge"
)

type mergeOptions struct {
	Inputs     []string
	OutputPath string
	Separator  merge.Separator
	Logger     *zap.Logger
}

func newMergeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "merge -o OUTPUT INPUT...",
		Short: "Concatenate documents into one",
		Long: `merge appends the body of every input to the first one. The first
input provides styles, headers and page setup for the result.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := readMergeOptions(cmd, args)
			if err != nil {
				return err
			}
			return runMerge(opts)
		},
	}

	cmd.Flags().StringP("output", "o", "", "Output file path")
	cmd.Flags().String("separator", "page", "Separator between documents (page, lines:N)")
	return cmd
}

func readMergeOptions(cmd *cobra.Command, args []string) (mergeOptions, error) {
	logger, err := readLogger(cmd)
	if err != nil {
		return mergeOptions{}, err
	}

	output, _ := cmd.Flags().GetString("output")
	if output == "" {
		return mergeOptions{}, fmt.Errorf("--output is required")
	}
	for _, in := range args {
		if in == output {
			return mergeOptions{}, fmt.Errorf("invalid --output %q: it is also an input", output)
		}
	}

	raw, _ := cmd.Flags().GetString("separator")
	sep, err := merge.ParseSeparator(raw)
	if err != nil {
		return mergeOptions{}, fmt.Errorf("invalid --separator: %w", err)
	}

	return mergeOptions{
		Inputs:     args,
		OutputPath: output,
		Separator:  sep,
		Logger:     logger,
	}, nil
}

func runMerge(opts mergeOptions) error {
	logger := opts.Logger
	defer func() { _ = logger.Sync() }()

	logger.Info("merging",
		zap.Strings("inputs", opts.Inputs),
		zap.String("output", opts.OutputPath))

	err := merge.Merge(opts.Inputs, opts.OutputPath, merge.Options{
		Separator: opts.Separator,
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("merge failed: %w", err)
	}

	logger.Info("done", zap.String("output", opts.OutputPath))
	return nil
}
