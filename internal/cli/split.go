package cli

import (
	"fmt"
	"log/slog"

	"github.com/kolah/oasplit/internal/config"
	"github.com/kolah/oasplit/internal/loader"
	"github.com/kolah/oasplit/internal/model"
	"github.com/kolah/oasplit/internal/output"
	"github.com/kolah/oasplit/internal/splitter"
	"github.com/spf13/cobra"
)

func SplitCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "split [spec]",
		Short: "Write one OpenAPI document per path",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSplit,
	}
}

func runSplit(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cmd, args)
	if err != nil {
		return err
	}

	logger := newLogger(cmd)
	result, err := loadSpec(cmd, cfg, logger)
	if err != nil {
		return err
	}

	sp, err := newSplitter(cmd, cfg, result.Document)
	if err != nil {
		return err
	}

	w := &output.Writer{
		Root:   cfg.OutputDir,
		Format: outputFormat(cfg, result.Document),
		Indent: cfg.Indent,
	}
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	written := 0
	err = sp.SplitAll(func(out *splitter.Output) error {
		path, data, err := w.Render(out.Path, out.Node)
		if err != nil {
			return err
		}

		if cfg.Verify {
			for _, issue := range loader.Verify(data, loader.WithLogger(logger)) {
				cmd.PrintErrf("Warning: %s: %s\n", out.Path, issue)
			}
		}

		if dryRun {
			fmt.Fprintf(cmd.OutOrStdout(), "# %s\n%s\n", path, data)
		} else {
			if err := w.WriteFile(path, data); err != nil {
				return err
			}
			cmd.PrintErrf("Generated %s for API path: %s\n", path, out.Path)
		}
		written++
		return nil
	})

	cmd.PrintErrf("Split %d of %d paths\n", written, len(result.Document.Paths))
	return err
}

func loadSpec(cmd *cobra.Command, cfg *config.Config, logger *slog.Logger) (*loader.Result, error) {
	result, err := loader.LoadFile(cfg.Spec, loader.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("loading spec: %w", err)
	}

	for _, w := range result.Warnings {
		cmd.PrintErrf("Warning: %s\n", w)
	}

	cmd.PrintErrf("Loaded OpenAPI %s: %s\n", result.Version, cfg.Spec)
	cmd.PrintErrf("  Paths: %d\n", len(result.Document.Paths))
	cmd.PrintErrf("  Schemas: %d\n", result.Document.Schemas.Len())
	cmd.PrintErrf("  Responses: %d\n", result.Document.Responses.Len())

	return result, nil
}

func newSplitter(cmd *cobra.Command, cfg *config.Config, doc *model.Document) (*splitter.Splitter, error) {
	sp, err := splitter.New(doc, splitter.Options{
		Placement:       splitter.Placement(cfg.Placement),
		ResponseNames:   cfg.ResponseNames,
		AlwaysInclude:   cfg.AlwaysInclude,
		ExpandResponses: cfg.ExpandResponses,
		ContinueOnError: cfg.ContinueOnError,
		OnError: func(path string, err error) {
			cmd.PrintErrf("Error: %v\n", err)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("preparing split: %w", err)
	}
	return sp, nil
}

func outputFormat(cfg *config.Config, doc *model.Document) model.Format {
	switch cfg.Format {
	case "yaml":
		return model.FormatYAML
	case "json":
		return model.FormatJSON
	}
	return doc.Format
}

// newLogger routes libopenapi's diagnostics to the command's stderr.
func newLogger(cmd *cobra.Command) *slog.Logger {
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
}
