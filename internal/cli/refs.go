package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kolah/oasplit/internal/config"
	"github.com/spf13/cobra"
)

func RefsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "refs [spec]",
		Short: "Print the components each path depends on",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runRefs,
	}
}

func runRefs(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cmd, args)
	if err != nil {
		return err
	}

	result, err := loadSpec(cmd, cfg, newLogger(cmd))
	if err != nil {
		return err
	}

	sp, err := newSplitter(cmd, cfg, result.Document)
	if err != nil {
		return err
	}

	var errs []error
	for _, item := range result.Document.Paths {
		set, err := sp.Resolve(item.Path)
		if err != nil {
			if !cfg.ContinueOnError {
				return err
			}
			cmd.PrintErrf("Error: %v\n", err)
			errs = append(errs, err)
			continue
		}

		names := make([]string, 0, set.Len())
		for _, c := range set.Components() {
			names = append(names, c.String())
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", item.Path, strings.Join(names, ", "))
	}

	return errors.Join(errs...)
}
