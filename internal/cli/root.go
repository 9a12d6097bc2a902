package cli

import (
	"github.com/kolah/oasplit/internal/config"
	"github.com/spf13/cobra"
)

func RootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "oasplit",
		Short:         "Split an OpenAPI document into one document per path",
		Version:       "1.0.0",
		SilenceErrors: true,
		SilenceUsage:  true,

		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	config.BindFlags(root)
	root.AddCommand(SplitCommand(), RefsCommand())

	return root
}
