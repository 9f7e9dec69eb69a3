package command

import (
	"github.com/spf13/cobra"
	"sigs.k8s.io/release-utils/version"
)

// NewVersionCommand reports build/version information.
func NewVersionCommand(cli *CLI) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long: Highlight("bundle version") + "\n\n" +
			"Display the current version of bundle.\n",
		Args: MaxArgs(0),
		Run: func(cmd *cobra.Command, args []string) {
			info := version.GetVersionInfo()
			cli.Println(info.String())
		},
	}
}
