// Package command implements the bundle CLI's cobra command tree,
// grounded on the teacher's cmd/kro/internal/command package.
package command

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dsblv/parcel/cmd/bundle/internal/view"
)

// CLI is shared state propagated from the root command to every
// subcommand, mirroring the teacher's own CLI struct.
type CLI struct {
	view.Viewer
	*view.Stream
}

// Highlight applies the CLI's accent color to a format string.
func Highlight(format string, a ...any) string {
	return color.RGB(50, 108, 229).Sprintf(format, a...)
}

// NewCLI builds a CLI writing to w at vt/logLevel.
func NewCLI(vt view.ViewType, w io.Writer, logLevel view.LogLevel) *CLI {
	s := view.NewStream(w)
	return &CLI{Viewer: view.NewViewer(vt, s, logLevel), Stream: s}
}

// ExactArgs returns an error if there is not the exact number of args.
func ExactArgs(number int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) == number {
			return nil
		}
		return fmt.Errorf("expected %d arguments, got %d", number, len(args))
	}
}

// MaxArgs returns an error if there are more than the max number of args.
func MaxArgs(number int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) <= number {
			return nil
		}
		return fmt.Errorf("expected at most %d arguments, got %d", number, len(args))
	}
}
