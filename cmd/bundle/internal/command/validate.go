package command

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dsblv/parcel/cmd/bundle/internal/view"
	"github.com/dsblv/parcel/internal/diagnostics"
	"github.com/dsblv/parcel/internal/loader"
)

// ValidateOptions holds the options for the validate command.
type ValidateOptions struct {
	Path        string
	Parallelism int
}

// NewValidateCommand builds the validate subcommand.
func NewValidateCommand(cli *CLI) *cobra.Command {
	var opts ValidateOptions

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Lint an asset graph document",
		Long: Highlight("bundle validate -f <path>") + "\n\n" +
			"Run the parallel diagnostics pass over an asset graph document,\n" +
			"checking for zero-size assets and dependencies with empty\n" +
			"non-optional resolutions.\n",
		RunE: func(cmd *cobra.Command, args []string) error {
			return RunValidate(cmd.Context(), cli, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Path, "file", "f", "", "Path to an asset graph document")
	cmd.Flags().IntVar(&opts.Parallelism, "parallelism", 0, "Lint worker pool size (0 = runtime.NumCPU())")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

// RunValidate loads opts.Path and renders a diagnostics report.
func RunValidate(ctx context.Context, cli *CLI, opts ValidateOptions) error {
	validateView := view.NewValidateView(cli.Viewer)

	assets, err := loader.LoadGraph(opts.Path)
	if err != nil {
		return fmt.Errorf("failed to load %q: %w", opts.Path, err)
	}

	findings, err := diagnostics.Run(ctx, assets, diagnostics.Options{Parallelism: opts.Parallelism})
	if err != nil {
		return fmt.Errorf("diagnostics pass failed: %w", err)
	}

	result := view.ValidateResult{AssetCount: assets.TotalAssetCount()}
	for _, f := range findings {
		line := fmt.Sprintf("%s: %s", f.Asset, f.Message)
		if f.Severity == diagnostics.SeverityError {
			result.Errors = append(result.Errors, line)
		} else {
			result.Warnings = append(result.Warnings, line)
		}
	}

	validateView.Render(result)
	if result.HasErrors() {
		return fmt.Errorf("")
	}
	return nil
}
