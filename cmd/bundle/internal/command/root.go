package command

import (
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"sigs.k8s.io/release-utils/version"

	"github.com/dsblv/parcel/cmd/bundle/internal/view"
)

var (
	outputFlag string
	debugFlag  bool
	rootCmd    *cobra.Command
)

// NewRootCommand builds the bundle CLI's root cobra command.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use: "bundle",
		Short: color.RGB(50, 108, 229).Sprintf("bundle [global options] <subcommand> [args]") + "\n" +
			"A CLI utility for bundling an asset graph document",
		Long: color.RGB(50, 108, 229).Sprintf("Usage: bundle [global options] <subcommand> [args]\n") + "\n" +
			"bundle reads an asset graph document, runs it through the bundler\n" +
			"and optimizer passes, and reports the resulting bundle graph. It\n" +
			"includes commands for validating a document before bundling and for\n" +
			"building and reporting on the result.\n\n",
		Version:       version.GetVersionInfo().GitVersion,
		SilenceUsage:  true,
		SilenceErrors: true,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) == 0 {
				_ = cmd.Help()
			}
		},
	}

	cmd.CompletionOptions.DisableDefaultCmd = true
	cmd.PersistentFlags().StringVarP(&outputFlag, "output", "o", "", "Output format. One of: (human | json)")
	cmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "Set log level to debug")
	return cmd
}

func setCobraUsageTemplate() {
	cobra.AddTemplateFunc("StyleHeading", color.RGB(50, 108, 229).SprintFunc())
	usageTemplate := rootCmd.UsageTemplate()
	usageTemplate = strings.NewReplacer(
		`Usage:`, `{{StyleHeading "Usage:"}}`,
		`Examples:`, `{{StyleHeading "Examples:"}}`,
		`Available Commands:`, `{{StyleHeading "Available Commands:"}}`,
		`Flags:`, `{{StyleHeading "Options:"}}`,
		`Global Flags:`, `{{StyleHeading "Global Options:"}}`,
	).Replace(usageTemplate)
	rootCmd.SetUsageTemplate(usageTemplate)
}

func setVersionTemplate() {
	rootCmd.SetVersionTemplate("{{.Version}}\n")
}

// Execute runs the bundle CLI to completion, exiting the process.
func Execute() {
	rootCmd = NewRootCommand()

	setCobraUsageTemplate()
	setVersionTemplate()

	if _, exists := os.LookupEnv("NO_COLOR"); exists {
		color.NoColor = true
	} else {
		color.NoColor = false
	}

	cli := NewCLI(view.ViewHuman, os.Stdout, view.LogLevelSilent)
	AddCommands(rootCmd, cli)

	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		viewType, err := view.ParseOutputFormat(outputFlag)
		if err != nil {
			cli.Println("Error: invalid output format:", outputFlag)
			os.Exit(1)
		}

		logLevel := view.LogLevelWarn
		switch strings.ToLower(os.Getenv("BUNDLE_LOG")) {
		case "debug":
			logLevel = view.LogLevelDebug
		case "info":
			logLevel = view.LogLevelInfo
		case "silent":
			logLevel = view.LogLevelSilent
		}
		if debugFlag {
			logLevel = view.LogLevelDebug
		}
		if viewType == view.ViewJSON {
			// Reserve stdout for the rendered JSON record; progress logs
			// would otherwise interleave with it.
			logLevel = view.LogLevelSilent
		}

		s := view.NewStream(os.Stdout)
		cli.Viewer = view.NewViewer(viewType, s, logLevel)
		cli.Stream = s
	}

	if err := rootCmd.Execute(); err != nil {
		if msg := err.Error(); msg != "" {
			cli.Println(msg)
		}
		os.Exit(1)
	}

	os.Exit(0)
}

// AddCommands registers every subcommand against root.
func AddCommands(root *cobra.Command, cli *CLI) {
	root.AddCommand(
		NewVersionCommand(cli),
		NewValidateCommand(cli),
		NewBuildCommand(cli),
	)
}
