package commands

import (
	"runtime"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/halopress/halopress/internal/cli/ui"
)

// Set with -ldflags "-X github.com/halopress/halopress/internal/cli/commands.Version=..."
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
	GoVersion = "unknown"
)

var (
	configFlag  string
	noColorFlag bool
	jsonFlag    bool
)

// NewRootCommand creates the root command
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "halopress",
		Short: "Schema-driven content engine",
		Long: color.CyanString(`halopress - schema-driven content engine

Define content types as versioned field schemas, publish new versions, and
migrate stored documents with their reference, search and summary projections.`),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if noColorFlag {
				color.NoColor = true
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Config file (default: ./halopress.yml)")
	rootCmd.PersistentFlags().BoolVar(&noColorFlag, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&jsonFlag, "json", false, "Print results as JSON")

	rootCmd.AddCommand(NewVersionCommand())
	rootCmd.AddCommand(NewDBCommand())
	rootCmd.AddCommand(NewSchemaCommand())
	rootCmd.AddCommand(NewContentCommand())
	rootCmd.AddCommand(NewMigrateCommand())
	rootCmd.AddCommand(NewResyncCommand())
	rootCmd.AddCommand(NewSummariesCommand())
	rootCmd.AddCommand(NewWorkerCommand())

	return rootCmd
}

type versionInfo struct {
	Version   string `json:"version"`
	GitCommit string `json:"gitCommit"`
	BuildDate string `json:"buildDate"`
	GoVersion string `json:"goVersion"`
}

// NewVersionCommand prints the build metadata stamped in by the linker
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info := versionInfo{Version: Version, GitCommit: GitCommit, BuildDate: BuildDate, GoVersion: GoVersion}
			if info.GoVersion == "unknown" {
				info.GoVersion = runtime.Version()
			}
			out := cmd.OutOrStdout()
			if jsonFlag {
				return writeJSON(out, info)
			}

			pairs := ui.NewPairs(out, noColor())
			pairs.Add("halopress version", info.Version)
			pairs.Add("Git commit", info.GitCommit)
			pairs.Add("Build date", info.BuildDate)
			pairs.Add("Go version", info.GoVersion)
			pairs.Render()
			return nil
		},
	}
}

// Execute runs the root command
func Execute() error {
	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		reportError(rootCmd.ErrOrStderr(), err)
		return err
	}
	return nil
}
