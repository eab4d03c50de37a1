// ABOUTME: Root command and global flags for the mwgen CLI
// ABOUTME: Registers every subcommand and loads .env before any of them run
package commands

import (
	"errors"
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	verbose      bool
	quiet        bool
	outputFormat string
	configPath   string
)

var outputFormats = []string{"auto", "text", "json"}

const banner = `
 ███╗   ███╗██╗    ██╗ ██████╗ ███████╗███╗   ██╗
 ████╗ ████║██║    ██║██╔════╝ ██╔════╝████╗  ██║
 ██╔████╔██║██║ █╗ ██║██║  ███╗█████╗  ██╔██╗ ██║
 ██║╚██╔╝██║██║███╗██║██║   ██║██╔══╝  ██║╚██╗██║
 ██║ ╚═╝ ██║╚███╔███╔╝╚██████╔╝███████╗██║ ╚████║
 ╚═╝     ╚═╝ ╚══╝╚══╝  ╚═════╝ ╚══════╝╚═╝  ╚═══╝
`

// NewRootCmd creates the root command with all subcommands attached
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mwgen",
		Short: "Generate HTTP middleware from plain-language descriptions",
		Long: banner + `
mwgen turns a plain-language description of HTTP middleware into code,
documentation and review feedback, and keeps every run in a local case
history that later requests can learn from.

Configuration comes from an optional YAML file (--config or MWGEN_CONFIG)
overridden by environment variables such as OPENAI_API_KEY.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if verbose && quiet {
				return errors.New("--verbose and --quiet cannot be used together")
			}
			if !containsString(outputFormats, outputFormat) {
				return fmt.Errorf("unknown --format %q (want auto, text or json)", outputFormat)
			}
			// Missing .env is fine; real deployments use the environment
			_ = godotenv.Load()
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging")
	cmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Only log errors and print results")
	cmd.PersistentFlags().StringVar(&outputFormat, "format", "auto", "Output format: auto, text or json")
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML config file")

	cmd.AddCommand(
		NewGenerateCmd(),
		NewRAGCmd(),
		NewHistoryCmd(),
		NewShowCmd(),
		NewImproveCmd(),
		NewSamplesCmd(),
		NewDocsCmd(),
		NewIndexCmd(),
		NewExportCmd(),
		NewResetCmd(),
		NewServeCmd(),
		NewMCPCmd(),
		NewWatchCmd(),
		NewVersionCmd(),
	)

	return cmd
}

// Execute runs the root command
func Execute() error {
	return NewRootCmd().Execute()
}

// jsonOutput reports whether results should be printed as JSON
func jsonOutput() bool {
	return outputFormat == "json"
}
