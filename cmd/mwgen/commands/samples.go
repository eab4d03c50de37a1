// ABOUTME: CLI command that asks the model for example middleware requests
// ABOUTME: Only samples mentioning HTTP concepts are printed
package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harper/mwgen/internal/agents"
)

var samplesCount int

// NewSamplesCmd creates the samples command
func NewSamplesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "samples",
		Short: "Suggest example middleware requests",
		Long: fmt.Sprintf(`Ask the model for example middleware requests to try with 'mwgen generate'.

At most %d samples are requested at once. Suggestions that do not mention
an HTTP concept are dropped.

Examples:
  mwgen samples
  mwgen samples -n 10`, agents.MaxSamples),
		Args: cobra.NoArgs,
		RunE: runSamples,
	}

	cmd.Flags().IntVarP(&samplesCount, "count", "n", 5, "Number of samples to request")

	return cmd
}

func runSamples(cmd *cobra.Command, args []string) error {
	if err := validatePositiveInt(samplesCount, "--count"); err != nil {
		return err
	}

	a, err := newApp(appOptions{completion: true})
	if err != nil {
		return err
	}
	defer a.Close()

	samples, diag, err := a.pipeline.Agents().Samples.Samples(cmd.Context(), samplesCount)
	if err != nil {
		return err
	}

	if jsonOutput() {
		return printJSON(cmd, map[string]interface{}{
			"samples":    samples,
			"diagnostic": diag,
		})
	}

	if diag != nil && !quiet {
		fmt.Fprintf(cmd.ErrOrStderr(), "Model output was malformed: %v\n", diag.Err)
	}
	if len(samples) == 0 {
		if !quiet {
			fmt.Fprintf(cmd.OutOrStdout(), "No samples returned\n")
		}
		return nil
	}
	for i, s := range samples {
		fmt.Fprintf(cmd.OutOrStdout(), "%d. %s\n", i+1, s)
	}
	return nil
}
