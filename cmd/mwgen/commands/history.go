// ABOUTME: CLI commands to browse saved cases
// ABOUTME: history lists cases, optionally for one day; show prints a single case in full
package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/harper/mwgen/internal/models"
)

var (
	historyDate  string
	historyDates bool
)

// NewHistoryCmd creates the history command
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List saved cases",
		Long: `List saved cases, most recent first.

Examples:
  mwgen history
  mwgen history --date 2026-10-19
  mwgen history --dates
  mwgen history --format json`,
		Args: cobra.NoArgs,
		RunE: runHistory,
	}

	cmd.Flags().StringVar(&historyDate, "date", "", "Only cases created on this day (YYYY-MM-DD, UTC)")
	cmd.Flags().BoolVar(&historyDates, "dates", false, "List the days that have cases")

	return cmd
}

func runHistory(cmd *cobra.Command, args []string) error {
	a, err := newApp(appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()

	if historyDates {
		dates, err := a.store.Dates(ctx)
		if err != nil {
			return fmt.Errorf("listing dates: %w", err)
		}
		if jsonOutput() {
			return printJSON(cmd, dates)
		}
		for _, d := range dates {
			fmt.Fprintln(cmd.OutOrStdout(), d)
		}
		return nil
	}

	var cases []models.Case
	if historyDate != "" {
		cases, err = a.store.ListByDate(ctx, historyDate)
	} else {
		cases, err = a.store.ListAll(ctx)
	}
	if err != nil {
		return fmt.Errorf("listing cases: %w", err)
	}

	if jsonOutput() {
		return printJSON(cmd, cases)
	}

	if len(cases) == 0 {
		if !quiet {
			fmt.Fprintf(cmd.OutOrStdout(), "No cases found\n")
		}
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "ID\tCREATED\tIMPROVED\tINTENT\tREQUEST\n")
	fmt.Fprintf(w, "--\t-------\t--------\t------\t-------\n")
	for _, c := range cases {
		improved := "no"
		if c.HasImprovement() {
			improved = "yes"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
			c.ID,
			formatTime(c.CreatedAt),
			improved,
			truncate(c.Requirements.Intent, 30),
			truncate(c.InputText, 50))
	}
	_ = w.Flush()

	if !quiet {
		fmt.Fprintf(cmd.OutOrStdout(), "\nTotal: %d case(s)\n", len(cases))
	}
	return nil
}

// NewShowCmd creates the show command
func NewShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one saved case",
		Long: `Show a saved case with its code, documentation, validation feedback
and, when present, the improved revision.

Examples:
  mwgen show 12
  mwgen show 12 --format json`,
		Args: cobra.ExactArgs(1),
		RunE: runShow,
	}
}

func runShow(cmd *cobra.Command, args []string) error {
	id, err := parseCaseID(args[0])
	if err != nil {
		return err
	}

	a, err := newApp(appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	c, err := a.store.Get(cmd.Context(), id)
	if err != nil {
		return err
	}

	if jsonOutput() {
		return printJSON(cmd, c)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Case %d (%s)\n", c.ID, c.CreatedAt.Format("2006-01-02 15:04:05"))
	printSection(w, "Request", c.InputText)
	printSection(w, "Requirements", c.Requirements.Summary())
	printSection(w, "Code", c.Code)
	printSection(w, "Documentation", c.Documentation)
	printSection(w, "Validation", c.Validation)
	printSection(w, "Improved Code", c.ImprovedCode)
	printSection(w, "Improved Documentation", c.ImprovedDocumentation)
	return nil
}
