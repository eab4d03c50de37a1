// ABOUTME: Watch command turns request files dropped into a directory into saved cases
// ABOUTME: Existing unprocessed files are handled first, then new ones as they appear
package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/harper/mwgen/internal/watch"
)

var watchOnce bool

// NewWatchCmd creates the watch command
func NewWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Generate middleware for request files dropped into a directory",
		Long: `Watch a directory for request files and generate middleware for each.

Every *.txt or *.md file is run through the generation pipeline and saved.
The result is written next to the request as <name>.case.json. Files that
already have a result are skipped.

Examples:
  mwgen watch ./requests
  mwgen watch --once ./requests`,
		Args: cobra.ExactArgs(1),
		RunE: runWatch,
	}

	cmd.Flags().BoolVar(&watchOnce, "once", false, "Process existing files and exit")

	return cmd
}

func runWatch(cmd *cobra.Command, args []string) error {
	dir := args[0]
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("watch directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}

	a, err := newApp(appOptions{completion: true})
	if err != nil {
		return err
	}
	defer a.Close()

	inbox := watch.NewInbox(a.pipeline, watch.Config{
		SaveRetries: a.cfg.SaveRetries + 1,
		RetryDelay:  a.cfg.RetryDelay,
		Logger:      a.logger,
	})

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	n, err := inbox.ProcessExisting(ctx, dir)
	if err != nil {
		return err
	}
	a.logger.Info("processed existing requests", zap.String("dir", dir), zap.Int("count", n))

	if watchOnce {
		if !quiet {
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Processed %d request(s)\n", n)
		}
		return nil
	}

	return inbox.Run(ctx, dir)
}
