package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/knotter/internal/scene"
	"github.com/roach88/knotter/internal/store"
)

// EventsOptions holds flags for the events command.
type EventsOptions struct {
	*RootOptions
	Globe    string
	Cursor   string
	Follow   bool
	Interval time.Duration
}

// NewEventsCommand creates the events command.
func NewEventsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EventsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Print a globe's transactions",
		Long: `Print a globe's transactions page by page, starting after --cursor.

With --follow the command keeps polling for new transactions until
interrupted, the way clients tail a globe.

Examples:
  knotter events --globe earth
  knotter events --globe earth --cursor 01700000000000000000
  knotter events --globe earth --follow --format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEvents(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Globe, "globe", "", "globe id (required)")
	_ = cmd.MarkFlagRequired("globe")
	cmd.Flags().StringVar(&opts.Cursor, "cursor", store.StartCursor, "last transaction id already seen")
	cmd.Flags().BoolVarP(&opts.Follow, "follow", "f", false, "keep polling for new transactions")
	cmd.Flags().DurationVar(&opts.Interval, "interval", time.Second, "poll interval with --follow")

	return cmd
}

func runEvents(ctx context.Context, opts *EventsOptions, cmd *cobra.Command) error {
	rt, err := openRuntime(opts.RootOptions, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer rt.Close()

	w := cmd.OutOrStdout()
	cursor := opts.Cursor
	for {
		page, err := rt.engine.Page(ctx, opts.Globe, cursor)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return WrapExitError(ExitCommandError, "failed to read events", err)
		}

		for _, tx := range page {
			if err := printTransaction(w, opts.Format, tx); err != nil {
				return err
			}
			cursor = tx.ID
		}

		if len(page) > 0 {
			continue
		}
		if !opts.Follow {
			return nil
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(opts.Interval):
		}
	}
}

func printTransaction(w io.Writer, format string, tx scene.Transaction) error {
	if format == "json" {
		return json.NewEncoder(w).Encode(tx)
	}

	ball := tx.Ball
	if !ball.IsInsert {
		_, err := fmt.Fprintf(w, "%s delete %s\n", tx.ID, ball.UUID)
		return err
	}
	_, err := fmt.Fprintf(w, "%s insert %s\n", tx.ID, describeBall(ball))
	return err
}

func printBall(cmd *cobra.Command, ball scene.BallEvent) error {
	_, err := fmt.Fprintln(cmd.OutOrStdout(), describeBall(ball))
	return err
}

// describeBall renders a ball as "<uuid> <fixed|dynamic> color=... position=(...)".
func describeBall(ball scene.BallEvent) string {
	kind := "dynamic"
	if ball.IsFixed {
		kind = "fixed"
	}
	line := ball.UUID + " " + kind
	if ball.Color != nil {
		line += " color=" + *ball.Color
	}
	if ball.Position != nil {
		line += fmt.Sprintf(" position=(%g, %g, %g)", ball.Position.X, ball.Position.Y, ball.Position.Z)
	}
	if ball.Impulse != nil {
		line += fmt.Sprintf(" impulse=(%g, %g, %g)", ball.Impulse.X, ball.Impulse.Y, ball.Impulse.Z)
	}
	return line
}
