package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/knotter/internal/engine"
)

// ShowOptions holds flags for the show command.
type ShowOptions struct {
	*RootOptions
	Globe string
	UUID  string
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ShowOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print an alive ball, or every alive ball of a globe",
		Long: `Print the current state of a globe: one ball with --uuid, or all alive
balls without it.

Examples:
  knotter show --globe earth
  knotter show --globe earth --uuid U1 --format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Globe, "globe", "", "globe id (required)")
	_ = cmd.MarkFlagRequired("globe")
	cmd.Flags().StringVar(&opts.UUID, "uuid", "", "ball uuid")

	return cmd
}

func runShow(ctx context.Context, opts *ShowOptions, cmd *cobra.Command) error {
	rt, err := openRuntime(opts.RootOptions, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer rt.Close()

	out := newFormatter(cmd, opts.RootOptions)

	if opts.UUID != "" {
		ball, err := rt.engine.Ball(ctx, opts.Globe, opts.UUID)
		if engine.IsNotFound(err) {
			var e *engine.Error
			_ = asEngineError(err, &e)
			if err := out.Error(CodeNotFound, e.Message, nil); err != nil {
				return err
			}
			return NewExitError(ExitFailure, "ball not found")
		}
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read ball", err)
		}
		if opts.Format == "json" {
			return out.Success(ball)
		}
		return printBall(cmd, ball)
	}

	alive, err := rt.engine.Alive(ctx, opts.Globe)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read globe", err)
	}
	balls := alive.Sorted()
	if opts.Format == "json" {
		return out.Success(balls)
	}
	if len(balls) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No alive balls.")
		return nil
	}
	for _, ball := range balls {
		if err := printBall(cmd, ball); err != nil {
			return err
		}
	}
	return nil
}

func asEngineError(err error, target **engine.Error) bool {
	return errors.As(err, target)
}
