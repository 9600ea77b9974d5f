package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/roach88/knotter/internal/engine"
	"github.com/roach88/knotter/internal/scene"
)

// CheckOptions holds flags for the check command.
type CheckOptions struct {
	*RootOptions
	Globe string
	File  string
}

// CheckResult is the outcome of a dry-run insert.
type CheckResult struct {
	GlobeID  string `json:"globe_id"`
	UUID     string `json:"uuid"`
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason,omitempty"`
	Message  string `json:"message,omitempty"`
}

func (r CheckResult) String() string {
	if r.Accepted {
		return fmt.Sprintf("✓ %s would be accepted on %s", r.UUID, r.GlobeID)
	}
	return fmt.Sprintf("✗ %s would be rejected on %s: %s", r.UUID, r.GlobeID, r.Message)
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CheckOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Dry-run the insert validation for a ball",
		Long: `Validate a ball against a globe's current state without appending it.

The ball is read as JSON from --file, or from stdin when --file is "-".
A ball without a uuid gets a random one.

Exit codes:
  0 - The insert would be accepted
  1 - The insert would be rejected
  2 - Command error

Examples:
  knotter check --globe earth --file ball.json
  echo '{"is_fixed":true,"color":"#FF0000FF","position":{"x":0,"y":0,"z":1}}' | knotter check --globe earth --file -`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Globe, "globe", "", "globe id (required)")
	_ = cmd.MarkFlagRequired("globe")
	cmd.Flags().StringVar(&opts.File, "file", "-", "ball JSON file, - for stdin")

	return cmd
}

func runCheck(ctx context.Context, opts *CheckOptions, cmd *cobra.Command) error {
	ball, err := readBall(opts.File, cmd.InOrStdin())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read ball", err)
	}
	if ball.UUID == "" {
		ball.UUID = uuid.NewString()
	}

	rt, err := openRuntime(opts.RootOptions, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer rt.Close()

	out := newFormatter(cmd, opts.RootOptions)
	result := CheckResult{GlobeID: opts.Globe, UUID: ball.UUID, Accepted: true}

	err = rt.engine.Check(ctx, opts.Globe, ball)
	switch {
	case err == nil:
		return out.Success(result)
	case engine.IsValidation(err):
		result.Accepted = false
		var e *engine.Error
		if asEngineError(err, &e) {
			result.Message = e.Message
		}
		if reason, ok := engine.Reason(err); ok {
			result.Reason = string(reason)
		}
		if opts.Format == "json" {
			if err := out.Error(CodeRejected, result.Message, result); err != nil {
				return err
			}
		} else if err := out.Success(result); err != nil {
			return err
		}
		return NewExitError(ExitFailure, "ball rejected")
	default:
		return WrapExitError(ExitCommandError, "validation failed", err)
	}
}

func readBall(path string, stdin io.Reader) (scene.BallEvent, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return scene.BallEvent{}, err
	}
	return scene.Decode(data)
}
