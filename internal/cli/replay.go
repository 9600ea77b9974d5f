package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/knotter/internal/engine"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Globe string // optional - specific globe only
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Globes      []engine.Verification `json:"globes"`
	TotalGlobes int                   `json:"total_globes"`
	AllOK       bool                  `json:"all_ok"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay globe logs and verify projections",
		Long: `Fold every globe's event log twice and compare the results, then
compare the cached projection against the full replay.

Exit codes:
  0 - All globes replay consistently
  1 - A replay diverged
  2 - Command error (config, storage)

Examples:
  knotter replay --db ./knotter.db
  knotter replay --db ./knotter.db --globe earth
  knotter replay --db ./knotter.db --format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Globe, "globe", "", "replay one globe only")

	return cmd
}

func runReplay(ctx context.Context, opts *ReplayOptions, cmd *cobra.Command) error {
	rt, err := openRuntime(opts.RootOptions, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer rt.Close()

	var globes []string
	if opts.Globe != "" {
		globes = []string{opts.Globe}
	} else {
		globes, err = rt.engine.Globes(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list globes", err)
		}
	}

	result := ReplayResult{
		Globes:      make([]engine.Verification, 0, len(globes)),
		TotalGlobes: len(globes),
		AllOK:       true,
	}

	for _, globe := range globes {
		// Warm the cache so that the comparison covers the incremental path.
		if _, err := rt.engine.Alive(ctx, globe); err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to project globe %s", globe), err)
		}
		v, err := rt.engine.Verify(ctx, globe)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to replay globe %s", globe), err)
		}
		result.Globes = append(result.Globes, v)
		if !v.OK() {
			result.AllOK = false
		}
	}

	if opts.Format == "json" {
		return outputReplayJSON(cmd, result)
	}
	return outputReplayText(cmd, result, opts.Verbose)
}

func outputReplayJSON(cmd *cobra.Command, result ReplayResult) error {
	response := CLIResponse{Status: "ok", Data: result}
	if !result.AllOK {
		response.Status = "error"
		response.Error = &CLIError{Code: CodeDeterminism, Message: "replay verification failed"}
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(response); err != nil {
		return err
	}

	if !result.AllOK {
		return NewExitError(ExitFailure, "replay verification failed")
	}
	return nil
}

func outputReplayText(cmd *cobra.Command, result ReplayResult, verbose bool) error {
	w := cmd.OutOrStdout()

	if result.TotalGlobes == 0 {
		fmt.Fprintln(w, "No globes found in the event log.")
		return nil
	}

	fmt.Fprintf(w, "Replay Summary: %d globe(s)\n", result.TotalGlobes)
	fmt.Fprintln(w)

	for _, g := range result.Globes {
		status := "✓"
		if !g.OK() {
			status = "✗"
		}
		fmt.Fprintf(w, "%s Globe: %s\n", status, g.GlobeID)
		fmt.Fprintf(w, "  Events: %d, alive: %d (%d fixed)\n", g.Events, g.Alive, g.Fixed)
		if verbose {
			fmt.Fprintf(w, "  Deterministic: %v\n", g.Deterministic)
			fmt.Fprintf(w, "  Cache consistent: %v\n", g.CacheConsistent)
		}
		if !g.Deterministic {
			fmt.Fprintln(w, "  Warning: Non-deterministic replay detected!")
		}
		if !g.CacheConsistent {
			fmt.Fprintln(w, "  Warning: Cached projection diverged from replay!")
		}
		fmt.Fprintln(w)
	}

	if result.AllOK {
		fmt.Fprintln(w, "✓ All globes verified")
		return nil
	}

	fmt.Fprintln(w, "✗ Replay verification failed")
	return NewExitError(ExitFailure, "replay verification failed")
}
