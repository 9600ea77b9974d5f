package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/knotter/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update bool   // regenerate golden files
	Filter string // scenario filter (glob pattern)
}

// CodeTestFailed marks a test run with at least one failing scenario.
const CodeTestFailed = "E_TEST_FAILED"

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`
}

// TestResult holds the overall test result.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run ball scenarios against a scratch log",
		Long: `Run YAML ball scenarios against a fresh in-memory event log.

Each scenario's expect clauses and assertions are checked. When a golden
file exists in the golden directory next to the scenarios directory, the
trace must match it byte for byte.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  knotter test ./testdata/scenarios
  knotter test ./testdata/scenarios --filter "ball_*"
  knotter test ./testdata/scenarios --update
  knotter test ./testdata/scenarios --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")

	return cmd
}

func runTests(opts *TestOptions, scenariosDir string, cmd *cobra.Command) error {
	if _, err := os.Stat(scenariosDir); os.IsNotExist(err) {
		return NewExitError(ExitCommandError, fmt.Sprintf("scenarios directory not found: %s", scenariosDir))
	}

	scenarioFiles, err := findScenarioFiles(scenariosDir, opts.Filter)
	if err != nil {
		return NewExitError(ExitCommandError, fmt.Sprintf("failed to find scenarios: %v", err))
	}

	if len(scenarioFiles) == 0 {
		if opts.Format == "json" {
			return outputTestJSON(cmd, TestResult{Scenarios: []ScenarioResult{}})
		}
		fmt.Fprintln(cmd.OutOrStdout(), "No scenarios found.")
		return nil
	}

	result := TestResult{
		Scenarios: make([]ScenarioResult, 0, len(scenarioFiles)),
		Total:     len(scenarioFiles),
	}

	for _, scenarioFile := range scenarioFiles {
		scenResult := runScenario(scenarioFile, opts)
		if opts.Format != "json" {
			printScenarioResult(cmd, scenResult)
		}
		result.Scenarios = append(result.Scenarios, scenResult)

		if scenResult.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	if opts.Format == "json" {
		return outputTestJSON(cmd, result)
	}
	return outputTestText(cmd, result)
}

// findScenarioFiles returns the .yaml/.yml files under dir whose base
// name (without extension) matches filter. An empty filter matches all.
func findScenarioFiles(dir, filter string) ([]string, error) {
	if filter != "" {
		if _, err := filepath.Match(filter, ""); err != nil {
			return nil, fmt.Errorf("invalid filter pattern: %w", err)
		}
	}

	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		if filter != "" {
			if ok, _ := filepath.Match(filter, strings.TrimSuffix(d.Name(), ext)); !ok {
				return nil
			}
		}
		files = append(files, path)
		return nil
	})
	return files, err
}

// runScenario executes a single scenario and returns the result.
func runScenario(scenarioFile string, opts *TestOptions) ScenarioResult {
	scenario, err := harness.LoadScenario(scenarioFile)
	if err != nil {
		return failed(filepath.Base(scenarioFile), "failed to load scenario: %v", err)
	}

	result, err := harness.Run(scenario)
	if err != nil {
		return failed(scenario.Name, "execution failed: %v", err)
	}

	data, err := harness.NewSnapshot(scenario, result).Marshal()
	if err != nil {
		return failed(scenario.Name, "failed to marshal trace: %v", err)
	}
	goldenPath := harness.GoldenPath(scenarioFile, scenario.Name)

	if opts.Update {
		if err := os.MkdirAll(filepath.Dir(goldenPath), 0o755); err != nil {
			return failed(scenario.Name, "failed to create golden directory: %v", err)
		}
		if err := os.WriteFile(goldenPath, data, 0o644); err != nil {
			return failed(scenario.Name, "failed to write golden file: %v", err)
		}
	} else {
		golden, err := os.ReadFile(goldenPath)
		switch {
		case os.IsNotExist(err):
			// No golden file: assertions only.
		case err != nil:
			return failed(scenario.Name, "failed to read golden file: %v", err)
		case !bytes.Equal(golden, data):
			result.AddError("trace does not match golden file (run with --update to regenerate)")
		}
	}

	return ScenarioResult{Name: scenario.Name, Pass: result.Pass, Errors: result.Errors}
}

func failed(name, format string, args ...any) ScenarioResult {
	return ScenarioResult{Name: name, Errors: []string{fmt.Sprintf(format, args...)}}
}

func printScenarioResult(cmd *cobra.Command, r ScenarioResult) {
	w := cmd.OutOrStdout()
	if r.Pass {
		fmt.Fprintf(w, "✓ %s\n", r.Name)
		return
	}
	fmt.Fprintf(w, "✗ %s\n", r.Name)
	for _, e := range r.Errors {
		fmt.Fprintf(w, "  %s\n", e)
	}
}

// outputTestJSON writes the whole run as one CLIResponse.
func outputTestJSON(cmd *cobra.Command, result TestResult) error {
	resp := CLIResponse{Status: "ok", Data: result}
	var exitErr error
	if result.Failed > 0 {
		msg := fmt.Sprintf("%d scenario(s) failed", result.Failed)
		resp.Status = "error"
		resp.Error = &CLIError{Code: CodeTestFailed, Message: msg}
		exitErr = NewExitError(ExitFailure, msg)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(resp); err != nil {
		return err
	}
	return exitErr
}

// outputTestText prints the summary line after the per-scenario marks.
func outputTestText(cmd *cobra.Command, result TestResult) error {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "\nTest Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)
	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	fmt.Fprintln(w, "✓ All scenarios passed")
	return nil
}
