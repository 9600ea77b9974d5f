package harness

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// TraceSnapshot is what golden files store for a scenario run.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	Globe        string       `json:"globe"`
	Trace        []TraceEvent `json:"trace"`
	Alive        []string     `json:"alive"`
}

// NewSnapshot builds the golden snapshot of a scenario run.
func NewSnapshot(scenario *Scenario, result *Result) TraceSnapshot {
	return TraceSnapshot{
		ScenarioName: scenario.Name,
		Globe:        scenario.Globe,
		Trace:        result.Trace,
		Alive:        result.Alive,
	}
}

// GoldenPath returns where the golden file of a scenario loaded from
// scenarioFile lives: a golden directory next to the scenario directory.
// testdata/scenarios/a.yaml maps to testdata/golden/<name>.golden.
func GoldenPath(scenarioFile, name string) string {
	return filepath.Join(filepath.Dir(filepath.Dir(scenarioFile)), "golden", name+".golden")
}

// Marshal renders the snapshot as indented JSON with a trailing newline.
// Struct field order keeps the output stable.
func (s TraceSnapshot) Marshal() ([]byte, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns the result so callers can also check Pass.
// Test failure (via goldie) occurs if trace doesn't match golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against a golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, scenario *Scenario, result *Result) error {
	t.Helper()

	data, err := NewSnapshot(scenario, result).Marshal()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, data)
	return nil
}
