package harness

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/knotter/internal/scene"
	"github.com/roach88/knotter/internal/validate"
)

// DefaultGlobe is used when a scenario names no globe.
const DefaultGlobe = "earth"

// Scenario defines a ball scenario: steps to run against one globe and
// assertions on the final projection.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Globe is the globe id every step targets. Defaults to DefaultGlobe.
	Globe string `yaml:"globe,omitempty"`

	// Rules overrides the geometry limits. Unnamed fields keep defaults.
	Rules validate.Rules `yaml:"rules,omitempty"`

	// Setup steps establish initial state and must all be accepted.
	Setup []Step `yaml:"setup,omitempty"`

	// Flow contains the steps under test.
	Flow []Step `yaml:"flow"`

	// Assertions validate the final state.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one operation. Exactly one of Insert, Delete or Page is set.
type Step struct {
	Insert *BallSpec `yaml:"insert,omitempty"`

	// Delete is the uuid to tombstone.
	Delete string `yaml:"delete,omitempty"`

	// Page is the cursor to read from.
	Page *string `yaml:"page,omitempty"`

	// Expect is checked against the step outcome when present.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// Op names the operation the step performs.
func (s Step) Op() string {
	switch {
	case s.Insert != nil:
		return "insert"
	case s.Delete != "":
		return "delete"
	case s.Page != nil:
		return "page"
	default:
		return ""
	}
}

// BallSpec is the YAML form of an insert. Vectors are [x, y, z] lists.
type BallSpec struct {
	UUID     string    `yaml:"uuid"`
	IsFixed  bool      `yaml:"is_fixed"`
	Color    *string   `yaml:"color,omitempty"`
	Position []float64 `yaml:"position,omitempty"`
	Impulse  []float64 `yaml:"impulse,omitempty"`
}

// Event converts the ball into an insert event.
func (b BallSpec) Event() (scene.BallEvent, error) {
	pos, err := vec(b.Position)
	if err != nil {
		return scene.BallEvent{}, fmt.Errorf("position: %w", err)
	}
	imp, err := vec(b.Impulse)
	if err != nil {
		return scene.BallEvent{}, fmt.Errorf("impulse: %w", err)
	}
	return scene.BallEvent{
		IsFixed:  b.IsFixed,
		IsInsert: true,
		UUID:     b.UUID,
		Color:    b.Color,
		Position: pos,
		Impulse:  imp,
	}, nil
}

func vec(c []float64) (*scene.Vec3, error) {
	switch len(c) {
	case 0:
		return nil, nil
	case 3:
		return scene.VecPtr(c[0], c[1], c[2]), nil
	default:
		return nil, fmt.Errorf("want 3 components, got %d", len(c))
	}
}

// ExpectClause specifies the expected step outcome.
type ExpectClause struct {
	// Outcome is "accepted" or "rejected". Empty means accepted.
	Outcome string `yaml:"outcome,omitempty"`

	// Reason is the expected rejection reason, e.g. "OFF_SURFACE".
	Reason string `yaml:"reason,omitempty"`

	// Message must be a substring of the rejection message.
	Message string `yaml:"message,omitempty"`

	// Count is the expected page length (page steps only).
	Count *int `yaml:"count,omitempty"`
}

// Assertion validates the final state.
type Assertion struct {
	Type   string `yaml:"type"`
	UUID   string `yaml:"uuid,omitempty"`
	Cursor string `yaml:"cursor,omitempty"`
	Count  int    `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertAlive      = "alive"
	AssertNotAlive   = "not_alive"
	AssertAliveCount = "alive_count"
	AssertFixedCount = "fixed_count"
	AssertPageCount  = "page_count"
	AssertVerified   = "verified"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	scenario := Scenario{Rules: validate.DefaultRules()}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if scenario.Globe == "" {
		scenario.Globe = DefaultGlobe
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}

	if err := s.Rules.Check(); err != nil {
		return fmt.Errorf("rules: %w", err)
	}

	for i, step := range s.Setup {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("setup[%d]: %w", i, err)
		}
		if step.Expect != nil {
			return fmt.Errorf("setup[%d]: expect is not allowed in setup", i)
		}
	}

	for i, step := range s.Flow {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("flow[%d]: %w", i, err)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

func validateStep(step Step) error {
	set := 0
	if step.Insert != nil {
		set++
	}
	if step.Delete != "" {
		set++
	}
	if step.Page != nil {
		set++
	}
	if set != 1 {
		return fmt.Errorf("exactly one of insert, delete or page is required")
	}

	if step.Insert != nil {
		if _, err := step.Insert.Event(); err != nil {
			return fmt.Errorf("insert: %w", err)
		}
	}

	if e := step.Expect; e != nil {
		switch e.Outcome {
		case "", OutcomeAccepted, OutcomeRejected:
		default:
			return fmt.Errorf("expect: unknown outcome %q", e.Outcome)
		}
		if e.Count != nil && step.Page == nil {
			return fmt.Errorf("expect: count is only valid for page steps")
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertAlive, AssertNotAlive:
		if a.UUID == "" {
			return fmt.Errorf("assertions[%d]: uuid is required for %s", index, a.Type)
		}
	case AssertAliveCount, AssertFixedCount, AssertPageCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for %s", index, a.Type)
		}
	case AssertVerified:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
