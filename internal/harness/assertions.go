package harness

import (
	"context"
	"fmt"
	"strings"
)

// checkExpect compares a step outcome with its expect clause and returns
// one message per mismatch.
func checkExpect(expect *ExpectClause, got stepOutcome) []string {
	if expect == nil {
		return nil
	}

	var errs []string
	want := expect.Outcome
	if want == "" {
		want = OutcomeAccepted
	}
	if got.Outcome != want {
		errs = append(errs, fmt.Sprintf("expected %s, got %s (%s)", want, got.Outcome, got.message))
		return errs
	}

	if expect.Reason != "" && got.Reason != expect.Reason {
		errs = append(errs, fmt.Sprintf("expected reason %s, got %s", expect.Reason, got.Reason))
	}
	if expect.Message != "" && !strings.Contains(got.message, expect.Message) {
		errs = append(errs, fmt.Sprintf("expected message containing %q, got %q", expect.Message, got.message))
	}
	if expect.Count != nil && (got.Count == nil || *got.Count != *expect.Count) {
		n := 0
		if got.Count != nil {
			n = *got.Count
		}
		errs = append(errs, fmt.Sprintf("expected %d transactions, got %d", *expect.Count, n))
	}
	return errs
}

// evaluateAssertions checks every assertion against the final state.
func (h *Harness) evaluateAssertions(ctx context.Context, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		if err := h.evaluate(ctx, a); err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d] %s: %v", i, a.Type, err))
		}
	}
	return errs
}

func (h *Harness) evaluate(ctx context.Context, a Assertion) error {
	switch a.Type {
	case AssertAlive, AssertNotAlive, AssertAliveCount, AssertFixedCount:
		alive, err := h.engine.Alive(ctx, h.globe)
		if err != nil {
			return err
		}
		switch a.Type {
		case AssertAlive:
			if !alive.IsAlive(a.UUID) {
				return fmt.Errorf("%s is not alive", a.UUID)
			}
		case AssertNotAlive:
			if alive.IsAlive(a.UUID) {
				return fmt.Errorf("%s is still alive", a.UUID)
			}
		case AssertAliveCount:
			if len(alive) != a.Count {
				return fmt.Errorf("expected %d alive, got %d", a.Count, len(alive))
			}
		case AssertFixedCount:
			if n := len(alive.FixedPositions()); n != a.Count {
				return fmt.Errorf("expected %d fixed, got %d", a.Count, n)
			}
		}
	case AssertPageCount:
		cursor := a.Cursor
		if cursor == "" {
			cursor = "0"
		}
		page, err := h.engine.Page(ctx, h.globe, cursor)
		if err != nil {
			return err
		}
		if len(page) != a.Count {
			return fmt.Errorf("expected %d transactions after %s, got %d", a.Count, cursor, len(page))
		}
	case AssertVerified:
		v, err := h.engine.Verify(ctx, h.globe)
		if err != nil {
			return err
		}
		if !v.OK() {
			return fmt.Errorf("replay deterministic=%v cache_consistent=%v", v.Deterministic, v.CacheConsistent)
		}
	default:
		return fmt.Errorf("unknown assertion type")
	}
	return nil
}
