package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/roach88/knotter/internal/engine"
	"github.com/roach88/knotter/internal/store"
	"github.com/roach88/knotter/internal/testutil"
)

// Epoch is the first wall-clock reading of every run. The first appended
// event of a scenario is always 01700000000000000000.
var Epoch = time.Unix(1_700_000_000, 0).UTC()

// clockStep is the clock advance per append.
const clockStep = time.Millisecond

// Harness executes scenario steps against a fresh engine.
type Harness struct {
	engine *engine.Engine
	globe  string
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
// Execution flow:
// 1. Open an in-memory SQLite log driven by a deterministic clock
// 2. Execute setup steps, failing the run on any rejection
// 3. Execute flow steps with expect validation
// 4. Evaluate assertions against the final projection
//
// Mismatches are reported in Result.Errors. The returned error is reserved
// for infrastructure failures such as a storage error.
func Run(scenario *Scenario) (*Result, error) {
	ctx := context.Background()

	clock := testutil.NewDeterministicClock(Epoch, clockStep)
	log, err := store.Open(store.DriverSQLite, ":memory:",
		store.WithClock(store.NewClock(clock.Now)))
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer log.Close()

	h := &Harness{
		engine: engine.New(log, scenario.Rules,
			engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))), // Suppress logs in tests
		globe: scenario.Globe,
	}

	result := NewResult()

	for i, step := range scenario.Setup {
		ev, err := h.execute(ctx, step)
		if err != nil {
			return nil, fmt.Errorf("setup step %d: %w", i, err)
		}
		if ev.Outcome != OutcomeAccepted {
			return nil, fmt.Errorf("setup step %d: %s rejected with %s", i, step.Op(), ev.Reason)
		}
		result.AddTrace(ev.TraceEvent)
	}

	for i, step := range scenario.Flow {
		ev, err := h.execute(ctx, step)
		if err != nil {
			return nil, fmt.Errorf("flow step %d: %w", i, err)
		}
		result.AddTrace(ev.TraceEvent)
		for _, msg := range checkExpect(step.Expect, ev) {
			result.AddError(fmt.Sprintf("flow[%d] %s: %s", i, step.Op(), msg))
		}
	}

	alive, err := h.engine.Alive(ctx, h.globe)
	if err != nil {
		return nil, fmt.Errorf("read final projection: %w", err)
	}
	for id := range alive {
		result.Alive = append(result.Alive, id)
	}
	slices.Sort(result.Alive)

	for _, msg := range h.evaluateAssertions(ctx, scenario.Assertions) {
		result.AddError(msg)
	}

	return result, nil
}

// stepOutcome is a trace event plus the rejection message, which is
// checked by expect clauses but kept out of golden files.
type stepOutcome struct {
	TraceEvent
	message string
}

func (h *Harness) execute(ctx context.Context, step Step) (stepOutcome, error) {
	out := stepOutcome{TraceEvent: TraceEvent{Op: step.Op()}}

	var (
		id  string
		err error
	)
	switch {
	case step.Insert != nil:
		out.UUID = step.Insert.UUID
		ev, convErr := step.Insert.Event()
		if convErr != nil {
			return out, convErr
		}
		id, err = h.engine.Insert(ctx, h.globe, ev)
	case step.Delete != "":
		out.UUID = step.Delete
		id, err = h.engine.Delete(ctx, h.globe, step.Delete)
	case step.Page != nil:
		out.Cursor = *step.Page
		page, pageErr := h.engine.Page(ctx, h.globe, *step.Page)
		if pageErr == nil {
			n := len(page)
			out.Count = &n
		}
		err = pageErr
	}

	switch {
	case err == nil:
		out.Outcome = OutcomeAccepted
		out.TransactionID = id
	case engine.IsClientError(err):
		out.Outcome = OutcomeRejected
		if reason, ok := engine.Reason(err); ok {
			out.Reason = string(reason)
		} else {
			out.Reason = string(engine.CodeOf(err))
		}
		out.message = err.Error()
	default:
		return out, err
	}
	return out, nil
}
