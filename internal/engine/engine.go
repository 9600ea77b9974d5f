package engine

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/knotter/internal/globeid"
	"github.com/roach88/knotter/internal/scene"
	"github.com/roach88/knotter/internal/store"
	"github.com/roach88/knotter/internal/validate"
)

// DefaultPageSize is the number of transactions Page returns per call.
const DefaultPageSize = 10

const tracerName = "github.com/roach88/knotter/internal/engine"

// Engine validates and appends ball events and pages through globe logs.
// It is safe for concurrent use.
type Engine struct {
	log      store.Log
	gate     *validate.Gate
	proj     *projector
	locks    *keyedMutex
	logger   *slog.Logger
	tracer   trace.Tracer
	pageSize int
	cache    bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithPageSize sets how many transactions Page returns.
// Non-positive values keep the default.
func WithPageSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.pageSize = n
		}
	}
}

// WithProjectionCache turns incremental projections on or off. Default: on.
func WithProjectionCache(enabled bool) Option {
	return func(e *Engine) {
		e.cache = enabled
	}
}

// WithTracer sets the tracer. Default: the global otel tracer provider.
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) {
		if t != nil {
			e.tracer = t
		}
	}
}

// New returns an engine appending to log and enforcing rules.
func New(log store.Log, rules validate.Rules, opts ...Option) *Engine {
	e := &Engine{
		log:      log,
		locks:    newKeyedMutex(),
		logger:   slog.Default(),
		pageSize: DefaultPageSize,
		cache:    true,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.tracer == nil {
		e.tracer = otel.Tracer(tracerName)
	}

	e.proj = newProjector(log, e.logger, e.cache)
	e.gate = validate.NewGate(rules, e.proj)
	return e
}

// Rules returns the limits enforced on inserts.
func (e *Engine) Rules() validate.Rules {
	return e.gate.Rules()
}

// PageSize returns the number of transactions per page.
func (e *Engine) PageSize() int {
	return e.pageSize
}

// Insert validates ev against the globe's projection and appends it.
// The insert flag is forced on. It returns the new event id.
func (e *Engine) Insert(ctx context.Context, globe string, ev scene.BallEvent) (id string, err error) {
	globeID, err := normalizeGlobe(globe)
	if err != nil {
		return "", err
	}

	ctx, span := e.tracer.Start(ctx, "engine.Insert", trace.WithAttributes(
		attribute.String("globe.id", globeID),
		attribute.String("ball.uuid", ev.UUID),
		attribute.Bool("ball.fixed", ev.IsFixed),
	))
	defer func() { endSpan(span, err) }()

	ev.IsInsert = true

	unlock := e.locks.Lock(globeID)
	defer unlock()

	if err := e.gate.ValidateInsert(ctx, ev, globeID); err != nil {
		return "", e.gateError(globeID, err)
	}

	id, err = e.append(ctx, globeID, ev)
	if err != nil {
		return "", err
	}
	span.SetAttributes(attribute.String("event.id", id))

	e.logger.Info("ball inserted",
		"globe", globeID,
		"event_id", id,
		"uuid", ev.UUID,
		"fixed", ev.IsFixed)
	return id, nil
}

// Delete appends a tombstone for an alive object and returns its event id.
func (e *Engine) Delete(ctx context.Context, globe, uuid string) (id string, err error) {
	globeID, err := normalizeGlobe(globe)
	if err != nil {
		return "", err
	}

	ctx, span := e.tracer.Start(ctx, "engine.Delete", trace.WithAttributes(
		attribute.String("globe.id", globeID),
		attribute.String("ball.uuid", uuid),
	))
	defer func() { endSpan(span, err) }()

	unlock := e.locks.Lock(globeID)
	defer unlock()

	if err := e.gate.ValidateDelete(ctx, uuid, globeID); err != nil {
		return "", e.gateError(globeID, err)
	}

	id, err = e.append(ctx, globeID, scene.Tombstone(uuid))
	if err != nil {
		return "", err
	}
	span.SetAttributes(attribute.String("event.id", id))

	e.logger.Info("ball deleted",
		"globe", globeID,
		"event_id", id,
		"uuid", uuid)
	return id, nil
}

// Check runs the insert validation for ev without appending anything.
func (e *Engine) Check(ctx context.Context, globe string, ev scene.BallEvent) error {
	globeID, err := normalizeGlobe(globe)
	if err != nil {
		return err
	}
	ev.IsInsert = true

	unlock := e.locks.Lock(globeID)
	defer unlock()

	if err := e.gate.ValidateInsert(ctx, ev, globeID); err != nil {
		return e.gateError(globeID, err)
	}
	return nil
}

// Page returns up to one page of the globe's transactions after cursor.
// Cursor "0" starts at the beginning; any other cursor is skipped if it
// names an existing event. Entries that fail to decode are left out and the
// page is filled from the entries after them, so a run of bad entries never
// pins a client to its cursor.
func (e *Engine) Page(ctx context.Context, globe, cursor string) (txs []scene.Transaction, err error) {
	globeID, err := normalizeGlobe(globe)
	if err != nil {
		return nil, err
	}

	ctx, span := e.tracer.Start(ctx, "engine.Page", trace.WithAttributes(
		attribute.String("globe.id", globeID),
		attribute.String("page.cursor", cursor),
	))
	defer func() { endSpan(span, err) }()

	txs = make([]scene.Transaction, 0, e.pageSize)
	var skipped []string
	after := cursor
	for len(txs) < e.pageSize {
		want := e.pageSize - len(txs)
		entries, err := e.log.Scan(ctx, globeID, after, want)
		if err != nil {
			if errors.Is(err, store.ErrInvalidCursor) {
				return nil, validationError(globeID, err)
			}
			return nil, storageError(globeID, "scan", err)
		}

		for _, entry := range entries {
			ev, err := scene.Decode(entry.Payload)
			if err != nil {
				e.logger.Debug("undecodable event", "globe", globeID, "event_id", entry.EventID, "error", err)
				skipped = append(skipped, entry.EventID)
				continue
			}
			txs = append(txs, scene.Transaction{ID: entry.EventID, Ball: ev})
		}

		if len(entries) < want {
			break
		}
		after = entries[len(entries)-1].EventID
	}

	if len(skipped) > 0 {
		e.logger.Warn("skipped undecodable events",
			"globe", globeID,
			"count", len(skipped),
			"first_id", skipped[0],
			"last_id", skipped[len(skipped)-1])
		span.SetAttributes(attribute.Int("page.skipped", len(skipped)))
	}
	span.SetAttributes(attribute.Int("page.size", len(txs)))
	return txs, nil
}

// Alive returns a copy of the globe's current projection.
func (e *Engine) Alive(ctx context.Context, globe string) (scene.Alive, error) {
	globeID, err := normalizeGlobe(globe)
	if err != nil {
		return nil, err
	}

	unlock := e.locks.Lock(globeID)
	defer unlock()

	alive, err := e.proj.Alive(ctx, globeID)
	if err != nil {
		return nil, storageError(globeID, "projection", err)
	}
	return alive.Clone(), nil
}

// Ball returns the alive object uuid of the globe.
func (e *Engine) Ball(ctx context.Context, globe, uuid string) (scene.BallEvent, error) {
	alive, err := e.Alive(ctx, globe)
	if err != nil {
		return scene.BallEvent{}, err
	}
	ev, ok := alive[uuid]
	if !ok {
		globeID, _ := normalizeGlobe(globe)
		return scene.BallEvent{}, notFoundError(globeID, uuid)
	}
	return ev, nil
}

// Globes lists every globe that has events.
func (e *Engine) Globes(ctx context.Context) ([]string, error) {
	globes, err := e.log.Globes(ctx)
	if err != nil {
		return nil, storageError("", "list globes", err)
	}
	return globes, nil
}

func (e *Engine) append(ctx context.Context, globeID string, ev scene.BallEvent) (string, error) {
	payload, err := scene.Encode(ev)
	if err != nil {
		return "", serializationError(globeID, err)
	}
	id, err := e.log.Append(ctx, globeID, payload)
	if err != nil {
		e.logger.Error("append failed", "globe", globeID, "uuid", ev.UUID, "error", err)
		return "", storageError(globeID, "append", err)
	}
	return id, nil
}

// gateError sorts a gate failure into a rejection or a storage failure.
func (e *Engine) gateError(globeID string, err error) error {
	if reason, ok := validate.ReasonOf(err); ok {
		e.logger.Debug("event rejected", "globe", globeID, "reason", reason)
		return validationError(globeID, err)
	}
	e.logger.Error("projection failed", "globe", globeID, "error", err)
	return storageError(globeID, "projection", err)
}

func normalizeGlobe(globe string) (string, error) {
	id, err := globeid.Normalize(globe)
	if err != nil {
		return "", &Error{Code: CodeValidation, Message: trimInvalid(err), Err: err}
	}
	return id, nil
}

// trimInvalid drops the sentinel prefix so clients see the plain message.
func trimInvalid(err error) string {
	return strings.TrimPrefix(err.Error(), globeid.ErrInvalid.Error()+": ")
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(CodeOf(err)))
	}
	span.End()
}

var _ validate.Projector = (*projector)(nil)
