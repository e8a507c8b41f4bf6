package callengine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/voxline/callcore/core/events"
)

// Summary reports one ProcessEvents batch. Processed counts dispatched
// events, including those with no registered handler; Failed counts handler
// failures, so one event can contribute to both. Events without a resolvable
// correlation key count toward neither.
type Summary struct {
	Processed int
	Failed    int
	Timestamp time.Time
}

// Stats is a cumulative point-in-time snapshot of processor activity.
type Stats struct {
	EventsProcessed int
	EventsDropped   int
	HandlerFailures int
	ActiveCalls     int
	RegisteredKinds int
}

// Processor is the ingestion loop. One batch is processed strictly
// sequentially in input order; the processor holds no cross-call lock, so
// the host may feed batches for different calls concurrently but must not
// interleave batches for the same call.
type Processor struct {
	registry *HandlerRegistry
	runtime  Runtime

	mu          sync.Mutex
	activeCalls map[string]struct{}
	stats       Stats
}

// NewProcessor creates a processor around a runtime. The registry starts
// empty; hosts wire handlers with RegisterLifecycleHandlers (or directly)
// exactly once at bootstrap.
func NewProcessor(runtime Runtime) *Processor {
	return &Processor{
		registry:    NewHandlerRegistry(),
		runtime:     runtime,
		activeCalls: map[string]struct{}{},
	}
}

// Registry exposes the processor's handler registry for bootstrap wiring and
// runtime registration changes.
func (p *Processor) Registry() *HandlerRegistry {
	return p.registry
}

// ProcessEvents dispatches a batch in strict input order and reports a
// summary. No failure inside the batch is fatal: malformed events are
// dropped with a warning, handler failures are isolated, logged, and
// counted.
func (p *Processor) ProcessEvents(ctx context.Context, envelopes []events.Envelope) Summary {
	ctx, span := tracer.Start(ctx, "process call events")
	defer span.End()
	span.SetAttributes(attribute.Int("batch.size", len(envelopes)))

	summary := Summary{Timestamp: time.Now()}

	for _, envelope := range envelopes {
		callConnectionID := events.CallConnectionID(envelope)
		if callConnectionID == "" {
			logger.WarnContext(ctx, "dropping event without call connection id",
				"event_id", envelope.ID, "event_kind", envelope.Kind, "source", envelope.Source)
			p.mu.Lock()
			p.stats.EventsDropped++
			p.mu.Unlock()
			continue
		}

		p.trackCall(envelope.Kind, callConnectionID)

		callCtx := newCallEventContext(envelope, callConnectionID, p.runtime)
		failures := p.dispatch(ctx, callCtx)

		summary.Processed++
		summary.Failed += failures

		p.mu.Lock()
		p.stats.EventsProcessed++
		p.stats.HandlerFailures += failures
		p.mu.Unlock()
	}

	if summary.Failed > 0 {
		span.SetStatus(codes.Error, fmt.Sprintf("%d handler failure(s) in batch", summary.Failed))
	}
	return summary
}

// dispatch runs every registered handler for the event sequentially,
// isolating each failure, and returns the failure count. An event with no
// handlers dispatches successfully.
func (p *Processor) dispatch(ctx context.Context, callCtx *CallEventContext) int {
	failures := 0
	for _, handler := range p.registry.handlersFor(callCtx.Event.Kind) {
		if err := runHandler(ctx, handler, callCtx); err != nil {
			failures++
			logger.ErrorContext(ctx, "event handler failed",
				"handler", handler.name,
				"event_id", callCtx.Event.ID,
				"event_kind", callCtx.Event.Kind,
				"call_connection_id", callCtx.CallConnectionID,
				"error", err,
			)
		}
	}
	return failures
}

func runHandler(ctx context.Context, handler registeredHandler, callCtx *CallEventContext) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("handler %s panicked: %v", handler.name, recovered)
		}
	}()
	return handler.fn(ctx, callCtx)
}

// HandleWebhookEvents unwraps a meta envelope and re-dispatches its handlers
// using the original embedded event kind. Failures of embedded handlers stay
// isolated from each other and surface joined, so the outer dispatch
// boundary counts the meta event once.
func (p *Processor) HandleWebhookEvents(ctx context.Context, callCtx *CallEventContext) error {
	embedded := events.EmbeddedKind(callCtx.Event)
	if embedded == "" {
		logger.WarnContext(ctx, "webhook meta event carries no embedded kind",
			"event_id", callCtx.Event.ID, "call_connection_id", callCtx.CallConnectionID)
		return nil
	}
	if embedded == events.KindWebhookEvents {
		return fmt.Errorf("refusing recursive webhook meta dispatch for event %s", callCtx.Event.ID)
	}

	// Re-dispatch on the same context: the embedded handlers see the meta
	// envelope's payload under the original kind.
	rebound := *callCtx
	rebound.Event.Kind = embedded

	var errs []error
	for _, handler := range p.registry.handlersFor(embedded) {
		if err := runHandler(ctx, handler, &rebound); err != nil {
			logger.ErrorContext(ctx, "embedded event handler failed",
				"handler", handler.name,
				"event_id", callCtx.Event.ID,
				"embedded_kind", embedded,
				"call_connection_id", callCtx.CallConnectionID,
				"error", err,
			)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// trackCall maintains the active-call cache. The cache is advisory only; the
// session store stays authoritative.
func (p *Processor) trackCall(kind events.Kind, callConnectionID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch {
	case events.IsConnectKind(kind):
		p.activeCalls[callConnectionID] = struct{}{}
	case events.IsDisconnectKind(kind):
		delete(p.activeCalls, callConnectionID)
	}
}

// ActiveCalls returns a sorted snapshot of calls currently believed live.
func (p *Processor) ActiveCalls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	calls := make([]string, 0, len(p.activeCalls))
	for callConnectionID := range p.activeCalls {
		calls = append(calls, callConnectionID)
	}
	sort.Strings(calls)
	return calls
}

// IsCallActive reports whether a call is in the active cache.
func (p *Processor) IsCallActive(callConnectionID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.activeCalls[callConnectionID]
	return ok
}

// Stats returns a cumulative snapshot.
func (p *Processor) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	stats := p.stats
	stats.ActiveCalls = len(p.activeCalls)
	stats.RegisteredKinds = p.registry.kindCount()
	return stats
}
