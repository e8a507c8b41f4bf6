package callengine

import (
	"context"
	"reflect"
	"runtime"
	"sync"

	"github.com/voxline/callcore/core/events"
)

// Handler processes one dispatched event. A returned error (or panic) is
// caught at the dispatch boundary and never aborts sibling handlers or
// subsequent events.
type Handler func(ctx context.Context, callCtx *CallEventContext) error

type registeredHandler struct {
	name string
	id   uintptr
	fn   Handler
}

// HandlerRegistry maps event kinds to ordered handler lists. Registration is
// not de-duplicated; hosts guard against double registration by performing
// wiring in a single explicit bootstrap step.
type HandlerRegistry struct {
	mu       sync.RWMutex
	handlers map[events.Kind][]registeredHandler
}

// NewHandlerRegistry creates an empty registry.
func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{handlers: map[events.Kind][]registeredHandler{}}
}

// Register appends a handler for a kind.
func (r *HandlerRegistry) Register(kind events.Kind, handler Handler) {
	if handler == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[kind] = append(r.handlers[kind], registeredHandler{
		name: handlerName(handler),
		id:   handlerID(handler),
		fn:   handler,
	})
}

// Unregister removes the first registration matching the handler identity.
// Returns false when the pair was not registered.
func (r *HandlerRegistry) Unregister(kind events.Kind, handler Handler) bool {
	if handler == nil {
		return false
	}
	id := handlerID(handler)

	r.mu.Lock()
	defer r.mu.Unlock()

	registered := r.handlers[kind]
	for i, candidate := range registered {
		if candidate.id == id {
			r.handlers[kind] = append(registered[:i], registered[i+1:]...)
			if len(r.handlers[kind]) == 0 {
				delete(r.handlers, kind)
			}
			return true
		}
	}
	return false
}

// handlersFor snapshots the handler list for a kind. The copy keeps dispatch
// stable while registrations change concurrently.
func (r *HandlerRegistry) handlersFor(kind events.Kind) []registeredHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	registered := r.handlers[kind]
	if len(registered) == 0 {
		return nil
	}
	snapshot := make([]registeredHandler, len(registered))
	copy(snapshot, registered)
	return snapshot
}

// kindCount reports how many kinds have at least one handler.
func (r *HandlerRegistry) kindCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers)
}

// handlerID is the comparable identity of a handler func. Method values of
// the same method share a code pointer, so register/unregister pairs built
// from the same method match.
func handlerID(handler Handler) uintptr {
	return reflect.ValueOf(handler).Pointer()
}

func handlerName(handler Handler) string {
	if fn := runtime.FuncForPC(handlerID(handler)); fn != nil {
		return fn.Name()
	}
	return "unknown"
}
