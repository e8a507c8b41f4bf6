package callengine

import (
	"context"
	"testing"

	"github.com/voxline/callcore/core/events"
)

func nopHandler(context.Context, *CallEventContext) error { return nil }

func TestRegisterAppendsInOrder(t *testing.T) {
	r := NewHandlerRegistry()

	var order []string
	first := func(context.Context, *CallEventContext) error {
		order = append(order, "first")
		return nil
	}
	second := func(context.Context, *CallEventContext) error {
		order = append(order, "second")
		return nil
	}

	r.Register(events.KindCallConnected, first)
	r.Register(events.KindCallConnected, second)

	for _, handler := range r.handlersFor(events.KindCallConnected) {
		if err := handler.fn(context.Background(), nil); err != nil {
			t.Fatalf("unexpected handler error: %v", err)
		}
	}

	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Fatalf("expected registration order preserved, got %v", order)
	}
}

func TestRegisterDoesNotDeduplicate(t *testing.T) {
	r := NewHandlerRegistry()

	r.Register(events.KindCallConnected, nopHandler)
	r.Register(events.KindCallConnected, nopHandler)

	if got := len(r.handlersFor(events.KindCallConnected)); got != 2 {
		t.Fatalf("expected double registration to stick, got %d handlers", got)
	}
}

func TestUnregisterRemovesFirstMatch(t *testing.T) {
	r := NewHandlerRegistry()

	r.Register(events.KindCallConnected, nopHandler)
	r.Register(events.KindCallConnected, nopHandler)

	if !r.Unregister(events.KindCallConnected, nopHandler) {
		t.Fatalf("expected unregister to find a match")
	}
	if got := len(r.handlersFor(events.KindCallConnected)); got != 1 {
		t.Fatalf("expected one handler to remain, got %d", got)
	}
}

func TestUnregisterAbsentHandlerIsNoop(t *testing.T) {
	r := NewHandlerRegistry()
	r.Register(events.KindCallConnected, nopHandler)

	other := func(context.Context, *CallEventContext) error { return nil }

	if r.Unregister(events.KindCallConnected, other) {
		t.Fatalf("expected no match for an unregistered handler")
	}
	if r.Unregister(events.KindCallDisconnected, nopHandler) {
		t.Fatalf("expected no match for an unregistered kind")
	}
	if got := len(r.handlersFor(events.KindCallConnected)); got != 1 {
		t.Fatalf("expected registry untouched, got %d handlers", got)
	}
}

func TestRegisterThenUnregisterRestoresPriorState(t *testing.T) {
	r := NewHandlerRegistry()
	r.Register(events.KindCallConnected, nopHandler)

	extra := func(context.Context, *CallEventContext) error { return nil }
	r.Register(events.KindCallConnected, extra)
	if !r.Unregister(events.KindCallConnected, extra) {
		t.Fatalf("expected unregister to find the added handler")
	}

	remaining := r.handlersFor(events.KindCallConnected)
	if len(remaining) != 1 {
		t.Fatalf("expected prior state restored, got %d handlers", len(remaining))
	}
	if remaining[0].id != handlerID(nopHandler) {
		t.Fatalf("expected the original handler to remain")
	}
}

func TestUnregisterLastHandlerClearsKind(t *testing.T) {
	r := NewHandlerRegistry()
	r.Register(events.KindCallConnected, nopHandler)

	r.Unregister(events.KindCallConnected, nopHandler)

	if got := r.kindCount(); got != 0 {
		t.Fatalf("expected no kinds registered, got %d", got)
	}
}

func TestMethodValuesShareIdentity(t *testing.T) {
	r := NewHandlerRegistry()
	h := NewCallLifecycleHandlers()

	r.Register(events.KindCallConnected, h.HandleCallConnected)

	// A separately taken method value must still match for unregistration.
	if !r.Unregister(events.KindCallConnected, h.HandleCallConnected) {
		t.Fatalf("expected method values of the same method to match")
	}
}
