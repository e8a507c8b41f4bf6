package callengine

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/voxline/callcore/core/dtmf"
	"github.com/voxline/callcore/core/events"
	"github.com/voxline/callcore/core/observer"
	"github.com/voxline/callcore/core/session"
	"github.com/voxline/callcore/core/telephony"
)

type collectingBroadcaster struct {
	mu            sync.Mutex
	notifications []observer.Notification
	sessionIDs    []string
}

func (b *collectingBroadcaster) Publish(_ context.Context, sessionID string, notification observer.Notification) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.notifications = append(b.notifications, notification)
	b.sessionIDs = append(b.sessionIDs, sessionID)
	return nil
}

func (b *collectingBroadcaster) Attached(string) bool { return true }

func (b *collectingBroadcaster) types() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	types := make([]string, len(b.notifications))
	for i, n := range b.notifications {
		types[i] = n.Type
	}
	return types
}

type erroringProvider struct{ stubProvider }

func (p *erroringProvider) Participants(context.Context, string) ([]telephony.Participant, error) {
	return nil, errors.New("provider unreachable")
}

func contextFor(runtime Runtime, kind events.Kind, callID string, data map[string]any) *CallEventContext {
	return newCallEventContext(envelopeFor(kind, callID, data), callID, runtime)
}

func TestHandleCallConnectedStoresCallerAndNotifies(t *testing.T) {
	provider := &stubProvider{
		participants: []telephony.Participant{
			{Kind: telephony.ParticipantCommunicationUser, ID: "app-leg"},
			{Kind: telephony.ParticipantPhoneNumber, ID: "+15551230000"},
			{Kind: telephony.ParticipantPhoneNumber, ID: "+15559990000"},
		},
	}
	store := session.NewMemory()
	broadcaster := &collectingBroadcaster{}
	notifier := observer.NewNotifier(broadcaster)
	runtime := Runtime{Store: store, Provider: provider, Notifier: notifier}
	h := NewCallLifecycleHandlers()
	ctx := context.Background()

	if err := h.HandleCallConnected(ctx, contextFor(runtime, events.KindCallConnected, "call-1", nil)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	notifier.Close()

	callerID, err := session.GetString(ctx, store, "call-1", session.KeyCallerID)
	if err != nil {
		t.Fatalf("failed to read caller id: %v", err)
	}
	// First phone participant wins.
	if callerID != "+15551230000" {
		t.Fatalf("expected first phone participant as caller, got %q", callerID)
	}

	status, err := store.Fresh(ctx, "call-1", session.KeyStatus)
	if err != nil {
		t.Fatalf("failed to read persisted status: %v", err)
	}
	if status != session.StatusConnected {
		t.Fatalf("expected persisted connected status, got %v", status)
	}

	types := broadcaster.types()
	if len(types) != 1 || types[0] != "call.connected" {
		t.Fatalf("expected one connected notification, got %v", types)
	}
	// Notifications are keyed by the presentation session id, never by the
	// telephony correlation id.
	if broadcaster.sessionIDs[0] == "call-1" {
		t.Fatalf("expected presentation session id, got the call connection id")
	}
}

func TestHandleCallConnectedSurvivesProviderFailure(t *testing.T) {
	store := session.NewMemory()
	runtime := Runtime{Store: store, Provider: &erroringProvider{}, Notifier: observer.NewNotifier(nil)}
	h := NewCallLifecycleHandlers()
	ctx := context.Background()

	if err := h.HandleCallConnected(ctx, contextFor(runtime, events.KindCallConnected, "call-1", nil)); err != nil {
		t.Fatalf("expected provider failure to be non-fatal, got %v", err)
	}

	active, err := session.GetBool(ctx, store, "call-1", session.KeyCallActive, false)
	if err != nil {
		t.Fatalf("failed to read call_active: %v", err)
	}
	if !active {
		t.Fatalf("expected call marked active despite missing participants")
	}
}

func TestHandleCallConnectedChallengeModeIssuesChallengeBeforeConversation(t *testing.T) {
	provider := &stubProvider{
		participants: []telephony.Participant{
			{Kind: telephony.ParticipantPhoneNumber, ID: "+15551230000"},
		},
	}
	store := session.NewMemory()
	runtime := Runtime{
		Store:      store,
		Provider:   provider,
		Notifier:   observer.NewNotifier(nil),
		Validation: dtmf.New(store, provider, observer.NewNotifier(nil)),
	}
	h := NewCallLifecycleHandlers(WithDTMFValidation(true), WithChallengeMode(true))
	ctx := context.Background()

	if err := h.HandleCallConnected(ctx, contextFor(runtime, events.KindCallConnected, "call-1", nil)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	pending, err := session.GetBool(ctx, store, "call-1", session.KeyValidationPending, false)
	if err != nil {
		t.Fatalf("failed to read pending flag: %v", err)
	}
	if !pending {
		t.Fatalf("expected a pending challenge after connect")
	}
	if provider.recognitions.Load() != 1 {
		t.Fatalf("expected dtmf recognition started toward the caller")
	}
	if runtime.Validation.IsValidationGateOpen(ctx, "call-1") {
		t.Fatalf("expected conversation gate closed until validation concludes")
	}
}

func TestHandleCallDisconnectedMarksInactiveAndPersists(t *testing.T) {
	store := session.NewMemory()
	runtime := Runtime{Store: store, Notifier: observer.NewNotifier(nil)}
	h := NewCallLifecycleHandlers()
	ctx := context.Background()

	if err := store.Set(ctx, "call-1", session.KeyCallActive, true); err != nil {
		t.Fatalf("failed to seed session: %v", err)
	}

	if err := h.HandleCallDisconnected(ctx, contextFor(runtime, events.KindCallDisconnected, "call-1", nil)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	active, err := store.Fresh(ctx, "call-1", session.KeyCallActive)
	if err != nil {
		t.Fatalf("failed to read persisted call_active: %v", err)
	}
	if active != false {
		t.Fatalf("expected persisted inactive state, got %v", active)
	}
	// The session survives disconnection; retention is the store's concern.
	if store.Snapshot("call-1") == nil {
		t.Fatalf("expected session retained after disconnect")
	}
}

func TestFailureHandlersAreLogOnly(t *testing.T) {
	runtime := Runtime{Store: session.NewMemory(), Notifier: observer.NewNotifier(nil)}
	h := NewCallLifecycleHandlers()
	ctx := context.Background()

	data := map[string]any{"resultInformation": "busy"}
	if err := h.HandleCreateCallFailed(ctx, contextFor(runtime, events.KindCreateCallFailed, "call-1", data)); err != nil {
		t.Fatalf("expected log-only create failure handler, got %v", err)
	}
	if err := h.HandleAnswerCallFailed(ctx, contextFor(runtime, events.KindAnswerCallFailed, "call-1", data)); err != nil {
		t.Fatalf("expected log-only answer failure handler, got %v", err)
	}
}

func TestHandleCallInitiatedSeedsSession(t *testing.T) {
	store := session.NewMemory()
	runtime := Runtime{Store: store, Notifier: observer.NewNotifier(nil)}
	h := NewCallLifecycleHandlers()
	ctx := context.Background()

	err := h.HandleCallInitiated(ctx, contextFor(runtime, events.KindCallInitiated, "call-1", map[string]any{
		"targetNumber": "+15557770000",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	target, err := store.Fresh(ctx, "call-1", session.KeyTargetNumber)
	if err != nil {
		t.Fatalf("failed to read target number: %v", err)
	}
	if target != "+15557770000" {
		t.Fatalf("expected persisted target number, got %v", target)
	}
	direction, err := store.Fresh(ctx, "call-1", session.KeyDirection)
	if err != nil {
		t.Fatalf("failed to read direction: %v", err)
	}
	if direction != "outbound" {
		t.Fatalf("expected outbound direction, got %v", direction)
	}
}

func TestHandleDTMFToneReadsBothPayloadShapes(t *testing.T) {
	store := session.NewMemory()
	provider := &stubProvider{}
	validation := dtmf.New(store, provider, observer.NewNotifier(nil))
	runtime := Runtime{Store: store, Provider: provider, Notifier: observer.NewNotifier(nil), Validation: validation}
	h := NewCallLifecycleHandlers()
	ctx := context.Background()

	err := h.HandleDTMFToneReceived(ctx, contextFor(runtime, events.KindDTMFToneReceived, "call-1", map[string]any{
		"tone": "1", "sequenceId": 1,
	}))
	if err != nil {
		t.Fatalf("unexpected error on flat shape: %v", err)
	}
	err = h.HandleDTMFToneReceived(ctx, contextFor(runtime, events.KindDTMFToneReceived, "call-1", map[string]any{
		"toneInfo": map[string]any{"tone": "two", "sequenceId": 2},
	}))
	if err != nil {
		t.Fatalf("unexpected error on nested shape: %v", err)
	}

	buffer, err := session.GetString(ctx, store, "call-1", session.KeyDTMFSequence)
	if err != nil {
		t.Fatalf("failed to read sequence: %v", err)
	}
	if buffer != "12" {
		t.Fatalf("expected accumulated buffer 12, got %q", buffer)
	}
}

func TestMediaHandlersNotifyObservers(t *testing.T) {
	store := session.NewMemory()
	broadcaster := &collectingBroadcaster{}
	notifier := observer.NewNotifier(broadcaster)
	runtime := Runtime{Store: store, Notifier: notifier}
	h := NewCallLifecycleHandlers()
	ctx := context.Background()

	for _, step := range []struct {
		kind events.Kind
		run  Handler
	}{
		{events.KindPlayCompleted, h.HandlePlayCompleted},
		{events.KindPlayFailed, h.HandlePlayFailed},
		{events.KindRecognizeCompleted, h.HandleRecognizeCompleted},
		{events.KindRecognizeFailed, h.HandleRecognizeFailed},
	} {
		if err := step.run(ctx, contextFor(runtime, step.kind, "call-1", nil)); err != nil {
			t.Fatalf("%s: unexpected error: %v", step.kind, err)
		}
	}
	notifier.Close()

	if got := len(broadcaster.types()); got != 4 {
		t.Fatalf("expected four media notifications, got %d: %v", got, broadcaster.types())
	}
}
