package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"
)

// Memory is an in-process Store. Working copies and the persisted view are
// kept separately so Persist has the same observable semantics as the
// Redis-backed store: fresh readers only ever see fully persisted sessions.
type Memory struct {
	mu        sync.Mutex
	working   map[string]map[string]any
	persisted map[string]map[string]any
	notifyMu  sync.Mutex
	outcomes  map[string]chan bool
}

var _ Store = (*Memory)(nil)

// NewMemory creates an empty in-process store.
func NewMemory() *Memory {
	return &Memory{
		working:   map[string]map[string]any{},
		persisted: map[string]map[string]any{},
		outcomes:  map[string]chan bool{},
	}
}

func (m *Memory) Get(_ context.Context, callConnectionID, key string, fallback any) (any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if fields, ok := m.working[callConnectionID]; ok {
		if value, ok := fields[key]; ok {
			return value, nil
		}
	}
	return fallback, nil
}

func (m *Memory) Set(_ context.Context, callConnectionID, key string, value any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.workingLocked(callConnectionID)[key] = value
	return nil
}

func (m *Memory) Update(_ context.Context, callConnectionID string, fields map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	working := m.workingLocked(callConnectionID)
	for key, value := range fields {
		working[key] = value
	}
	return nil
}

func (m *Memory) Persist(_ context.Context, callConnectionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	working, ok := m.working[callConnectionID]
	if !ok {
		return nil
	}

	snapshot := map[string]any{}
	if err := copier.CopyWithOption(&snapshot, working, copier.Option{DeepCopy: true}); err != nil {
		return err
	}
	m.persisted[callConnectionID] = snapshot
	return nil
}

func (m *Memory) Fresh(_ context.Context, callConnectionID, key string) (any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if fields, ok := m.persisted[callConnectionID]; ok {
		return fields[key], nil
	}
	return nil, nil
}

func (m *Memory) PresentationSessionID(ctx context.Context, callConnectionID string) (string, error) {
	m.mu.Lock()
	working := m.workingLocked(callConnectionID)
	if id, ok := working[KeyPresentationID].(string); ok && id != "" {
		m.mu.Unlock()
		return id, nil
	}

	id := uuid.NewString()
	working[KeyPresentationID] = id
	m.mu.Unlock()

	if err := m.Persist(ctx, callConnectionID); err != nil {
		return "", err
	}
	return id, nil
}

func (m *Memory) NotifyValidationOutcome(_ context.Context, callConnectionID string, validated bool) error {
	ch := m.outcomeChannel(callConnectionID)

	// Publishers are serialized so the drain-then-resend below can never
	// leave two of them blocked on a full capacity-1 channel.
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()

	select {
	case ch <- validated:
	default:
		// An unconsumed earlier outcome already sits in the channel; the
		// latest publication wins for the next reader.
		select {
		case <-ch:
		default:
		}
		ch <- validated
	}
	return nil
}

func (m *Memory) AwaitValidationOutcome(ctx context.Context, callConnectionID string, timeout time.Duration) (bool, error) {
	ch := m.outcomeChannel(callConnectionID)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case validated, ok := <-ch:
		if !ok {
			return false, ErrNotifierClosed
		}
		return validated, nil
	case <-timer.C:
		return false, ErrAwaitTimeout
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// Snapshot returns a deep copy of the working session for a call; nil when
// the call is unknown. Test and host convenience, never used by handlers.
func (m *Memory) Snapshot(callConnectionID string) map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()

	working, ok := m.working[callConnectionID]
	if !ok {
		return nil
	}

	snapshot := map[string]any{}
	if err := copier.CopyWithOption(&snapshot, working, copier.Option{DeepCopy: true}); err != nil {
		return nil
	}
	return snapshot
}

func (m *Memory) workingLocked(callConnectionID string) map[string]any {
	working, ok := m.working[callConnectionID]
	if !ok {
		working = map[string]any{}
		m.working[callConnectionID] = working
	}
	return working
}

func (m *Memory) outcomeChannel(callConnectionID string) chan bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch, ok := m.outcomes[callConnectionID]
	if !ok {
		ch = make(chan bool, 1)
		m.outcomes[callConnectionID] = ch
	}
	return ch
}
