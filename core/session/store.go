// Package session defines the durable per-call state contract consumed by
// the call-event engine, plus an in-memory implementation for tests and
// single-process hosts. The production Redis-backed implementation lives in
// the redisstore subpackage.
package session

import (
	"context"
	"errors"
	"time"
)

// Canonical session field keys. Handlers address session state exclusively
// through these.
const (
	KeyDirection    = "direction"
	KeyStatus       = "status"
	KeyCallerID     = "caller_id"
	KeyTargetNumber = "target_number"
	KeyCallActive   = "call_active"

	KeyDTMFSequence       = "dtmf_sequence"
	KeyDTMFValidated      = "dtmf_validated"
	KeyDTMFGateOpen       = "dtmf_validation_gate_open"
	KeyEnteredPIN         = "entered_pin"
	KeyValidationPending  = "validation_pending"
	KeyChallengeDigits    = "challenge_digits"
	KeyChallengeInput     = "challenge_input_sequence"
	KeyCancelledDTMF      = "call_cancelled_dtmf_failure"
	KeyPresentationID     = "presentation_session_id"
	KeyRecognitionContext = "dtmf_recognition_context"
)

// Session status values.
const (
	StatusInitiated    = "initiated"
	StatusConnected    = "connected"
	StatusDisconnected = "disconnected"
)

// ErrNotifierClosed reports that the validation rendezvous for a call was
// torn down before an outcome arrived.
var ErrNotifierClosed = errors.New("session: validation notifier closed")

// ErrAwaitTimeout reports that no validation outcome arrived within the
// bounded wait.
var ErrAwaitTimeout = errors.New("session: timed out awaiting validation outcome")

// Store is the narrow per-call state surface handlers mutate. Writes go to a
// working copy; Persist flushes the working copy to the backing store as one
// unit, so multi-field updates are all-or-nothing from the perspective of
// fresh readers.
type Store interface {
	// Get reads a field from the working copy, returning fallback when the
	// field (or the whole session) is absent.
	Get(ctx context.Context, callConnectionID, key string, fallback any) (any, error)

	// Set writes one field to the working copy.
	Set(ctx context.Context, callConnectionID, key string, value any) error

	// Update writes several fields to the working copy at once.
	Update(ctx context.Context, callConnectionID string, fields map[string]any) error

	// Persist flushes the working copy to the backing store.
	Persist(ctx context.Context, callConnectionID string) error

	// Fresh reads a field through to the backing store, bypassing the
	// working copy.
	Fresh(ctx context.Context, callConnectionID, key string) (any, error)

	// PresentationSessionID resolves the UI-facing session id for a call,
	// issuing and persisting one when the mapping does not exist yet. The
	// telephony correlation id and the presentation id are deliberately
	// distinct namespaces.
	PresentationSessionID(ctx context.Context, callConnectionID string) (string, error)

	// NotifyValidationOutcome publishes the DTMF validation outcome for a
	// call, releasing any awaiting reader.
	NotifyValidationOutcome(ctx context.Context, callConnectionID string, validated bool) error

	// AwaitValidationOutcome blocks until a validation outcome is published
	// for the call or the timeout elapses. It must not busy-wait.
	AwaitValidationOutcome(ctx context.Context, callConnectionID string, timeout time.Duration) (bool, error)
}

// GetString reads a string field, widening absent and non-string values to "".
func GetString(ctx context.Context, store Store, callConnectionID, key string) (string, error) {
	value, err := store.Get(ctx, callConnectionID, key, "")
	if err != nil {
		return "", err
	}
	s, _ := value.(string)
	return s, nil
}

// GetBool reads a boolean field with an explicit fallback.
func GetBool(ctx context.Context, store Store, callConnectionID, key string, fallback bool) (bool, error) {
	value, err := store.Get(ctx, callConnectionID, key, fallback)
	if err != nil {
		return fallback, err
	}
	b, ok := value.(bool)
	if !ok {
		return fallback, nil
	}
	return b, nil
}
