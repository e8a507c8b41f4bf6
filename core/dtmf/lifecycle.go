// Package dtmf runs the caller-validation sub-state-machine nested inside
// the call lifecycle. A call moves through
//
//	no challenge -> challenge pending -> (digit accumulation) -> validated | rejected -> no challenge
//
// Two historically independent validation modes coexist behind the
// ValidationStrategy seam: a random echo-back challenge issued on connect,
// and a fixed-length PIN entered directly. Their failure severities differ
// on purpose: a failed PIN terminates the call, a failed challenge only
// records the rejection.
package dtmf

import (
	"context"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/voxline/callcore/core/observer"
	"github.com/voxline/callcore/core/session"
	"github.com/voxline/callcore/core/telephony"
)

// Default tuning. Hosts override through options.
const (
	DefaultChallengeLength = 3
	DefaultPINLength       = 4
	DefaultWaitTimeout     = 30 * time.Second
)

// Lifecycle coordinates challenge issuance, tone routing, the validation
// gate, and the termination side effect. One instance serves all calls; all
// per-call state lives in the session store.
type Lifecycle struct {
	store    session.Store
	provider telephony.Provider
	notifier *observer.Notifier

	challengeLength int
	pinLength       int
	waitTimeout     time.Duration

	challenge ValidationStrategy
	fixedPIN  ValidationStrategy
}

// Option adjusts lifecycle tuning.
type Option func(*Lifecycle)

// WithChallengeLength overrides the issued challenge digit count.
func WithChallengeLength(length int) Option {
	return func(l *Lifecycle) {
		if length > 0 {
			l.challengeLength = length
		}
	}
}

// WithPINLength overrides the expected fixed-PIN digit count.
func WithPINLength(length int) Option {
	return func(l *Lifecycle) {
		if length > 0 {
			l.pinLength = length
		}
	}
}

// WithWaitTimeout bounds WaitForCompletion.
func WithWaitTimeout(timeout time.Duration) Option {
	return func(l *Lifecycle) {
		if timeout > 0 {
			l.waitTimeout = timeout
		}
	}
}

// New creates a lifecycle around its collaborators. The notifier may be nil
// when no presentation layer is attached.
func New(store session.Store, provider telephony.Provider, notifier *observer.Notifier, opts ...Option) *Lifecycle {
	l := &Lifecycle{
		store:           store,
		provider:        provider,
		notifier:        notifier,
		challengeLength: DefaultChallengeLength,
		pinLength:       DefaultPINLength,
		waitTimeout:     DefaultWaitTimeout,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.challenge = &challengeStrategy{lifecycle: l}
	l.fixedPIN = &fixedPINStrategy{lifecycle: l}
	return l
}

// StartChallenge issues a fresh echo-back challenge for a connected call and
// surfaces the digits to the presentation layer so the conversation pipeline
// can speak them. Any previous challenge state for the call is replaced.
func (l *Lifecycle) StartChallenge(ctx context.Context, callConnectionID string) (string, error) {
	digits, err := randomDigits(l.challengeLength)
	if err != nil {
		return "", fmt.Errorf("failed to generate challenge: %w", err)
	}

	if err := l.store.Update(ctx, callConnectionID, map[string]any{
		session.KeyChallengeDigits:   digits,
		session.KeyChallengeInput:    "",
		session.KeyValidationPending: true,
		session.KeyDTMFValidated:     false,
	}); err != nil {
		return "", fmt.Errorf("failed to stage challenge: %w", err)
	}
	if err := l.store.Persist(ctx, callConnectionID); err != nil {
		return "", fmt.Errorf("failed to persist challenge: %w", err)
	}

	logger.InfoContext(ctx, "dtmf challenge issued", "call_connection_id", callConnectionID)
	l.notifySession(ctx, callConnectionID, observer.NewNotification("dtmf.challenge_issued", map[string]any{
		"digits": digits,
	}))

	return digits, nil
}

// HandleTone routes one received tone into whichever validation mode is
// active: the challenge strategy while a challenge is pending, the
// fixed-PIN strategy otherwise. sequenceID is the provider's 1-based tone
// ordinal; zero means unknown. Unrecognized tokens change no state.
func (l *Lifecycle) HandleTone(ctx context.Context, callConnectionID, token string, sequenceID int) error {
	tone, ok := NormalizeTone(token)
	if !ok {
		logger.DebugContext(ctx, "ignoring unrecognized dtmf token",
			"call_connection_id", callConnectionID, "token", token)
		return nil
	}

	pending, err := session.GetBool(ctx, l.store, callConnectionID, session.KeyValidationPending, false)
	if err != nil {
		return fmt.Errorf("failed to read challenge state: %w", err)
	}

	if pending {
		return l.challenge.HandleTone(ctx, callConnectionID, tone, sequenceID)
	}
	return l.fixedPIN.HandleTone(ctx, callConnectionID, tone, sequenceID)
}

// IsValidationGateOpen reports whether downstream conversation processing
// may proceed. It reads through to the backing store and fails open on store
// errors: an unreachable store must degrade to answering calls, not to
// locking every caller out.
func (l *Lifecycle) IsValidationGateOpen(ctx context.Context, callConnectionID string) bool {
	value, err := l.store.Fresh(ctx, callConnectionID, session.KeyDTMFGateOpen)
	if err != nil {
		logger.WarnContext(ctx, "session store unavailable, failing validation gate open",
			"call_connection_id", callConnectionID, "error", err)
		return true
	}
	open, _ := value.(bool)
	return open
}

// FreshValidationStatus re-reads the validation flag from the backing store,
// bypassing any working copy. Fails open on store errors, same trade-off as
// the gate predicate.
func (l *Lifecycle) FreshValidationStatus(ctx context.Context, callConnectionID string) bool {
	value, err := l.store.Fresh(ctx, callConnectionID, session.KeyDTMFValidated)
	if err != nil {
		logger.WarnContext(ctx, "session store unavailable, failing validation status open",
			"call_connection_id", callConnectionID, "error", err)
		return true
	}
	validated, _ := value.(bool)
	return validated
}

// concludeValidation records an outcome, releases rendezvous waiters, and
// tells the presentation layer. Shared by both strategies.
func (l *Lifecycle) concludeValidation(ctx context.Context, callConnectionID string, validated bool) {
	if err := l.store.NotifyValidationOutcome(ctx, callConnectionID, validated); err != nil {
		logger.WarnContext(ctx, "failed to publish validation outcome",
			"call_connection_id", callConnectionID, "validated", validated, "error", err)
	}

	l.notifySession(ctx, callConnectionID, observer.NewNotification("dtmf.validation_concluded", map[string]any{
		"validated": validated,
	}))
}

func (l *Lifecycle) notifySession(ctx context.Context, callConnectionID string, notification observer.Notification) {
	sessionID, err := l.store.PresentationSessionID(ctx, callConnectionID)
	if err != nil {
		logger.WarnContext(ctx, "failed to resolve presentation session",
			"call_connection_id", callConnectionID, "error", err)
		return
	}
	l.notifier.Notify(ctx, sessionID, notification)
}

func randomDigits(length int) (string, error) {
	raw := make([]byte, length)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	digits := make([]byte, length)
	for i, b := range raw {
		digits[i] = '0' + b%10
	}
	return string(digits), nil
}
