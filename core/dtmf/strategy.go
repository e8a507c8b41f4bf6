package dtmf

import (
	"context"
	"fmt"

	"github.com/voxline/callcore/core/session"
)

// ValidationStrategy consumes normalized tones for one validation mode. The
// two modes grew independently and keep deliberately different failure
// behavior; the seam exists so call sites stay untouched if they are ever
// unified.
type ValidationStrategy interface {
	HandleTone(ctx context.Context, callConnectionID string, tone Tone, sequenceID int) error
}

// challengeStrategy validates an echo-back of the issued challenge digits.
// '*' clears only the input buffer, '#' submits. A mismatch records the
// rejection but never terminates the call, and no retry challenge is issued.
type challengeStrategy struct {
	lifecycle *Lifecycle
}

func (s *challengeStrategy) HandleTone(ctx context.Context, callConnectionID string, tone Tone, _ int) error {
	l := s.lifecycle

	switch tone {
	case ToneStar:
		if err := l.store.Set(ctx, callConnectionID, session.KeyChallengeInput, ""); err != nil {
			return fmt.Errorf("failed to clear challenge input: %w", err)
		}
		return l.store.Persist(ctx, callConnectionID)

	case TonePound:
		expected, err := session.GetString(ctx, l.store, callConnectionID, session.KeyChallengeDigits)
		if err != nil {
			return fmt.Errorf("failed to read challenge digits: %w", err)
		}
		input, err := session.GetString(ctx, l.store, callConnectionID, session.KeyChallengeInput)
		if err != nil {
			return fmt.Errorf("failed to read challenge input: %w", err)
		}

		validated := expected != "" && input == expected
		if err := l.store.Update(ctx, callConnectionID, map[string]any{
			session.KeyDTMFValidated:     validated,
			session.KeyValidationPending: false,
			session.KeyChallengeDigits:   "",
			session.KeyChallengeInput:    "",
		}); err != nil {
			return fmt.Errorf("failed to record challenge outcome: %w", err)
		}
		if err := l.store.Persist(ctx, callConnectionID); err != nil {
			return fmt.Errorf("failed to persist challenge outcome: %w", err)
		}

		logger.InfoContext(ctx, "dtmf challenge concluded",
			"call_connection_id", callConnectionID, "validated", validated)
		l.concludeValidation(ctx, callConnectionID, validated)
		return nil

	default:
		input, err := session.GetString(ctx, l.store, callConnectionID, session.KeyChallengeInput)
		if err != nil {
			return fmt.Errorf("failed to read challenge input: %w", err)
		}
		if err := l.store.Set(ctx, callConnectionID, session.KeyChallengeInput, input+tone.String()); err != nil {
			return fmt.Errorf("failed to accumulate challenge input: %w", err)
		}
		return l.store.Persist(ctx, callConnectionID)
	}
}

// fixedPINStrategy validates a fixed-length PIN entered directly. Tones
// accumulate into a positional buffer: a 1-based sequenceID places the tone,
// growing the buffer for out-of-order arrival; without one the tone is
// appended. '#' submits; success requires exactly pinLength digits. Failure
// is terminal for the call: the engine hangs it up.
type fixedPINStrategy struct {
	lifecycle *Lifecycle
}

func (s *fixedPINStrategy) HandleTone(ctx context.Context, callConnectionID string, tone Tone, sequenceID int) error {
	l := s.lifecycle

	if tone == TonePound {
		return s.validate(ctx, callConnectionID)
	}

	// Non-submitting tones, '*' included, land in the buffer; the all-digit
	// check at submission rejects anything that is not a PIN digit.
	buffer, err := session.GetString(ctx, l.store, callConnectionID, session.KeyDTMFSequence)
	if err != nil {
		return fmt.Errorf("failed to read dtmf sequence: %w", err)
	}

	if sequenceID >= 1 {
		padded := []byte(buffer)
		for len(padded) < sequenceID {
			padded = append(padded, ' ')
		}
		padded[sequenceID-1] = byte(tone)
		buffer = string(padded)
	} else {
		buffer += tone.String()
	}

	if err := l.store.Set(ctx, callConnectionID, session.KeyDTMFSequence, buffer); err != nil {
		return fmt.Errorf("failed to accumulate dtmf sequence: %w", err)
	}
	return l.store.Persist(ctx, callConnectionID)
}

func (s *fixedPINStrategy) validate(ctx context.Context, callConnectionID string) error {
	l := s.lifecycle

	buffer, err := session.GetString(ctx, l.store, callConnectionID, session.KeyDTMFSequence)
	if err != nil {
		return fmt.Errorf("failed to read dtmf sequence: %w", err)
	}

	if isPIN(buffer, l.pinLength) {
		if err := l.store.Update(ctx, callConnectionID, map[string]any{
			session.KeyDTMFValidated: true,
			session.KeyDTMFGateOpen:  true,
			session.KeyEnteredPIN:    buffer,
		}); err != nil {
			return fmt.Errorf("failed to record pin success: %w", err)
		}
		if err := l.store.Persist(ctx, callConnectionID); err != nil {
			return fmt.Errorf("failed to persist pin success: %w", err)
		}

		logger.InfoContext(ctx, "dtmf pin accepted", "call_connection_id", callConnectionID)
		l.concludeValidation(ctx, callConnectionID, true)
		return nil
	}

	if err := l.store.Update(ctx, callConnectionID, map[string]any{
		session.KeyDTMFValidated: false,
		session.KeyEnteredPIN:    nil,
	}); err != nil {
		return fmt.Errorf("failed to record pin failure: %w", err)
	}
	if err := l.store.Persist(ctx, callConnectionID); err != nil {
		return fmt.Errorf("failed to persist pin failure: %w", err)
	}

	logger.InfoContext(ctx, "dtmf pin rejected, terminating call",
		"call_connection_id", callConnectionID, "entered_length", len(buffer))
	l.concludeValidation(ctx, callConnectionID, false)
	l.CancelCall(ctx, callConnectionID)
	return nil
}

func isPIN(buffer string, length int) bool {
	if len(buffer) != length {
		return false
	}
	for i := 0; i < len(buffer); i++ {
		if buffer[i] < '0' || buffer[i] > '9' {
			return false
		}
	}
	return true
}
