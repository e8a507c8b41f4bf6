package callengine

import (
	"context"
	"fmt"

	"github.com/voxline/callcore/core/events"
	"github.com/voxline/callcore/core/observer"
	"github.com/voxline/callcore/core/session"
	"github.com/voxline/callcore/core/telephony"
)

// CallLifecycleHandlers holds the protocol's state-transition functions for
// call-signaling events. Side effects are confined to the session store, the
// telephony provider, and best-effort observer notifications; no handler
// lets an error escape the dispatch boundary uncaught.
type CallLifecycleHandlers struct {
	// validationEnabled gates conversation start behind DTMF validation.
	validationEnabled bool
	// challengeEnabled selects the echo-back challenge mode on connect; when
	// off, validation waits passively for a directly entered PIN.
	challengeEnabled bool
}

// LifecycleOption adjusts handler behavior.
type LifecycleOption func(*CallLifecycleHandlers)

// WithDTMFValidation enables the validation gate for every connected call.
func WithDTMFValidation(enabled bool) LifecycleOption {
	return func(h *CallLifecycleHandlers) { h.validationEnabled = enabled }
}

// WithChallengeMode selects challenge issuance on connect. Only meaningful
// when validation is enabled.
func WithChallengeMode(enabled bool) LifecycleOption {
	return func(h *CallLifecycleHandlers) { h.challengeEnabled = enabled }
}

// NewCallLifecycleHandlers creates the handler set.
func NewCallLifecycleHandlers(opts ...LifecycleOption) *CallLifecycleHandlers {
	h := &CallLifecycleHandlers{}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HandleCallConnected marks the call live, resolves participant identities,
// and, when validation is enabled, hands off to the validation lifecycle
// before any conversation flow. The observer notification is independent and
// best-effort.
func (h *CallLifecycleHandlers) HandleCallConnected(ctx context.Context, c *CallEventContext) error {
	caller, providerLeg := h.resolveParticipants(ctx, c)

	fields := map[string]any{
		session.KeyStatus:     session.StatusConnected,
		session.KeyCallActive: true,
	}
	if caller != nil {
		fields[session.KeyCallerID] = caller.ID
	}
	if err := c.Store.Update(ctx, c.CallConnectionID, fields); err != nil {
		return fmt.Errorf("failed to stage connected state: %w", err)
	}
	if err := c.Store.Persist(ctx, c.CallConnectionID); err != nil {
		return fmt.Errorf("failed to persist connected state: %w", err)
	}

	if h.validationEnabled {
		if err := h.startValidation(ctx, c, caller); err != nil {
			return err
		}
	}

	notifyData := map[string]any{}
	if caller != nil {
		notifyData["callerId"] = caller.ID
	}
	if providerLeg != nil {
		notifyData["providerLegId"] = providerLeg.ID
	}
	h.notify(ctx, c, observer.NewNotification("call.connected", notifyData))
	return nil
}

// startValidation wires continuous tone recognition toward the caller and,
// in challenge mode, issues the challenge. Conversation start stays gated
// until the validation lifecycle concludes.
func (h *CallLifecycleHandlers) startValidation(ctx context.Context, c *CallEventContext, caller *telephony.Participant) error {
	if caller != nil && c.Provider != nil {
		if err := c.Provider.StartDTMFRecognition(ctx, c.CallConnectionID, caller.ID, "dtmf_validation"); err != nil {
			// Recognition start is best-effort: tones may already flow from
			// an earlier recognition or arrive via the meta webhook path.
			logger.WarnContext(ctx, "failed to start dtmf recognition",
				"call_connection_id", c.CallConnectionID, "error", err)
		}
	}

	if !h.challengeEnabled || c.Validation == nil {
		return nil
	}
	if _, err := c.Validation.StartChallenge(ctx, c.CallConnectionID); err != nil {
		return fmt.Errorf("failed to start dtmf challenge: %w", err)
	}
	return nil
}

// HandleCallDisconnected marks the session inactive and persists it. The
// session itself is retained; expiry is the store's concern.
func (h *CallLifecycleHandlers) HandleCallDisconnected(ctx context.Context, c *CallEventContext) error {
	if err := c.Store.Update(ctx, c.CallConnectionID, map[string]any{
		session.KeyStatus:     session.StatusDisconnected,
		session.KeyCallActive: false,
	}); err != nil {
		return fmt.Errorf("failed to stage disconnected state: %w", err)
	}
	if err := c.Store.Persist(ctx, c.CallConnectionID); err != nil {
		return fmt.Errorf("failed to persist disconnected state: %w", err)
	}

	h.notify(ctx, c, observer.NewNotification("call.disconnected", nil))
	return nil
}

// HandleCreateCallFailed is terminal: the call never existed provider-side,
// so there is nothing to unwind and no retry at this layer.
func (h *CallLifecycleHandlers) HandleCreateCallFailed(ctx context.Context, c *CallEventContext) error {
	logger.ErrorContext(ctx, "outbound call creation failed",
		"call_connection_id", c.CallConnectionID,
		"result", events.String(c.Event.Data, "resultInformation"),
	)
	return nil
}

// HandleAnswerCallFailed is terminal; see HandleCreateCallFailed.
func (h *CallLifecycleHandlers) HandleAnswerCallFailed(ctx context.Context, c *CallEventContext) error {
	logger.ErrorContext(ctx, "inbound call answer failed",
		"call_connection_id", c.CallConnectionID,
		"result", events.String(c.Event.Data, "resultInformation"),
	)
	return nil
}

// HandleParticipantsUpdated logs the roster. Extension point for roster
//-driven logic such as hold detection.
func (h *CallLifecycleHandlers) HandleParticipantsUpdated(ctx context.Context, c *CallEventContext) error {
	roster, _ := c.Event.Data["participants"].([]any)
	logger.InfoContext(ctx, "call participants updated",
		"call_connection_id", c.CallConnectionID, "participant_count", len(roster))
	return nil
}

// HandleDTMFToneReceived feeds one tone into the validation lifecycle.
func (h *CallLifecycleHandlers) HandleDTMFToneReceived(ctx context.Context, c *CallEventContext) error {
	if c.Validation == nil {
		return nil
	}
	token, sequenceID := toneFromPayload(c.Event.Data)
	if token == "" {
		logger.WarnContext(ctx, "dtmf event carries no tone",
			"call_connection_id", c.CallConnectionID, "event_id", c.Event.ID)
		return nil
	}
	return c.Validation.HandleTone(ctx, c.CallConnectionID, token, sequenceID)
}

// HandleCallInitiated seeds the session for an API-initiated outbound call.
func (h *CallLifecycleHandlers) HandleCallInitiated(ctx context.Context, c *CallEventContext) error {
	if err := c.Store.Update(ctx, c.CallConnectionID, map[string]any{
		session.KeyDirection:    "outbound",
		session.KeyStatus:       session.StatusInitiated,
		session.KeyTargetNumber: events.String(c.Event.Data, "targetNumber"),
		session.KeyCallActive:   false,
	}); err != nil {
		return fmt.Errorf("failed to stage initiated state: %w", err)
	}
	if err := c.Store.Persist(ctx, c.CallConnectionID); err != nil {
		return fmt.Errorf("failed to persist initiated state: %w", err)
	}
	return nil
}

// HandlePlayCompleted surfaces playback completion to the presentation layer.
func (h *CallLifecycleHandlers) HandlePlayCompleted(ctx context.Context, c *CallEventContext) error {
	h.notify(ctx, c, observer.NewNotification("media.play_completed", map[string]any{
		"operationContext": events.String(c.Event.Data, "operationContext"),
	}))
	return nil
}

// HandlePlayFailed logs and surfaces playback failure; the call itself
// continues.
func (h *CallLifecycleHandlers) HandlePlayFailed(ctx context.Context, c *CallEventContext) error {
	logger.WarnContext(ctx, "prompt playback failed",
		"call_connection_id", c.CallConnectionID,
		"result", events.String(c.Event.Data, "resultInformation"),
	)
	h.notify(ctx, c, observer.NewNotification("media.play_failed", nil))
	return nil
}

// HandleRecognizeCompleted surfaces recognition completion.
func (h *CallLifecycleHandlers) HandleRecognizeCompleted(ctx context.Context, c *CallEventContext) error {
	h.notify(ctx, c, observer.NewNotification("media.recognize_completed", map[string]any{
		"operationContext": events.String(c.Event.Data, "operationContext"),
	}))
	return nil
}

// HandleRecognizeFailed logs and surfaces recognition failure.
func (h *CallLifecycleHandlers) HandleRecognizeFailed(ctx context.Context, c *CallEventContext) error {
	logger.WarnContext(ctx, "input recognition failed",
		"call_connection_id", c.CallConnectionID,
		"result", events.String(c.Event.Data, "resultInformation"),
	)
	h.notify(ctx, c, observer.NewNotification("media.recognize_failed", nil))
	return nil
}

// resolveParticipants queries the provider and picks the first phone-number
// participant as the caller and the first communication-user participant as
// the provider leg. Missing either is logged; provider errors never abort
// the handler.
func (h *CallLifecycleHandlers) resolveParticipants(ctx context.Context, c *CallEventContext) (caller, providerLeg *telephony.Participant) {
	if c.Provider == nil {
		return nil, nil
	}

	participants, err := c.Provider.Participants(ctx, c.CallConnectionID)
	if err != nil {
		logger.WarnContext(ctx, "failed to list call participants",
			"call_connection_id", c.CallConnectionID, "error", err)
		return nil, nil
	}

	for i := range participants {
		p := &participants[i]
		switch p.Kind {
		case telephony.ParticipantPhoneNumber:
			if caller == nil {
				caller = p
			}
		case telephony.ParticipantCommunicationUser:
			if providerLeg == nil {
				providerLeg = p
			}
		}
	}

	if caller == nil {
		logger.WarnContext(ctx, "no phone participant on connected call",
			"call_connection_id", c.CallConnectionID)
	}
	if providerLeg == nil {
		logger.WarnContext(ctx, "no provider leg on connected call",
			"call_connection_id", c.CallConnectionID)
	}
	return caller, providerLeg
}

// notify resolves the presentation session and fires a best-effort
// background notification.
func (h *CallLifecycleHandlers) notify(ctx context.Context, c *CallEventContext, notification observer.Notification) {
	if c.Notifier == nil || c.Store == nil {
		return
	}
	sessionID, err := c.Store.PresentationSessionID(ctx, c.CallConnectionID)
	if err != nil {
		logger.WarnContext(ctx, "failed to resolve presentation session",
			"call_connection_id", c.CallConnectionID, "error", err)
		return
	}
	c.Notifier.Notify(ctx, sessionID, notification)
}

// toneFromPayload accepts both the flat tone shape and the nested toneInfo
// shape providers deliver.
func toneFromPayload(data map[string]any) (string, int) {
	if info, ok := data["toneInfo"].(map[string]any); ok {
		return events.String(info, "tone"), events.Int(info, "sequenceId")
	}
	return events.String(data, "tone"), events.Int(data, "sequenceId")
}
