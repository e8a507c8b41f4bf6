package dtmf

import (
	"context"

	"github.com/voxline/callcore/core/observer"
	"github.com/voxline/callcore/core/session"
)

// CancelCall terminates a call after a validation failure. The cancellation
// flags are persisted before any termination attempt so a concurrent gate
// reader always observes the reason first. Termination prefers a graceful
// path through an attached presentation session; without one the provider is
// told to drop every leg. CancelCall never returns an error: both paths
// failing leaves nothing better to do than log.
func (l *Lifecycle) CancelCall(ctx context.Context, callConnectionID string) {
	if err := l.store.Update(ctx, callConnectionID, map[string]any{
		session.KeyDTMFGateOpen:  false,
		session.KeyCancelledDTMF: true,
	}); err != nil {
		logger.ErrorContext(ctx, "failed to stage cancellation flags",
			"call_connection_id", callConnectionID, "error", err)
	} else if err := l.store.Persist(ctx, callConnectionID); err != nil {
		logger.ErrorContext(ctx, "failed to persist cancellation flags",
			"call_connection_id", callConnectionID, "error", err)
	}

	if l.cancelViaSession(ctx, callConnectionID) {
		return
	}

	if l.provider == nil {
		logger.ErrorContext(ctx, "no provider available to terminate call",
			"call_connection_id", callConnectionID)
		return
	}
	if err := l.provider.HangUp(ctx, callConnectionID, true); err != nil {
		logger.ErrorContext(ctx, "failed to hang up call after validation failure",
			"call_connection_id", callConnectionID, "error", err)
		return
	}
	logger.InfoContext(ctx, "call terminated after validation failure",
		"call_connection_id", callConnectionID)
}

// cancelViaSession attempts the graceful path: when a presentation session
// is attached, the cancellation notification instructs that layer to wind
// the call down itself.
func (l *Lifecycle) cancelViaSession(ctx context.Context, callConnectionID string) bool {
	sessionID, err := l.store.PresentationSessionID(ctx, callConnectionID)
	if err != nil {
		logger.WarnContext(ctx, "failed to resolve presentation session for cancellation",
			"call_connection_id", callConnectionID, "error", err)
		return false
	}
	if !l.notifier.Attached(sessionID) {
		return false
	}

	l.notifier.Notify(ctx, sessionID, observer.NewNotification("call.cancelled", map[string]any{
		"reason": "dtmf_validation_failure",
	}))
	logger.InfoContext(ctx, "call cancellation delegated to presentation session",
		"call_connection_id", callConnectionID, "session_id", sessionID)
	return true
}
