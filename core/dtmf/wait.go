package dtmf

import (
	"context"
	"errors"

	"github.com/voxline/callcore/core/session"
)

// WaitForCompletion blocks until validation for the call concludes or the
// configured timeout elapses. It is the rendezvous point letting another
// pipeline stage (typically the conversation loop) meet the validation
// outcome without polling the store.
//
// completed reports whether an outcome arrived in time; validated carries
// the outcome itself and is meaningful only when completed is true. A
// timeout additionally hangs up the call, best-effort.
func (l *Lifecycle) WaitForCompletion(ctx context.Context, callConnectionID string) (completed bool, validated bool) {
	validated, err := l.store.AwaitValidationOutcome(ctx, callConnectionID, l.waitTimeout)
	if err == nil {
		logger.InfoContext(ctx, "validation rendezvous completed",
			"call_connection_id", callConnectionID, "validated", validated)
		return true, validated
	}

	if errors.Is(err, session.ErrAwaitTimeout) {
		logger.WarnContext(ctx, "validation rendezvous timed out, hanging up call",
			"call_connection_id", callConnectionID, "timeout", l.waitTimeout)
		if l.provider != nil {
			if hangupErr := l.provider.HangUp(ctx, callConnectionID, true); hangupErr != nil {
				logger.ErrorContext(ctx, "failed to hang up call after rendezvous timeout",
					"call_connection_id", callConnectionID, "error", hangupErr)
			}
		}
		return false, false
	}

	logger.ErrorContext(ctx, "validation rendezvous failed",
		"call_connection_id", callConnectionID, "error", err)
	return false, false
}
