package events

import (
	"time"

	"github.com/google/uuid"
)

// Kind identifies one call-signaling event type.
type Kind string

const (
	// KindCallConnected identifies an answered, live call leg.
	KindCallConnected Kind = "call.connected"
	// KindCallDisconnected identifies an ended call leg.
	KindCallDisconnected Kind = "call.disconnected"
	// KindCreateCallFailed identifies a failed outbound call creation.
	KindCreateCallFailed Kind = "call.create_failed"
	// KindAnswerCallFailed identifies a failed inbound call answer.
	KindAnswerCallFailed Kind = "call.answer_failed"
	// KindParticipantsUpdated identifies a participant roster change.
	KindParticipantsUpdated Kind = "call.participants_updated"
	// KindDTMFToneReceived identifies a single received keypad tone.
	KindDTMFToneReceived Kind = "call.dtmf_tone_received"

	// KindPlayCompleted identifies finished prompt playback.
	KindPlayCompleted Kind = "media.play_completed"
	// KindPlayFailed identifies failed prompt playback.
	KindPlayFailed Kind = "media.play_failed"
	// KindRecognizeCompleted identifies finished input recognition.
	KindRecognizeCompleted Kind = "media.recognize_completed"
	// KindRecognizeFailed identifies failed input recognition.
	KindRecognizeFailed Kind = "media.recognize_failed"

	// KindCallInitiated identifies a synthesized outbound call request.
	KindCallInitiated Kind = "api.call_initiated"
	// KindWebhookEvents identifies a meta envelope wrapping a provider
	// webhook whose original kind is embedded in the payload.
	KindWebhookEvents Kind = "api.webhook_events"
)

// Envelope is one inbound call-signaling event as handed over by the
// transport layer. It is created at ingress and must not be mutated
// afterwards.
type Envelope struct {
	// ID is an ingress-assigned identifier used for log correlation only.
	ID string
	// Source names the producer, e.g. the webhook route or API operation.
	Source string
	// Kind is the catalog event type.
	Kind Kind
	// Data is the decoded payload mapping. Always non-nil.
	Data map[string]any
	// CallConnectionID is the transport-supplied correlation key, used as a
	// fallback when the payload carries none.
	CallConnectionID string
	// ReceivedAt marks ingress time.
	ReceivedAt time.Time
}

// NewEnvelope builds an ingress envelope around an opaque payload. The
// payload is decoded defensively; an undecodable payload yields an empty
// mapping rather than an error.
func NewEnvelope(source string, kind Kind, payload any) Envelope {
	return Envelope{
		ID:         uuid.NewString(),
		Source:     source,
		Kind:       kind,
		Data:       DecodeData(payload),
		ReceivedAt: time.Now(),
	}
}

// IsConnectKind reports whether the kind marks a call leg as live.
func IsConnectKind(kind Kind) bool {
	return kind == KindCallConnected
}

// IsDisconnectKind reports whether the kind marks a call leg as gone.
func IsDisconnectKind(kind Kind) bool {
	switch kind {
	case KindCallDisconnected, KindCreateCallFailed, KindAnswerCallFailed:
		return true
	}
	return false
}
