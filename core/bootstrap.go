package callengine

import "github.com/voxline/callcore/core/events"

// RegisterLifecycleHandlers wires the full lifecycle handler set, plus the
// webhook meta re-dispatcher, into the processor's registry. It is the
// explicit bootstrap step and is deliberately not idempotent: the host
// application owns calling it exactly once, the same way it owns building
// the Runtime.
func RegisterLifecycleHandlers(p *Processor, h *CallLifecycleHandlers) {
	r := p.Registry()

	r.Register(events.KindCallConnected, h.HandleCallConnected)
	r.Register(events.KindCallDisconnected, h.HandleCallDisconnected)
	r.Register(events.KindCreateCallFailed, h.HandleCreateCallFailed)
	r.Register(events.KindAnswerCallFailed, h.HandleAnswerCallFailed)
	r.Register(events.KindParticipantsUpdated, h.HandleParticipantsUpdated)
	r.Register(events.KindDTMFToneReceived, h.HandleDTMFToneReceived)

	r.Register(events.KindPlayCompleted, h.HandlePlayCompleted)
	r.Register(events.KindPlayFailed, h.HandlePlayFailed)
	r.Register(events.KindRecognizeCompleted, h.HandleRecognizeCompleted)
	r.Register(events.KindRecognizeFailed, h.HandleRecognizeFailed)

	r.Register(events.KindCallInitiated, h.HandleCallInitiated)
	r.Register(events.KindWebhookEvents, p.HandleWebhookEvents)
}
