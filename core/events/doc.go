// Package events defines the typed call-signaling event contract.
//
// Event kinds are grouped by origin-facing namespaces:
//
//   - call.*  — provider-originated signaling delivered over webhooks.
//   - media.* — provider-originated media pipeline results.
//   - api.*   — internally-synthesized events produced by the API layer.
//
// Semantics used across the package:
//
//   - Envelope: one inbound event as handed over by the transport layer,
//     immutable after ingress.
//   - Data: the opaque payload mapping; decoded once at ingress and never
//     re-parsed downstream.
//   - Call connection id: the provider-issued correlation key tying an
//     envelope to one call leg.
//
// call events
//
//   - KindCallConnected (call.connected): a call leg was answered and is live.
//   - KindCallDisconnected (call.disconnected): a call leg ended.
//   - KindCreateCallFailed (call.create_failed): outbound call creation failed.
//   - KindAnswerCallFailed (call.answer_failed): inbound call answer failed.
//   - KindParticipantsUpdated (call.participants_updated): the participant
//     roster changed.
//   - KindDTMFToneReceived (call.dtmf_tone_received): one keypad tone arrived.
//
// media events
//
//   - KindPlayCompleted (media.play_completed): prompt playback finished.
//   - KindPlayFailed (media.play_failed): prompt playback failed.
//   - KindRecognizeCompleted (media.recognize_completed): recognition finished.
//   - KindRecognizeFailed (media.recognize_failed): recognition failed.
//
// api events
//
//   - KindCallInitiated (api.call_initiated): an outbound call was requested
//     through the API; synthesized, never webhook-delivered.
//   - KindWebhookEvents (api.webhook_events): a meta envelope wrapping a
//     provider webhook; its handler re-dispatches on the embedded original
//     kind.
package events
