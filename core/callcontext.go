// Package callengine ingests call-signaling events, correlates them by call
// connection id, and dispatches them through a handler registry with
// per-handler failure isolation. It is the protocol core of the telephony
// backend; transport, provider SDK, and media pipelines are consumed through
// the interfaces in the sibling packages.
package callengine

import (
	"github.com/voxline/callcore/core/dtmf"
	"github.com/voxline/callcore/core/events"
	"github.com/voxline/callcore/core/observer"
	"github.com/voxline/callcore/core/session"
	"github.com/voxline/callcore/core/telephony"
)

// Runtime bundles the collaborators handlers act on. Hosts assemble one at
// bootstrap and hand it to the processor.
type Runtime struct {
	Store      session.Store
	Provider   telephony.Provider
	Notifier   *observer.Notifier
	Validation *dtmf.Lifecycle
}

// CallEventContext is the ephemeral per-dispatch value handed to every
// handler: the envelope, the resolved correlation key, and the runtime
// collaborators. A fresh context is built for each event and never reused or
// persisted.
type CallEventContext struct {
	Event            events.Envelope
	CallConnectionID string

	Store      session.Store
	Provider   telephony.Provider
	Notifier   *observer.Notifier
	Validation *dtmf.Lifecycle
}

func newCallEventContext(envelope events.Envelope, callConnectionID string, runtime Runtime) *CallEventContext {
	return &CallEventContext{
		Event:            envelope,
		CallConnectionID: callConnectionID,
		Store:            runtime.Store,
		Provider:         runtime.Provider,
		Notifier:         runtime.Notifier,
		Validation:       runtime.Validation,
	}
}
