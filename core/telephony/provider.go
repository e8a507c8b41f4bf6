// Package telephony declares the narrow slice of the telephony provider SDK
// this core consumes. Implementations live with the host application; the
// core only ever calls these operations.
package telephony

import "context"

// ParticipantKind distinguishes the leg types a provider reports.
type ParticipantKind string

const (
	// ParticipantPhoneNumber is an external PSTN leg.
	ParticipantPhoneNumber ParticipantKind = "phone_number"
	// ParticipantCommunicationUser is the provider-side application leg.
	ParticipantCommunicationUser ParticipantKind = "communication_user"
)

// Participant is one leg of a connected call.
type Participant struct {
	Kind ParticipantKind
	// ID is the provider identifier for the leg: an E.164 number for phone
	// participants, an opaque user id otherwise.
	ID string
	// DisplayName is best-effort and may be empty.
	DisplayName string
	Muted       bool
}

// Provider is the consumed telephony surface.
type Provider interface {
	// Participants lists the current legs of a call connection.
	Participants(ctx context.Context, callConnectionID string) ([]Participant, error)

	// HangUp terminates a call connection. With everyone set, all legs are
	// dropped; otherwise only the application leg leaves.
	HangUp(ctx context.Context, callConnectionID string, everyone bool) error

	// StartDTMFRecognition begins continuous tone recognition for the given
	// target participant. operationContext is echoed back on recognition
	// webhooks.
	StartDTMFRecognition(ctx context.Context, callConnectionID, targetParticipantID, operationContext string) error
}
