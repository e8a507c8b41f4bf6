// Package observer carries best-effort notifications from the call-event
// engine to the presentation layer. Delivery is keyed by the presentation
// session id, never by the telephony correlation id.
package observer

import (
	"context"
	"time"
)

// Notification is one UI-facing message.
type Notification struct {
	// Type names the notification, e.g. "call.connected".
	Type string `json:"type"`
	// Data carries type-specific fields.
	Data map[string]any `json:"data,omitempty"`
	// SentAt marks when the engine produced the notification.
	SentAt time.Time `json:"sentAt"`
}

// NewNotification stamps a notification with the current time.
func NewNotification(notificationType string, data map[string]any) Notification {
	return Notification{Type: notificationType, Data: data, SentAt: time.Now()}
}

// Broadcaster is the consumed delivery surface. Implementations own their
// transport; the engine only publishes.
type Broadcaster interface {
	// Publish delivers a notification to every receiver attached to the
	// presentation session. Delivery is best-effort; an error means no
	// receiver got the message.
	Publish(ctx context.Context, presentationSessionID string, notification Notification) error

	// Attached reports whether any receiver is currently attached to the
	// presentation session.
	Attached(presentationSessionID string) bool
}
