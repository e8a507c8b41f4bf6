package observer

import (
	"context"
	"fmt"
	"sync"
)

// Notifier spawns supervised fire-and-forget deliveries. Contract:
// best-effort, no backpressure, failures logged rather than swallowed. Close
// waits for in-flight deliveries so hosts can drain on shutdown.
type Notifier struct {
	broadcaster Broadcaster

	wg        sync.WaitGroup
	closeOnce sync.Once
	closed    chan struct{}
}

// NewNotifier wraps a broadcaster. A nil broadcaster yields a notifier whose
// deliveries are dropped with a debug log, which keeps call sites branch-free.
func NewNotifier(broadcaster Broadcaster) *Notifier {
	return &Notifier{
		broadcaster: broadcaster,
		closed:      make(chan struct{}),
	}
}

// Notify delivers in the background and returns immediately.
func (n *Notifier) Notify(ctx context.Context, presentationSessionID string, notification Notification) {
	if n == nil {
		return
	}

	select {
	case <-n.closed:
		logger.DebugContext(ctx, "notifier closed, dropping notification",
			"session_id", presentationSessionID, "notification_type", notification.Type)
		return
	default:
	}

	if n.broadcaster == nil {
		logger.DebugContext(ctx, "no broadcaster configured, dropping notification",
			"session_id", presentationSessionID, "notification_type", notification.Type)
		return
	}

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		if err := n.deliver(ctx, presentationSessionID, notification); err != nil {
			logger.WarnContext(ctx, "best-effort notification failed",
				"session_id", presentationSessionID,
				"notification_type", notification.Type,
				"error", err,
			)
		}
	}()
}

// Attached reports whether a receiver is attached for the session. False when
// no broadcaster is configured.
func (n *Notifier) Attached(presentationSessionID string) bool {
	if n == nil || n.broadcaster == nil {
		return false
	}
	return n.broadcaster.Attached(presentationSessionID)
}

// Close stops accepting notifications and waits for in-flight deliveries.
func (n *Notifier) Close() {
	if n == nil {
		return
	}
	n.closeOnce.Do(func() {
		close(n.closed)
	})
	n.wg.Wait()
}

func (n *Notifier) deliver(ctx context.Context, presentationSessionID string, notification Notification) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("notification delivery panicked: %v", recovered)
		}
	}()
	return n.broadcaster.Publish(ctx, presentationSessionID, notification)
}
