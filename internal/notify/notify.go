// Package notify sends run lifecycle notifications. Delivery is best
// effort: a failed notification is logged by the caller, never fatal to
// a run.
package notify

import (
	"context"

	"github.com/jonesrussell/merchantcrawl/internal/domain"
)

// Notifier receives run lifecycle events.
type Notifier interface {
	// NotifyStart announces that a run has begun.
	NotifyStart(ctx context.Context, run *domain.RunResult) error
	// NotifyComplete announces a terminal run with its final counters.
	NotifyComplete(ctx context.Context, run *domain.RunResult) error
	// NotifyError announces a run failure.
	NotifyError(ctx context.Context, run *domain.RunResult, err error) error
}

// NoOpNotifier discards all notifications.
type NoOpNotifier struct{}

var _ Notifier = (*NoOpNotifier)(nil)

// NewNoOp creates a notifier that does nothing.
func NewNoOp() *NoOpNotifier {
	return &NoOpNotifier{}
}

// NotifyStart implements Notifier.
func (n *NoOpNotifier) NotifyStart(context.Context, *domain.RunResult) error { return nil }

// NotifyComplete implements Notifier.
func (n *NoOpNotifier) NotifyComplete(context.Context, *domain.RunResult) error { return nil }

// NotifyError implements Notifier.
func (n *NoOpNotifier) NotifyError(context.Context, *domain.RunResult, error) error { return nil }
