// ABOUTME: Applies remote change batches to the local saved searches
// ABOUTME: Ignores echoes and unknown reasons, never pushes remote changes back

package favorites

import (
	"context"
	"log/slog"
)

// Reconciler applies remote change batches through an Engine.
// Like Engine it is single-writer.
type Reconciler struct {
	engine   *Engine
	observer Observer
	coalesce bool
	logger   *slog.Logger
}

// ReconcilerOption configures a Reconciler.
type ReconcilerOption func(*Reconciler)

// WithCoalescedNotifications makes the reconciler notify the observer once
// per batch, with an empty tag, instead of once per change.
func WithCoalescedNotifications() ReconcilerOption {
	return func(r *Reconciler) {
		r.coalesce = true
	}
}

// NewReconciler creates a reconciler. A nil observer is allowed.
func NewReconciler(engine *Engine, observer Observer, logger *slog.Logger, opts ...ReconcilerOption) *Reconciler {
	if observer == nil {
		observer = nopObserver{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	r := &Reconciler{
		engine:   engine,
		observer: observer,
		logger:   logger.With("component", "reconciler"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Apply processes the batch in order and returns how many changes were
// applied. Persistence failures are logged and do not stop the batch.
func (r *Reconciler) Apply(ctx context.Context, batch Batch) int {
	applied := 0
	for _, change := range batch.Changes {
		if !change.Reason.Accepted() {
			r.logger.Debug("ignoring change",
				"batch_id", batch.ID,
				"key", change.Key,
				"reason", change.Reason.String())
			continue
		}

		r.applyChange(ctx, batch.ID, change)
		applied++

		if !r.coalesce {
			r.observer.OnChanged(change.Key)
		}
	}

	if r.coalesce && applied > 0 {
		r.observer.OnChanged("")
	}
	return applied
}

func (r *Reconciler) applyChange(ctx context.Context, batchID string, change Change) {
	if change.Value != nil {
		isNew, err := r.engine.SaveQuery(ctx, change.Key, *change.Value, false)
		if err != nil {
			r.logger.Error("applying remote update failed",
				"batch_id", batchID,
				"key", change.Key,
				"error", err)
			return
		}
		r.logger.Debug("applied remote update",
			"batch_id", batchID,
			"key", change.Key,
			"new", isNew,
			"reason", change.Reason.String())
		return
	}

	removed, err := r.engine.removeRemote(ctx, change.Key)
	if err != nil {
		r.logger.Error("applying remote deletion failed",
			"batch_id", batchID,
			"key", change.Key,
			"error", err)
		return
	}
	r.logger.Debug("applied remote deletion",
		"batch_id", batchID,
		"key", change.Key,
		"removed", removed)
}
