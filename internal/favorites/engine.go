// ABOUTME: Single-writer mutation path for saved searches
// ABOUTME: Applies a mutation, flushes what the policy requires, then pushes to the remote

package favorites

import (
	"context"
	"fmt"
	"log/slog"
)

// Engine applies mutations to an OrderedStore and makes them durable.
// It is not safe for concurrent use; Model serializes access to it.
type Engine struct {
	store   *OrderedStore
	persist Persistence
	remote  Remote
	logger  *slog.Logger
}

// NewEngine loads the persisted state and returns an engine over it. Missing
// blobs yield an empty store. remote may be nil for offline use.
func NewEngine(ctx context.Context, persist Persistence, remote Remote, logger *slog.Logger) (*Engine, error) {
	if persist == nil {
		return nil, fmt.Errorf("persistence cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	order, _, err := persist.LoadOrder(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading order: %w", err)
	}
	mapping, _, err := persist.LoadMapping(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading mapping: %w", err)
	}

	store := NewOrderedStore()
	store.Restore(order, mapping)

	logger = logger.With("component", "favorites")
	logger.Debug("saved searches loaded", "count", store.Count())

	return &Engine{
		store:   store,
		persist: persist,
		remote:  remote,
		logger:  logger,
	}, nil
}

// Store exposes the underlying store for reads.
func (e *Engine) Store() *OrderedStore {
	return e.store
}

// SaveQuery stores query under tag. When syncToCloud is set the value is also
// pushed to the remote after it has been persisted.
func (e *Engine) SaveQuery(ctx context.Context, tag, query string, syncToCloud bool) (bool, error) {
	if tag == "" {
		return false, ErrEmptyTag
	}

	isNew := e.store.Upsert(tag, query)
	if err := e.flush(ctx, FlushNeeded(OpUpsert, isNew)); err != nil {
		return isNew, err
	}

	if syncToCloud && e.remote != nil {
		if err := e.remote.Set(ctx, tag, query); err != nil {
			e.logger.Warn("pushing saved search failed", "tag", tag, "error", err)
			return isNew, fmt.Errorf("%w: set %q: %v", ErrRemotePush, tag, err)
		}
	}
	return isNew, nil
}

// DeleteAt removes the search displayed at index and deletes it remotely.
func (e *Engine) DeleteAt(ctx context.Context, index int) (string, error) {
	tag, err := e.store.RemoveAt(index)
	if err != nil {
		return "", err
	}
	if err := e.flush(ctx, FlushNeeded(OpRemove, false)); err != nil {
		return tag, err
	}
	return tag, e.pushRemove(ctx, tag)
}

// DeleteTag removes tag if present and deletes it remotely.
func (e *Engine) DeleteTag(ctx context.Context, tag string) (bool, error) {
	if !e.store.RemoveTag(tag) {
		return false, nil
	}
	if err := e.flush(ctx, FlushNeeded(OpRemove, false)); err != nil {
		return true, err
	}
	return true, e.pushRemove(ctx, tag)
}

// Move reorders a search. Order is local only and never pushed.
func (e *Engine) Move(ctx context.Context, from, to int) error {
	if err := e.store.Move(from, to); err != nil {
		return err
	}
	return e.flush(ctx, FlushNeeded(OpMove, false))
}

// removeRemote applies a remote deletion without pushing it back.
func (e *Engine) removeRemote(ctx context.Context, tag string) (bool, error) {
	if !e.store.RemoveTag(tag) {
		return false, nil
	}
	return true, e.flush(ctx, FlushNeeded(OpRemove, false))
}

func (e *Engine) pushRemove(ctx context.Context, tag string) error {
	if e.remote == nil {
		return nil
	}
	if err := e.remote.Remove(ctx, tag); err != nil {
		e.logger.Warn("pushing deletion failed", "tag", tag, "error", err)
		return fmt.Errorf("%w: remove %q: %v", ErrRemotePush, tag, err)
	}
	return nil
}

// flush writes the order blob before the mapping blob.
func (e *Engine) flush(ctx context.Context, f Flush) error {
	if f.Order {
		if err := e.persist.SaveOrder(ctx, e.store.Tags()); err != nil {
			return fmt.Errorf("saving order: %w", err)
		}
	}
	if f.Mapping {
		if err := e.persist.SaveMapping(ctx, e.store.Mapping()); err != nil {
			return fmt.Errorf("saving mapping: %w", err)
		}
	}
	return nil
}
