// ABOUTME: Model owns the saved searches on a single goroutine
// ABOUTME: Serializes local edits and incoming remote batches onto one loop

package favorites

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Options configures Open.
type Options struct {
	Persistence Persistence
	Remote      Remote // optional
	Logger      *slog.Logger

	// Observer is called on the model's notification goroutine, never on
	// the loop. If it also implements BatchObserver it hears about every
	// subscription batch once the batch is reconciled.
	Observer Observer

	// CoalesceNotifications notifies the observer once per batch instead of
	// once per changed tag.
	CoalesceNotifications bool
}

// Model is the owner of the saved searches. Every mutation, read and remote
// batch runs on the model's loop goroutine, so its methods are safe to call
// from any goroutine.
type Model struct {
	engine     *Engine
	reconciler *Reconciler
	remote     Remote
	sub        Subscription
	notifier   *notifier
	logger     *slog.Logger

	cmds chan func()

	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

// Open loads the persisted searches, subscribes to remote changes when a
// Remote is configured, and starts the loop. Call Close to stop it.
func Open(ctx context.Context, opts Options) (*Model, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	engine, err := NewEngine(ctx, opts.Persistence, opts.Remote, logger)
	if err != nil {
		return nil, err
	}

	var recOpts []ReconcilerOption
	if opts.CoalesceNotifications {
		recOpts = append(recOpts, WithCoalescedNotifications())
	}

	var observer Observer
	var notes *notifier
	if opts.Observer != nil {
		notes = newNotifier(opts.Observer)
		observer = notes
	}

	runCtx, cancel := context.WithCancel(context.Background())
	m := &Model{
		engine:     engine,
		reconciler: NewReconciler(engine, observer, logger, recOpts...),
		notifier:   notes,
		remote:     opts.Remote,
		logger:     logger.With("component", "model"),
		cmds:       make(chan func()),
		ctx:        runCtx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}

	var changes <-chan Batch
	if opts.Remote != nil {
		sub, err := opts.Remote.Subscribe(runCtx)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("subscribing to remote changes: %w", err)
		}
		m.sub = sub
		changes = sub.Changes()
	}

	if notes != nil {
		go notes.run(runCtx)
	}
	go m.run(changes)
	return m, nil
}

func (m *Model) run(changes <-chan Batch) {
	defer close(m.done)

	for {
		select {
		case <-m.ctx.Done():
			return

		case fn := <-m.cmds:
			fn()

		case batch, ok := <-changes:
			if !ok {
				m.logger.Warn("remote subscription closed")
				changes = nil
				continue
			}
			applied := m.reconciler.Apply(m.ctx, batch)
			if m.notifier != nil {
				m.notifier.batchApplied(batch, applied)
			}
			m.logger.Debug("batch reconciled",
				"batch_id", batch.ID,
				"changes", len(batch.Changes),
				"applied", applied)
		}
	}
}

// do runs fn on the loop and waits for it to finish.
func (m *Model) do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	wrapped := func() {
		defer close(finished)
		fn()
	}

	select {
	case m.cmds <- wrapped:
	case <-m.ctx.Done():
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	<-finished
	return nil
}

// Close stops the loop and tears down the remote subscription. Queued
// observer notifications are dropped. Close does not wait for an observer
// callback already running, so the callback may call Close itself.
func (m *Model) Close() error {
	var err error
	m.closeOnce.Do(func() {
		m.cancel()
		<-m.done
		if m.sub != nil {
			err = m.sub.Close()
		}
	})
	return err
}

// Synchronize asks the remote to check for updates. It does not wait.
func (m *Model) Synchronize() {
	if m.remote != nil {
		m.remote.RequestSync()
	}
}

// SaveQuery stores query under tag locally and pushes it to the remote.
// Reports whether the tag was new.
func (m *Model) SaveQuery(ctx context.Context, tag, query string) (bool, error) {
	var isNew bool
	var err error
	if doErr := m.do(ctx, func() {
		isNew, err = m.engine.SaveQuery(ctx, tag, query, true)
	}); doErr != nil {
		return false, doErr
	}
	return isNew, err
}

// DeleteAt removes the search displayed at index, locally and remotely.
func (m *Model) DeleteAt(ctx context.Context, index int) (string, error) {
	var tag string
	var err error
	if doErr := m.do(ctx, func() {
		tag, err = m.engine.DeleteAt(ctx, index)
	}); doErr != nil {
		return "", doErr
	}
	return tag, err
}

// DeleteTag removes tag, locally and remotely. Reports whether it existed.
func (m *Model) DeleteTag(ctx context.Context, tag string) (bool, error) {
	var removed bool
	var err error
	if doErr := m.do(ctx, func() {
		removed, err = m.engine.DeleteTag(ctx, tag)
	}); doErr != nil {
		return false, doErr
	}
	return removed, err
}

// Move reorders a search.
func (m *Model) Move(ctx context.Context, from, to int) error {
	var err error
	if doErr := m.do(ctx, func() {
		err = m.engine.Move(ctx, from, to)
	}); doErr != nil {
		return doErr
	}
	return err
}

// Apply reconciles a batch on the loop, as if it had arrived on the
// subscription. Returns the number of changes applied.
func (m *Model) Apply(ctx context.Context, batch Batch) (int, error) {
	var applied int
	if err := m.do(ctx, func() {
		applied = m.reconciler.Apply(ctx, batch)
		if m.notifier != nil {
			m.notifier.batchApplied(batch, applied)
		}
	}); err != nil {
		return 0, err
	}
	return applied, nil
}

// Count returns the number of saved searches.
func (m *Model) Count(ctx context.Context) (int, error) {
	var n int
	err := m.do(ctx, func() {
		n = m.engine.Store().Count()
	})
	return n, err
}

// TagAt returns the tag displayed at index.
func (m *Model) TagAt(ctx context.Context, index int) (string, error) {
	var tag string
	var err error
	if doErr := m.do(ctx, func() {
		tag, err = m.engine.Store().TagAt(index)
	}); doErr != nil {
		return "", doErr
	}
	return tag, err
}

// QueryFor returns the query saved under tag, if any.
func (m *Model) QueryFor(ctx context.Context, tag string) (string, bool, error) {
	var query string
	var ok bool
	err := m.do(ctx, func() {
		query, ok = m.engine.Store().QueryFor(tag)
	})
	return query, ok, err
}

// QueryAt returns the query for the tag displayed at index.
func (m *Model) QueryAt(ctx context.Context, index int) (string, bool, error) {
	var query string
	var ok bool
	var err error
	if doErr := m.do(ctx, func() {
		query, ok, err = m.engine.Store().QueryAt(index)
	}); doErr != nil {
		return "", false, doErr
	}
	return query, ok, err
}

// Entries returns a snapshot of every saved search in display order.
func (m *Model) Entries(ctx context.Context) ([]Entry, error) {
	var entries []Entry
	err := m.do(ctx, func() {
		entries = m.engine.Store().Entries()
	})
	return entries, err
}
