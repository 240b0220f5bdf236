// Package favorites keeps an ordered list of saved searches consistent across
// local edits and remote change notifications.
//
// # Overview
//
// A saved search is a tag (its name) mapped to query text. The display order
// is user controlled and stored separately from the mapping:
//
//	OrderedStore   tag order + tag->query mapping, always the same tag set
//	Engine         mutations, selective flushes, optional remote push
//	Reconciler     applies remote change batches through the Engine
//	Model          owns all of the above on one goroutine
//
// # Persistence
//
// The order and the mapping are two independent blobs. FlushNeeded decides
// which of them a mutation must write:
//
//	new tag       order + mapping
//	value update  mapping
//	delete        order + mapping
//	move          order
//
// Writes happen before the call returns and before any remote push.
//
// # Remote changes
//
// Batches arrive on a Subscription. Changes with ReasonLocalEcho, and any
// reason other than ReasonServerChange or ReasonInitialSync, are ignored.
// Accepted changes are applied with the push disabled so a device never
// re-sends what it just received:
//
//	m, err := favorites.Open(ctx, favorites.Options{
//	    Persistence: gw,
//	    Remote:      client,
//	    Observer:    favorites.ObserverFunc(func(tag string) { redraw() }),
//	})
//	if err != nil {
//	    return err
//	}
//	defer m.Close()
//
//	m.Synchronize()
//
// # Concurrency
//
// OrderedStore, Engine and Reconciler are single-writer types. Model runs them
// on its own goroutine and marshals both method calls and incoming batches onto
// it. Observer callbacks run on a second goroutine, in order, so an observer
// may call back into the Model.
package favorites
