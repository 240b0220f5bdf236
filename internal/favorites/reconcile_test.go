// ABOUTME: Tests for Reconciler echo suppression and remote change application
// ABOUTME: Covers ignored reasons, remote deletes, no re-push and observer notifications

package favorites

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconciler_LocalEchoIsIgnored(t *testing.T) {
	p := &memPersistence{}
	r := newRecordingRemote()
	obs := newCountingObserver()
	e := newTestEngine(t, p, r)
	rec := NewReconciler(e, obs, nil)

	applied := rec.Apply(t.Context(), Batch{ID: "b1", Changes: []Change{
		change("sports", "#nba", ReasonLocalEcho),
		deletion("news", ReasonLocalEcho),
	}})

	assert.Equal(t, 0, applied)
	assert.Equal(t, 0, e.Store().Count())
	order, mapping := p.writes()
	assert.Zero(t, order)
	assert.Zero(t, mapping)
	assert.Empty(t, obs.seen())
}

func TestReconciler_UnknownReasonsAreIgnored(t *testing.T) {
	obs := newCountingObserver()
	e := newTestEngine(t, &memPersistence{}, nil)
	rec := NewReconciler(e, obs, nil)

	applied := rec.Apply(t.Context(), Batch{Changes: []Change{
		change("a", "1", ReasonQuotaViolation),
		change("b", "2", ReasonAccountChange),
		change("c", "3", Reason(42)),
	}})

	assert.Equal(t, 0, applied)
	assert.Equal(t, 0, e.Store().Count())
	assert.Empty(t, obs.seen())
}

func TestReconciler_RemoteUpdateIsNotPushedBack(t *testing.T) {
	p := &memPersistence{}
	r := newRecordingRemote()
	obs := newCountingObserver()
	e := newTestEngine(t, p, r)
	rec := NewReconciler(e, obs, nil)

	applied := rec.Apply(t.Context(), Batch{Changes: []Change{
		change("sports", "#nba", ReasonServerChange),
		change("news", "#breaking", ReasonInitialSync),
	}})

	assert.Equal(t, 2, applied)
	assert.Equal(t, []string{"news", "sports"}, e.Store().Tags())
	assert.Empty(t, r.setCalls())
	assert.Empty(t, r.removeCalls())
	assert.Equal(t, []string{"sports", "news"}, obs.seen())
}

func TestReconciler_RemoteValueUpdateFlushesMappingOnly(t *testing.T) {
	p := &memPersistence{}
	e := newTestEngine(t, p, nil)
	_, err := e.SaveQuery(t.Context(), "sports", "#nba", false)
	require.NoError(t, err)
	rec := NewReconciler(e, nil, nil)

	rec.Apply(t.Context(), Batch{Changes: []Change{change("sports", "#wnba", ReasonServerChange)}})

	order, mapping := p.writes()
	assert.Equal(t, 1, order)
	assert.Equal(t, 2, mapping)
	q, _ := e.Store().QueryFor("sports")
	assert.Equal(t, "#wnba", q)
}

func TestReconciler_RemoteDeletion(t *testing.T) {
	p := &memPersistence{}
	r := newRecordingRemote()
	obs := newCountingObserver()
	e := newTestEngine(t, p, r)
	_, err := e.SaveQuery(t.Context(), "sports", "#nba", false)
	require.NoError(t, err)
	rec := NewReconciler(e, obs, nil)

	applied := rec.Apply(t.Context(), Batch{Changes: []Change{deletion("sports", ReasonServerChange)}})

	assert.Equal(t, 1, applied)
	assert.Equal(t, 0, e.Store().Count())
	_, ok := e.Store().QueryFor("sports")
	assert.False(t, ok)
	assert.Equal(t, []string{"sports"}, obs.seen())
	assert.Empty(t, r.removeCalls(), "remote deletions are not pushed back")

	order, mapping := p.writes()
	assert.Equal(t, 2, order)
	assert.Equal(t, 2, mapping)
}

func TestReconciler_RemoteDeletionOfUnknownTagDoesNotFlush(t *testing.T) {
	p := &memPersistence{}
	obs := newCountingObserver()
	e := newTestEngine(t, p, nil)
	rec := NewReconciler(e, obs, nil)

	rec.Apply(t.Context(), Batch{Changes: []Change{deletion("ghost", ReasonServerChange)}})

	order, mapping := p.writes()
	assert.Zero(t, order)
	assert.Zero(t, mapping)
	assert.Equal(t, []string{"ghost"}, obs.seen())
}

func TestReconciler_AppliesInArrivalOrder(t *testing.T) {
	e := newTestEngine(t, &memPersistence{}, nil)
	rec := NewReconciler(e, nil, nil)

	rec.Apply(t.Context(), Batch{Changes: []Change{
		change("a", "1", ReasonServerChange),
		change("a", "2", ReasonServerChange),
		deletion("a", ReasonServerChange),
		change("a", "3", ReasonServerChange),
	}})

	q, ok := e.Store().QueryFor("a")
	require.True(t, ok)
	assert.Equal(t, "3", q)
	assert.Equal(t, 1, e.Store().Count())
}

func TestReconciler_CoalescedNotifications(t *testing.T) {
	obs := newCountingObserver()
	e := newTestEngine(t, &memPersistence{}, nil)
	rec := NewReconciler(e, obs, nil, WithCoalescedNotifications())

	rec.Apply(t.Context(), Batch{Changes: []Change{
		change("a", "1", ReasonServerChange),
		change("b", "2", ReasonServerChange),
		change("c", "3", ReasonLocalEcho),
	}})
	assert.Equal(t, []string{""}, obs.seen())

	rec.Apply(t.Context(), Batch{Changes: []Change{change("d", "4", ReasonLocalEcho)}})
	assert.Equal(t, []string{""}, obs.seen(), "batches with nothing applied do not notify")
}

func TestReconciler_PersistFailureContinuesBatch(t *testing.T) {
	p := &memPersistence{}
	obs := newCountingObserver()
	e := newTestEngine(t, p, nil)
	rec := NewReconciler(e, obs, nil)

	p.saveErr = assert.AnError
	applied := rec.Apply(t.Context(), Batch{Changes: []Change{
		change("a", "1", ReasonServerChange),
		change("b", "2", ReasonServerChange),
	}})

	assert.Equal(t, 2, applied)
	assert.Equal(t, []string{"a", "b"}, obs.seen())
	requireConsistent(t, e.Store())
}

func TestReason_String(t *testing.T) {
	assert.Equal(t, "server_change", ReasonServerChange.String())
	assert.Equal(t, "initial_sync", ReasonInitialSync.String())
	assert.Equal(t, "local_echo", ReasonLocalEcho.String())
	assert.Equal(t, "reason(42)", Reason(42).String())
	assert.True(t, ReasonInitialSync.Accepted())
	assert.False(t, ReasonLocalEcho.Accepted())
}
