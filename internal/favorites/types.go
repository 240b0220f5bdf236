// ABOUTME: Collaborator interfaces and change notification types
// ABOUTME: Persistence, Remote, Subscription and Observer are supplied by callers

package favorites

import (
	"context"
	"strconv"
)

// Reason says why a remote change was delivered.
type Reason int

const (
	ReasonServerChange Reason = iota
	ReasonInitialSync
	ReasonLocalEcho
	ReasonQuotaViolation
	ReasonAccountChange
)

func (r Reason) String() string {
	switch r {
	case ReasonServerChange:
		return "server_change"
	case ReasonInitialSync:
		return "initial_sync"
	case ReasonLocalEcho:
		return "local_echo"
	case ReasonQuotaViolation:
		return "quota_violation"
	case ReasonAccountChange:
		return "account_change"
	default:
		return "reason(" + strconv.Itoa(int(r)) + ")"
	}
}

// Accepted reports whether changes with this reason should be applied.
func (r Reason) Accepted() bool {
	return r == ReasonServerChange || r == ReasonInitialSync
}

// Change is one key changed in the remote store. A nil Value means the key
// was deleted remotely.
type Change struct {
	Key    string  `json:"key"`
	Value  *string `json:"value,omitempty"`
	Reason Reason  `json:"reason"`
}

// Batch is a group of changes delivered together.
type Batch struct {
	ID      string   `json:"id"`
	Changes []Change `json:"changes"`
}

// IsSyncReply reports whether the batch answers a sync request: every change
// is an initial sync, or there are none because the remote holds no keys.
func (b Batch) IsSyncReply() bool {
	for _, c := range b.Changes {
		if c.Reason != ReasonInitialSync {
			return false
		}
	}
	return true
}

// Persistence stores the order list and the mapping as two independent blobs.
// A load that finds nothing returns ok == false and no error.
type Persistence interface {
	LoadOrder(ctx context.Context) ([]string, bool, error)
	SaveOrder(ctx context.Context, tags []string) error
	LoadMapping(ctx context.Context) (map[string]string, bool, error)
	SaveMapping(ctx context.Context, searches map[string]string) error
}

// Remote is the remote key-value synchronization service.
type Remote interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error

	// RequestSync asks the service to check for updates and returns
	// immediately. Results arrive later on a Subscription.
	RequestSync()

	Subscribe(ctx context.Context) (Subscription, error)
}

// Subscription delivers change batches until closed.
type Subscription interface {
	Changes() <-chan Batch
	Close() error
}

// Observer is told when remote changes have been applied. A Model calls it
// on a notification goroutine of its own, in the order changes were applied,
// so the callback may read the Model or Close it. Reads made from the
// callback see at least the state that produced the notification.
type Observer interface {
	OnChanged(tag string)
}

// BatchObserver is an Observer that also wants to know when a subscription
// batch has been fully reconciled, including batches that applied nothing.
type BatchObserver interface {
	Observer
	OnBatchApplied(batch Batch, applied int)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(tag string)

// OnChanged calls f(tag).
func (f ObserverFunc) OnChanged(tag string) {
	f(tag)
}

type nopObserver struct{}

func (nopObserver) OnChanged(string) {}

// StringPtr returns a pointer to s, for building Change values.
func StringPtr(s string) *string {
	return &s
}
