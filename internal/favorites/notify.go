// ABOUTME: Delivers observer callbacks in order on their own goroutine
// ABOUTME: Keeps the model loop free so observers can read or close the model

package favorites

import (
	"context"
	"sync"
)

// notice is one queued callback: a tag change, or the end of a batch when
// batch is set.
type notice struct {
	tag     string
	batch   *Batch
	applied int
}

// notifier queues notifications from the model loop and replays them to the
// observer. The queue is unbounded so the loop never waits on an observer.
type notifier struct {
	observer Observer

	mu      sync.Mutex
	pending []notice
	wake    chan struct{}
	done    chan struct{}
}

func newNotifier(observer Observer) *notifier {
	return &notifier{
		observer: observer,
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// OnChanged queues a tag notification. Called on the model loop.
func (n *notifier) OnChanged(tag string) {
	n.push(notice{tag: tag})
}

// batchApplied queues a batch notification for observers that want one.
func (n *notifier) batchApplied(batch Batch, applied int) {
	if _, ok := n.observer.(BatchObserver); !ok {
		return
	}
	n.push(notice{batch: &batch, applied: applied})
}

func (n *notifier) push(nt notice) {
	n.mu.Lock()
	n.pending = append(n.pending, nt)
	n.mu.Unlock()

	select {
	case n.wake <- struct{}{}:
	default:
	}
}

// run delivers queued notices until ctx ends. Anything still queued then is
// dropped.
func (n *notifier) run(ctx context.Context) {
	defer close(n.done)

	for {
		select {
		case <-ctx.Done():
			return
		case <-n.wake:
		}

		for {
			n.mu.Lock()
			queued := n.pending
			n.pending = nil
			n.mu.Unlock()

			if len(queued) == 0 {
				break
			}
			for _, nt := range queued {
				if ctx.Err() != nil {
					return
				}
				n.deliver(nt)
			}
		}
	}
}

func (n *notifier) deliver(nt notice) {
	if nt.batch == nil {
		n.observer.OnChanged(nt.tag)
		return
	}
	n.observer.(BatchObserver).OnBatchApplied(*nt.batch, nt.applied)
}
