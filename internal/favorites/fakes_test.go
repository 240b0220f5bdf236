// ABOUTME: In-memory fakes for persistence, remote and observer used by tests
// ABOUTME: Record writes and pushes so tests can assert on side effects

package favorites

import (
	"context"
	"errors"
	"sync"
)

type memPersistence struct {
	mu          sync.Mutex
	order       []string
	mapping     map[string]string
	hasOrder    bool
	hasMapping  bool
	orderWrites int
	mapWrites   int
	saveErr     error
	loadErr     error
}

func (p *memPersistence) LoadOrder(context.Context) ([]string, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.loadErr != nil {
		return nil, false, p.loadErr
	}
	if !p.hasOrder {
		return nil, false, nil
	}
	return append([]string(nil), p.order...), true, nil
}

func (p *memPersistence) SaveOrder(_ context.Context, tags []string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.saveErr != nil {
		return p.saveErr
	}
	p.order = append([]string(nil), tags...)
	p.hasOrder = true
	p.orderWrites++
	return nil
}

func (p *memPersistence) LoadMapping(context.Context) (map[string]string, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.loadErr != nil {
		return nil, false, p.loadErr
	}
	if !p.hasMapping {
		return nil, false, nil
	}
	out := make(map[string]string, len(p.mapping))
	for k, v := range p.mapping {
		out[k] = v
	}
	return out, true, nil
}

func (p *memPersistence) SaveMapping(_ context.Context, searches map[string]string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.saveErr != nil {
		return p.saveErr
	}
	p.mapping = make(map[string]string, len(searches))
	for k, v := range searches {
		p.mapping[k] = v
	}
	p.hasMapping = true
	p.mapWrites++
	return nil
}

func (p *memPersistence) writes() (order, mapping int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.orderWrites, p.mapWrites
}

type recordingRemote struct {
	mu       sync.Mutex
	sets     []string
	removes  []string
	syncs    int
	values   map[string]string
	pushErr  error
	changes  chan Batch
	closed   bool
	subCount int
}

func newRecordingRemote() *recordingRemote {
	return &recordingRemote{
		values:  make(map[string]string),
		changes: make(chan Batch, 16),
	}
}

func (r *recordingRemote) Get(_ context.Context, key string) (string, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.values[key]
	return v, ok, nil
}

func (r *recordingRemote) Set(_ context.Context, key, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pushErr != nil {
		return r.pushErr
	}
	r.sets = append(r.sets, key)
	r.values[key] = value
	return nil
}

func (r *recordingRemote) Remove(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pushErr != nil {
		return r.pushErr
	}
	r.removes = append(r.removes, key)
	delete(r.values, key)
	return nil
}

func (r *recordingRemote) RequestSync() {
	r.mu.Lock()
	r.syncs++
	r.mu.Unlock()
}

func (r *recordingRemote) Subscribe(context.Context) (Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subCount++
	return &chanSubscription{remote: r}, nil
}

func (r *recordingRemote) setCalls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.sets...)
}

func (r *recordingRemote) removeCalls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.removes...)
}

type chanSubscription struct {
	remote *recordingRemote
}

func (s *chanSubscription) Changes() <-chan Batch {
	return s.remote.changes
}

func (s *chanSubscription) Close() error {
	s.remote.mu.Lock()
	defer s.remote.mu.Unlock()
	if s.remote.closed {
		return errors.New("already closed")
	}
	s.remote.closed = true
	return nil
}

type countingObserver struct {
	mu   sync.Mutex
	tags []string
	ch   chan string
}

func newCountingObserver() *countingObserver {
	return &countingObserver{ch: make(chan string, 64)}
}

func (o *countingObserver) OnChanged(tag string) {
	o.mu.Lock()
	o.tags = append(o.tags, tag)
	o.mu.Unlock()
	o.ch <- tag
}

func (o *countingObserver) seen() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.tags...)
}

func change(key, value string, reason Reason) Change {
	return Change{Key: key, Value: StringPtr(value), Reason: reason}
}

func deletion(key string, reason Reason) Change {
	return Change{Key: key, Reason: reason}
}
