// ABOUTME: In-memory last-writer-wins key-value service with per-device change fan-out
// ABOUTME: Writers receive their own changes as local echoes, every other device as server changes

package remote

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/2389/savedsearch/internal/favorites"
	"github.com/2389/savedsearch/internal/store"
)

const (
	// subscriberBufferSize is the channel buffer for each device subscription.
	subscriberBufferSize = 64

	// blobPrefix namespaces hub values inside a shared blob store.
	blobPrefix = "kv/"
)

type subscriber struct {
	deviceID string
	ch       chan favorites.Batch
}

// Hub holds the authoritative copy of every key and pushes changes to
// subscribed devices. Publishing happens under the write lock so every
// subscriber sees writes in the order they were applied; sends never block.
type Hub struct {
	mu          sync.Mutex
	values      map[string]string
	subscribers map[string]*subscriber // subID -> subscriber
	backing     store.Blobs
	closed      bool
	logger      *slog.Logger
}

// NewHub creates a memory-only hub. Pass nil logger for default.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		values:      make(map[string]string),
		subscribers: make(map[string]*subscriber),
		logger:      logger.With("component", "hub"),
	}
}

// NewHubWithBacking creates a hub whose values are persisted to blobs under
// the kv/ prefix and reloaded from there.
func NewHubWithBacking(ctx context.Context, blobs store.Blobs, logger *slog.Logger) (*Hub, error) {
	h := NewHub(logger)
	if blobs == nil {
		return h, nil
	}

	existing, err := blobs.ListBlobs(ctx, blobPrefix)
	if err != nil {
		return nil, fmt.Errorf("loading hub values: %w", err)
	}
	for _, b := range existing {
		h.values[b.Key[len(blobPrefix):]] = string(b.Value)
	}
	h.backing = blobs

	h.logger.Info("hub values loaded", "keys", len(h.values))
	return h, nil
}

// Connect returns a Device bound to this hub. An empty id gets a random one.
func (h *Hub) Connect(deviceID string) *Device {
	if deviceID == "" {
		deviceID = uuid.New().String()
	}
	return &Device{hub: h, id: deviceID}
}

// Get returns the current value for key.
func (h *Hub) Get(key string) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	v, ok := h.values[key]
	return v, ok
}

// Snapshot returns a copy of every key and value.
func (h *Hub) Snapshot() map[string]string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make(map[string]string, len(h.values))
	for k, v := range h.values {
		out[k] = v
	}
	return out
}

// Set stores value under key on behalf of origin and publishes the change.
func (h *Hub) Set(ctx context.Context, origin, key, value string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.backing != nil {
		if err := h.backing.PutBlob(ctx, blobPrefix+key, []byte(value)); err != nil {
			return fmt.Errorf("storing %q: %w", key, err)
		}
	}
	h.values[key] = value
	h.publishLocked(origin, favorites.Change{Key: key, Value: favorites.StringPtr(value)})
	return nil
}

// Remove deletes key on behalf of origin and publishes the deletion.
// Removing a key that does not exist publishes nothing.
func (h *Hub) Remove(ctx context.Context, origin, key string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.values[key]; !ok {
		return nil
	}
	if h.backing != nil {
		if err := h.backing.DeleteBlob(ctx, blobPrefix+key); err != nil {
			return fmt.Errorf("deleting %q: %w", key, err)
		}
	}
	delete(h.values, key)
	h.publishLocked(origin, favorites.Change{Key: key})
	return nil
}

// SyncDevice queues an initial-sync batch holding every key, in key order,
// for each subscription of deviceID.
func (h *Hub) SyncDevice(deviceID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	keys := make([]string, 0, len(h.values))
	for k := range h.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	changes := make([]favorites.Change, 0, len(keys))
	for _, k := range keys {
		changes = append(changes, favorites.Change{
			Key:    k,
			Value:  favorites.StringPtr(h.values[k]),
			Reason: favorites.ReasonInitialSync,
		})
	}
	batch := favorites.Batch{ID: uuid.New().String(), Changes: changes}

	for subID, sub := range h.subscribers {
		if sub.deviceID == deviceID {
			h.sendLocked(subID, sub, batch)
		}
	}

	h.logger.Debug("sync requested", "device_id", deviceID, "keys", len(keys))
}

// Subscribe registers a subscription for deviceID. The subscription ends
// when it is closed, when ctx is cancelled or when the hub closes.
func (h *Hub) Subscribe(ctx context.Context, deviceID string) (*Subscription, error) {
	subID := uuid.New().String()
	ch := make(chan favorites.Batch, subscriberBufferSize)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, ErrHubClosed
	}
	h.subscribers[subID] = &subscriber{deviceID: deviceID, ch: ch}
	h.mu.Unlock()

	h.logger.Debug("subscriber added", "device_id", deviceID, "sub_id", subID)

	sub := &Subscription{hub: h, id: subID, ch: ch, done: make(chan struct{})}
	go func() {
		select {
		case <-ctx.Done():
			h.unsubscribe(subID)
		case <-sub.done:
		}
	}()
	return sub, nil
}

// Subscribers returns the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

// Close closes every subscription channel. Later Subscribe calls fail.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for subID, sub := range h.subscribers {
		close(sub.ch)
		delete(h.subscribers, subID)
	}
	h.closed = true

	h.logger.Debug("hub closed")
}

func (h *Hub) publishLocked(origin string, change favorites.Change) {
	if len(h.subscribers) == 0 {
		return
	}
	batchID := uuid.New().String()

	for subID, sub := range h.subscribers {
		c := change
		if sub.deviceID == origin {
			c.Reason = favorites.ReasonLocalEcho
		} else {
			c.Reason = favorites.ReasonServerChange
		}
		h.sendLocked(subID, sub, favorites.Batch{ID: batchID, Changes: []favorites.Change{c}})
	}
}

func (h *Hub) sendLocked(subID string, sub *subscriber, batch favorites.Batch) {
	select {
	case sub.ch <- batch:
	default:
		h.logger.Warn("dropped batch for slow subscriber",
			"device_id", sub.deviceID,
			"sub_id", subID,
			"batch_id", batch.ID)
	}
}

func (h *Hub) unsubscribe(subID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub, ok := h.subscribers[subID]
	if !ok {
		return
	}
	delete(h.subscribers, subID)
	close(sub.ch)

	h.logger.Debug("subscriber removed", "device_id", sub.deviceID, "sub_id", subID)
}

// Subscription is a live feed of batches for one device.
type Subscription struct {
	hub  *Hub
	id   string
	ch   chan favorites.Batch
	done chan struct{}
	once sync.Once
}

// Changes returns the batch channel. It is closed when the subscription ends.
func (s *Subscription) Changes() <-chan favorites.Batch {
	return s.ch
}

// Close ends the subscription. Safe to call more than once.
func (s *Subscription) Close() error {
	s.once.Do(func() {
		close(s.done)
		s.hub.unsubscribe(s.id)
	})
	return nil
}

// Device is an in-process favorites.Remote bound to a hub.
type Device struct {
	hub *Hub
	id  string
}

var _ favorites.Remote = (*Device)(nil)

// ID returns the device id used to tell its own writes from everyone else's.
func (d *Device) ID() string {
	return d.id
}

// Get reads the hub's current value for key.
func (d *Device) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := d.hub.Get(key)
	return v, ok, nil
}

// Set writes key as this device. Other devices see a server change.
func (d *Device) Set(ctx context.Context, key, value string) error {
	return d.hub.Set(ctx, d.id, key, value)
}

// Remove deletes key as this device.
func (d *Device) Remove(ctx context.Context, key string) error {
	return d.hub.Remove(ctx, d.id, key)
}

// RequestSync never blocks on delivery; the batch arrives on Subscribe.
func (d *Device) RequestSync() {
	d.hub.SyncDevice(d.id)
}

// Subscribe follows every change the hub publishes to this device.
func (d *Device) Subscribe(ctx context.Context) (favorites.Subscription, error) {
	sub, err := d.hub.Subscribe(ctx, d.id)
	if err != nil {
		return nil, err
	}
	return sub, nil
}
