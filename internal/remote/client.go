// ABOUTME: Websocket client implementing favorites.Remote against a sync server
// ABOUTME: Correlates request replies by id and drops batches that are delivered twice

package remote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/2389/savedsearch/internal/dedupe"
	"github.com/2389/savedsearch/internal/favorites"
)

const (
	defaultRequestTimeout = 10 * time.Second
	defaultDedupeTTL      = 5 * time.Minute
	defaultDedupeSize     = 1024
)

// ClientOptions configures Dial. Zero durations and sizes use defaults.
type ClientOptions struct {
	URL            string
	DeviceID       string
	RequestTimeout time.Duration
	DedupeTTL      time.Duration
	DedupeSize     int
	Logger         *slog.Logger

	// HTTPClient is used for the websocket handshake, for example one that
	// dials through a tailnet.
	HTTPClient *http.Client
}

// Client is a connection to a sync server for one device.
type Client struct {
	conn     *websocket.Conn
	deviceID string
	timeout  time.Duration
	seen     *dedupe.Cache
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	wg     sync.WaitGroup

	mu      sync.Mutex
	pending map[string]chan frame
	subs    map[string]chan favorites.Batch
	closed  bool
	connErr error
}

var _ favorites.Remote = (*Client)(nil)

// Dial connects to the sync server at opts.URL.
func Dial(ctx context.Context, opts ClientOptions) (*Client, error) {
	if opts.URL == "" {
		return nil, errors.New("sync server url is required")
	}
	u, err := url.Parse(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing sync server url: %w", err)
	}

	deviceID := opts.DeviceID
	if deviceID == "" {
		deviceID = uuid.New().String()
	}
	q := u.Query()
	q.Set(DeviceParam, deviceID)
	u.RawQuery = q.Encode()

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	ttl := opts.DedupeTTL
	if ttl <= 0 {
		ttl = defaultDedupeTTL
	}
	size := opts.DedupeSize
	if size <= 0 {
		size = defaultDedupeSize
	}

	conn, _, err := websocket.Dial(ctx, u.String(), &websocket.DialOptions{HTTPClient: opts.HTTPClient})
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", opts.URL, err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	c := &Client{
		conn:     conn,
		deviceID: deviceID,
		timeout:  timeout,
		seen:     dedupe.New(ttl, size),
		logger:   logger.With("component", "sync-client", "device_id", deviceID),
		ctx:      runCtx,
		cancel:   cancel,
		done:     make(chan struct{}),
		pending:  make(map[string]chan frame),
		subs:     make(map[string]chan favorites.Batch),
	}

	c.wg.Add(1)
	go c.readLoop()

	c.logger.Info("connected to sync server", "url", opts.URL)
	return c, nil
}

// DeviceID returns the id this client registered with.
func (c *Client) DeviceID() string {
	return c.deviceID
}

// Done is closed when the connection ends for any reason.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) Get(ctx context.Context, key string) (string, bool, error) {
	reply, err := c.call(ctx, frame{Type: frameGet, Key: key})
	if err != nil {
		return "", false, err
	}
	if !reply.Found || reply.Value == nil {
		return "", false, nil
	}
	return *reply.Value, true, nil
}

func (c *Client) Set(ctx context.Context, key, value string) error {
	_, err := c.call(ctx, frame{Type: frameSet, Key: key, Value: &value})
	return err
}

func (c *Client) Remove(ctx context.Context, key string) error {
	_, err := c.call(ctx, frame{Type: frameRemove, Key: key})
	return err
}

// RequestSync sends the sync request in the background and returns at once.
func (c *Client) RequestSync() {
	c.mu.Lock()
	if c.closed || c.connErr != nil {
		c.mu.Unlock()
		c.logger.Debug("sync request skipped, not connected")
		return
	}
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()
		ctx, cancel := context.WithTimeout(c.ctx, c.timeout)
		defer cancel()
		if err := c.write(ctx, frame{Type: frameSync, ID: uuid.New().String()}); err != nil {
			c.logger.Warn("sync request failed", "error", err)
		}
	}()
}

func (c *Client) Subscribe(ctx context.Context) (favorites.Subscription, error) {
	id := uuid.New().String()
	ch := make(chan favorites.Batch, subscriberBufferSize)

	c.mu.Lock()
	if err := c.usableLocked(); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	c.subs[id] = ch
	c.wg.Add(1)
	c.mu.Unlock()

	sub := &clientSubscription{client: c, id: id, ch: ch, done: make(chan struct{})}
	go func() {
		defer c.wg.Done()
		select {
		case <-ctx.Done():
			c.unsubscribe(id)
		case <-sub.done:
		case <-c.ctx.Done():
		}
	}()
	return sub, nil
}

// Close ends the connection and waits for background work to stop.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	if err := c.conn.Close(websocket.StatusNormalClosure, ""); err != nil {
		c.logger.Debug("websocket close", "error", err)
	}
	c.cancel()
	c.wg.Wait()
	return nil
}

func (c *Client) call(ctx context.Context, req frame) (frame, error) {
	req.ID = uuid.New().String()
	ch := make(chan frame, 1)

	c.mu.Lock()
	if err := c.usableLocked(); err != nil {
		c.mu.Unlock()
		return frame{}, err
	}
	c.pending[req.ID] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, req.ID)
		c.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.write(ctx, req); err != nil {
		return frame{}, fmt.Errorf("sending %s %q: %w", req.Type, req.Key, err)
	}

	select {
	case reply, ok := <-ch:
		if !ok {
			return frame{}, ErrNotConnected
		}
		if reply.Type == frameError {
			return frame{}, fmt.Errorf("%s %q rejected by server: %s", req.Type, req.Key, reply.Error)
		}
		return reply, nil
	case <-ctx.Done():
		return frame{}, fmt.Errorf("waiting for %s %q: %w", req.Type, req.Key, ctx.Err())
	}
}

func (c *Client) usableLocked() error {
	if c.closed {
		return ErrClientClosed
	}
	if c.connErr != nil {
		return fmt.Errorf("%w: %v", ErrNotConnected, c.connErr)
	}
	return nil
}

func (c *Client) write(ctx context.Context, f frame) error {
	data, err := encodeFrame(f)
	if err != nil {
		return err
	}
	return c.conn.Write(ctx, websocket.MessageText, data)
}

func (c *Client) readLoop() {
	defer c.wg.Done()

	for {
		_, data, err := c.conn.Read(c.ctx)
		if err != nil {
			c.shutdown(err)
			return
		}

		f, err := decodeFrame(data)
		if err != nil {
			c.logger.Warn("ignoring malformed frame", "error", err)
			continue
		}

		switch f.Type {
		case frameBatch:
			if f.Batch == nil {
				continue
			}
			// Our hub never resends an id; servers that retry delivery
			// after a timeout or failover can.
			if f.Batch.ID != "" && c.seen.CheckAndMark(f.Batch.ID) {
				c.logger.Debug("dropping redelivered batch", "batch_id", f.Batch.ID)
				continue
			}
			c.dispatch(*f.Batch)

		case frameValue, frameAck, frameError:
			c.mu.Lock()
			if ch, ok := c.pending[f.ID]; ok {
				delete(c.pending, f.ID)
				ch <- f
			}
			c.mu.Unlock()

		default:
			c.logger.Debug("ignoring frame", "type", f.Type)
		}
	}
}

func (c *Client) dispatch(batch favorites.Batch) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for id, ch := range c.subs {
		select {
		case ch <- batch:
		default:
			c.logger.Warn("dropped batch for slow subscriber", "sub_id", id, "batch_id", batch.ID)
		}
	}
}

func (c *Client) shutdown(cause error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		c.logger.Debug("connection closed")
	} else {
		c.connErr = cause
		c.logger.Warn("connection to sync server lost", "error", cause)
	}

	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
	for id, ch := range c.subs {
		close(ch)
		delete(c.subs, id)
	}
	close(c.done)
}

func (c *Client) unsubscribe(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ch, ok := c.subs[id]; ok {
		delete(c.subs, id)
		close(ch)
	}
}

type clientSubscription struct {
	client *Client
	id     string
	ch     chan favorites.Batch
	done   chan struct{}
	once   sync.Once
}

func (s *clientSubscription) Changes() <-chan favorites.Batch {
	return s.ch
}

func (s *clientSubscription) Close() error {
	s.once.Do(func() {
		close(s.done)
		s.client.unsubscribe(s.id)
	})
	return nil
}
