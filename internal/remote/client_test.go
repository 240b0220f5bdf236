// ABOUTME: Tests for the websocket sync client against a real handler over httptest
// ABOUTME: Covers request replies, batch delivery, redelivery dedupe and connection loss

package remote

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/2389/savedsearch/internal/favorites"
)

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func newSyncServer(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub(nil)
	srv := httptest.NewServer(NewHandler(hub, nil))
	t.Cleanup(func() {
		srv.Close()
		hub.Close()
	})
	return hub, srv
}

func dialTest(t *testing.T, srv *httptest.Server, deviceID string) *Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()
	c, err := Dial(ctx, ClientOptions{URL: wsURL(srv), DeviceID: deviceID, RequestTimeout: 2 * time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestClient_SetGetRemove(t *testing.T) {
	hub, srv := newSyncServer(t)
	c := dialTest(t, srv, "phone")

	require.NoError(t, c.Set(t.Context(), "sports", "#nba"))
	v, ok := hub.Get("sports")
	assert.True(t, ok)
	assert.Equal(t, "#nba", v)

	got, found, err := c.Get(t.Context(), "sports")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "#nba", got)

	require.NoError(t, c.Remove(t.Context(), "sports"))
	_, found, err = c.Get(t.Context(), "sports")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestClient_ReceivesOtherDevicesChanges(t *testing.T) {
	hub, srv := newSyncServer(t)
	c := dialTest(t, srv, "laptop")

	sub, err := c.Subscribe(t.Context())
	require.NoError(t, err)
	defer sub.Close()

	// The server subscribes the device once the connection is up
	require.Eventually(t, func() bool { return hub.Subscribers() == 1 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, hub.Connect("phone").Set(t.Context(), "sports", "#nba"))
	batch := receiveBatch(t, sub.Changes())
	require.Len(t, batch.Changes, 1)
	assert.Equal(t, favorites.ReasonServerChange, batch.Changes[0].Reason)
	assert.Equal(t, "sports", batch.Changes[0].Key)

	require.NoError(t, c.Set(t.Context(), "news", "#breaking"))
	echo := receiveBatch(t, sub.Changes())
	require.Len(t, echo.Changes, 1)
	assert.Equal(t, favorites.ReasonLocalEcho, echo.Changes[0].Reason)
}

func TestClient_RequestSync(t *testing.T) {
	hub, srv := newSyncServer(t)
	require.NoError(t, hub.Connect("other").Set(t.Context(), "a", "1"))

	c := dialTest(t, srv, "")
	assert.NotEmpty(t, c.DeviceID())
	sub, err := c.Subscribe(t.Context())
	require.NoError(t, err)
	defer sub.Close()
	require.Eventually(t, func() bool { return hub.Subscribers() == 1 }, 2*time.Second, 5*time.Millisecond)

	c.RequestSync()

	batch := receiveBatch(t, sub.Changes())
	require.Len(t, batch.Changes, 1)
	assert.Equal(t, favorites.ReasonInitialSync, batch.Changes[0].Reason)
	require.NotNil(t, batch.Changes[0].Value)
	assert.Equal(t, "1", *batch.Changes[0].Value)
}

func TestClient_DropsRedeliveredBatches(t *testing.T) {
	first := favorites.Batch{ID: "b1", Changes: []favorites.Change{{Key: "a", Value: favorites.StringPtr("1")}}}
	second := favorites.Batch{ID: "b2", Changes: []favorites.Change{{Key: "b", Value: favorites.StringPtr("2")}}}

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.CloseNow()

		<-release
		for _, b := range []favorites.Batch{first, first, second} {
			data, _ := encodeFrame(frame{Type: frameBatch, ID: b.ID, Batch: &b})
			if err := conn.Write(r.Context(), websocket.MessageText, data); err != nil {
				return
			}
		}
		_, _, _ = conn.Read(r.Context())
	}))
	defer srv.Close()

	c := dialTest(t, srv, "phone")
	sub, err := c.Subscribe(t.Context())
	require.NoError(t, err)
	defer sub.Close()
	close(release)

	assert.Equal(t, "b1", receiveBatch(t, sub.Changes()).ID)
	assert.Equal(t, "b2", receiveBatch(t, sub.Changes()).ID)
	requireNoBatch(t, sub.Changes())
}

func TestClient_ServerErrorSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.CloseNow()

		for {
			_, data, err := conn.Read(r.Context())
			if err != nil {
				return
			}
			req, _ := decodeFrame(data)
			reply, _ := encodeFrame(frame{Type: frameError, ID: req.ID, Error: "quota exceeded"})
			if err := conn.Write(r.Context(), websocket.MessageText, reply); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	c := dialTest(t, srv, "phone")
	err := c.Set(t.Context(), "k", "v")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestClient_CloseStopsCalls(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	hub := NewHub(nil)
	srv := httptest.NewServer(NewHandler(hub, nil))

	c, err := Dial(t.Context(), ClientOptions{URL: wsURL(srv), DeviceID: "phone"})
	require.NoError(t, err)
	sub, err := c.Subscribe(t.Context())
	require.NoError(t, err)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	err = c.Set(t.Context(), "k", "v")
	assert.ErrorIs(t, err, ErrClientClosed)
	_, err = c.Subscribe(t.Context())
	assert.ErrorIs(t, err, ErrClientClosed)
	c.RequestSync()

	_, ok := <-sub.Changes()
	assert.False(t, ok, "subscriptions end with the client")
	require.NoError(t, sub.Close())

	srv.Close()
	hub.Close()
}

func TestClient_ConnectionLoss(t *testing.T) {
	hub := NewHub(nil)
	srv := httptest.NewServer(NewHandler(hub, nil))
	defer srv.Close()

	c, err := Dial(t.Context(), ClientOptions{URL: wsURL(srv), DeviceID: "phone"})
	require.NoError(t, err)
	defer c.Close()
	require.Eventually(t, func() bool { return hub.Subscribers() == 1 }, 2*time.Second, 5*time.Millisecond)

	// Closing the hub ends the device's feed and the server drops the session
	hub.Close()

	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("client did not notice the dropped connection")
	}

	err = c.Set(t.Context(), "k", "v")
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestClient_DialErrors(t *testing.T) {
	_, err := Dial(t.Context(), ClientOptions{})
	assert.Error(t, err)

	ctx, cancel := context.WithTimeout(t.Context(), time.Second)
	defer cancel()
	_, err = Dial(ctx, ClientOptions{URL: "ws://127.0.0.1:1/sync"})
	assert.Error(t, err)
}

func TestModel_OverWebsocket(t *testing.T) {
	hub, srv := newSyncServer(t)
	c := dialTest(t, srv, "laptop")

	seen := make(chan string, 8)
	m, err := favorites.Open(t.Context(), favorites.Options{
		Persistence: newMemGateway(),
		Remote:      c,
		Observer:    favorites.ObserverFunc(func(tag string) { seen <- tag }),
	})
	require.NoError(t, err)
	defer m.Close()
	require.Eventually(t, func() bool { return hub.Subscribers() == 1 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, hub.Connect("phone").Set(t.Context(), "sports", "#nba"))
	select {
	case tag := <-seen:
		assert.Equal(t, "sports", tag)
	case <-time.After(2 * time.Second):
		t.Fatal("change never reached the model")
	}

	_, err = m.SaveQuery(t.Context(), "news", "#breaking")
	require.NoError(t, err)
	v, ok := hub.Get("news")
	assert.True(t, ok)
	assert.Equal(t, "#breaking", v)
}
