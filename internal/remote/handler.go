// ABOUTME: Websocket endpoint that attaches each connection to the hub as a device
// ABOUTME: Serves get/set/remove/sync requests and streams the device's change batches

package remote

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
	"github.com/google/uuid"
)

// DeviceParam is the query parameter a client uses to identify itself.
const DeviceParam = "device"

// Handler upgrades HTTP requests to sync sessions against a hub.
type Handler struct {
	hub    *Hub
	logger *slog.Logger

	// OriginPatterns is passed to websocket.Accept. Empty means same-origin only.
	OriginPatterns []string
}

// NewHandler creates a websocket handler for hub. Pass nil logger for default.
func NewHandler(hub *Hub, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		hub:    hub,
		logger: logger.With("component", "sync-handler"),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	deviceID := r.URL.Query().Get(DeviceParam)
	if deviceID == "" {
		deviceID = uuid.New().String()
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.OriginPatterns,
	})
	if err != nil {
		h.logger.Error("websocket accept failed", "error", err)
		return
	}
	defer conn.CloseNow()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	device := h.hub.Connect(deviceID)
	sub, err := h.hub.Subscribe(ctx, device.ID())
	if err != nil {
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}

	logger := h.logger.With("device_id", device.ID())
	logger.Info("device connected")

	writerDone := make(chan struct{})
	defer func() {
		cancel()
		_ = sub.Close()
		<-writerDone
	}()

	go func() {
		defer close(writerDone)
		defer cancel()
		for batch := range sub.Changes() {
			b := batch
			if err := h.write(ctx, conn, frame{Type: frameBatch, ID: b.ID, Batch: &b}); err != nil {
				logger.Debug("batch write failed", "error", err)
				return
			}
		}
	}()

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure || errors.Is(err, context.Canceled) {
				logger.Info("device disconnected")
			} else {
				logger.Debug("device connection ended", "error", err)
			}
			return
		}

		req, err := decodeFrame(data)
		if err != nil {
			logger.Warn("ignoring malformed frame", "error", err)
			continue
		}

		reply, ok := h.handle(ctx, device, req)
		if !ok {
			continue
		}
		if err := h.write(ctx, conn, reply); err != nil {
			logger.Debug("reply write failed", "error", err)
			return
		}
	}
}

// handle serves one request. Sync requests get no reply.
func (h *Handler) handle(ctx context.Context, device *Device, req frame) (frame, bool) {
	switch req.Type {
	case frameGet:
		v, found, _ := device.Get(ctx, req.Key)
		reply := frame{Type: frameValue, ID: req.ID, Key: req.Key, Found: found}
		if found {
			reply.Value = &v
		}
		return reply, true

	case frameSet:
		if req.Value == nil {
			return frame{Type: frameError, ID: req.ID, Error: "set without value"}, true
		}
		if err := device.Set(ctx, req.Key, *req.Value); err != nil {
			return frame{Type: frameError, ID: req.ID, Error: err.Error()}, true
		}
		return frame{Type: frameAck, ID: req.ID}, true

	case frameRemove:
		if err := device.Remove(ctx, req.Key); err != nil {
			return frame{Type: frameError, ID: req.ID, Error: err.Error()}, true
		}
		return frame{Type: frameAck, ID: req.ID}, true

	case frameSync:
		device.RequestSync()
		return frame{}, false

	default:
		return frame{Type: frameError, ID: req.ID, Error: "unknown frame type " + string(req.Type)}, true
	}
}

func (h *Handler) write(ctx context.Context, conn *websocket.Conn, f frame) error {
	data, err := encodeFrame(f)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, data)
}
