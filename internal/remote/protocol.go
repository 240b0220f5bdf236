// ABOUTME: JSON frames exchanged between sync clients and the sync server
// ABOUTME: Requests carry an id that the matching reply echoes back

package remote

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/2389/savedsearch/internal/favorites"
)

type frameType string

const (
	// client -> server
	frameSet    frameType = "set"
	frameRemove frameType = "remove"
	frameGet    frameType = "get"
	frameSync   frameType = "sync"

	// server -> client
	frameValue frameType = "value"
	frameAck   frameType = "ack"
	frameError frameType = "error"
	frameBatch frameType = "batch"
)

type frame struct {
	Type  frameType        `json:"type"`
	ID    string           `json:"id,omitempty"`
	Key   string           `json:"key,omitempty"`
	Value *string          `json:"value,omitempty"`
	Found bool             `json:"found,omitempty"`
	Error string           `json:"error,omitempty"`
	Batch *favorites.Batch `json:"batch,omitempty"`
}

func encodeFrame(f frame) ([]byte, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("encoding %s frame: %w", f.Type, err)
	}
	return data, nil
}

func decodeFrame(data []byte) (frame, error) {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		return frame{}, fmt.Errorf("decoding frame: %w", err)
	}
	if f.Type == "" {
		return frame{}, errors.New("decoding frame: missing type")
	}
	return f, nil
}
