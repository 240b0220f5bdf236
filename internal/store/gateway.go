// ABOUTME: Persists the saved-search order list and mapping as two JSON blobs
// ABOUTME: Corrupt or mismatched blobs load as empty instead of failing

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
)

const (
	DefaultOrderKey   = "saved_searches.order"
	DefaultMappingKey = "saved_searches.pairs"
)

// Gateway stores the order list and the tag->query mapping under two
// independent keys of a Blobs store.
type Gateway struct {
	blobs      Blobs
	orderKey   string
	mappingKey string
	logger     *slog.Logger
}

// NewGateway creates a gateway. Empty keys fall back to the defaults.
// Pass nil logger for default.
func NewGateway(blobs Blobs, orderKey, mappingKey string, logger *slog.Logger) *Gateway {
	if orderKey == "" {
		orderKey = DefaultOrderKey
	}
	if mappingKey == "" {
		mappingKey = DefaultMappingKey
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		blobs:      blobs,
		orderKey:   orderKey,
		mappingKey: mappingKey,
		logger:     logger.With("component", "gateway"),
	}
}

// LoadOrder returns the persisted order list.
func (g *Gateway) LoadOrder(ctx context.Context) ([]string, bool, error) {
	data, ok, err := g.load(ctx, g.orderKey)
	if err != nil || !ok {
		return nil, false, err
	}

	tags, err := DecodeOrder(data)
	if err != nil {
		g.logger.Warn("ignoring unreadable order blob", "key", g.orderKey, "error", err)
		return nil, false, nil
	}
	return tags, true, nil
}

// SaveOrder persists the order list.
func (g *Gateway) SaveOrder(ctx context.Context, tags []string) error {
	if tags == nil {
		tags = []string{}
	}
	data, err := json.Marshal(tags)
	if err != nil {
		return fmt.Errorf("encoding order: %w", err)
	}
	return g.blobs.PutBlob(ctx, g.orderKey, data)
}

// LoadMapping returns the persisted tag->query mapping.
func (g *Gateway) LoadMapping(ctx context.Context) (map[string]string, bool, error) {
	data, ok, err := g.load(ctx, g.mappingKey)
	if err != nil || !ok {
		return nil, false, err
	}

	searches, err := DecodeMapping(data)
	if err != nil {
		g.logger.Warn("ignoring unreadable mapping blob", "key", g.mappingKey, "error", err)
		return nil, false, nil
	}
	return searches, true, nil
}

// SaveMapping persists the tag->query mapping.
func (g *Gateway) SaveMapping(ctx context.Context, searches map[string]string) error {
	if searches == nil {
		searches = map[string]string{}
	}
	data, err := json.Marshal(searches)
	if err != nil {
		return fmt.Errorf("encoding mapping: %w", err)
	}
	return g.blobs.PutBlob(ctx, g.mappingKey, data)
}

func (g *Gateway) load(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := g.blobs.GetBlob(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading %s: %w", key, err)
	}
	return data, true, nil
}

// DecodeOrder parses an order blob. Anything other than a JSON list of
// strings is ErrShapeMismatch.
func DecodeOrder(data []byte) ([]string, error) {
	var tags []string
	if err := json.Unmarshal(data, &tags); err != nil {
		return nil, fmt.Errorf("%w: order: %v", ErrShapeMismatch, err)
	}
	return tags, nil
}

// DecodeMapping parses a mapping blob. Anything other than a JSON object of
// string values is ErrShapeMismatch.
func DecodeMapping(data []byte) (map[string]string, error) {
	var searches map[string]string
	if err := json.Unmarshal(data, &searches); err != nil {
		return nil, fmt.Errorf("%w: mapping: %v", ErrShapeMismatch, err)
	}
	return searches, nil
}
