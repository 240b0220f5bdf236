// ABOUTME: Tests for the order/mapping Gateway over Blobs
// ABOUTME: Covers absent data, corrupt blobs, round trips and write minimality

package store

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/savedsearch/internal/favorites"
)

var _ favorites.Persistence = (*Gateway)(nil)

func TestGateway_AbsentDataLoadsEmpty(t *testing.T) {
	gw := NewGateway(NewMockStore(), "", "", nil)

	order, ok, err := gw.LoadOrder(t.Context())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, order)

	mapping, ok, err := gw.LoadMapping(t.Context())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, mapping)
}

func TestGateway_CorruptBlobsLoadEmpty(t *testing.T) {
	blobs := NewMockStore()
	ctx := t.Context()
	require.NoError(t, blobs.PutBlob(ctx, DefaultOrderKey, []byte(`{"not":"a list"}`)))
	require.NoError(t, blobs.PutBlob(ctx, DefaultMappingKey, []byte(`{"sports": 42}`)))
	gw := NewGateway(blobs, "", "", nil)

	order, ok, err := gw.LoadOrder(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, order)

	mapping, ok, err := gw.LoadMapping(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, mapping)
}

func TestDecode_ShapeMismatch(t *testing.T) {
	_, err := DecodeOrder([]byte(`[1, 2]`))
	assert.ErrorIs(t, err, ErrShapeMismatch)

	_, err = DecodeOrder([]byte(`garbage`))
	assert.ErrorIs(t, err, ErrShapeMismatch)

	_, err = DecodeMapping([]byte(`["a"]`))
	assert.ErrorIs(t, err, ErrShapeMismatch)

	tags, err := DecodeOrder([]byte(`["a","b"]`))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, tags)
}

func TestGateway_IOErrorsPropagate(t *testing.T) {
	blobs := NewMockStore()
	blobs.FailWith(errors.New("disk gone"))
	gw := NewGateway(blobs, "", "", nil)

	_, _, err := gw.LoadOrder(t.Context())
	assert.Error(t, err)
	_, _, err = gw.LoadMapping(t.Context())
	assert.Error(t, err)
}

func TestGateway_CustomKeys(t *testing.T) {
	blobs := NewMockStore()
	gw := NewGateway(blobs, "o", "m", nil)

	require.NoError(t, gw.SaveOrder(t.Context(), []string{"a"}))
	require.NoError(t, gw.SaveMapping(t.Context(), map[string]string{"a": "x"}))

	assert.Equal(t, 1, blobs.Writes("o"))
	assert.Equal(t, 1, blobs.Writes("m"))
	assert.Zero(t, blobs.Writes(DefaultOrderKey))
}

func TestGateway_SavesEmptyAsEmptyJSON(t *testing.T) {
	blobs := NewMockStore()
	gw := NewGateway(blobs, "", "", nil)

	require.NoError(t, gw.SaveOrder(t.Context(), nil))
	require.NoError(t, gw.SaveMapping(t.Context(), nil))

	raw, err := blobs.GetBlob(t.Context(), DefaultOrderKey)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(raw))
	raw, err = blobs.GetBlob(t.Context(), DefaultMappingKey)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(raw))
}

func TestGateway_RoundTripThroughSQLite(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "searches.db")
	ctx := t.Context()

	first, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	gw := NewGateway(first, "", "", nil)
	require.NoError(t, gw.SaveOrder(ctx, []string{"a", "b"}))
	require.NoError(t, gw.SaveMapping(ctx, map[string]string{"a": "x", "b": "y"}))
	require.NoError(t, first.Close())

	second, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer second.Close()

	engine, err := favorites.NewEngine(ctx, NewGateway(second, "", "", nil), nil, nil)
	require.NoError(t, err)

	s := engine.Store()
	assert.Equal(t, 2, s.Count())
	tag, err := s.TagAt(0)
	require.NoError(t, err)
	assert.Equal(t, "a", tag)
	tag, err = s.TagAt(1)
	require.NoError(t, err)
	assert.Equal(t, "b", tag)
	q, ok := s.QueryFor("a")
	assert.True(t, ok)
	assert.Equal(t, "x", q)
	q, ok = s.QueryFor("b")
	assert.True(t, ok)
	assert.Equal(t, "y", q)
}

func TestGateway_EngineWritesAreMinimal(t *testing.T) {
	blobs := NewMockStore()
	ctx := t.Context()
	engine, err := favorites.NewEngine(ctx, NewGateway(blobs, "", "", nil), nil, nil)
	require.NoError(t, err)

	_, err = engine.SaveQuery(ctx, "a", "1", false)
	require.NoError(t, err)
	_, err = engine.SaveQuery(ctx, "b", "2", false)
	require.NoError(t, err)
	assert.Equal(t, 2, blobs.Writes(DefaultOrderKey))
	assert.Equal(t, 2, blobs.Writes(DefaultMappingKey))

	require.NoError(t, engine.Move(ctx, 0, 1))
	assert.Equal(t, 3, blobs.Writes(DefaultOrderKey))
	assert.Equal(t, 2, blobs.Writes(DefaultMappingKey))

	_, err = engine.SaveQuery(ctx, "a", "11", false)
	require.NoError(t, err)
	assert.Equal(t, 3, blobs.Writes(DefaultOrderKey))
	assert.Equal(t, 3, blobs.Writes(DefaultMappingKey))
}
