package indexer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swapledger/internal/model"
)

func hashSource() *fakeSource {
	s := &fakeSource{}
	s.add(deployEvent())
	for i := uint64(1); i <= 6; i++ {
		s.add(transferEvent(100+uint32(i), "ordi", i))
	}
	return s
}

func TestContentHashIsIndependentOfPageSize(t *testing.T) {
	ctx := context.Background()
	s := hashSource()

	a, err := ContentHash(ctx, s, 1, 6, 1)
	require.NoError(t, err)
	b, err := ContentHash(ctx, s, 1, 6, 4)
	require.NoError(t, err)
	c, err := ContentHash(ctx, s, 1, 6, 100)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Equal(t, a, c)
	assert.NotEqual(t, EmptyHash, a)
}

func TestContentHashEmptyWindow(t *testing.T) {
	s := hashSource()
	h, err := ContentHash(context.Background(), s, 3, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, EmptyHash, h)
	assert.Zero(t, s.fetches)
}

func TestContentHashDetectsChanges(t *testing.T) {
	ctx := context.Background()
	s := hashSource()
	before, err := ContentHash(ctx, s, 1, 6, 2)
	require.NoError(t, err)

	s.events[4].Content = []byte(`{"amount":"40","tick":"ordi"}`)
	changed, err := ContentHash(ctx, s, 1, 6, 2)
	require.NoError(t, err)
	assert.NotEqual(t, before, changed)

	s = hashSource()
	s.events[4].Height = model.UnconfirmedHeight
	moved, err := ContentHash(ctx, s, 1, 6, 2)
	require.NoError(t, err)
	assert.NotEqual(t, before, moved)

	s = hashSource()
	s.events[2].Data = map[string]string{"note": "x"}
	withData, err := ContentHash(ctx, s, 1, 6, 2)
	require.NoError(t, err)
	assert.NotEqual(t, before, withData)
}

func TestContentHashWindowBoundaries(t *testing.T) {
	ctx := context.Background()
	s := hashSource()
	full, err := ContentHash(ctx, s, 1, 6, 3)
	require.NoError(t, err)

	s.events[0].Content = []byte(`{}`)
	outside, err := ContentHash(ctx, s, 1, 6, 3)
	require.NoError(t, err)
	assert.Equal(t, full, outside)

	shorter, err := ContentHash(ctx, s, 1, 5, 3)
	require.NoError(t, err)
	assert.NotEqual(t, full, shorter)
}

func TestAppendEventIsUnambiguous(t *testing.T) {
	a := transferEvent(100, "ordi", 1)
	b := transferEvent(100, "ordi", 1)
	a.From, a.To = "ab", "c"
	b.From, b.To = "a", "bc"
	assert.NotEqual(t, appendEvent(nil, a), appendEvent(nil, b))
}
