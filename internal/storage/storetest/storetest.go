// Package storetest holds the behaviour every traveler.Store backend must share.
package storetest

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holocons/waypoints/internal/traveler"
	"github.com/holocons/waypoints/internal/world"
)

// Run exercises store, which must start empty.
func Run(t *testing.T, store traveler.Store) {
	t.Helper()
	ctx := context.Background()

	_, err := store.Load(ctx)
	require.ErrorIs(t, err, traveler.ErrNoSnapshot)

	home := world.Location{World: "world", X: -12, Y: 70, Z: 44}
	first := map[string]traveler.Record{
		uuid.NewString(): {
			Tokens: 3,
			Home:   &home,
			Waypoints: []world.Ref{
				{World: "world", Chunk: world.ChunkAt(-1, 2)},
				{World: "world", Chunk: world.ChunkAt(7, -9)},
			},
		},
		uuid.NewString(): {Tokens: 0, Waypoints: []world.Ref{}},
	}
	require.NoError(t, store.Save(ctx, first))

	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, got)

	second := map[string]traveler.Record{
		uuid.NewString(): {Tokens: 1, Waypoints: []world.Ref{}},
	}
	require.NoError(t, store.Save(ctx, second))

	got, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, second, got, "save replaces the previous snapshot")

	require.NoError(t, store.Save(ctx, map[string]traveler.Record{}))
	_, err = store.Load(ctx)
	assert.ErrorIs(t, err, traveler.ErrNoSnapshot, "an empty snapshot loads as missing")
}
