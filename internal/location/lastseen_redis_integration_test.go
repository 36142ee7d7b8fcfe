//go:build integration

package location_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"presentia/internal/location"
	id "presentia/pkg/domain"
	"presentia/pkg/testutil/containers"
)

func TestRedisLastSeen(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	rc := containers.NewRedisContainer(t)
	store := location.NewRedisLastSeen(rc.Client, time.Hour)
	owner := id.OwnerID(uuid.New())

	t.Run("miss returns nil without error", func(t *testing.T) {
		obs, err := store.Get(ctx, owner)
		require.NoError(t, err)
		require.Nil(t, obs)
	})

	t.Run("round-trips an observation", func(t *testing.T) {
		seen := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
		require.NoError(t, store.Put(ctx, owner, location.Observation{
			Point: location.Point{Lat: 37.775, Lng: -122.419},
			Seen:  seen,
		}))

		obs, err := store.Get(ctx, owner)
		require.NoError(t, err)
		require.NotNil(t, obs)
		require.InDelta(t, 37.775, obs.Point.Lat, 1e-9)
		require.True(t, obs.Seen.Equal(seen))
	})

	t.Run("overwrites with the newest observation", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, owner, location.Observation{
			Point: location.Point{Lat: 40.0, Lng: -100.0},
			Seen:  time.Now().UTC(),
		}))
		obs, err := store.Get(ctx, owner)
		require.NoError(t, err)
		require.InDelta(t, 40.0, obs.Point.Lat, 1e-9)
	})
}
