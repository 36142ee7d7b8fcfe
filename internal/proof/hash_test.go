package proof

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	id "presentia/pkg/domain"
)

func TestRoundCoord(t *testing.T) {
	require.Equal(t, int64(37775), RoundCoord(37.7749))
	require.Equal(t, int64(-122419), RoundCoord(-122.4194))
	require.Equal(t, int64(0), RoundCoord(0))
	require.Equal(t, "37.775", FormatCoord(37.7749))
}

func TestLocationHash(t *testing.T) {
	t.Run("coordinates within rounding distance hash identically", func(t *testing.T) {
		a, err := LocationHash(37.77491, -122.41941)
		require.NoError(t, err)
		b, err := LocationHash(37.77493, -122.41939)
		require.NoError(t, err)
		require.Zero(t, a.Cmp(b))
	})

	t.Run("distinct locations hash differently", func(t *testing.T) {
		a, err := LocationHash(37.7749, -122.4194)
		require.NoError(t, err)
		b, err := LocationHash(40.7128, -74.0060)
		require.NoError(t, err)
		require.NotZero(t, a.Cmp(b))
	})

	t.Run("hemispheres stay distinct", func(t *testing.T) {
		north, err := LocationHash(10.5, 20.5)
		require.NoError(t, err)
		south, err := LocationHash(-10.5, -20.5)
		require.NoError(t, err)
		require.NotZero(t, north.Cmp(south))
	})
}

func TestAbsentLocationHash(t *testing.T) {
	sentinel, err := AbsentLocationHash()
	require.NoError(t, err)

	t.Run("is deterministic", func(t *testing.T) {
		again, err := AbsentLocationHash()
		require.NoError(t, err)
		require.Zero(t, sentinel.Cmp(again))
	})

	t.Run("never collides with a genuine (0,0) fix", func(t *testing.T) {
		nullIsland, err := LocationHash(0, 0)
		require.NoError(t, err)
		require.NotZero(t, sentinel.Cmp(nullIsland))
	})
}

func TestTimestampHash(t *testing.T) {
	base := time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)

	t.Run("seconds within the same minute hash identically", func(t *testing.T) {
		a, err := TimestampHash(base.Add(5 * time.Second))
		require.NoError(t, err)
		b, err := TimestampHash(base.Add(55 * time.Second))
		require.NoError(t, err)
		require.Zero(t, a.Cmp(b))
	})

	t.Run("adjacent minutes hash differently", func(t *testing.T) {
		a, err := TimestampHash(base)
		require.NoError(t, err)
		b, err := TimestampHash(base.Add(time.Minute))
		require.NoError(t, err)
		require.NotZero(t, a.Cmp(b))
	})
}

func TestOrganizationHash(t *testing.T) {
	org := id.OrgID(uuid.New())
	a, err := OrganizationHash(org)
	require.NoError(t, err)
	b, err := OrganizationHash(org)
	require.NoError(t, err)
	require.Zero(t, a.Cmp(b))

	other, err := OrganizationHash(id.OrgID(uuid.New()))
	require.NoError(t, err)
	require.NotZero(t, a.Cmp(other))
}
