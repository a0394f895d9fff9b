package feedcache_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nextstop-transit/transferpatterns/feedcache"
	"github.com/nextstop-transit/transferpatterns/gtfsimport"
	"github.com/nextstop-transit/transferpatterns/model"
)

func TestPutThenGetRoundTrips(t *testing.T) {
	cache, err := feedcache.Open(":memory:")
	require.NoError(t, err)
	defer cache.Close()

	feed := &gtfsimport.Feed{
		Stops: []model.Stop{{Label: "A", Lat: 1, Lon: 2}},
		Patterns: []*model.TripPattern{{
			Code:  "P1",
			Stops: []model.Stop{{Label: "A"}},
		}},
	}

	require.NoError(t, cache.Put("deadbeef", feed))

	got, ok, err := cache.Get("deadbeef")
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, got.Stops, 1)
	assert.Equal(t, "A", got.Stops[0].Label)
	require.Len(t, got.Patterns, 1)
	assert.Equal(t, "P1", got.Patterns[0].Code)
}

func TestGetMissingReturnsFalse(t *testing.T) {
	cache, err := feedcache.Open(":memory:")
	require.NoError(t, err)
	defer cache.Close()

	_, ok, err := cache.Get("nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPutOverwritesExistingEntry(t *testing.T) {
	cache, err := feedcache.Open(":memory:")
	require.NoError(t, err)
	defer cache.Close()

	first := &gtfsimport.Feed{Stops: []model.Stop{{Label: "A"}}}
	second := &gtfsimport.Feed{Stops: []model.Stop{{Label: "A"}, {Label: "B"}}}

	require.NoError(t, cache.Put("key", first))
	require.NoError(t, cache.Put("key", second))

	got, ok, err := cache.Get("key")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, got.Stops, 2)
}
