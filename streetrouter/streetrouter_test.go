package streetrouter_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nextstop-transit/transferpatterns/model"
	"github.com/nextstop-transit/transferpatterns/streetrouter"
)

func TestHaversineRouterWalkWithinRange(t *testing.T) {
	r := streetrouter.NewHaversineRouter(1000)

	a := model.Stop{Label: "A", Lat: 40.0, Lon: -73.0}
	b := model.Stop{Label: "B", Lat: 40.001, Lon: -73.0} // ~111m north

	path, ok := r.Walk(a, b, time.Now())
	require.True(t, ok)
	assert.Greater(t, path.Duration(), time.Duration(0))
}

func TestHaversineRouterRejectsBeyondMaxDistance(t *testing.T) {
	r := streetrouter.NewHaversineRouter(50)

	a := model.Stop{Label: "A", Lat: 40.0, Lon: -73.0}
	b := model.Stop{Label: "B", Lat: 40.01, Lon: -73.0} // ~1.1km

	_, ok := r.Walk(a, b, time.Now())
	assert.False(t, ok)
}

func TestHaversineDistanceMetersSymmetric(t *testing.T) {
	d1 := streetrouter.HaversineDistanceMeters(40.0, -73.0, 40.01, -73.01)
	d2 := streetrouter.HaversineDistanceMeters(40.01, -73.01, 40.0, -73.0)
	assert.InDelta(t, d1, d2, 1e-9)
}
