package geo

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/campus-carpool/internal/models"
)

func TestDistanceZero(t *testing.T) {
	p := models.GeoPoint{Lat: 33.9, Lon: 35.48}
	assert.Equal(t, 0.0, DistanceKm(p, p))
}

func TestDistancePlanar(t *testing.T) {
	a := models.GeoPoint{Lat: 33.9000, Lon: 35.4800}
	b := models.GeoPoint{Lat: 33.8938, Lon: 35.5018}
	want := math.Sqrt(math.Pow(0.0062*111, 2) + math.Pow(0.0218*111, 2))
	assert.InDelta(t, want, DistanceKm(a, b), 1e-9)
	assert.InDelta(t, 2.5158, DistanceKm(a, b), 1e-4)
}

func TestDistanceOneDegree(t *testing.T) {
	// a degree of longitude counts as 111 km at any latitude
	assert.InDelta(t, 111.0, DistanceKm(models.GeoPoint{Lat: 60, Lon: 10}, models.GeoPoint{Lat: 60, Lon: 11}), 1e-9)
	assert.InDelta(t, 111.0, DistanceKm(models.GeoPoint{Lat: 0, Lon: 0}, models.GeoPoint{Lat: 1, Lon: 0}), 1e-9)
}

func TestDistanceSymmetric(t *testing.T) {
	pts := []models.GeoPoint{
		{Lat: 33.9, Lon: 35.48},
		{Lat: 33.98, Lon: 35.62},
		{Lat: 34.37, Lon: 35.76},
		{Lat: -12.5, Lon: 130.1},
	}
	for _, a := range pts {
		for _, b := range pts {
			assert.Equal(t, DistanceKm(a, b), DistanceKm(b, a))
		}
	}
}

func TestIndexLiveAndGet(t *testing.T) {
	ctx := context.Background()
	idx := NewIndex()
	fixed := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	idx.now = func() time.Time { return fixed }

	require.NoError(t, idx.Upsert(ctx, models.DriverCandidate{ID: "a", Live: true}))
	require.NoError(t, idx.Upsert(ctx, models.DriverCandidate{ID: "b", Live: false}))

	live, err := idx.Live(ctx)
	require.NoError(t, err)
	require.Len(t, live, 1)
	assert.Equal(t, "a", live[0].ID)
	assert.Equal(t, fixed, live[0].Updated)

	d, err := idx.Get(ctx, "b")
	require.NoError(t, err)
	assert.False(t, d.Live)

	_, err = idx.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrDriverNotFound)

	// toggling liveness replaces the record
	require.NoError(t, idx.Upsert(ctx, models.DriverCandidate{ID: "a", Live: false}))
	live, _ = idx.Live(ctx)
	assert.Empty(t, live)
}

func TestCandidateFromRedis(t *testing.T) {
	updated := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	in := models.DriverCandidate{
		ID:           "d1",
		Gender:       models.GenderFemale,
		UniversityID: "aub",
		VehicleClass: models.ClassFourCylinder,
		Live:         true,
	}
	meta := map[string]string{}
	for k, v := range MetaFields(in, updated) {
		meta[k] = v.(string)
	}
	d := candidateFromRedis("d1", &redis.GeoPos{Latitude: 33.9, Longitude: 35.48}, meta)
	assert.Equal(t, models.GenderFemale, d.Gender)
	assert.Equal(t, "aub", d.UniversityID)
	assert.Equal(t, models.ClassFourCylinder, d.VehicleClass)
	assert.True(t, d.Live)
	assert.Equal(t, updated, d.Updated)
	assert.Equal(t, models.GeoPoint{Lat: 33.9, Lon: 35.48}, d.Location)

	missing := candidateFromRedis("d2", nil, meta)
	assert.Error(t, missing.Validate())
}
