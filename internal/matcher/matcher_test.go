package matcher

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/example/campus-carpool/internal/geo"
	"github.com/example/campus-carpool/internal/models"
)

var campus = models.GeoPoint{Lat: 33.9, Lon: 35.48}

func driver(id string, g models.Gender, uni string, live bool) models.DriverCandidate {
	return models.DriverCandidate{
		ID:           id,
		Gender:       g,
		UniversityID: uni,
		Location:     campus,
		VehicleClass: models.ClassFourCylinder,
		Live:         live,
	}
}

func ids(ds []models.DriverCandidate) []string {
	out := make([]string, 0, len(ds))
	for _, d := range ds {
		out = append(out, d.ID)
	}
	return out
}

func TestFilter_SameGenderFemale(t *testing.T) {
	pc := models.PassengerConstraints{Gender: models.GenderFemale, UniversityID: "aub", Preference: models.PreferSameGender}
	pool := []models.DriverCandidate{
		driver("f1", models.GenderFemale, "aub", true),
		driver("m1", models.GenderMale, "aub", true),
		driver("f2", models.GenderFemale, "aub", true),
	}
	res, err := FilterEligibleDrivers(pc, pool)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"f1", "f2"}, ids(res.Eligible))
	assert.Empty(t, res.Rejected)
}

func TestFilter_MalformedCandidateExcluded(t *testing.T) {
	pc := models.PassengerConstraints{Gender: models.GenderMale, UniversityID: "aub", Preference: models.PreferAnyGender}
	bad := driver("bad", models.GenderMale, "aub", true)
	bad.Location.Lon = 200
	pool := []models.DriverCandidate{
		driver("a", models.GenderMale, "aub", true),
		bad,
		driver("b", models.GenderFemale, "aub", true),
	}
	res, err := FilterEligibleDrivers(pc, pool)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids(res.Eligible))
	require.Len(t, res.Rejected, 1)
	assert.Equal(t, "bad", res.Rejected[0].DriverID)
	assert.ErrorIs(t, res.Rejected[0].Err, models.ErrInvalidCandidate)
	assert.ErrorIs(t, res.Rejected[0].Err, models.ErrInvalidDistance)
}

func TestFilter_InvalidPreference(t *testing.T) {
	pc := models.PassengerConstraints{Gender: models.GenderMale, UniversityID: "aub", Preference: "nearby"}
	_, err := FilterEligibleDrivers(pc, []models.DriverCandidate{driver("a", models.GenderMale, "aub", true)})
	assert.ErrorIs(t, err, models.ErrInvalidConstraint)
}

func TestFilter_AffiliationAndLiveness(t *testing.T) {
	pc := models.PassengerConstraints{Gender: models.GenderMale, UniversityID: "lau", Preference: models.PreferAnyGender}
	pool := []models.DriverCandidate{
		driver("other-uni", models.GenderMale, "aub", true),
		driver("offline", models.GenderMale, "lau", false),
		driver("ok", models.GenderFemale, "lau", true),
	}
	res, err := FilterEligibleDrivers(pc, pool)
	require.NoError(t, err)
	assert.Equal(t, []string{"ok"}, ids(res.Eligible))
}

func TestFilter_Duplicates(t *testing.T) {
	pc := models.PassengerConstraints{Gender: models.GenderMale, UniversityID: "aub", Preference: models.PreferAnyGender}
	d := driver("a", models.GenderMale, "aub", true)
	res, err := FilterEligibleDrivers(pc, []models.DriverCandidate{d, d, driver("b", models.GenderMale, "aub", true), d})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids(res.Eligible))
}

func TestFilter_EmptyPool(t *testing.T) {
	pc := models.PassengerConstraints{Gender: models.GenderMale, UniversityID: "aub", Preference: models.PreferAnyGender}
	res, err := FilterEligibleDrivers(pc, nil)
	require.NoError(t, err)
	assert.Empty(t, res.Eligible)
}

// randomPool mixes universities, genders, liveness and the odd bad record.
func randomPool(r *rand.Rand, n int) []models.DriverCandidate {
	unis := []string{"aub", "lau", "ndu"}
	genders := []models.Gender{models.GenderMale, models.GenderFemale}
	pool := make([]models.DriverCandidate, 0, n)
	for i := 0; i < n; i++ {
		d := driver(fmt.Sprintf("d%d", i), genders[r.Intn(2)], unis[r.Intn(len(unis))], r.Intn(4) != 0)
		d.Location = models.GeoPoint{Lat: 33.8 + r.Float64()*0.2, Lon: 35.4 + r.Float64()*0.2}
		if r.Intn(10) == 0 {
			d.Location.Lat = 95
		}
		pool = append(pool, d)
	}
	return pool
}

func TestFilter_Properties(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	for iter := 0; iter < 200; iter++ {
		pool := randomPool(r, 30)
		g := []models.Gender{models.GenderMale, models.GenderFemale}[r.Intn(2)]
		same := models.PassengerConstraints{Gender: g, UniversityID: "aub", Preference: models.PreferSameGender}
		anyPref := same
		anyPref.Preference = models.PreferAnyGender

		sameRes, err := FilterEligibleDrivers(same, pool)
		require.NoError(t, err)
		for _, d := range sameRes.Eligible {
			assert.Equal(t, g, d.Gender)
			assert.True(t, d.Live)
			assert.Equal(t, "aub", d.UniversityID)
		}

		// with "any" the result only depends on affiliation and liveness
		anyRes, err := FilterEligibleDrivers(anyPref, pool)
		require.NoError(t, err)
		var want []string
		for _, d := range pool {
			if d.Validate() == nil && d.Live && d.UniversityID == "aub" {
				want = append(want, d.ID)
			}
		}
		assert.ElementsMatch(t, want, ids(anyRes.Eligible))

		flipped := make([]models.DriverCandidate, len(pool))
		for i, d := range pool {
			if d.Gender == models.GenderMale {
				d.Gender = models.GenderFemale
			} else {
				d.Gender = models.GenderMale
			}
			flipped[i] = d
		}
		flippedRes, err := FilterEligibleDrivers(anyPref, flipped)
		require.NoError(t, err)
		assert.ElementsMatch(t, ids(anyRes.Eligible), ids(flippedRes.Eligible))

		// set is independent of input order
		shuffled := append([]models.DriverCandidate(nil), pool...)
		r.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		shuffledRes, err := FilterEligibleDrivers(same, shuffled)
		require.NoError(t, err)
		assert.ElementsMatch(t, ids(sameRes.Eligible), ids(shuffledRes.Eligible))
	}
}

func TestFilter_LogsRejections(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	f := NewFilter(zap.New(core))
	bad := driver("bad", models.GenderMale, "aub", true)
	bad.Location.Lat = -91

	out, err := f.Eligible(models.PassengerConstraints{Gender: models.GenderMale, UniversityID: "aub", Preference: models.PreferAnyGender},
		[]models.DriverCandidate{bad, driver("ok", models.GenderMale, "aub", true)})
	require.NoError(t, err)
	assert.Equal(t, []string{"ok"}, ids(out))

	entries := logs.FilterMessage("excluded malformed driver record").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "bad", entries[0].ContextMap()["driver_id"])
}

type fakeLive struct {
	drivers []models.DriverCandidate
	err     error
}

func (f fakeLive) Live(context.Context) ([]models.DriverCandidate, error) { return f.drivers, f.err }

func TestService_NearbyEligibleOrdersByDistance(t *testing.T) {
	far := driver("far", models.GenderMale, "aub", true)
	far.Location = models.GeoPoint{Lat: 33.95, Lon: 35.48}
	near := driver("near", models.GenderMale, "aub", true)
	near.Location = models.GeoPoint{Lat: 33.901, Lon: 35.48}
	mid := driver("mid", models.GenderMale, "aub", true)
	mid.Location = models.GeoPoint{Lat: 33.92, Lon: 35.48}

	s := &Service{Drivers: fakeLive{drivers: []models.DriverCandidate{far, near, mid}}, Filter: NewFilter(nil), DefaultSpeedMps: 10}
	pc := models.PassengerConstraints{Gender: models.GenderMale, UniversityID: "aub", Preference: models.PreferAnyGender}

	out, err := s.NearbyEligible(context.Background(), pc, campus)
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, "near", out[0].ID)
	assert.Equal(t, "mid", out[1].ID)
	assert.Equal(t, "far", out[2].ID)
	assert.InDelta(t, 0.111, out[0].DistanceKm, 1e-6)
	assert.InDelta(t, 11.1, out[0].ETASeconds, 1e-6)

	s.TopN = 2
	out, err = s.NearbyEligible(context.Background(), pc, campus)
	require.NoError(t, err)
	assert.Len(t, out, 2)
}

func TestService_NearbyEligibleErrors(t *testing.T) {
	pc := models.PassengerConstraints{Gender: models.GenderMale, UniversityID: "aub", Preference: models.PreferAnyGender}
	s := &Service{Drivers: fakeLive{}, Filter: NewFilter(nil)}

	_, err := s.NearbyEligible(context.Background(), pc, models.GeoPoint{Lat: 100})
	assert.ErrorIs(t, err, models.ErrInvalidDistance)

	boom := errors.New("redis down")
	s.Drivers = fakeLive{err: boom}
	_, err = s.NearbyEligible(context.Background(), pc, campus)
	assert.ErrorIs(t, err, boom)

	s.Drivers = fakeLive{}
	pc.Preference = ""
	_, err = s.NearbyEligible(context.Background(), pc, campus)
	assert.ErrorIs(t, err, models.ErrInvalidConstraint)
}

func TestFilter_EligibleBatch(t *testing.T) {
	pool := []models.DriverCandidate{
		driver("f-aub", models.GenderFemale, "aub", true),
		driver("m-aub", models.GenderMale, "aub", true),
		driver("f-lau", models.GenderFemale, "lau", true),
	}
	passengers := []models.PassengerConstraints{
		{Gender: models.GenderFemale, UniversityID: "aub", Preference: models.PreferSameGender},
		{Gender: models.GenderMale, UniversityID: "aub", Preference: models.PreferAnyGender},
		{Gender: models.GenderFemale, UniversityID: "lau", Preference: models.PreferSameGender},
		{Gender: models.GenderFemale, UniversityID: "lau", Preference: "bogus"},
	}
	res := NewFilter(nil).EligibleBatch(passengers, pool)
	require.Len(t, res, 4)
	assert.Equal(t, []string{"f-aub"}, ids(res[0].Drivers))
	assert.Equal(t, []string{"f-aub", "m-aub"}, ids(res[1].Drivers))
	assert.Equal(t, []string{"f-lau"}, ids(res[2].Drivers))
	assert.ErrorIs(t, res[3].Err, models.ErrInvalidConstraint)
}

func TestService_RedisRecordsWithoutPositionAreReported(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	c := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = c.Close() })
	dir := geo.NewRedisDirectoryFromClient(c, "")

	require.NoError(t, dir.Upsert(ctx, driver("ok", models.GenderMale, "aub", true)))
	ghost := driver("ghost", models.GenderMale, "aub", true)
	require.NoError(t, c.HSet(ctx, geo.MetaKey("ghost"), geo.MetaFields(ghost, time.Now())).Err())
	require.NoError(t, c.SAdd(ctx, geo.DefaultLiveKey, "ghost").Err())

	core, logs := observer.New(zap.WarnLevel)
	s := &Service{Drivers: dir, Filter: NewFilter(zap.New(core)), DefaultSpeedMps: 10}
	pc := models.PassengerConstraints{Gender: models.GenderMale, UniversityID: "aub", Preference: models.PreferAnyGender}

	out, err := s.NearbyEligible(ctx, pc, campus)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "ok", out[0].ID)

	entries := logs.FilterMessage("excluded malformed driver record").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "ghost", entries[0].ContextMap()["driver_id"])
}
