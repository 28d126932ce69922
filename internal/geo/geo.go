package geo

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/example/campus-carpool/internal/models"
)

// KmPerDegree converts both latitude and longitude degrees to kilometers.
const KmPerDegree = 111.0

var ErrDriverNotFound = errors.New("driver not found")

// DistanceKm returns the planar distance between a and b: each degree delta
// is scaled by KmPerDegree and the legs are combined with Pythagoras.
//
// This is a known approximation, not great-circle distance. It overstates
// east-west extent away from the equator (a degree of longitude shrinks with
// cos(lat)), which is tolerable at city scale. Fares shown to riders have
// always been computed this way, so it must not be swapped for a geodesic.
func DistanceKm(a, b models.GeoPoint) float64 {
	dLat := (a.Lat - b.Lat) * KmPerDegree
	dLon := (a.Lon - b.Lon) * KmPerDegree
	return math.Sqrt(dLat*dLat + dLon*dLon)
}

// Directory is the live-driver read/write path used by the matcher,
// the quoter and the presence handlers.
type Directory interface {
	Upsert(ctx context.Context, d models.DriverCandidate) error
	Get(ctx context.Context, id string) (models.DriverCandidate, error)
	Live(ctx context.Context) ([]models.DriverCandidate, error)
}

// Index is an in-memory Directory for local runs and tests.
type Index struct {
	mu      sync.RWMutex
	drivers map[string]models.DriverCandidate
	now     func() time.Time
}

func NewIndex() *Index {
	return &Index{drivers: make(map[string]models.DriverCandidate), now: time.Now}
}

func (g *Index) Upsert(_ context.Context, d models.DriverCandidate) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	d.Updated = g.now()
	g.drivers[d.ID] = d
	return nil
}

func (g *Index) Get(_ context.Context, id string) (models.DriverCandidate, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	d, ok := g.drivers[id]
	if !ok {
		return models.DriverCandidate{}, ErrDriverNotFound
	}
	return d, nil
}

// Live returns a snapshot of drivers currently flagged live; naive scan.
func (g *Index) Live(_ context.Context) ([]models.DriverCandidate, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]models.DriverCandidate, 0, len(g.drivers))
	for _, d := range g.drivers {
		if d.Live {
			out = append(out, d)
		}
	}
	return out, nil
}
