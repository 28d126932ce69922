package matcher

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/example/campus-carpool/internal/eta"
	"github.com/example/campus-carpool/internal/geo"
	"github.com/example/campus-carpool/internal/models"
)

// LiveDrivers is the read side of the live-driver directory. The snapshot
// may already be stale when it reaches the passenger; nothing here tries to
// correct for that.
type LiveDrivers interface {
	Live(ctx context.Context) ([]models.DriverCandidate, error)
}

type Service struct {
	Drivers         LiveDrivers
	Filter          *Filter
	DefaultSpeedMps float64
	TopN            int
}

// NearbyEligible lists the drivers a passenger standing at origin may
// request, closest first. Ordering is presentation only; eligibility is
// decided entirely by the filter.
func (s *Service) NearbyEligible(ctx context.Context, pc models.PassengerConstraints, origin models.GeoPoint) ([]models.NearbyDriver, error) {
	if err := origin.Validate(); err != nil {
		return nil, fmt.Errorf("passenger location: %w", err)
	}
	pool, err := s.Drivers.Live(ctx)
	if err != nil {
		return nil, fmt.Errorf("live drivers: %w", err)
	}
	eligible, err := s.Filter.Eligible(pc, pool)
	if err != nil {
		return nil, err
	}

	out := make([]models.NearbyDriver, 0, len(eligible))
	for _, d := range eligible {
		out = append(out, models.NearbyDriver{
			DriverCandidate: d,
			DistanceKm:      geo.DistanceKm(origin, d.Location),
			ETASeconds:      eta.PickupSeconds(d.Location, origin, s.DefaultSpeedMps),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].DistanceKm != out[j].DistanceKm {
			return out[i].DistanceKm < out[j].DistanceKm
		}
		return out[i].ID < out[j].ID
	})
	if s.TopN > 0 && len(out) > s.TopN {
		out = out[:s.TopN]
	}
	return out, nil
}

type BatchResult struct {
	Drivers []models.DriverCandidate
	Err     error
}

// EligibleBatch filters one shared pool for many passengers in parallel.
// Each invocation only reads the pool, so there is nothing to coordinate
// beyond waiting for the results. Results line up with passengers by index.
func (f *Filter) EligibleBatch(passengers []models.PassengerConstraints, pool []models.DriverCandidate) []BatchResult {
	out := make([]BatchResult, len(passengers))
	var wg sync.WaitGroup
	for i, pc := range passengers {
		wg.Add(1)
		go func(i int, pc models.PassengerConstraints) {
			defer wg.Done()
			drivers, err := f.Eligible(pc, pool)
			out[i] = BatchResult{Drivers: drivers, Err: err}
		}(i, pc)
	}
	wg.Wait()
	return out
}
