package matcher

import (
	"errors"

	"go.uber.org/zap"

	"github.com/example/campus-carpool/internal/models"
	"github.com/example/campus-carpool/internal/observability"
)

// Rejection is a candidate excluded because its record was malformed.
// Err wraps models.ErrInvalidCandidate.
type Rejection struct {
	DriverID string
	Err      error
}

type FilterResult struct {
	Eligible []models.DriverCandidate
	Rejected []Rejection
}

// FilterEligibleDrivers returns the candidates the passenger may contact.
//
// Only the constraints can fail the call. A malformed candidate is excluded
// and listed in Rejected so that one bad record never denies service to the
// whole pool. A driver is eligible when it is live, belongs to the
// passenger's university and, for a same-gender preference, shares the
// passenger's gender. Input order is kept and each driver id appears once.
func FilterEligibleDrivers(pc models.PassengerConstraints, candidates []models.DriverCandidate) (FilterResult, error) {
	if err := pc.Validate(); err != nil {
		return FilterResult{}, err
	}
	res := FilterResult{Eligible: make([]models.DriverCandidate, 0, len(candidates))}
	seen := make(map[string]struct{}, len(candidates))
	for _, d := range candidates {
		if err := d.Validate(); err != nil {
			res.Rejected = append(res.Rejected, Rejection{DriverID: d.ID, Err: err})
			continue
		}
		if !eligible(pc, d) {
			continue
		}
		if _, dup := seen[d.ID]; dup {
			continue
		}
		seen[d.ID] = struct{}{}
		res.Eligible = append(res.Eligible, d)
	}
	return res, nil
}

func eligible(pc models.PassengerConstraints, d models.DriverCandidate) bool {
	if !d.Live {
		return false
	}
	if d.UniversityID != pc.UniversityID {
		return false
	}
	if pc.Preference == models.PreferSameGender && d.Gender != pc.Gender {
		return false
	}
	return true
}

// Filter runs FilterEligibleDrivers and reports every rejection to the log
// and metrics.
type Filter struct {
	logger *zap.Logger
}

func NewFilter(logger *zap.Logger) *Filter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Filter{logger: logger}
}

func (f *Filter) Eligible(pc models.PassengerConstraints, candidates []models.DriverCandidate) ([]models.DriverCandidate, error) {
	observability.EligibilityChecks.Inc()
	res, err := FilterEligibleDrivers(pc, candidates)
	if err != nil {
		return nil, err
	}
	for _, r := range res.Rejected {
		f.logger.Warn("excluded malformed driver record",
			zap.String("driver_id", r.DriverID),
			zap.Error(r.Err),
		)
		observability.CandidatesRejected.WithLabelValues(rejectReason(r.Err)).Inc()
	}
	observability.EligibleDrivers.Observe(float64(len(res.Eligible)))
	return res.Eligible, nil
}

func rejectReason(err error) string {
	if errors.Is(err, models.ErrInvalidDistance) {
		return "coordinates"
	}
	return "record"
}
