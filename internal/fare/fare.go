package fare

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/example/campus-carpool/internal/geo"
	"github.com/example/campus-carpool/internal/models"
)

// RateTable maps a vehicle class to liters consumed per kilometer.
type RateTable map[models.VehicleClass]float64

// DefaultRates are the consumption figures the product launched with.
func DefaultRates() RateTable {
	return RateTable{
		models.ClassFourCylinder:   0.08,
		models.ClassSixCylinder:    0.11,
		models.ClassEightCylinder:  0.15,
		models.ClassTwelveCylinder: 0.22,
	}
}

// ParseRateTable reads "class=rate" pairs separated by commas. Classes may
// be given as names (4_cylinder) or cylinder counts (4).
func ParseRateTable(s string) (RateTable, error) {
	out := RateTable{}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		k, v, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("rate entry %q: expected class=rate", part)
		}
		class, err := models.ParseVehicleClass(k)
		if err != nil {
			return nil, err
		}
		rate, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, fmt.Errorf("rate entry %q: %w", part, err)
		}
		out[class] = rate
	}
	return out, out.Validate()
}

func (t RateTable) Validate() error {
	if len(t) == 0 {
		return fmt.Errorf("rate table is empty")
	}
	for c, r := range t {
		if !c.Valid() {
			return fmt.Errorf("%w: %q", models.ErrUnknownVehicleClass, c)
		}
		if r <= 0 || math.IsNaN(r) || math.IsInf(r, 0) {
			return fmt.Errorf("rate for %s must be > 0, got %v", c, r)
		}
	}
	return nil
}

func (t RateTable) String() string {
	parts := make([]string, 0, len(t))
	for c, r := range t {
		parts = append(parts, fmt.Sprintf("%s=%g", c, r))
	}
	sort.Strings(parts)
	return strings.Join(parts, ",")
}

// SplitPolicy is the fraction of fuel cost the passenger pays; the driver
// covers the rest.
type SplitPolicy struct {
	PassengerShare float64
}

// PassengerPaysAll is the default: the driver contributes the vehicle.
var PassengerPaysAll = SplitPolicy{PassengerShare: 1.0}

func (p SplitPolicy) Validate() error {
	if math.IsNaN(p.PassengerShare) || p.PassengerShare < 0 || p.PassengerShare > 1 {
		return fmt.Errorf("%w: passenger share %v not in [0,1]", models.ErrInvalidSplitPolicy, p.PassengerShare)
	}
	return nil
}

// EstimateTripCost prices a trip from origin to destination for a vehicle of
// the given class. Everything is computed at full precision and money is
// rounded to cents only on the way out.
func EstimateTripCost(origin, destination models.GeoPoint, class models.VehicleClass, price models.FuelPrice, rates RateTable, split SplitPolicy) (models.TripCostResult, error) {
	p := float64(price)
	if p <= 0 || math.IsNaN(p) || math.IsInf(p, 0) {
		return models.TripCostResult{}, fmt.Errorf("%w: %v", models.ErrInvalidFuelPrice, p)
	}
	if err := origin.Validate(); err != nil {
		return models.TripCostResult{}, fmt.Errorf("origin: %w", err)
	}
	if err := destination.Validate(); err != nil {
		return models.TripCostResult{}, fmt.Errorf("destination: %w", err)
	}
	if err := split.Validate(); err != nil {
		return models.TripCostResult{}, err
	}
	rate, ok := rates[class]
	if !ok {
		return models.TripCostResult{}, fmt.Errorf("%w: %q", models.ErrUnknownVehicleClass, class)
	}

	distance := geo.DistanceKm(origin, destination)
	if distance == 0 {
		return models.TripCostResult{}, nil
	}
	liters := distance * rate
	total := RoundMoney(liters * p)
	passenger := RoundMoney(liters * p * split.PassengerShare)
	// Driver takes the remainder so the shares always add up to the total.
	driver := RoundMoney(total - passenger)

	return models.TripCostResult{
		DistanceKm:     distance,
		Liters:         liters,
		TotalCost:      total,
		PassengerShare: passenger,
		DriverShare:    driver,
	}, nil
}

// RoundMoney rounds half-up to cents on the shortest decimal form of v, so
// 1.005 becomes 1.01 even though its binary value sits just below it.
func RoundMoney(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
