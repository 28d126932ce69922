package fare

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/example/campus-carpool/internal/models"
	"github.com/example/campus-carpool/internal/observability"
)

var ErrDriverOffline = errors.New("driver is not live")

type DriverLookup interface {
	Get(ctx context.Context, id string) (models.DriverCandidate, error)
}

type UniversityLookup interface {
	Get(ctx context.Context, id string) (models.University, error)
}

// FuelPriceSource yields the latest administered price. It is read on every
// quote, never cached here.
type FuelPriceSource interface {
	Current(ctx context.Context) (models.FuelPrice, error)
}

type Quote struct {
	DriverID     string                `json:"driver_id"`
	UniversityID string                `json:"university_id"`
	FuelPrice    models.FuelPrice      `json:"fuel_price"`
	VehicleClass models.VehicleClass   `json:"vehicle_class"`
	Cost         models.TripCostResult `json:"cost"`
}

// Quoter prices a chosen driver's trip to the passenger's university.
type Quoter struct {
	Drivers      DriverLookup
	Universities UniversityLookup
	Prices       FuelPriceSource
	Rates        RateTable
	Split        SplitPolicy
	Logger       *zap.Logger
}

func (q *Quoter) Quote(ctx context.Context, driverID, universityID string) (Quote, error) {
	d, err := q.Drivers.Get(ctx, driverID)
	if err != nil {
		return Quote{}, fmt.Errorf("driver %s: %w", driverID, err)
	}
	if !d.Live {
		return Quote{}, fmt.Errorf("driver %s: %w", driverID, ErrDriverOffline)
	}
	u, err := q.Universities.Get(ctx, universityID)
	if err != nil {
		return Quote{}, fmt.Errorf("university %s: %w", universityID, err)
	}
	price, err := q.Prices.Current(ctx)
	if err != nil {
		return Quote{}, fmt.Errorf("fuel price: %w", err)
	}

	res, err := EstimateTripCost(d.Location, u.Location, d.VehicleClass, price, q.Rates, q.Split)
	if err != nil {
		observability.EstimatesTotal.WithLabelValues("error").Inc()
		return Quote{}, err
	}
	observability.EstimatesTotal.WithLabelValues("ok").Inc()
	if q.Logger != nil {
		q.Logger.Debug("trip quoted",
			zap.String("driver_id", driverID),
			zap.String("university_id", universityID),
			zap.Float64("distance_km", res.DistanceKm),
			zap.Float64("passenger_share", res.PassengerShare),
		)
	}
	return Quote{
		DriverID:     driverID,
		UniversityID: universityID,
		FuelPrice:    price,
		VehicleClass: d.VehicleClass,
		Cost:         res,
	}, nil
}
