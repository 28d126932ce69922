package fare

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/example/campus-carpool/internal/models"
)

var errMissing = errors.New("missing")

type fakeDrivers map[string]models.DriverCandidate

func (f fakeDrivers) Get(_ context.Context, id string) (models.DriverCandidate, error) {
	d, ok := f[id]
	if !ok {
		return models.DriverCandidate{}, errMissing
	}
	return d, nil
}

type fakeUniversities map[string]models.University

func (f fakeUniversities) Get(_ context.Context, id string) (models.University, error) {
	u, ok := f[id]
	if !ok {
		return models.University{}, errMissing
	}
	return u, nil
}

// fakePrice counts reads so tests can check the price is not cached.
type fakePrice struct {
	price models.FuelPrice
	err   error
	reads int
}

func (f *fakePrice) Current(context.Context) (models.FuelPrice, error) {
	f.reads++
	return f.price, f.err
}

func newQuoter(price *fakePrice) *Quoter {
	return &Quoter{
		Drivers: fakeDrivers{
			"d1":  {ID: "d1", Location: aubGate, VehicleClass: models.ClassFourCylinder, Live: true},
			"off": {ID: "off", Location: aubGate, VehicleClass: models.ClassFourCylinder},
		},
		Universities: fakeUniversities{"uni": {ID: "uni", Location: campus}},
		Prices:       price,
		Rates:        RateTable{models.ClassFourCylinder: 0.08},
		Split:        PassengerPaysAll,
		Logger:       zap.NewNop(),
	}
}

func TestQuoter_Quote(t *testing.T) {
	price := &fakePrice{price: 1.5}
	q := newQuoter(price)

	got, err := q.Quote(context.Background(), "d1", "uni")
	require.NoError(t, err)
	assert.Equal(t, "d1", got.DriverID)
	assert.Equal(t, models.FuelPrice(1.5), got.FuelPrice)
	assert.Equal(t, 0.30, got.Cost.PassengerShare)

	// administrator raises the price; next quote sees it
	price.price = 3.0
	got, err = q.Quote(context.Background(), "d1", "uni")
	require.NoError(t, err)
	assert.Equal(t, 0.60, got.Cost.TotalCost)
	assert.Equal(t, 2, price.reads)
}

func TestQuoter_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := newQuoter(&fakePrice{price: 1.5}).Quote(ctx, "nobody", "uni")
	assert.ErrorIs(t, err, errMissing)

	_, err = newQuoter(&fakePrice{price: 1.5}).Quote(ctx, "off", "uni")
	assert.ErrorIs(t, err, ErrDriverOffline)

	_, err = newQuoter(&fakePrice{price: 1.5}).Quote(ctx, "d1", "elsewhere")
	assert.ErrorIs(t, err, errMissing)

	_, err = newQuoter(&fakePrice{price: 0}).Quote(ctx, "d1", "uni")
	assert.ErrorIs(t, err, models.ErrInvalidFuelPrice)

	boom := errors.New("db down")
	_, err = newQuoter(&fakePrice{err: boom}).Quote(ctx, "d1", "uni")
	assert.ErrorIs(t, err, boom)
}
