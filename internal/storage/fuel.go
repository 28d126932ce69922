package storage

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/example/campus-carpool/internal/models"
)

// FuelPriceStore holds the administered fuel price. Set replaces the current
// value; readers always see the latest one.
type FuelPriceStore interface {
	Current(ctx context.Context) (models.FuelPrice, error)
	Set(ctx context.Context, price models.FuelPrice) error
}

func validPrice(p models.FuelPrice) error {
	if !(p > 0) || math.IsInf(float64(p), 1) {
		return fmt.Errorf("%w: %v", models.ErrInvalidFuelPrice, float64(p))
	}
	return nil
}

type MemoryFuelPrices struct {
	mu    sync.RWMutex
	price models.FuelPrice
}

// NewMemoryFuelPrices starts at initial; zero means unset.
func NewMemoryFuelPrices(initial models.FuelPrice) *MemoryFuelPrices {
	return &MemoryFuelPrices{price: initial}
}

func (m *MemoryFuelPrices) Current(context.Context) (models.FuelPrice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.price <= 0 {
		return 0, fmt.Errorf("fuel price: %w", ErrNotFound)
	}
	return m.price, nil
}

func (m *MemoryFuelPrices) Set(_ context.Context, p models.FuelPrice) error {
	if err := validPrice(p); err != nil {
		return err
	}
	m.mu.Lock()
	m.price = p
	m.mu.Unlock()
	return nil
}
