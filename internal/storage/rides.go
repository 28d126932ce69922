package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/example/campus-carpool/internal/models"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid ride transition")
	ErrForbidden         = errors.New("not a participant of this ride")
	// ErrConflict means the ride changed between read and write.
	ErrConflict = errors.New("ride was modified concurrently")

	ErrInvalidPaymentStatus = errors.New("invalid payment status")
)

// RideStore persists ride requests. UpdateRide only succeeds if the stored
// status still equals prev.
type RideStore interface {
	SaveRide(ctx context.Context, r *models.Ride) error
	GetRide(ctx context.Context, id string) (*models.Ride, error)
	UpdateRide(ctx context.Context, r *models.Ride, prev models.RideStatus) error
	ListRides(ctx context.Context, userID string) ([]models.Ride, error)
}

// Action is something a participant does to a ride.
type Action string

const (
	ActionAccept   Action = "accept"
	ActionDecline  Action = "decline"
	ActionCancel   Action = "cancel"
	ActionComplete Action = "complete"
)

type transition struct {
	from  models.RideStatus
	to    models.RideStatus
	actor string // "driver" or "passenger"
}

var transitions = map[Action]transition{
	ActionAccept:   {models.RideRequested, models.RideAccepted, "driver"},
	ActionDecline:  {models.RideRequested, models.RideDeclined, "driver"},
	ActionCancel:   {models.RideRequested, models.RideCancelled, "passenger"},
	ActionComplete: {models.RideAccepted, models.RideCompleted, "driver"},
}

// Apply moves r through action on behalf of userID. Completing a ride
// records whether the driver received payment.
func Apply(r *models.Ride, action Action, userID string, paymentReceived bool, now time.Time) error {
	t, ok := transitions[action]
	if !ok {
		return fmt.Errorf("%w: unknown action %q", ErrInvalidTransition, action)
	}
	switch t.actor {
	case "driver":
		if userID != r.DriverID {
			return ErrForbidden
		}
	case "passenger":
		if userID != r.PassengerID {
			return ErrForbidden
		}
	}
	if r.Status != t.from {
		return fmt.Errorf("%w: cannot %s a %s ride", ErrInvalidTransition, action, r.Status)
	}
	r.Status = t.to
	r.UpdatedAt = now
	if t.to == models.RideCompleted {
		r.CompletedAt = &now
		if paymentReceived {
			r.PaymentStatus = models.PaymentPaid
		}
	}
	return nil
}

// SetPaymentStatus overrides the recorded settlement of r. It is the
// operator's correction path and works in any ride status.
func SetPaymentStatus(r *models.Ride, status models.PaymentStatus, now time.Time) error {
	if status != models.PaymentPending && status != models.PaymentPaid {
		return fmt.Errorf("%w: %q", ErrInvalidPaymentStatus, status)
	}
	r.PaymentStatus = status
	r.UpdatedAt = now
	return nil
}

// NewRide builds a requested ride with pending payment.
func NewRide(id, passengerID, driverID, universityID string, pickup models.GeoPoint, cost float64, method models.PaymentMethod, now time.Time) (*models.Ride, error) {
	if method == "" {
		method = models.PaymentLiveCash
	}
	if method != models.PaymentLiveCash && method != models.PaymentWishMoney {
		return nil, fmt.Errorf("unknown payment method %q", method)
	}
	if passengerID == "" || driverID == "" {
		return nil, errors.New("passenger and driver are required")
	}
	if passengerID == driverID {
		return nil, errors.New("cannot request a ride from yourself")
	}
	if err := pickup.Validate(); err != nil {
		return nil, err
	}
	return &models.Ride{
		ID:            id,
		PassengerID:   passengerID,
		DriverID:      driverID,
		UniversityID:  universityID,
		Pickup:        pickup,
		EstimatedCost: cost,
		PaymentMethod: method,
		PaymentStatus: models.PaymentPending,
		Status:        models.RideRequested,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

type MemoryStore struct {
	mu    sync.RWMutex
	rides map[string]models.Ride
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rides: make(map[string]models.Ride)}
}

func (m *MemoryStore) SaveRide(_ context.Context, r *models.Ride) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rides[r.ID] = *r
	return nil
}

func (m *MemoryStore) GetRide(_ context.Context, id string) (*models.Ride, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rides[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &r, nil
}

func (m *MemoryStore) UpdateRide(_ context.Context, r *models.Ride, prev models.RideStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.rides[r.ID]
	if !ok {
		return ErrNotFound
	}
	if cur.Status != prev {
		return ErrConflict
	}
	m.rides[r.ID] = *r
	return nil
}

// ListRides returns rides where userID is driver or passenger, newest first.
func (m *MemoryStore) ListRides(_ context.Context, userID string) ([]models.Ride, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Ride
	for _, r := range m.rides {
		if r.DriverID == userID || r.PassengerID == userID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
