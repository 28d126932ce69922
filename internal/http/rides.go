package httpapi

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/example/campus-carpool/internal/dispatch"
	"github.com/example/campus-carpool/internal/models"
	"github.com/example/campus-carpool/internal/observability"
	"github.com/example/campus-carpool/internal/storage"
)

var (
	errNotEligible = errors.New("driver is not available to this passenger")
	errBadRide     = errors.New("invalid ride request")
	errAdminOnly   = errors.New("admin token required")
)

type createRideRequest struct {
	PassengerID   string                      `json:"passenger_id"`
	DriverID      string                      `json:"driver_id"`
	Passenger     models.PassengerConstraints `json:"passenger"`
	Pickup        models.GeoPoint             `json:"pickup"`
	PaymentMethod models.PaymentMethod        `json:"payment_method"`
}

// handleCreateRide records a passenger's request to one driver. The driver
// must still pass the eligibility filter and the stored cost is the
// passenger's share of a fresh quote.
func (s *Server) handleCreateRide(w http.ResponseWriter, r *http.Request) {
	var req createRideRequest
	if !decode(w, r, &req) {
		return
	}
	ctx := r.Context()
	d, err := s.deps.Directory.Get(ctx, req.DriverID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	eligible, err := s.filter.Eligible(req.Passenger, []models.DriverCandidate{d})
	if err != nil {
		s.writeError(w, err)
		return
	}
	if len(eligible) == 0 {
		s.writeError(w, fmt.Errorf("%w: %s", errNotEligible, req.DriverID))
		return
	}
	q, err := s.Quoter.Quote(ctx, req.DriverID, req.Passenger.UniversityID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	ride, err := storage.NewRide(newID(), req.PassengerID, req.DriverID, req.Passenger.UniversityID, req.Pickup, q.Cost.PassengerShare, req.PaymentMethod, s.now())
	if err != nil {
		if !errors.Is(err, models.ErrInvalidDistance) {
			err = fmt.Errorf("%w: %v", errBadRide, err)
		}
		s.writeError(w, err)
		return
	}
	if err := s.deps.Rides.SaveRide(ctx, ride); err != nil {
		s.writeError(w, err)
		return
	}
	observability.RideTransitions.WithLabelValues(string(ride.Status)).Inc()
	s.notify(ride.DriverID, "ride_requested", ride)
	writeJSON(w, http.StatusCreated, ride)
}

func (s *Server) handleGetRide(w http.ResponseWriter, r *http.Request) {
	ride, err := s.deps.Rides.GetRide(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ride)
}

func (s *Server) handleUserRides(w http.ResponseWriter, r *http.Request) {
	rides, err := s.deps.Rides.ListRides(r.Context(), mux.Vars(r)["user_id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	if rides == nil {
		rides = []models.Ride{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"rides": rides})
}

type rideActionRequest struct {
	UserID          string `json:"user_id"`
	PaymentReceived bool   `json:"payment_received"`
}

func (s *Server) handleRideAction(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	var req rideActionRequest
	if !decode(w, r, &req) {
		return
	}
	ctx := r.Context()
	ride, err := s.deps.Rides.GetRide(ctx, vars["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	prev := ride.Status
	if err := storage.Apply(ride, storage.Action(vars["action"]), req.UserID, req.PaymentReceived, s.now()); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.deps.Rides.UpdateRide(ctx, ride, prev); err != nil {
		s.writeError(w, err)
		return
	}
	observability.RideTransitions.WithLabelValues(string(ride.Status)).Inc()

	other := ride.PassengerID
	if req.UserID == ride.PassengerID {
		other = ride.DriverID
	}
	s.notify(other, "ride_"+string(ride.Status), ride)
	writeJSON(w, http.StatusOK, ride)
}

type setPaymentRequest struct {
	Status models.PaymentStatus `json:"payment_status"`
}

// handleSetPayment lets an operator correct the recorded settlement, e.g. a
// Wish transfer confirmed after the ride was completed unpaid.
func (s *Server) handleSetPayment(w http.ResponseWriter, r *http.Request) {
	tok := r.Header.Get("X-Admin-Token")
	if s.deps.AdminToken == "" || subtle.ConstantTimeCompare([]byte(tok), []byte(s.deps.AdminToken)) != 1 {
		s.writeError(w, errAdminOnly)
		return
	}
	var req setPaymentRequest
	if !decode(w, r, &req) {
		return
	}
	ctx := r.Context()
	ride, err := s.deps.Rides.GetRide(ctx, mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := storage.SetPaymentStatus(ride, req.Status, s.now()); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.deps.Rides.UpdateRide(ctx, ride, ride.Status); err != nil {
		s.writeError(w, err)
		return
	}
	s.logger.Info("payment status set", zap.String("ride_id", ride.ID), zap.String("payment_status", string(ride.PaymentStatus)))
	s.notify(ride.PassengerID, "ride_payment", ride)
	s.notify(ride.DriverID, "ride_payment", ride)
	writeJSON(w, http.StatusOK, ride)
}

// notify is best effort; the other party may simply not be connected.
func (s *Server) notify(userID, typ string, ride *models.Ride) {
	err := s.notifier.Notify(userID, dispatch.RideEvent{Type: typ, Ride: *ride})
	if err != nil && !errors.Is(err, dispatch.ErrNoSession) {
		s.logger.Warn("ride notification failed", zap.String("user_id", userID), zap.String("ride_id", ride.ID), zap.Error(err))
	}
}
