package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/example/campus-carpool/internal/dispatch"
	"github.com/example/campus-carpool/internal/fare"
	"github.com/example/campus-carpool/internal/geo"
	"github.com/example/campus-carpool/internal/matcher"
	"github.com/example/campus-carpool/internal/models"
	"github.com/example/campus-carpool/internal/observability"
	"github.com/example/campus-carpool/internal/storage"
)

// PresencePublisher forwards presence updates to the event stream.
type PresencePublisher interface {
	PublishPresence(ctx context.Context, u models.PresenceUpdate) error
}

// Deps are the collaborators a Server is built from. Publisher is optional.
type Deps struct {
	Directory    geo.Directory
	Prices       storage.FuelPriceStore
	Universities storage.UniversityStore
	Rides        storage.RideStore
	Publisher    PresencePublisher
	WSReg        *dispatch.WSRegistry
	Rates        fare.RateTable
	Split        fare.SplitPolicy
	SpeedMps     float64
	TopN         int
	Logger       *zap.Logger
	// Notifier receives ride events; defaults to WSReg.
	Notifier dispatch.Notifier
	// AdminToken guards operator endpoints; empty disables them.
	AdminToken string
	// Ready reports backing-store health for /ready; nil means always ready.
	Ready func(ctx context.Context) error
}

type Server struct {
	deps     Deps
	filter   *matcher.Filter
	notifier dispatch.Notifier
	Matcher  *matcher.Service
	Quoter   *fare.Quoter
	logger   *zap.Logger
	mux      *mux.Router
	now      func() time.Time
}

func NewServer(d Deps) *Server {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.WSReg == nil {
		d.WSReg = dispatch.NewWSRegistry(d.Logger)
	}
	if d.Notifier == nil {
		d.Notifier = d.WSReg
	}
	filter := matcher.NewFilter(d.Logger)
	s := &Server{
		deps:     d,
		filter:   filter,
		notifier: d.Notifier,
		Matcher: &matcher.Service{
			Drivers:         d.Directory,
			Filter:          filter,
			DefaultSpeedMps: d.SpeedMps,
			TopN:            d.TopN,
		},
		Quoter: &fare.Quoter{
			Drivers:      d.Directory,
			Universities: d.Universities,
			Prices:       d.Prices,
			Rates:        d.Rates,
			Split:        d.Split,
			Logger:       d.Logger,
		},
		logger: d.Logger,
		mux:    mux.NewRouter(),
		now:    time.Now,
	}
	s.registerMiddleware()
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/internal/driver/presence", s.handlePresence).Methods("POST")
	s.mux.HandleFunc("/api/v1/drivers/eligible", s.handleEligible).Methods("POST")
	s.mux.HandleFunc("/api/v1/trips/estimate", s.handleEstimate).Methods("POST")
	s.mux.HandleFunc("/api/v1/trips/quote", s.handleQuote).Methods("POST")
	s.mux.HandleFunc("/api/v1/fuel-price", s.handleGetFuelPrice).Methods("GET")
	s.mux.HandleFunc("/api/v1/fuel-price", s.handleSetFuelPrice).Methods("PUT")
	s.mux.HandleFunc("/api/v1/universities", s.handleUniversities).Methods("GET")
	s.mux.HandleFunc("/api/v1/rides", s.handleCreateRide).Methods("POST")
	s.mux.HandleFunc("/api/v1/rides/{id}", s.handleGetRide).Methods("GET")
	s.mux.HandleFunc("/api/v1/rides/{id}/payment", s.handleSetPayment).Methods("PUT")
	s.mux.HandleFunc("/api/v1/rides/{id}/{action}", s.handleRideAction).Methods("POST")
	s.mux.HandleFunc("/api/v1/users/{user_id}/rides", s.handleUserRides).Methods("GET")
	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) }).Methods("GET")
	s.mux.HandleFunc("/ready", s.handleReady).Methods("GET")
	s.mux.Handle("/metrics", promhttp.Handler())
	s.mux.HandleFunc("/ws/{user_id}", s.handleWS)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

func (s *Server) handlePresence(w http.ResponseWriter, r *http.Request) {
	var u models.PresenceUpdate
	if !decode(w, r, &u) {
		return
	}
	d, err := u.Candidate()
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.deps.Directory.Upsert(r.Context(), d); err != nil {
		s.writeError(w, err)
		return
	}
	if s.deps.Publisher != nil {
		u.VehicleClass = d.VehicleClass
		if err := s.deps.Publisher.PublishPresence(r.Context(), u); err != nil {
			s.logger.Warn("presence publish failed", zap.String("driver_id", d.ID), zap.Error(err))
		}
	}
	observability.PresenceTotal.WithLabelValues(fmt.Sprint(d.Live)).Inc()
	w.WriteHeader(http.StatusNoContent)
}

type eligibleRequest struct {
	Passenger models.PassengerConstraints `json:"passenger"`
	Location  models.GeoPoint             `json:"location"`
}

func (s *Server) handleEligible(w http.ResponseWriter, r *http.Request) {
	var req eligibleRequest
	if !decode(w, r, &req) {
		return
	}
	drivers, err := s.Matcher.NearbyEligible(r.Context(), req.Passenger, req.Location)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"drivers": drivers})
}

type estimateRequest struct {
	Origin       models.GeoPoint `json:"origin"`
	Destination  models.GeoPoint `json:"destination"`
	VehicleClass string          `json:"vehicle_class"`
	// FuelPrice overrides the administered price when present.
	FuelPrice *float64 `json:"fuel_price,omitempty"`
}

func (s *Server) handleEstimate(w http.ResponseWriter, r *http.Request) {
	var req estimateRequest
	if !decode(w, r, &req) {
		return
	}
	class, err := models.ParseVehicleClass(req.VehicleClass)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var price models.FuelPrice
	if req.FuelPrice != nil {
		price = models.FuelPrice(*req.FuelPrice)
	} else if price, err = s.deps.Prices.Current(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	res, err := fare.EstimateTripCost(req.Origin, req.Destination, class, price, s.deps.Rates, s.deps.Split)
	if err != nil {
		observability.EstimatesTotal.WithLabelValues("error").Inc()
		s.writeError(w, err)
		return
	}
	observability.EstimatesTotal.WithLabelValues("ok").Inc()
	writeJSON(w, http.StatusOK, map[string]any{"fuel_price": price, "vehicle_class": class, "cost": res})
}

type quoteRequest struct {
	DriverID     string `json:"driver_id"`
	UniversityID string `json:"university_id"`
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if !decode(w, r, &req) {
		return
	}
	q, err := s.Quoter.Quote(r.Context(), req.DriverID, req.UniversityID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (s *Server) handleGetFuelPrice(w http.ResponseWriter, r *http.Request) {
	p, err := s.deps.Prices.Current(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"price": p})
}

func (s *Server) handleSetFuelPrice(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Price float64 `json:"price"`
	}
	if !decode(w, r, &req) {
		return
	}
	if err := s.deps.Prices.Set(r.Context(), models.FuelPrice(req.Price)); err != nil {
		s.writeError(w, err)
		return
	}
	observability.FuelPrice.Set(req.Price)
	s.logger.Info("fuel price updated", zap.Float64("price", req.Price))
	writeJSON(w, http.StatusOK, map[string]any{"price": req.Price})
}

func (s *Server) handleUniversities(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.Universities.List(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"universities": list})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ready != nil {
		if err := s.deps.Ready(r.Context()); err != nil {
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(200)
	w.Write([]byte("ready"))
}

var upgrader = websocket.Upgrader{}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["user_id"]
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied to the client.
		return
	}
	s.deps.WSReg.Add(id, conn)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps core and storage errors to HTTP statuses. Validation
// messages are passed through verbatim so clients can show them.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, models.ErrInvalidConstraint),
		errors.Is(err, models.ErrInvalidCandidate),
		errors.Is(err, models.ErrInvalidFuelPrice),
		errors.Is(err, models.ErrInvalidDistance),
		errors.Is(err, models.ErrUnknownVehicleClass),
		errors.Is(err, models.ErrInvalidSplitPolicy),
		errors.Is(err, storage.ErrInvalidPaymentStatus),
		errors.Is(err, errNotEligible),
		errors.Is(err, errBadRide):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, geo.ErrDriverNotFound):
		status = http.StatusNotFound
	case errors.Is(err, storage.ErrForbidden), errors.Is(err, errAdminOnly):
		status = http.StatusForbidden
	case errors.Is(err, storage.ErrInvalidTransition),
		errors.Is(err, storage.ErrConflict),
		errors.Is(err, fare.ErrDriverOffline):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Error(err))
		writeJSON(w, status, map[string]string{"error": "internal error"})
		return
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func newID() string { return uuid.NewString() }
