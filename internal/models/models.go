package models

import "time"

// GeoPoint is a WGS84 position in decimal degrees.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

// GenderPreference is the passenger's opt-in safety filter.
type GenderPreference string

const (
	PreferSameGender GenderPreference = "same"
	PreferAnyGender  GenderPreference = "any"
)

// VehicleClass is a fuel-consumption band keyed by cylinder count.
type VehicleClass string

const (
	ClassFourCylinder   VehicleClass = "4_cylinder"
	ClassSixCylinder    VehicleClass = "6_cylinder"
	ClassEightCylinder  VehicleClass = "8_cylinder"
	ClassTwelveCylinder VehicleClass = "12_cylinder"
)

// FuelPrice is currency per liter.
type FuelPrice float64

// DriverCandidate is a driver as read from the live directory.
type DriverCandidate struct {
	ID           string       `json:"id"`
	Gender       Gender       `json:"gender"`
	UniversityID string       `json:"university_id"`
	Location     GeoPoint     `json:"location"`
	VehicleClass VehicleClass `json:"vehicle_class"`
	Live         bool         `json:"live"`
	Updated      time.Time    `json:"updated"`
}

type PassengerConstraints struct {
	Gender       Gender           `json:"gender"`
	UniversityID string           `json:"university_id"`
	Preference   GenderPreference `json:"gender_preference"`
}

// TripCostResult holds a fare estimate. Money fields are rounded to cents,
// DistanceKm and Liters keep full precision.
type TripCostResult struct {
	DistanceKm     float64 `json:"distance_km"`
	Liters         float64 `json:"liters"`
	TotalCost      float64 `json:"total_cost"`
	PassengerShare float64 `json:"passenger_share"`
	DriverShare    float64 `json:"driver_share"`
}

type University struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	City     string   `json:"city"`
	Location GeoPoint `json:"location"`
}

// NearbyDriver is an eligible driver annotated for presentation.
type NearbyDriver struct {
	DriverCandidate
	DistanceKm float64 `json:"distance_km"`
	ETASeconds float64 `json:"eta_seconds"`
}

type RideStatus string

const (
	RideRequested RideStatus = "requested"
	RideAccepted  RideStatus = "accepted"
	RideDeclined  RideStatus = "declined"
	RideCancelled RideStatus = "cancelled"
	RideCompleted RideStatus = "completed"
)

type PaymentMethod string

const (
	PaymentLiveCash  PaymentMethod = "live"
	PaymentWishMoney PaymentMethod = "wish"
)

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
)

// Ride is a passenger's request to a specific driver. Settlement happens
// out of band; the store only records the outcome.
type Ride struct {
	ID            string        `json:"id"`
	PassengerID   string        `json:"passenger_id"`
	DriverID      string        `json:"driver_id"`
	Pickup        GeoPoint      `json:"pickup"`
	UniversityID  string        `json:"university_id"`
	EstimatedCost float64       `json:"estimated_cost"`
	PaymentMethod PaymentMethod `json:"payment_method"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	Status        RideStatus    `json:"status"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
	CompletedAt   *time.Time    `json:"completed_at,omitempty"`
}

// PresenceUpdate is what a driver app sends when it moves or toggles
// visibility. It is also the Kafka message payload.
type PresenceUpdate struct {
	DriverID     string       `json:"driver_id"`
	Gender       Gender       `json:"gender"`
	UniversityID string       `json:"university_id"`
	Location     GeoPoint     `json:"location"`
	Cylinders    int          `json:"cylinders,omitempty"`
	VehicleClass VehicleClass `json:"vehicle_class,omitempty"`
	Live         bool         `json:"live"`
}
