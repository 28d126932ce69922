package models

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Validate reports whether p lies inside WGS84 bounds.
func (p GeoPoint) Validate() error {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lon) {
		return fmt.Errorf("%w: NaN in (%v, %v)", ErrInvalidDistance, p.Lat, p.Lon)
	}
	if p.Lat < -90 || p.Lat > 90 {
		return fmt.Errorf("%w: latitude %v out of range", ErrInvalidDistance, p.Lat)
	}
	if p.Lon < -180 || p.Lon > 180 {
		return fmt.Errorf("%w: longitude %v out of range", ErrInvalidDistance, p.Lon)
	}
	return nil
}

func (g Gender) Valid() bool {
	return g == GenderMale || g == GenderFemale
}

func (p GenderPreference) Valid() bool {
	return p == PreferSameGender || p == PreferAnyGender
}

func (c VehicleClass) Valid() bool {
	switch c {
	case ClassFourCylinder, ClassSixCylinder, ClassEightCylinder, ClassTwelveCylinder:
		return true
	}
	return false
}

// VehicleClassForCylinders maps a cylinder count to its consumption band.
func VehicleClassForCylinders(n int) (VehicleClass, error) {
	switch {
	case n <= 0:
		return "", fmt.Errorf("%w: %d cylinders", ErrUnknownVehicleClass, n)
	case n <= 4:
		return ClassFourCylinder, nil
	case n <= 6:
		return ClassSixCylinder, nil
	case n <= 8:
		return ClassEightCylinder, nil
	default:
		return ClassTwelveCylinder, nil
	}
}

// ParseVehicleClass accepts either a class name or a bare cylinder count.
func ParseVehicleClass(s string) (VehicleClass, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if c := VehicleClass(s); c.Valid() {
		return c, nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		return VehicleClassForCylinders(n)
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownVehicleClass, s)
}

func (c PassengerConstraints) Validate() error {
	if !c.Preference.Valid() {
		return fmt.Errorf("%w: gender preference %q", ErrInvalidConstraint, c.Preference)
	}
	if c.Preference == PreferSameGender && !c.Gender.Valid() {
		return fmt.Errorf("%w: gender %q", ErrInvalidConstraint, c.Gender)
	}
	if strings.TrimSpace(c.UniversityID) == "" {
		return fmt.Errorf("%w: missing university", ErrInvalidConstraint)
	}
	return nil
}

// Validate checks a single directory record. Failures wrap ErrInvalidCandidate.
func (d DriverCandidate) Validate() error {
	if strings.TrimSpace(d.ID) == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidCandidate)
	}
	if err := d.Location.Validate(); err != nil {
		return fmt.Errorf("%w: driver %s: %w", ErrInvalidCandidate, d.ID, err)
	}
	if !d.Gender.Valid() {
		return fmt.Errorf("%w: driver %s: gender %q", ErrInvalidCandidate, d.ID, d.Gender)
	}
	if !d.VehicleClass.Valid() {
		return fmt.Errorf("%w: driver %s: %w: %q", ErrInvalidCandidate, d.ID, ErrUnknownVehicleClass, d.VehicleClass)
	}
	return nil
}

// Candidate converts a presence update into a directory record. An explicit
// vehicle class may be a class name or a bare cylinder count; without one the
// class is derived from Cylinders.
func (u PresenceUpdate) Candidate() (DriverCandidate, error) {
	var (
		class VehicleClass
		err   error
	)
	if u.VehicleClass != "" {
		class, err = ParseVehicleClass(string(u.VehicleClass))
	} else {
		class, err = VehicleClassForCylinders(u.Cylinders)
	}
	if err != nil {
		return DriverCandidate{}, err
	}
	d := DriverCandidate{
		ID:           u.DriverID,
		Gender:       u.Gender,
		UniversityID: u.UniversityID,
		Location:     u.Location,
		VehicleClass: class,
		Live:         u.Live,
	}
	if err := d.Validate(); err != nil {
		return DriverCandidate{}, err
	}
	return d, nil
}
