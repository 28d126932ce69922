package models

import "errors"

var (
	ErrInvalidConstraint   = errors.New("invalid passenger constraint")
	ErrInvalidCandidate    = errors.New("invalid driver candidate")
	ErrInvalidFuelPrice    = errors.New("invalid fuel price")
	ErrInvalidDistance     = errors.New("invalid coordinate")
	ErrUnknownVehicleClass = errors.New("unknown vehicle class")
	ErrInvalidSplitPolicy  = errors.New("invalid split policy")
)
