package faults

import "errors"

// Sentinel errors for the fault pipeline.
var (
	// ErrFaultNotFound is returned when a fault ID does not exist.
	ErrFaultNotFound = errors.New("faults: fault not found")

	// ErrInvalidFault is returned when a fault record is missing required fields.
	ErrInvalidFault = errors.New("faults: invalid fault")
)
