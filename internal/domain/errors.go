package domain

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by the refiner. Adapters and the classifier wrap these
// with context; callers match them with errors.Is.
var (
	ErrQuery         = errors.New("price query failed")
	ErrParse         = errors.New("malformed price response")
	ErrEmptyResult   = errors.New("no prices for date")
	ErrLookup        = errors.New("lookup failed")
	ErrInvalidWindow = errors.New("invalid hour window")
	ErrNormalization = errors.New("date normalization failed")
	ErrWrite         = errors.New("refined write failed")

	ErrHourNotFound = fmt.Errorf("%w: hour not in series", ErrLookup)
	ErrEmptyWindow  = fmt.Errorf("%w: ranking window is empty", ErrLookup)
	ErrZeroAverage  = fmt.Errorf("%w: average price is zero", ErrLookup)
)
