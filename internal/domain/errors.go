package domain

import "github.com/pkg/errors"

var (
	// ErrInsufficientData is returned when a series is too short or malformed for indicator computation.
	ErrInsufficientData = errors.New("insufficient data")
	// ErrFetchFailure is returned when market data could not be retrieved for a symbol.
	ErrFetchFailure = errors.New("fetch failure")
	// ErrConfiguration is returned for invalid scan input, surfaced before any fetch begins.
	ErrConfiguration = errors.New("configuration error")
)
