package model

import "errors"

var (
	// ErrDataUnavailable means the requested range produced no usable candles.
	ErrDataUnavailable = errors.New("data unavailable")

	// ErrLayoutUnready means the container still had zero width after one retry.
	ErrLayoutUnready = errors.New("layout unready")

	// ErrSurfaceDisposed is returned by operations on a torn-down surface.
	// Callers treat it as a no-op, never as a user-facing failure.
	ErrSurfaceDisposed = errors.New("render surface disposed")

	// ErrSuperseded means a newer load started before this one finished.
	ErrSuperseded = errors.New("load superseded")

	// ErrInvalidRange is returned for custom ranges with from >= to.
	ErrInvalidRange = errors.New("invalid time range")

	// ErrUnknownTimeframe is returned for timeframe keys outside the table.
	ErrUnknownTimeframe = errors.New("unknown timeframe")
)
