package anki

import "errors"

var (
	// ErrNoCards is returned when an export is requested with zero cards.
	// It is raised before any engine work begins.
	ErrNoCards = errors.New("anki: no cards to export")

	// ErrEngineUnavailable is returned when the embedded SQLite engine
	// cannot be initialized. Callers should surface this distinctly from
	// data errors: it indicates a build/runtime problem, not bad input.
	ErrEngineUnavailable = errors.New("anki: sqlite engine unavailable")
)
