package domain

import "github.com/google/uuid"

// StandingQueryID identifies a registered standing query.
type StandingQueryID uuid.UUID

// NewStandingQueryID returns a fresh random standing query id.
func NewStandingQueryID() StandingQueryID {
	return StandingQueryID(uuid.New())
}

func (id StandingQueryID) String() string {
	return uuid.UUID(id).String()
}

// QueryPartID identifies one part of a decomposed standing query. Per-node
// working state is kept per part, not per whole query.
type QueryPartID uuid.UUID

// NewQueryPartID returns a fresh random query part id.
func NewQueryPartID() QueryPartID {
	return QueryPartID(uuid.New())
}

func (id QueryPartID) String() string {
	return uuid.UUID(id).String()
}

// StandingQuery is a persistently registered query definition, evaluated
// incrementally as the graph changes. The definition is an opaque blob
// owned by the engine.
type StandingQuery struct {
	ID         StandingQueryID
	Name       string
	Definition []byte
}

// StandingQueryStateKey addresses one piece of per-node standing query
// working state.
type StandingQueryStateKey struct {
	QueryID StandingQueryID
	PartID  QueryPartID
}
