package state

import uuid "github.com/kthomas/go.uuid"

// State is a point-in-time snapshot of a transition journal; it can only
// advance as the result of a committed record transition, by way of a
// StateClaim.
type State struct {
	ID        uuid.UUID  `json:"id"`
	JournalID *uuid.UUID `json:"journal_id"`
	Epoch     uint64     `json:"epoch"`

	StateClaims []*StateClaim `json:"state_claims"`
}

// StateClaim is the representation of a journal state as claimed by a
// verifying participant
type StateClaim struct {
	Cardinality uint64   `json:"cardinality"`
	Path        []string `json:"path"`
	Root        *string  `json:"root"`
	Values      []string `json:"values"` // hashed transition digests at each leaf up to the claimed epoch
}
