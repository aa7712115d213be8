package relation

import (
	"errors"

	"github.com/obsstack/lokiop/pkg/databag"
)

// Participant identifies one side's databag within a relation.
type Participant string

const (
	// LocalUnit is this unit's own databag, writable only by this unit.
	LocalUnit Participant = "local-unit"
	// LocalApp is the shared application databag, writable only by the
	// leader unit.
	LocalApp Participant = "local-app"
	// RemoteApp is the coordinator application's databag, read-only from
	// this side.
	RemoteApp Participant = "remote-app"
)

// ErrReadOnly is returned when writing to a participant this side does not
// own.
var ErrReadOnly = errors.New("relation: databag is read-only from this side")

// Relation is a snapshot of one fact-exchange channel between this unit's
// application and the coordinator's application. Snapshots are consistent
// within one trigger invocation; callers never observe interleaved partial
// reads.
type Relation struct {
	// ID is stable across the relation's created/changed/broken sequence.
	ID int
	// Endpoint is the name this relation is addressed by.
	Endpoint string
	// RemoteApp is the coordinator application's name. Empty while the
	// remote side has not yet populated its identity.
	RemoteApp string
	// Data holds the participant databags. Nil while the relation is in
	// an early or closing transition state.
	Data map[Participant]databag.Bag
}

// Healthy reports whether the relation is usable: remote identity and data
// both resolvable. An unhealthy relation is treated like no relation.
func (r *Relation) Healthy() bool {
	return r != nil && r.RemoteApp != "" && r.Data != nil
}

// Bag returns the databag for p, or an empty bag if absent.
func (r *Relation) Bag(p Participant) databag.Bag {
	if r == nil || r.Data == nil {
		return databag.Bag{}
	}
	if bag, ok := r.Data[p]; ok && bag != nil {
		return bag
	}
	return databag.Bag{}
}

// Transport is the platform-provided access to relation databags.
// Lifecycle notifications (created/changed/broken) arrive through the
// operator's trigger source, not through this interface.
type Transport interface {
	// Relation returns a snapshot of the single relation on endpoint,
	// or false if none exists.
	Relation(endpoint string) (*Relation, bool)

	// Write replaces the databag of a locally owned participant on the
	// given relation. Writing RemoteApp fails with ErrReadOnly.
	Write(relationID int, p Participant, bag databag.Bag) error
}
