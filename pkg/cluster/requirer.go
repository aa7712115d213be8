package cluster

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/rs/zerolog"

	"github.com/obsstack/lokiop/pkg/databag"
	"github.com/obsstack/lokiop/pkg/events"
	"github.com/obsstack/lokiop/pkg/log"
	"github.com/obsstack/lokiop/pkg/relation"
	"github.com/obsstack/lokiop/pkg/types"
)

// ErrPermissionDenied is returned when a non-leader unit attempts a
// leader-only write. This is a programming-contract violation, not a
// runtime condition to recover from.
var ErrPermissionDenied = errors.New("cluster: only the leader unit can publish application data")

// InvalidAddressError is returned when the address handed to
// PublishUnitAddress is not a syntactically valid URL.
type InvalidAddressError struct {
	Address string
	Err     error
}

func (e *InvalidAddressError) Error() string {
	return fmt.Sprintf("cluster: %q is not a valid url: %v", e.Address, e.Err)
}

func (e *InvalidAddressError) Unwrap() error { return e.Err }

// Config configures a Requirer.
type Config struct {
	// Endpoint the relation is addressed by. Defaults to
	// types.ClusterEndpoint.
	Endpoint string
	// Topology identifies this unit.
	Topology types.Topology
	// IsLeader reports whether this unit currently holds application
	// leadership.
	IsLeader func() bool
	// Transport is the platform's relation databag access.
	Transport relation.Transport
	// Bus receives the derived cluster events.
	Bus *events.Bus
}

// Requirer is the worker-side endpoint wrapper for the cluster relation.
// It exclusively owns interpretation of both databags on this endpoint:
// it publishes unit/app facts, fetches and validates coordinator facts,
// and derives higher-level lifecycle events from raw relation triggers.
type Requirer struct {
	endpoint  string
	topology  types.Topology
	isLeader  func() bool
	transport relation.Transport
	bus       *events.Bus
	logger    zerolog.Logger
}

// NewRequirer creates a requirer over the given transport.
func NewRequirer(cfg Config) *Requirer {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = types.ClusterEndpoint
	}
	return &Requirer{
		endpoint:  endpoint,
		topology:  cfg.Topology,
		isLeader:  cfg.IsLeader,
		transport: cfg.Transport,
		bus:       cfg.Bus,
		logger:    log.WithComponent("cluster"),
	}
}

// Endpoint returns the relation endpoint name this requirer watches.
func (r *Requirer) Endpoint() string { return r.endpoint }

// relation returns the current healthy relation, filtering out the common
// unhappy states: missing remote application identity, absent data.
func (r *Requirer) relation() (*relation.Relation, bool) {
	rel, ok := r.transport.Relation(r.endpoint)
	if !ok || !rel.Healthy() {
		return nil, false
	}
	return rel, true
}

// HasRelation reports whether any relation instance exists on the
// endpoint, healthy or not. Status aggregation distinguishes "no relation"
// from "relation not ready".
func (r *Requirer) HasRelation() bool {
	_, ok := r.transport.Relation(r.endpoint)
	return ok
}

// Connected reports whether exactly one healthy relation instance is
// present.
func (r *Requirer) Connected() bool {
	_, ok := r.relation()
	return ok
}

// PublishUnitAddress writes this unit's address record into its unit
// databag. The address must be a syntactically valid URL. No-op while
// disconnected.
func (r *Requirer) PublishUnitAddress(address string) error {
	if _, err := url.Parse(address); err != nil {
		return &InvalidAddressError{Address: address, Err: err}
	}

	rel, ok := r.relation()
	if !ok {
		return nil
	}

	record := databag.RequirerUnitData{
		Topology: r.topology,
		Address:  address,
	}
	bag := rel.Bag(relation.LocalUnit)
	if err := record.Encode(bag); err != nil {
		return fmt.Errorf("failed to encode unit data: %w", err)
	}
	return r.transport.Write(rel.ID, relation.LocalUnit, bag)
}

// PublishRoles writes the application's role set into the shared
// application databag. All app-data writes pass through this single
// leader-guarded entry point; a non-leader caller gets ErrPermissionDenied
// and nothing is written. No-op while disconnected.
func (r *Requirer) PublishRoles(roles []types.Role) error {
	if r.isLeader == nil || !r.isLeader() {
		return ErrPermissionDenied
	}

	rel, ok := r.relation()
	if !ok {
		return nil
	}

	record := databag.RequirerAppData{Roles: roles}
	bag := rel.Bag(relation.LocalApp)
	if err := record.Encode(bag); err != nil {
		return fmt.Errorf("failed to encode app data: %w", err)
	}
	return r.transport.Write(rel.ID, relation.LocalApp, bag)
}

// Published reports whether the local side has done all it needs to do:
// unit address and application roles both decode from the relation. It
// distinguishes "we published, then the coordinator cleared its state"
// from "we never published".
func (r *Requirer) Published() bool {
	rel, ok := r.relation()
	if !ok {
		return false
	}

	if _, err := databag.DecodeRequirerUnitData(rel.Bag(relation.LocalUnit)); err != nil {
		r.logger.Info().Err(err).Msg("unit databag not published")
		return false
	}
	if _, err := databag.DecodeRequirerAppData(rel.Bag(relation.LocalApp)); err != nil {
		r.logger.Info().Err(err).Msg("app databag not published")
		return false
	}
	return true
}

// providerData fetches and validates the coordinator's databag. Validation
// failures are logged at info level and reported as absence.
func (r *Requirer) providerData() (databag.ProviderAppData, bool) {
	rel, ok := r.relation()
	if !ok {
		return databag.ProviderAppData{}, false
	}

	data, err := databag.DecodeProviderAppData(rel.Bag(relation.RemoteApp))
	if err != nil {
		r.logger.Info().Err(err).Msg("invalid coordinator databag contents")
		return databag.ProviderAppData{}, false
	}
	return data, true
}

// Config returns the worker config published by the coordinator, or an
// empty map while none is available.
func (r *Requirer) Config() map[string]any {
	data, ok := r.providerData()
	if !ok || data.LokiConfig == nil {
		return map[string]any{}
	}
	return data.LokiConfig
}

// Endpoints returns the logical-name to URL endpoint mapping published by
// the coordinator, or an empty map while none is available.
func (r *Requirer) Endpoints() map[string]string {
	data, ok := r.providerData()
	if !ok || data.LokiEndpoints == nil {
		return map[string]string{}
	}
	return data.LokiEndpoints
}

// CertSecretIDs returns the raw certificate secret pointer document from
// the coordinator databag, undecoded, or nil if absent. The pointer is
// opaque at this layer.
func (r *Requirer) CertSecretIDs() *string {
	rel, ok := r.relation()
	if !ok {
		return nil
	}
	raw, ok := rel.Bag(relation.RemoteApp)[databag.CertSecretIDsKey]
	if !ok {
		return nil
	}
	return &raw
}

// HandleCreated derives the cluster.created event from the
// relation-created trigger.
func (r *Requirer) HandleCreated() {
	r.bus.Publish(events.Event{Type: events.EventClusterCreated})
}

// HandleChanged derives events from the relation-changed trigger. A valid,
// non-empty coordinator config yields cluster.config-received. An empty or
// invalid config after we published our own data means the remote end tore
// down or reset its side, yielding cluster.removed. Anything else is a
// transient state still settling, and yields nothing.
func (r *Requirer) HandleChanged() {
	if !r.Connected() {
		return
	}

	if config := r.Config(); len(config) > 0 {
		r.bus.Publish(events.Event{Type: events.EventConfigReceived, Config: config})
		return
	}
	if r.Published() {
		r.bus.Publish(events.Event{Type: events.EventClusterRemoved})
	}
}

// HandleBroken derives the cluster.removed event from the relation-broken
// trigger, unconditionally.
func (r *Requirer) HandleBroken() {
	r.bus.Publish(events.Event{Type: events.EventClusterRemoved})
}
