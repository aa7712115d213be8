package operator

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/obsstack/lokiop/pkg/cluster"
	"github.com/obsstack/lokiop/pkg/events"
	"github.com/obsstack/lokiop/pkg/log"
	"github.com/obsstack/lokiop/pkg/metrics"
	"github.com/obsstack/lokiop/pkg/types"
	"github.com/obsstack/lokiop/pkg/worker"
)

// Trigger is one external lifecycle trigger. The set is closed; the
// hosting platform delivers them one at a time.
type Trigger string

const (
	TriggerWorkloadReady    Trigger = "workload-ready"
	TriggerConfigChanged    Trigger = "config-changed"
	TriggerUpgrade          Trigger = "upgrade"
	TriggerRelationCreated  Trigger = "relation-created"
	TriggerRelationChanged  Trigger = "relation-changed"
	TriggerRelationDeparted Trigger = "relation-departed"
	TriggerRelationBroken   Trigger = "relation-broken"
	TriggerCollectStatus    Trigger = "collect-status"
)

// Config holds the operator's declared configuration and platform hooks.
type Config struct {
	// Roles is the declared role configuration.
	Roles types.RoleConfig
	// TracingEndpoint, when set, is injected into the workload's service
	// environment.
	TracingEndpoint string
	// Address returns this unit's published address.
	Address func() string
	// IsLeader reports application leadership.
	IsLeader func() bool
	// SetWorkloadVersion reports the workload version to the platform.
	// Optional.
	SetWorkloadVersion func(version string)
	// SetStatus receives the aggregated status on collect-status.
	// Optional.
	SetStatus func(status types.Status)
}

// Operator wires external lifecycle triggers to the cluster requirer and
// the worker facade, and aggregates current state into a single externally
// visible status. Exactly one trigger is processed to completion before
// the next is considered.
type Operator struct {
	cfg       Config
	requirer  *cluster.Requirer
	facade    *worker.Facade
	forwarder *LogForwarder
	logger    zerolog.Logger
}

// New creates an operator and subscribes it to the derived cluster events
// on bus.
func New(cfg Config, requirer *cluster.Requirer, facade *worker.Facade, forwarder *LogForwarder, bus *events.Bus) *Operator {
	o := &Operator{
		cfg:       cfg,
		requirer:  requirer,
		facade:    facade,
		forwarder: forwarder,
		logger:    log.WithComponent("operator"),
	}

	bus.Subscribe(events.EventClusterCreated, func(e events.Event) {
		metrics.ClusterEventsTotal.WithLabelValues(string(e.Type)).Inc()
		if err := o.updateCluster(); err != nil {
			o.logger.Error().Err(err).Msg("failed to publish cluster data")
		}
	})
	bus.Subscribe(events.EventConfigReceived, func(e events.Event) {
		metrics.ClusterEventsTotal.WithLabelValues(string(e.Type)).Inc()
		if err := o.updateWorkload(); err != nil {
			o.logger.Error().Err(err).Msg("failed to update workload")
		}
	})
	bus.Subscribe(events.EventClusterRemoved, func(e events.Event) {
		metrics.ClusterEventsTotal.WithLabelValues(string(e.Type)).Inc()
		o.logger.Info().Msg("cluster relation removed")
	})

	return o
}

// Roles returns the currently active role set, derived from declared
// configuration on every call.
func (o *Operator) Roles() []types.Role {
	return types.RolesFromConfig(o.cfg.Roles)
}

// Dispatch processes a single trigger to completion.
func (o *Operator) Dispatch(trigger Trigger) error {
	metrics.TriggersTotal.WithLabelValues(string(trigger)).Inc()

	err := o.dispatch(trigger)
	if err != nil {
		metrics.TriggerErrors.WithLabelValues(string(trigger)).Inc()
	}
	return err
}

func (o *Operator) dispatch(trigger Trigger) error {
	switch trigger {
	case TriggerWorkloadReady:
		if o.cfg.SetWorkloadVersion != nil {
			o.cfg.SetWorkloadVersion(o.facade.Version())
		}
		return o.updateWorkload()

	case TriggerConfigChanged:
		// The declared roles may have changed, so the coordinator may
		// need to hear about it.
		if err := o.updateCluster(); err != nil {
			return err
		}
		// With a config in hand the workload can be (re)started.
		if len(o.requirer.Config()) > 0 {
			return o.updateWorkload()
		}
		return nil

	case TriggerUpgrade:
		return o.updateCluster()

	case TriggerRelationCreated:
		o.requirer.HandleCreated()
		return nil

	case TriggerRelationChanged:
		o.requirer.HandleChanged()
		if err := o.forwarder.Update(o.requirer.Endpoints()); err != nil {
			o.logger.Error().Err(err).Msg("failed to update log forwarding")
		}
		return nil

	case TriggerRelationDeparted:
		return o.forwarder.Disable()

	case TriggerRelationBroken:
		o.requirer.HandleBroken()
		return o.forwarder.Disable()

	case TriggerCollectStatus:
		status := ResolveStatus(CollectStatus(o.Snapshot()))
		if o.cfg.SetStatus != nil {
			o.cfg.SetStatus(status)
		}
		return nil
	}
	return fmt.Errorf("unknown trigger %q", trigger)
}

// Snapshot assembles the current externally observable state for status
// aggregation.
func (o *Operator) Snapshot() Snapshot {
	connected := o.requirer.Connected()
	if connected {
		metrics.ClusterConnected.Set(1)
	} else {
		metrics.ClusterConnected.Set(0)
	}
	return Snapshot{
		ContainerReachable: o.facade.CanConnect(),
		HasRelation:        o.requirer.HasRelation(),
		RelationReady:      connected,
		ConfigAvailable:    len(o.requirer.Config()) > 0,
		RolesConfigured:    len(o.Roles()) > 0,
	}
}

// updateCluster publishes everything the coordinator needs from us: the
// unit address always, the role set when this unit leads and has roles
// declared.
func (o *Operator) updateCluster() error {
	if err := o.requirer.PublishUnitAddress(o.cfg.Address()); err != nil {
		return fmt.Errorf("failed to publish unit address: %w", err)
	}

	roles := o.Roles()
	if o.cfg.IsLeader != nil && o.cfg.IsLeader() && len(roles) > 0 {
		o.logger.Info().Any("roles", roles).Msg("publishing loki roles")
		if err := o.requirer.PublishRoles(roles); err != nil {
			return fmt.Errorf("failed to publish roles: %w", err)
		}
	}
	return nil
}

// updateWorkload reconciles certificates, config file and service
// declaration, restarting the workload if any of the three changed.
// Certificate resolution failures propagate.
func (o *Operator) updateWorkload() error {
	certsChanged, err := o.facade.UpdateTLSCertificates(o.requirer.CertSecretIDs())
	if err != nil {
		return err
	}

	configChanged, err := o.facade.UpdateConfig(o.requirer.Config())
	if err != nil {
		return err
	}
	if configChanged {
		metrics.ConfigPushesTotal.Inc()
	}

	layerChanged, err := o.facade.SetLayer(o.Roles(), o.cfg.TracingEndpoint)
	if err != nil {
		return err
	}

	if certsChanged || configChanged || layerChanged {
		metrics.RestartsTotal.Inc()
		o.facade.Restart(o.Roles())
	}
	return nil
}
