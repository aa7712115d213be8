package operator

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/obsstack/lokiop/pkg/log"
	"github.com/obsstack/lokiop/pkg/types"
	"github.com/obsstack/lokiop/pkg/worker"
)

// ForwardingConfigPath is where the workload's stdout forwarding
// declaration lives inside the container.
const ForwardingConfigPath = "/etc/loki/log-forwarding.yaml"

// LogForwarder keeps the workload's stdout forwarding aligned with the
// Loki endpoints the coordinator currently advertises. Forwarding targets
// are labelled with this unit's topology so aggregated logs stay
// attributable.
type LogForwarder struct {
	container worker.Container
	topology  types.Topology
	logger    zerolog.Logger
}

// NewLogForwarder creates a forwarder for the given container.
func NewLogForwarder(container worker.Container, topology types.Topology) *LogForwarder {
	return &LogForwarder{
		container: container,
		topology:  topology,
		logger:    log.WithComponent("log-forwarder"),
	}
}

type forwardingTarget struct {
	URL    string            `yaml:"url"`
	Labels map[string]string `yaml:"labels"`
}

type forwardingConfig struct {
	Targets map[string]forwardingTarget `yaml:"targets"`
}

// Update reconciles forwarding with the active endpoint set. An empty set
// disables all forwarding; endpoints still visible after a relation has
// started breaking are handled by Disable instead.
func (l *LogForwarder) Update(endpoints map[string]string) error {
	if len(endpoints) == 0 {
		l.logger.Warn().Msg("no loki endpoints available")
		return l.Disable()
	}
	if !l.container.CanConnect() {
		return nil
	}

	cfg := forwardingConfig{Targets: make(map[string]forwardingTarget, len(endpoints))}
	names := make([]string, 0, len(endpoints))
	for name := range endpoints {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		cfg.Targets[name] = forwardingTarget{
			URL: endpoints[name],
			Labels: map[string]string{
				"model": l.topology.Model,
				"unit":  l.topology.Unit,
			},
		}
	}

	rendered, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to render forwarding config: %w", err)
	}
	if err := l.container.Push(ForwardingConfigPath, rendered, true); err != nil {
		return fmt.Errorf("failed to push forwarding config: %w", err)
	}
	l.logger.Debug().Int("targets", len(endpoints)).Msg("log forwarding updated")
	return nil
}

// Disable removes all forwarding. Called on relation departure and break,
// when relation data may still show stale endpoints.
func (l *LogForwarder) Disable() error {
	if !l.container.CanConnect() {
		return nil
	}
	if err := l.container.RemovePath(ForwardingConfigPath, false); err != nil {
		return fmt.Errorf("failed to remove forwarding config: %w", err)
	}
	l.logger.Debug().Msg("log forwarding disabled")
	return nil
}
