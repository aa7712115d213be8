package operator

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obsstack/lokiop/pkg/cluster"
	"github.com/obsstack/lokiop/pkg/databag"
	"github.com/obsstack/lokiop/pkg/events"
	"github.com/obsstack/lokiop/pkg/relation"
	"github.com/obsstack/lokiop/pkg/types"
	"github.com/obsstack/lokiop/pkg/worker"
)

// fakeContainer is an in-memory worker.Container.
type fakeContainer struct {
	reachable bool
	files     map[string][]byte
	plan      worker.Layer
	status    worker.ServiceStatus

	pushed    []string
	started   []string
	restarted []string
}

func newFakeContainer() *fakeContainer {
	return &fakeContainer{
		reachable: true,
		files:     map[string][]byte{},
		status:    worker.ServiceInactive,
	}
}

func (c *fakeContainer) CanConnect() bool { return c.reachable }

func (c *fakeContainer) Exec(argv []string) (string, error) {
	if len(argv) > 0 && argv[0] == types.WorkerBinary {
		return "loki, version 2.4.0 (branch: HEAD)", nil
	}
	return "", nil
}

func (c *fakeContainer) Pull(path string) ([]byte, error) {
	data, ok := c.files[path]
	if !ok {
		return nil, fmt.Errorf("no such file: %s", path)
	}
	return data, nil
}

func (c *fakeContainer) Push(path string, data []byte, makeDirs bool) error {
	c.files[path] = data
	c.pushed = append(c.pushed, path)
	return nil
}

func (c *fakeContainer) RemovePath(path string, recursive bool) error {
	delete(c.files, path)
	return nil
}

func (c *fakeContainer) ServiceStatus(name string) (worker.ServiceStatus, error) {
	return c.status, nil
}

func (c *fakeContainer) Start(name string) error {
	c.started = append(c.started, name)
	c.status = worker.ServiceActive
	return nil
}

func (c *fakeContainer) Stop(name string) error {
	c.status = worker.ServiceInactive
	return nil
}

func (c *fakeContainer) Restart(name string) error {
	c.restarted = append(c.restarted, name)
	return nil
}

func (c *fakeContainer) Plan() (worker.Layer, error) { return c.plan, nil }

func (c *fakeContainer) AddLayer(name string, layer worker.Layer, combine bool) error {
	c.plan = layer
	return nil
}

type fakeSecrets struct{}

func (fakeSecrets) Get(id string) (map[string]string, error) {
	return nil, fmt.Errorf("secret not found: %s", id)
}

type harness struct {
	transport *relation.Memory
	container *fakeContainer
	operator  *Operator

	versions []string
	statuses []types.Status
}

func newHarness(t *testing.T, leader bool, roles types.RoleConfig) *harness {
	t.Helper()

	h := &harness{
		transport: relation.NewMemory(),
		container: newFakeContainer(),
	}

	topology := types.Topology{Model: "observability", Unit: "loki-worker/0"}
	bus := events.NewBus()
	requirer := cluster.NewRequirer(cluster.Config{
		Topology:  topology,
		IsLeader:  func() bool { return leader },
		Transport: h.transport,
		Bus:       bus,
	})
	facade := worker.NewFacade(h.container, fakeSecrets{})
	forwarder := NewLogForwarder(h.container, topology)

	h.operator = New(Config{
		Roles:              roles,
		Address:            func() string { return "http://loki-worker-0:3100" },
		IsLeader:           func() bool { return leader },
		SetWorkloadVersion: func(v string) { h.versions = append(h.versions, v) },
		SetStatus:          func(s types.Status) { h.statuses = append(h.statuses, s) },
	}, requirer, facade, forwarder, bus)

	return h
}

func (h *harness) connect() {
	h.transport.Add(1, types.ClusterEndpoint, "loki-coordinator")
}

func (h *harness) publishProvider(bag databag.Bag) {
	h.transport.SetRemoteAppBag(types.ClusterEndpoint, bag)
}

func TestDispatchRelationCreatedPublishes(t *testing.T) {
	h := newHarness(t, true, types.RoleConfig{Read: true})
	h.connect()

	require.NoError(t, h.operator.Dispatch(TriggerRelationCreated))

	rel, ok := h.transport.Relation(types.ClusterEndpoint)
	require.True(t, ok)

	unitData, err := databag.DecodeRequirerUnitData(rel.Bag(relation.LocalUnit))
	require.NoError(t, err)
	assert.Equal(t, "http://loki-worker-0:3100", unitData.Address)

	appData, err := databag.DecodeRequirerAppData(rel.Bag(relation.LocalApp))
	require.NoError(t, err)
	assert.Equal(t, []types.Role{types.RoleRead}, appData.Roles)
}

func TestDispatchRelationCreatedNonLeader(t *testing.T) {
	h := newHarness(t, false, types.RoleConfig{Read: true})
	h.connect()

	require.NoError(t, h.operator.Dispatch(TriggerRelationCreated))

	// A follower publishes its address but never the app data.
	rel, _ := h.transport.Relation(types.ClusterEndpoint)
	assert.NotEmpty(t, rel.Bag(relation.LocalUnit))
	assert.Empty(t, rel.Bag(relation.LocalApp))
}

func TestDispatchRelationChangedStartsWorkload(t *testing.T) {
	h := newHarness(t, true, types.RoleConfig{Read: true, Write: true})
	h.connect()
	h.publishProvider(databag.Bag{
		"loki_config":    `{"auth_enabled":false}`,
		"loki_endpoints": `{"loki":"http://loki:3100"}`,
	})

	require.NoError(t, h.operator.Dispatch(TriggerRelationChanged))

	assert.Contains(t, string(h.container.files[types.ConfigFilePath]), "auth_enabled: false")
	service := h.container.plan.Services[types.WorkerService]
	assert.Contains(t, service.Command, "-target read,write")
	assert.Equal(t, []string{types.WorkerService}, h.container.started)

	// Log forwarding tracks the advertised endpoints.
	assert.Contains(t, string(h.container.files[ForwardingConfigPath]), "http://loki:3100")
}

func TestDispatchRelationChangedSecondPass(t *testing.T) {
	h := newHarness(t, true, types.RoleConfig{All: true})
	h.connect()
	h.publishProvider(databag.Bag{"loki_config": `{"auth_enabled":false}`})

	require.NoError(t, h.operator.Dispatch(TriggerRelationChanged))
	require.NoError(t, h.operator.Dispatch(TriggerRelationChanged))

	// The config settled after the first pass and was not re-pushed.
	configPushes := 0
	for _, path := range h.container.pushed {
		if path == types.ConfigFilePath {
			configPushes++
		}
	}
	assert.Equal(t, 1, configPushes)

	// Certificate absence reports a transition on every pass, so the now
	// running service was restarted rather than started again.
	assert.Len(t, h.container.started, 1)
	assert.Len(t, h.container.restarted, 1)
}

func TestDispatchWorkloadReady(t *testing.T) {
	h := newHarness(t, false, types.RoleConfig{All: true})

	require.NoError(t, h.operator.Dispatch(TriggerWorkloadReady))

	assert.Equal(t, []string{"2.4.0"}, h.versions)
	// The service declaration is installed and the daemon brought up even
	// before a config arrives; the missing config file is tolerated.
	assert.Contains(t, h.container.plan.Services, types.WorkerService)
	assert.Equal(t, []string{types.WorkerService}, h.container.started)
}

func TestDispatchConfigChangedWithoutConfig(t *testing.T) {
	h := newHarness(t, true, types.RoleConfig{Backend: true})
	h.connect()

	require.NoError(t, h.operator.Dispatch(TriggerConfigChanged))

	// Cluster data is published, but nothing runs until a config exists.
	rel, _ := h.transport.Relation(types.ClusterEndpoint)
	assert.NotEmpty(t, rel.Bag(relation.LocalUnit))
	assert.Empty(t, h.container.started)
}

func TestDispatchRelationBrokenDisablesForwarding(t *testing.T) {
	h := newHarness(t, false, types.RoleConfig{All: true})
	h.container.files[ForwardingConfigPath] = []byte("targets: {}\n")

	require.NoError(t, h.operator.Dispatch(TriggerRelationBroken))
	assert.NotContains(t, h.container.files, ForwardingConfigPath)
}

func TestDispatchRelationDepartedDisablesForwarding(t *testing.T) {
	h := newHarness(t, false, types.RoleConfig{All: true})
	h.container.files[ForwardingConfigPath] = []byte("targets: {}\n")

	require.NoError(t, h.operator.Dispatch(TriggerRelationDeparted))
	assert.NotContains(t, h.container.files, ForwardingConfigPath)
}

func TestDispatchCollectStatus(t *testing.T) {
	h := newHarness(t, false, types.RoleConfig{})

	require.NoError(t, h.operator.Dispatch(TriggerCollectStatus))

	require.Len(t, h.statuses, 1)
	assert.Equal(t, types.StatusBlocked, h.statuses[0].Kind)
	assert.Equal(t, "Missing loki-cluster relation to a loki coordinator", h.statuses[0].Message)
}

func TestDispatchCollectStatusActive(t *testing.T) {
	h := newHarness(t, true, types.RoleConfig{All: true})
	h.connect()
	h.publishProvider(databag.Bag{"loki_config": `{"auth_enabled":false}`})

	require.NoError(t, h.operator.Dispatch(TriggerCollectStatus))

	require.Len(t, h.statuses, 1)
	assert.Equal(t, types.StatusActive, h.statuses[0].Kind)
}

func TestDispatchUnknownTrigger(t *testing.T) {
	h := newHarness(t, false, types.RoleConfig{})
	assert.Error(t, h.operator.Dispatch(Trigger("bogus")))
}

func TestForwarderUpdateEmptyDisables(t *testing.T) {
	container := newFakeContainer()
	container.files[ForwardingConfigPath] = []byte("targets: {}\n")
	forwarder := NewLogForwarder(container, types.Topology{Model: "m", Unit: "u/0"})

	require.NoError(t, forwarder.Update(nil))
	assert.NotContains(t, container.files, ForwardingConfigPath)
}

func TestForwarderLabelsTargets(t *testing.T) {
	container := newFakeContainer()
	forwarder := NewLogForwarder(container, types.Topology{Model: "observability", Unit: "loki-worker/0"})

	require.NoError(t, forwarder.Update(map[string]string{"loki": "http://loki:3100"}))

	rendered := string(container.files[ForwardingConfigPath])
	assert.Contains(t, rendered, "model: observability")
	assert.Contains(t, rendered, "unit: loki-worker/0")
}
