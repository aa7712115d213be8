package relation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obsstack/lokiop/pkg/databag"
)

func TestRelationHealthy(t *testing.T) {
	tests := []struct {
		name string
		rel  *Relation
		want bool
	}{
		{
			name: "nil relation",
			rel:  nil,
			want: false,
		},
		{
			name: "missing remote identity",
			rel:  &Relation{ID: 1, Endpoint: "loki-cluster", Data: map[Participant]databag.Bag{}},
			want: false,
		},
		{
			name: "missing data",
			rel:  &Relation{ID: 1, Endpoint: "loki-cluster", RemoteApp: "coordinator"},
			want: false,
		},
		{
			name: "healthy",
			rel: &Relation{
				ID: 1, Endpoint: "loki-cluster", RemoteApp: "coordinator",
				Data: map[Participant]databag.Bag{LocalUnit: {}},
			},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.rel.Healthy())
		})
	}
}

func TestMemorySnapshotIsolation(t *testing.T) {
	m := NewMemory()
	m.Add(1, "loki-cluster", "coordinator")
	m.SetRemoteAppBag("loki-cluster", databag.Bag{"k": `"v"`})

	snap, ok := m.Relation("loki-cluster")
	require.True(t, ok)

	// Mutating the snapshot must not leak into the transport.
	snap.Bag(RemoteApp)["k"] = `"changed"`

	fresh, ok := m.Relation("loki-cluster")
	require.True(t, ok)
	assert.Equal(t, `"v"`, fresh.Bag(RemoteApp)["k"])
}

func TestMemoryWriteRemoteIsReadOnly(t *testing.T) {
	m := NewMemory()
	m.Add(1, "loki-cluster", "coordinator")

	err := m.Write(1, RemoteApp, databag.Bag{})
	assert.ErrorIs(t, err, ErrReadOnly)
}

func TestMemoryWriteUnknownRelation(t *testing.T) {
	m := NewMemory()
	err := m.Write(42, LocalUnit, databag.Bag{})
	assert.Error(t, err)
}

func TestBoltStoreRoundTrip(t *testing.T) {
	store, err := NewBoltStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.EnsureRelation(7, "loki-cluster", "coordinator"))
	require.NoError(t, store.SetRemoteAppBag("loki-cluster", databag.Bag{"loki_config": `{"a":1}`}))
	require.NoError(t, store.Write(7, LocalUnit, databag.Bag{"address": `"http://u0"`}))

	rel, ok := store.Relation("loki-cluster")
	require.True(t, ok)
	assert.Equal(t, 7, rel.ID)
	assert.Equal(t, "coordinator", rel.RemoteApp)
	assert.True(t, rel.Healthy())
	assert.Equal(t, `{"a":1}`, rel.Bag(RemoteApp)["loki_config"])
	assert.Equal(t, `"http://u0"`, rel.Bag(LocalUnit)["address"])
}

func TestBoltStoreUnresolvedIdentity(t *testing.T) {
	store, err := NewBoltStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.EnsureRelation(1, "loki-cluster", ""))

	rel, ok := store.Relation("loki-cluster")
	require.True(t, ok)
	assert.False(t, rel.Healthy())
	assert.Nil(t, rel.Data)
}

func TestBoltStoreRemoveRelation(t *testing.T) {
	store, err := NewBoltStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.EnsureRelation(1, "loki-cluster", "coordinator"))
	require.NoError(t, store.Write(1, LocalApp, databag.Bag{"roles": `["read"]`}))
	require.NoError(t, store.RemoveRelation("loki-cluster"))

	_, ok := store.Relation("loki-cluster")
	assert.False(t, ok)

	// Removing an absent relation is a no-op.
	require.NoError(t, store.RemoveRelation("loki-cluster"))
}

func TestBoltStoreWriteRemoteIsReadOnly(t *testing.T) {
	store, err := NewBoltStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	err = store.Write(1, RemoteApp, databag.Bag{})
	assert.ErrorIs(t, err, ErrReadOnly)
}
