package operator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/obsstack/lokiop/pkg/types"
)

func TestResolveStatus(t *testing.T) {
	healthy := Snapshot{
		ContainerReachable: true,
		HasRelation:        true,
		RelationReady:      true,
		ConfigAvailable:    true,
		RolesConfigured:    true,
	}

	tests := []struct {
		name     string
		mutate   func(*Snapshot)
		wantKind types.StatusKind
		wantMsg  string
	}{
		{
			name:     "everything healthy",
			mutate:   func(s *Snapshot) {},
			wantKind: types.StatusActive,
		},
		{
			name:     "container unreachable",
			mutate:   func(s *Snapshot) { s.ContainerReachable = false },
			wantKind: types.StatusWaiting,
			wantMsg:  "Waiting for `loki` container",
		},
		{
			name: "no relation",
			mutate: func(s *Snapshot) {
				s.HasRelation = false
				s.RelationReady = false
				s.ConfigAvailable = false
			},
			wantKind: types.StatusBlocked,
			wantMsg:  "Missing loki-cluster relation to a loki coordinator",
		},
		{
			name: "relation not ready",
			mutate: func(s *Snapshot) {
				s.RelationReady = false
				s.ConfigAvailable = false
			},
			wantKind: types.StatusWaiting,
			wantMsg:  "loki-cluster relation not ready",
		},
		{
			name:     "no config yet",
			mutate:   func(s *Snapshot) { s.ConfigAvailable = false },
			wantKind: types.StatusWaiting,
			wantMsg:  "Waiting for coordinator to publish a loki config",
		},
		{
			name:     "no roles declared",
			mutate:   func(s *Snapshot) { s.RolesConfigured = false },
			wantKind: types.StatusBlocked,
			wantMsg:  "No roles assigned: please configure some roles",
		},
		{
			name: "container outranks missing roles",
			mutate: func(s *Snapshot) {
				s.ContainerReachable = false
				s.RolesConfigured = false
			},
			wantKind: types.StatusWaiting,
			wantMsg:  "Waiting for `loki` container",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snapshot := healthy
			tt.mutate(&snapshot)

			status := ResolveStatus(CollectStatus(snapshot))
			assert.Equal(t, tt.wantKind, status.Kind)
			assert.Equal(t, tt.wantMsg, status.Message)
		})
	}
}

func TestCollectStatusAlwaysEndsActive(t *testing.T) {
	candidates := CollectStatus(Snapshot{})
	assert.Equal(t, types.StatusActive, candidates[len(candidates)-1].Kind)
}
