package operator

import "github.com/obsstack/lokiop/pkg/types"

// Snapshot captures the externally observable state that status
// aggregation depends on. It is assembled once per collect-status trigger.
type Snapshot struct {
	// ContainerReachable is whether the workload supervisor responds.
	ContainerReachable bool
	// HasRelation is whether any cluster relation instance exists.
	HasRelation bool
	// RelationReady is whether that relation is healthy (remote identity
	// and data resolvable).
	RelationReady bool
	// ConfigAvailable is whether the coordinator has published a valid,
	// non-empty config.
	ConfigAvailable bool
	// RolesConfigured is whether the operator has any roles declared.
	RolesConfigured bool
}

// CollectStatus evaluates every applicable status condition in priority
// order and returns the candidates, most severe first, always ending with
// Active. It is a pure function with no side effects.
func CollectStatus(s Snapshot) []types.Status {
	var candidates []types.Status

	if !s.ContainerReachable {
		candidates = append(candidates, types.Status{
			Kind:    types.StatusWaiting,
			Message: "Waiting for `loki` container",
		})
	}
	if !s.HasRelation {
		candidates = append(candidates, types.Status{
			Kind:    types.StatusBlocked,
			Message: "Missing loki-cluster relation to a loki coordinator",
		})
	} else if !s.RelationReady {
		candidates = append(candidates, types.Status{
			Kind:    types.StatusWaiting,
			Message: "loki-cluster relation not ready",
		})
	}
	if !s.ConfigAvailable {
		candidates = append(candidates, types.Status{
			Kind:    types.StatusWaiting,
			Message: "Waiting for coordinator to publish a loki config",
		})
	}
	if !s.RolesConfigured {
		candidates = append(candidates, types.Status{
			Kind:    types.StatusBlocked,
			Message: "No roles assigned: please configure some roles",
		})
	}

	candidates = append(candidates, types.Status{Kind: types.StatusActive})
	return candidates
}

// ResolveStatus picks the externally visible status from the candidate
// list: the first blocking or waiting condition wins, else Active.
func ResolveStatus(candidates []types.Status) types.Status {
	for _, status := range candidates {
		if status.Kind != types.StatusActive {
			return status
		}
	}
	return types.Status{Kind: types.StatusActive}
}
