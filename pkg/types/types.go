package types

import "sort"

// Role is a declared operational mode for a Loki worker. The coordinator
// uses the published role set to decide which parts of the workload this
// worker runs.
type Role string

const (
	RoleRead    Role = "read"
	RoleWrite   Role = "write"
	RoleBackend Role = "backend"
	RoleAll     Role = "all"
)

// AllRoles lists every valid role in canonical order.
var AllRoles = []Role{RoleAll, RoleBackend, RoleRead, RoleWrite}

// Valid reports whether r is a member of the closed role set.
func (r Role) Valid() bool {
	switch r {
	case RoleRead, RoleWrite, RoleBackend, RoleAll:
		return true
	}
	return false
}

// RoleConfig is the operator's declared role configuration, one switch per
// role. It is the only input to RolesFromConfig.
type RoleConfig struct {
	Read    bool
	Write   bool
	Backend bool
	All     bool
}

// RolesFromConfig derives the active role set from the declared
// configuration. It is pure: the result depends on cfg alone and is
// recomputed on every evaluation.
func RolesFromConfig(cfg RoleConfig) []Role {
	var roles []Role
	if cfg.Read {
		roles = append(roles, RoleRead)
	}
	if cfg.Write {
		roles = append(roles, RoleWrite)
	}
	if cfg.Backend {
		roles = append(roles, RoleBackend)
	}
	if cfg.All {
		roles = append(roles, RoleAll)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i] < roles[j] })
	return roles
}

// Topology identifies this unit within the hosting model.
type Topology struct {
	Model string `json:"model"`
	Unit  string `json:"unit"`
}

// StatusKind is the severity class of an operator status.
type StatusKind string

const (
	StatusActive  StatusKind = "active"
	StatusWaiting StatusKind = "waiting"
	StatusBlocked StatusKind = "blocked"
)

// Status is one externally visible status candidate.
type Status struct {
	Kind    StatusKind
	Message string
}

// Workload identity and filesystem layout. These paths live inside the
// workload container and are fixed by the Loki image, not configurable.
const (
	WorkerService = "loki"
	WorkerBinary  = "/bin/loki"
	WorkerPort    = 3100

	ConfigFilePath = "/etc/loki/loki-config.yaml"
	CertFilePath   = "/etc/loki/server.cert"
	KeyFilePath    = "/etc/loki/private.key"
	CAFilePath     = "/etc/loki/ca.cert"

	// TrustStoreCAPath is where the CA lands so the container's trust
	// store picks it up on refresh.
	TrustStoreCAPath = "/usr/local/share/ca-certificates/ca.crt"
)

// ClusterEndpoint is the relation endpoint name this operator coordinates
// over.
const ClusterEndpoint = "loki-cluster"
