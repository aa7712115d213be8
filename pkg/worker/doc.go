// Package worker drives the managed Loki workload through its container
// supervisor: config sync, TLS material installation, service declaration
// management, restart policy and version probing.
package worker
