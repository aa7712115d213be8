// Package metrics defines the Prometheus metrics exposed on the admin
// listener.
package metrics
