// Package secrets provides the AES-256-GCM encrypted local secret store
// backing certificate material resolution.
package secrets
