package worker

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/obsstack/lokiop/pkg/log"
	"github.com/obsstack/lokiop/pkg/types"
)

// Facade translates coordination outcomes into concrete actions on the
// managed Loki workload: config file sync, certificate installation, and
// service declaration management. It never reads the relation exchange
// directly; it is handed already-validated values.
//
// Every update operation reports whether it changed anything, so the
// caller can decide if a restart is warranted, and each is independently
// idempotent.
type Facade struct {
	container Container
	secrets   SecretStore
	logger    zerolog.Logger
}

// NewFacade creates a facade over the given supervisor and secret store.
func NewFacade(container Container, secrets SecretStore) *Facade {
	return &Facade{
		container: container,
		secrets:   secrets,
		logger:    log.WithComponent("worker"),
	}
}

// CanConnect reports whether the workload container is reachable.
func (f *Facade) CanConnect() bool {
	return f.container.CanConnect()
}

// UpdateConfig renders config to YAML and pushes it if it differs from
// the file the workload currently runs with. An unreadable current file
// counts as different.
func (f *Facade) UpdateConfig(config map[string]any) (bool, error) {
	if len(config) == 0 {
		f.logger.Warn().Msg("cannot update loki config: coordinator hasn't published one yet")
		return false, nil
	}

	desired, err := yaml.Marshal(config)
	if err != nil {
		return false, fmt.Errorf("failed to render loki config: %w", err)
	}

	if current, ok := f.runningConfig(); ok && bytes.Equal(current, desired) {
		return false, nil
	}

	if err := f.container.Push(types.ConfigFilePath, desired, true); err != nil {
		return false, fmt.Errorf("failed to push loki config: %w", err)
	}
	f.logger.Info().Msg("pushed new loki configuration")
	return true, nil
}

// runningConfig reads back the workload's current config file, normalized
// through a YAML round trip. ok is false when the file cannot be read or
// parsed; callers treat "unknown" as "different".
func (f *Facade) runningConfig() ([]byte, bool) {
	if !f.container.CanConnect() {
		f.logger.Debug().Msg("could not connect to loki container")
		return nil, false
	}

	raw, err := f.container.Pull(types.ConfigFilePath)
	if err != nil {
		f.logger.Warn().Err(err).Msg("could not retrieve the current loki configuration")
		return nil, false
	}

	var parsed map[string]any
	if err := yaml.Unmarshal(raw, &parsed); err != nil {
		f.logger.Warn().Err(err).Msg("current loki configuration is not valid yaml")
		return nil, false
	}
	normalized, err := yaml.Marshal(parsed)
	if err != nil {
		return nil, false
	}
	return normalized, true
}

// UpdateTLSCertificates synchronizes the workload's TLS material with the
// given secret pointers. With pointers present, the material is resolved
// and the certificate, key and CA files are written and the container
// trust store refreshed; resolution failure propagates as
// *CertificateUnavailableError with nothing written. With pointers
// absent, all four files are removed and the trust store refreshed.
//
// The absent branch always reports changed=true, even when the files were
// already gone: certificate presence transitions explicitly.
func (f *Facade) UpdateTLSCertificates(rawSecretIDs *string) (bool, error) {
	if !f.container.CanConnect() {
		return false, nil
	}

	if rawSecretIDs == nil {
		for _, path := range []string{
			types.CertFilePath,
			types.KeyFilePath,
			types.CAFilePath,
			types.TrustStoreCAPath,
		} {
			if err := f.container.RemovePath(path, true); err != nil {
				return false, fmt.Errorf("failed to remove %s: %w", path, err)
			}
		}
		if err := f.refreshTrustStore(); err != nil {
			return false, err
		}
		return true, nil
	}

	material, err := resolveCertMaterial(f.secrets, *rawSecretIDs)
	if err != nil {
		return false, err
	}

	files := []struct {
		path    string
		content string
	}{
		{types.CertFilePath, material.serverCert},
		{types.KeyFilePath, material.privateKey},
		{types.CAFilePath, material.caCert},
		{types.TrustStoreCAPath, material.caCert},
	}
	for _, file := range files {
		if err := f.container.Push(file.path, []byte(file.content), true); err != nil {
			return false, fmt.Errorf("failed to push %s: %w", file.path, err)
		}
	}
	if err := f.refreshTrustStore(); err != nil {
		return false, err
	}
	return true, nil
}

func (f *Facade) refreshTrustStore() error {
	if _, err := f.container.Exec([]string{"update-ca-certificates", "--fresh"}); err != nil {
		return fmt.Errorf("failed to refresh ca certificates: %w", err)
	}
	return nil
}

// LayerFor computes the desired service declaration for the given role
// set. The daemon targets the sorted, comma-joined roles. A tracing
// endpoint, when configured, is injected through the service environment.
func LayerFor(roles []types.Role, tracingEndpoint string) Layer {
	names := make([]string, 0, len(roles))
	for _, role := range roles {
		names = append(names, string(role))
	}
	// Roles arrive sorted from RolesFromConfig; joining keeps the
	// command deterministic either way.
	targets := strings.Join(names, ",")

	service := Service{
		Override: "replace",
		Summary:  "loki worker daemon",
		Command: fmt.Sprintf("%s --config.file=%s -target %s -auth.multitenancy-enabled=false",
			types.WorkerBinary, types.ConfigFilePath, targets),
		Startup: "enabled",
	}
	if tracingEndpoint != "" {
		service.Environment = map[string]string{
			"OTEL_EXPORTER_OTLP_ENDPOINT": tracingEndpoint,
		}
	}

	return Layer{
		Summary:     "loki worker layer",
		Description: "config layer for the loki worker",
		Services: map[string]Service{
			types.WorkerService: service,
		},
	}
}

// SetLayer installs the desired service declaration if it differs from
// the installed one. It is a no-op while the container is unreachable or
// no roles are configured.
func (f *Facade) SetLayer(roles []types.Role, tracingEndpoint string) (bool, error) {
	if !f.container.CanConnect() {
		return false, nil
	}
	if len(roles) == 0 {
		return false, nil
	}

	desired := LayerFor(roles, tracingEndpoint)

	current, err := f.container.Plan()
	if err == nil && servicesEqual(current.Services, desired.Services) {
		return false, nil
	}

	if err := f.container.AddLayer(types.WorkerService, desired, true); err != nil {
		return false, fmt.Errorf("failed to add service layer: %w", err)
	}
	return true, nil
}

func servicesEqual(a, b map[string]Service) bool {
	if len(a) != len(b) {
		return false
	}
	for name, sa := range a {
		sb, ok := b[name]
		if !ok {
			return false
		}
		if sa.Override != sb.Override || sa.Summary != sb.Summary ||
			sa.Command != sb.Command || sa.Startup != sb.Startup {
			return false
		}
		if len(sa.Environment) != len(sb.Environment) {
			return false
		}
		for k, v := range sa.Environment {
			if sb.Environment[k] != v {
				return false
			}
		}
	}
	return true
}

// Restart restarts the workload if running, else starts it. A missing
// config file is logged and tolerated: this models the race where a
// restart is requested before the first config push completed. With no
// roles configured there is nothing meaningful to run, so it skips
// entirely. Supervision failures are logged and swallowed; they surface
// through the next status pass.
func (f *Facade) Restart(roles []types.Role) {
	if _, err := f.container.Pull(types.ConfigFilePath); err != nil {
		f.logger.Error().Err(err).Msg("cannot restart loki: config file doesn't exist (yet)")
	}

	if len(roles) == 0 {
		f.logger.Debug().Msg("cannot restart loki: no roles have been configured")
		return
	}

	status, err := f.container.ServiceStatus(types.WorkerService)
	if err != nil {
		status = ServiceUnknown
	}

	if status == ServiceActive {
		err = f.container.Restart(types.WorkerService)
	} else {
		err = f.container.Start(types.WorkerService)
	}
	if err != nil {
		f.logger.Error().Err(err).Msg("failed to (re)start loki job")
	}
}

var versionPattern = regexp.MustCompile(`(?i)version:?\s*(\S+)`)

// Version invokes the workload binary's version flag and extracts the
// version token from output shaped like
// "loki, version 2.4.0 (branch: HEAD, revision 32137ee)". It returns the
// empty string on any connectivity failure or pattern miss.
func (f *Facade) Version() string {
	if !f.container.CanConnect() {
		return ""
	}

	output, err := f.container.Exec([]string{types.WorkerBinary, "-version"})
	if err != nil {
		return ""
	}

	match := versionPattern.FindStringSubmatch(output)
	if match == nil {
		return ""
	}
	return match[1]
}
