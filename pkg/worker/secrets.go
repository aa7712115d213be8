package worker

import (
	"fmt"

	"github.com/obsstack/lokiop/pkg/databag"
)

// SecretStore resolves secret pointers to their content mapping. A field
// absent from the content yields an empty string, not an error.
type SecretStore interface {
	Get(id string) (map[string]string, error)
}

// CertificateUnavailableError is returned when certificate secret pointers
// are present but the material behind them cannot be resolved. TLS state
// is security-sensitive, so this never fails silently.
type CertificateUnavailableError struct {
	Err error
}

func (e *CertificateUnavailableError) Error() string {
	return fmt.Sprintf("worker: certificate material unavailable: %v", e.Err)
}

func (e *CertificateUnavailableError) Unwrap() error { return e.Err }

// certMaterial is the resolved TLS material for the workload.
type certMaterial struct {
	privateKey string
	caCert     string
	serverCert string
}

// resolveCertMaterial parses the raw secret pointer document and fetches
// the material it points at. Every failure, parse included, is
// CertificateUnavailable: nothing is written until the full bundle
// resolved.
func resolveCertMaterial(store SecretStore, raw string) (certMaterial, error) {
	ids, err := databag.ParseCertSecretIDs(raw)
	if err != nil {
		return certMaterial{}, &CertificateUnavailableError{Err: err}
	}

	keyContent, err := store.Get(ids.PrivateKeySecretID)
	if err != nil {
		return certMaterial{}, &CertificateUnavailableError{Err: err}
	}
	caContent, err := store.Get(ids.CAServerCertSecretID)
	if err != nil {
		return certMaterial{}, &CertificateUnavailableError{Err: err}
	}

	return certMaterial{
		privateKey: keyContent["private-key"],
		caCert:     caContent["ca-cert"],
		serverCert: caContent["server-cert"],
	}, nil
}
