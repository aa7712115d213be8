package databag

import (
	"github.com/obsstack/lokiop/pkg/types"
)

// The closed set of record types exchanged over the cluster relation. Each
// type carries an explicit encode/decode pair; there is no generic
// reflection-driven model.

// RequirerUnitData is published by each worker unit into its own
// unit-scoped databag.
type RequirerUnitData struct {
	Topology types.Topology `json:"topology"`
	Address  string         `json:"address"`
}

var requirerUnitSchema = mustCompile(`{
	"type": "object",
	"required": ["topology", "address"],
	"properties": {
		"topology": {
			"type": "object",
			"required": ["model", "unit"],
			"properties": {
				"model": {"type": "string"},
				"unit": {"type": "string"}
			}
		},
		"address": {"type": "string"}
	}
}`)

// Encode writes the record into bag, replacing any previous record.
func (d RequirerUnitData) Encode(bag Bag) error {
	return encodeFlat(bag, map[string]any{
		"topology": d.Topology,
		"address":  d.Address,
	})
}

// DecodeRequirerUnitData decodes a unit databag into a RequirerUnitData.
func DecodeRequirerUnitData(bag Bag) (RequirerUnitData, error) {
	var out RequirerUnitData
	if err := decodeFlat(bag, requirerUnitSchema, &out); err != nil {
		return RequirerUnitData{}, err
	}
	return out, nil
}

// RequirerAppData is published once by the leader unit into the shared
// application databag.
type RequirerAppData struct {
	Roles []types.Role `json:"roles"`
}

var requirerAppSchema = mustCompile(`{
	"type": "object",
	"required": ["roles"],
	"properties": {
		"roles": {
			"type": "array",
			"items": {"enum": ["read", "write", "backend", "all"]}
		}
	}
}`)

// Encode writes the record into bag, replacing any previous record.
func (d RequirerAppData) Encode(bag Bag) error {
	roles := d.Roles
	if roles == nil {
		roles = []types.Role{}
	}
	return encodeFlat(bag, map[string]any{"roles": roles})
}

// DecodeRequirerAppData decodes an application databag into a
// RequirerAppData.
func DecodeRequirerAppData(bag Bag) (RequirerAppData, error) {
	var out RequirerAppData
	if err := decodeFlat(bag, requirerAppSchema, &out); err != nil {
		return RequirerAppData{}, err
	}
	return out, nil
}

// ProviderAppData is published by the coordinator's leader and read-only
// from this side.
type ProviderAppData struct {
	LokiConfig    map[string]any    `json:"loki_config"`
	LokiEndpoints map[string]string `json:"loki_endpoints,omitempty"`
}

var providerAppSchema = mustCompile(`{
	"type": "object",
	"required": ["loki_config"],
	"properties": {
		"loki_config": {"type": "object"},
		"loki_endpoints": {
			"type": "object",
			"additionalProperties": {"type": "string"}
		}
	}
}`)

// Encode writes the record into bag, replacing any previous record. Only
// the coordinator writes this shape; the encoder exists for tests and for
// symmetry with the other records.
func (d ProviderAppData) Encode(bag Bag) error {
	fields := map[string]any{"loki_config": d.LokiConfig}
	if d.LokiEndpoints != nil {
		fields["loki_endpoints"] = d.LokiEndpoints
	}
	return encodeFlat(bag, fields)
}

// DecodeProviderAppData decodes the coordinator's application databag.
func DecodeProviderAppData(bag Bag) (ProviderAppData, error) {
	var out ProviderAppData
	if err := decodeFlat(bag, providerAppSchema, &out); err != nil {
		return ProviderAppData{}, err
	}
	return out, nil
}

// CertSecretIDsKey is the well-known key the coordinator nests certificate
// secret pointers under.
const CertSecretIDsKey = "secrets"

// CertSecretIDs points at externally stored secret material. It is carried
// nested: the whole record is one JSON document under CertSecretIDsKey,
// not spread field-by-field.
type CertSecretIDs struct {
	PrivateKeySecretID   string `json:"private_key_secret_id"`
	CAServerCertSecretID string `json:"ca_server_cert_secret_id"`
}

var certSecretIDsSchema = mustCompile(`{
	"type": "object",
	"required": ["private_key_secret_id", "ca_server_cert_secret_id"],
	"properties": {
		"private_key_secret_id": {"type": "string"},
		"ca_server_cert_secret_id": {"type": "string"}
	}
}`)

// Encode writes the record into bag under CertSecretIDsKey.
func (d CertSecretIDs) Encode(bag Bag) error {
	return encodeNested(bag, CertSecretIDsKey, d)
}

// DecodeCertSecretIDs decodes the nested record from bag.
func DecodeCertSecretIDs(bag Bag) (CertSecretIDs, error) {
	var out CertSecretIDs
	if err := decodeNested(bag, CertSecretIDsKey, certSecretIDsSchema, &out); err != nil {
		return CertSecretIDs{}, err
	}
	return out, nil
}

// ParseCertSecretIDs decodes the raw JSON document carried under the
// nested key, as handed out by Requirer.CertSecretIDs.
func ParseCertSecretIDs(raw string) (CertSecretIDs, error) {
	var out CertSecretIDs
	if err := decodeDocument([]byte(raw), certSecretIDsSchema, &out); err != nil {
		return CertSecretIDs{}, err
	}
	return out, nil
}

// Copy returns a deep copy of bag. Used to hand out snapshots that callers
// can mutate without touching the stored exchange.
func (b Bag) Copy() Bag {
	if b == nil {
		return nil
	}
	out := make(Bag, len(b))
	for k, v := range b {
		out[k] = v
	}
	return out
}
