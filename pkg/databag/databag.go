package databag

import (
	"encoding/json"
	"fmt"

	"github.com/kaptinlin/jsonschema"
)

// Bag is a string-keyed databag attached to one participant's side of a
// relation. Every value is the JSON encoding of a typed field.
type Bag map[string]string

// Platform-reserved keys carrying address/egress metadata. They are never
// part of a record and are dropped on decode.
var reservedKeys = map[string]struct{}{
	"ingress-address": {},
	"private-address": {},
	"egress-subnets":  {},
}

// Reserved reports whether key is platform-reserved.
func Reserved(key string) bool {
	_, ok := reservedKeys[key]
	return ok
}

// ValidationError is returned when a databag does not decode into the
// expected record shape. Decoding is all-or-nothing: callers never observe
// a partially populated record.
type ValidationError struct {
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("databag validation failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("databag validation failed: %s", e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// encodeFlat writes each field's JSON encoding under its wire key. All
// non-reserved keys already present are cleared first, so a record write
// fully replaces any previous shape.
func encodeFlat(bag Bag, fields map[string]any) error {
	for k := range bag {
		if !Reserved(k) {
			delete(bag, k)
		}
	}
	for key, value := range fields {
		raw, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("failed to encode field %q: %w", key, err)
		}
		bag[key] = string(raw)
	}
	return nil
}

// encodeNested writes the whole record as one JSON document under a single
// well-known key.
func encodeNested(bag Bag, key string, record any) error {
	for k := range bag {
		if !Reserved(k) {
			delete(bag, k)
		}
	}
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode record under %q: %w", key, err)
	}
	bag[key] = string(raw)
	return nil
}

// decodeFlat assembles the non-reserved bag entries into one JSON document,
// validates it against schema, and unmarshals into out. Any non-JSON value
// or shape mismatch yields a *ValidationError.
func decodeFlat(bag Bag, schema *jsonschema.Schema, out any) error {
	doc := make(map[string]json.RawMessage, len(bag))
	for k, v := range bag {
		if Reserved(k) {
			continue
		}
		if !json.Valid([]byte(v)) {
			return &ValidationError{Reason: fmt.Sprintf("value of %q is not valid json", k)}
		}
		doc[k] = json.RawMessage(v)
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return &ValidationError{Reason: "failed to assemble document", Err: err}
	}
	return decodeDocument(raw, schema, out)
}

// decodeNested reads the record from its single well-known key.
func decodeNested(bag Bag, key string, schema *jsonschema.Schema, out any) error {
	raw, ok := bag[key]
	if !ok {
		return &ValidationError{Reason: fmt.Sprintf("missing key %q", key)}
	}
	if !json.Valid([]byte(raw)) {
		return &ValidationError{Reason: fmt.Sprintf("value of %q is not valid json", key)}
	}
	return decodeDocument([]byte(raw), schema, out)
}

func decodeDocument(raw []byte, schema *jsonschema.Schema, out any) error {
	result := schema.ValidateJSON(raw)
	if !result.IsValid() {
		return &ValidationError{Reason: fmt.Sprintf("schema validation failed: %v", result.Errors)}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &ValidationError{Reason: "failed to unmarshal document", Err: err}
	}
	return nil
}

func mustCompile(schema string) *jsonschema.Schema {
	compiled, err := jsonschema.NewCompiler().Compile([]byte(schema))
	if err != nil {
		panic(fmt.Sprintf("databag: invalid built-in schema: %v", err))
	}
	return compiled
}
