/*
Package databag implements the typed, validated serialization of records
into relation databags.

A databag is a string-keyed mapping where every value is JSON. Records are
a small closed set of struct types, each with an explicit encode/decode
pair. Two wire layouts exist: flat (one JSON value per field, under the
field's wire key) and nested (the whole record as one JSON document under
a single well-known key, used for structured blobs like certificate secret
pointers).

Decoding is total: the assembled document is validated against a JSON
Schema before unmarshaling, and any non-JSON value, missing field, wrong
type, or enum violation yields a single *ValidationError. Partial decode
results are never observable.
*/
package databag
