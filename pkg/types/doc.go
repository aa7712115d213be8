/*
Package types defines the core data structures shared by the lokiop packages.

It holds the closed role enumeration and the pure role derivation function,
the status model used by status aggregation, the unit topology record, and
the fixed identity and filesystem layout of the managed Loki workload.

All types here are plain data: no I/O, no logging, no hidden state.
*/
package types
