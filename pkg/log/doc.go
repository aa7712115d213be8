// Package log wraps zerolog with the shared logger configuration and the
// child-logger helpers used across lokiop.
package log
