// Package memory provides in-memory implementations of the storage
// interfaces. Used for single-instance development mode and throughout the
// engine tests; the postgres adapter is the production implementation.
package memory
