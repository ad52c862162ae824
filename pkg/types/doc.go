// Package types defines the record model of the planner: fields, schemas,
// records and tables, the mutations applied to them, the RemoteStore
// interface that persists serialized tables, and the error taxonomy shared
// by every layer.
//
// Tables are plain values. Nothing in this package does I/O; loading,
// serialization and conditional writes live in internal/tablestore and
// internal/remote, and the mutate-with-retry protocol in internal/sync.
package types
