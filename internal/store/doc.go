// Package store provides the durable, append-only event log for globes.
//
// The log is a single ordered table mapping
//
//	globeID + "--" + eventID  ->  serialized ball event
//
// with no secondary indexes. Event ids are Unix nanoseconds rendered as
// 20-digit zero-padded decimal text, so lexicographic key order equals
// append order for the lifetime of the encoding. Ids come from a
// process-wide Clock seeded with the highest id already persisted, which
// keeps them strictly increasing across restarts and backwards clock steps.
//
// # Backends
//
//   - SQLite (mattn/go-sqlite3): WAL mode, one writer connection, scans run
//     inside a transaction so they observe a consistent snapshot.
//   - Bolt (go.etcd.io/bbolt): one bucket, cursor range scans inside View.
//   - Memory: sorted slice guarded by a RWMutex, for tests and ephemeral runs.
//
// All backends satisfy Log. Callers that validate before appending should
// depend on Log rather than a concrete backend.
//
// # Scan semantics
//
// Scan(globe, after, limit) starts at key(globe, after) inclusive and skips
// that exact entry if present. A cursor that matches no key skips nothing.
// An empty cursor or "0" starts at the beginning of the globe.
package store
