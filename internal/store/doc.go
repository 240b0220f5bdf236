// Package store provides durable blob storage for saved searches using SQLite.
//
// # Architecture
//
//   - Blobs: key -> bytes interface (GetBlob, PutBlob, DeleteBlob, ListBlobs)
//   - SQLiteStore: Blobs on a single SQLite table
//   - MockStore: in-memory Blobs for tests, counts writes per key
//   - Gateway: stores the saved-search order list and mapping as two JSON
//     blobs and implements favorites.Persistence
//
// # SQLite Configuration
//
// Two database/sql drivers are supported:
//
//	sqlite   modernc.org/sqlite (pure Go, default)
//	sqlite3  github.com/mattn/go-sqlite3 (cgo)
//
// The store enables WAL mode:
//
//	PRAGMA journal_mode=WAL;
//
// Schema:
//
//	blobs(key TEXT PRIMARY KEY, value BLOB, version INTEGER, updated_at TEXT)
//
// # Corrupt Data
//
// Gateway never fails a load because of what is stored. A blob that is not a
// JSON string list (order) or a JSON string map (mapping) is reported as
// ErrShapeMismatch by DecodeOrder/DecodeMapping, logged, and treated as
// absent so the saved searches start empty instead of refusing to open.
package store
