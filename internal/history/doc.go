// Package history records finished album downloads in a SQLite ledger
// (modernc.org/sqlite, no cgo) so that `tubealbum history` can list past
// runs and the per-item outcome of each.
package history
