// Package occupancy is the presence reconciliation engine.
//
// It merges two independent presence signals into one tri-state status per
// seat:
//
//   - Bluetooth reachability, probed for every seat with a registered
//     address by the Poller on a fixed cadence
//   - Ambient light, pushed by an embedded sensor to the IngestServer and
//     applied to one designated seat, together with a fresh probe of that
//     seat's device
//
// Both writers go through Reconcile and write single rows through the
// Store. The SnapshotService reads the whole table on demand. Nothing is
// cached in process: every read hits the Store.
//
// # Concurrency
//
// Poller, IngestServer and snapshot readers run concurrently for the life of
// the process. Every probe is bounded by a timeout and every socket read by
// a deadline, so a hung device or sender cannot stall the other activities.
// Store writes are scoped to one seat; the last writer wins.
package occupancy
