// Package registry maintains the device and entity inventory announced
// by edge nodes.
//
// Registration is idempotent: devices upsert on (householdId, deviceKey)
// and entities on (siteId, deviceKey, entityKey), so an edge replaying
// its full inventory after a reconnect converges without duplicates.
// Batches succeed per row; a malformed row is rejected individually and
// never aborts its neighbours. Reconciliation happens through an explicit
// purge that hard-deletes everything outside the edge's supplied key set.
package registry
