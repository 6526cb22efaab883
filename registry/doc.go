// Package registry holds the in-memory service registry: the ServiceRecord
// model, the concurrent Store, store events and the health checkers used to
// build the aggregate health report.
//
// The store is constructed explicitly and passed to whoever needs it; there
// is no package-level instance.
//
//	clock := registry.SystemClock{}
//	store := registry.NewStore(registry.WithClock(clock))
//	store.Add(rec)
//	if ts, ok := store.Heartbeat("breast_cancer"); ok {
//	    ...
//	}
//	alive := store.Healthy(60 * time.Second)
//
// A service is healthy when its last heartbeat is strictly after
// now - timeout. Registration counts as a heartbeat. Records are never
// evicted; a silent service stays listed and simply reads as unhealthy.
//
// Absence is reported with booleans. Turning it into an error or a status
// code is the caller's job.
package registry
