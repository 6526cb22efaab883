// Package health provides health status values, a thread-safe monitor of the
// last observed status per name, and an HTTP prober for prediction services.
//
// # Health States
//
// Three states are modelled: healthy, degraded and unhealthy. A prediction
// service only ever counts as healthy or unhealthy from the registry's point
// of view; degraded is used for the registry's own components (for example a
// NATS connection that is reconnecting).
//
// # Probing
//
// Prober issues GET <base_url><health path> with a per-probe timeout and
// classifies the answer:
//
//	prober := health.NewProber(5 * time.Second)
//	st := prober.Probe(ctx, "breast_cancer", "http://bc:8001/health")
//	if st.Healthy {
//	    ...
//	}
//
// A service is healthy only when it answers 200 with a JSON body whose
// "status" field is "healthy" or "ok" in any letter case. Network errors,
// timeouts, other codes and unparseable bodies are all unhealthy. Probe
// never returns an error; failures are carried in Status.Message with URLs,
// addresses and credentials masked.
//
// # Aggregation
//
// Aggregate folds sub-statuses: any unhealthy makes the whole unhealthy,
// otherwise any degraded makes it degraded, otherwise healthy.
//
// A Monitor keeps the last status per name; the active checker records one
// per probed service and the registry reports their aggregate:
//
//	monitor := health.NewMonitor()
//	monitor.Update("breast_cancer", prober.Probe(ctx, "breast_cancer", url))
//	overall := monitor.AggregateHealth("probes")
package health
