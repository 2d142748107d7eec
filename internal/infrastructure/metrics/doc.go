// Package metrics exposes Prometheus metrics for the remote service.
//
// Each metric group is a struct created against a caller-supplied
// registry, so tests can use a fresh prometheus.NewRegistry:
//
//	reg := metrics.NewRegistry()
//	httpMetrics := metrics.NewHTTPMetrics(reg)
//	sessionMetrics := metrics.NewSessionMetrics(reg)
//	manager.AddObserver(sessionMetrics)
//	router.Handle("/metrics", metrics.Handler(reg))
package metrics
