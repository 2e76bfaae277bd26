/*
Package observability turns engine lifecycle hooks into Prometheus metrics and
structured log lines.

Hooks from several sources are merged with Combine:

	m := observability.NewMetrics(prometheus.NewRegistry())
	hooks := observability.Combine(m.Hooks(), observability.LogHooks(logger))
	eng, _ := formflow.New(def, formflow.WithLifecycleHooks(hooks))
*/
package observability
