// Package metrics exposes worker activity as Prometheus metrics.
//
// Metrics.Observe is a queue.Observer; pass it to queue.WithRunnerObserver
// and register the collectors with a prometheus.Registerer:
//
//	m := metrics.New("tubeworker")
//	if err := m.Register(prometheus.DefaultRegisterer); err != nil {
//	    return err
//	}
//	runner, err := queue.NewRunner(cfg, reg, queue.WithRunnerObserver(m.Observe))
package metrics
