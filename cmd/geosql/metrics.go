package main

import (
	"os"

	log "github.com/sirupsen/logrus"

	"geosql/internal/metrics"
	"geosql/internal/metrics/datadog"
	"geosql/internal/metrics/prompush"
)

// setupMetrics installs the selected backend and returns the function that
// flushes it. The backend is chosen flag -> env METRICS_BACKEND -> none; a
// backend that fails to start leaves metrics disabled.
func (g *globalOptions) setupMetrics(job string, logger log.FieldLogger) (flush func()) {
	nop := func() {}

	name := g.metricsBackend
	if name == "" {
		name = os.Getenv("METRICS_BACKEND")
	}
	if job == "" {
		job = "geosql"
	}

	var (
		b   metrics.Backend
		err error
	)
	switch name {
	case "pushgateway":
		url := firstNonEmpty(g.pushgatewayURL, os.Getenv("PUSHGATEWAY_URL"), "http://localhost:9091")
		b, err = prompush.NewBackend(job, url)
		if err == nil {
			logger.Debugf("metrics: backend=%s url=%s job=%s", name, url, job)
		}
	case "datadog":
		addr := firstNonEmpty(g.statsdAddr, os.Getenv("DD_DOGSTATSD_ADDR"), "127.0.0.1:8125")
		b, err = datadog.NewBackend(datadog.Config{
			Addr:       addr,
			Namespace:  "geosql.",
			GlobalTags: []string{"job:" + job},
		})
		if err == nil {
			logger.Debugf("metrics: backend=%s addr=%s job=%s", name, addr, job)
		}
	case "", "none":
		logger.Debug("metrics: disabled")
		return nop
	default:
		logger.Warnf("metrics: unknown backend %q; metrics disabled", name)
		return nop
	}
	if err != nil {
		logger.Warnf("metrics: failed to init %s backend: %v; using nop", name, err)
		return nop
	}

	metrics.SetBackend(b)
	return func() {
		if err := metrics.Flush(); err != nil {
			logger.Warnf("metrics: flush error: %v", err)
		}
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
