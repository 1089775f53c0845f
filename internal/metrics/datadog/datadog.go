// Package datadog sends geosql metrics to a DogStatsD agent.
package datadog

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/DataDog/datadog-go/v5/statsd"

	"geosql/internal/metrics"
)

// Config holds Datadog backend configuration.
type Config struct {
	// Addr is the DogStatsD address, e.g. "127.0.0.1:8125" or "unix:///path/to/socket".
	Addr string

	// Namespace prefixes every metric name, e.g. "geosql.".
	Namespace string

	// GlobalTags are added to every metric, e.g. "job:geosql_sector".
	GlobalTags []string
}

// Backend implements metrics.Backend on a statsd client. Metric names are
// translated to Datadog's dotted style: geosql_rows_total becomes rows and
// geosql_step_duration_seconds becomes step.duration.seconds.
type Backend struct {
	client statsd.ClientInterface
}

// NewBackend connects a statsd client. Addr is required.
func NewBackend(cfg Config) (*Backend, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("datadog: Addr is required")
	}

	var opts []statsd.Option
	if cfg.Namespace != "" {
		opts = append(opts, statsd.WithNamespace(cfg.Namespace))
	}
	if len(cfg.GlobalTags) > 0 {
		opts = append(opts, statsd.WithTags(cfg.GlobalTags))
	}
	c, err := statsd.New(cfg.Addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("datadog: create client: %w", err)
	}
	return &Backend{client: c}, nil
}

// IncCounter sends a Count; fractional deltas are rounded.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	if b.client == nil {
		return
	}
	_ = b.client.Count(metricName(name), int64(math.Round(delta)), labelsToTags(labels), 1)
}

// ObserveHistogram sends durations as distributions, so percentiles are
// computed across hosts, and anything else as a histogram.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if b.client == nil {
		return
	}
	if strings.HasSuffix(name, "_seconds") {
		_ = b.client.Distribution(metricName(name), value, labelsToTags(labels), 1)
		return
	}
	_ = b.client.Histogram(metricName(name), value, labelsToTags(labels), 1)
}

// Flush closes the client, which sends whatever is still buffered. The
// backend is unusable afterwards.
func (b *Backend) Flush() error {
	if b.client == nil {
		return nil
	}
	return b.client.Close()
}

func metricName(name string) string {
	name = strings.TrimPrefix(name, "geosql_")
	name = strings.TrimSuffix(name, "_total")
	return strings.ReplaceAll(name, "_", ".")
}

// labelsToTags renders labels as sorted "key:value" tags.
func labelsToTags(lbls metrics.Labels) []string {
	if len(lbls) == 0 {
		return nil
	}
	out := make([]string, 0, len(lbls))
	for k, v := range lbls {
		out = append(out, k+":"+v)
	}
	sort.Strings(out)
	return out
}
