//go:build linux

package exporter

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ja7ad/proctop/pkg/snapshot"
)

// Exporter adapts the snapshot engine to a prometheus.Collector. Each
// Collect triggers one full scrape; when the scrape fails outright the
// previous successful snapshot is served as a degraded response rather
// than nothing.
type Exporter struct {
	scanner *snapshot.Scanner
	topN    int
	timeout time.Duration
	labels  []string // normalized via snapshot.NormalizeLabels

	descs        map[snapshot.Dimension]*prometheus.Desc
	failuresDesc *prometheus.Desc
	degradedDesc *prometheus.Desc
	failures     atomic.Uint64
}

// metricName maps a ranking dimension to its exposed gauge family.
var metricName = map[snapshot.Dimension]struct {
	name string
	help string
}{
	snapshot.ByCPU:       {"process_top_cpu_percent", "Top processes by CPU usage"},
	snapshot.ByMemory:    {"process_top_memory_bytes", "Top processes by memory usage"},
	snapshot.ByDiskRead:  {"process_top_disk_read_bytes", "Top processes by disk read"},
	snapshot.ByDiskWrite: {"process_top_disk_write_bytes", "Top processes by disk write"},
}

// New builds an Exporter. labels must already be normalized; topN rows
// are emitted per ranking; timeout bounds each scrape (0 disables).
func New(scanner *snapshot.Scanner, topN int, timeout time.Duration, labels []string) *Exporter {
	e := &Exporter{
		scanner: scanner,
		topN:    topN,
		timeout: timeout,
		labels:  labels,
		descs:   make(map[snapshot.Dimension]*prometheus.Desc, len(metricName)),
		failuresDesc: prometheus.NewDesc(
			"process_top_scrape_failures_total",
			"Number of scrapes that failed and fell back to the cached snapshot",
			nil, nil,
		),
		degradedDesc: prometheus.NewDesc(
			"process_top_snapshot_degraded",
			"1 when the exposed rows come from a previous scrape's cache",
			nil, nil,
		),
	}
	for dim, m := range metricName {
		e.descs[dim] = prometheus.NewDesc(m.name, m.help, labels, nil)
	}
	return e
}

// Describe implements prometheus.Collector.
func (e *Exporter) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range e.descs {
		ch <- d
	}
	ch <- e.failuresDesc
	ch <- e.degradedDesc
}

// Collect implements prometheus.Collector. It runs one scrape and emits
// the four rankings over its rows.
func (e *Exporter) Collect(ch chan<- prometheus.Metric) {
	ctx := context.Background()
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	res, err := e.scanner.Scan(ctx)
	degraded := 0.0
	if err != nil && (res == nil || len(res.Rows) == 0) {
		slog.Warn("scrape failed, serving cached snapshot", "err", err)
		e.failures.Add(1)
		res = e.scanner.Last()
		degraded = 1.0
	} else if err != nil {
		// Deadline hit mid-build: partial rows are still real rows.
		slog.Warn("scrape returned partial rows", "rows", len(res.Rows), "err", err)
	}

	ch <- prometheus.MustNewConstMetric(e.failuresDesc, prometheus.CounterValue, float64(e.failures.Load()))
	ch <- prometheus.MustNewConstMetric(e.degradedDesc, prometheus.GaugeValue, degraded)
	if res == nil {
		return
	}

	for _, dim := range snapshot.Dimensions {
		desc := e.descs[dim]
		// A narrow label subset (e.g. just command,user) can render
		// several rows to the same label tuple; the registry rejects
		// duplicate series, so only the highest-ranked row per tuple
		// is emitted.
		seen := make(map[string]struct{})
		for _, row := range snapshot.Rank(res.Rows, dim, e.topN) {
			values := snapshot.LabelValues(row, e.labels)
			key := strings.Join(values, "\xff")
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			ch <- prometheus.MustNewConstMetric(
				desc, prometheus.GaugeValue, e.value(dim, row), values...,
			)
		}
	}
}

func (e *Exporter) value(dim snapshot.Dimension, r snapshot.Row) float64 {
	switch dim {
	case snapshot.ByMemory:
		return float64(r.RSSKB) * 1024 // KB to bytes
	case snapshot.ByDiskRead:
		return float64(r.DiskReadBytes)
	case snapshot.ByDiskWrite:
		return float64(r.DiskWriteBytes)
	default:
		return r.CPUPct
	}
}
