// Copyright (c) HashiCorp, Inc
// SPDX-License-Identifier: MPL-2.0

package logring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ringMetrics mirrors the teacher WAL's walMetrics: a small set of counters
// and gauges registered once per Ring against whatever Registerer the
// caller supplied (prometheus.DefaultRegisterer by default), covering each of the
// recoverable conditions spec.md section 7 calls out as "automatic, not
// errors to the caller" - they deserve to be observable even though they
// never surface as a Status.
type ringMetrics struct {
	inserts          prometheus.Counter
	pops             prometheus.Counter
	overwrites       prometheus.Counter
	tailReconciled   prometheus.Counter
	controlRecreated prometheus.Counter
	liveEntries      prometheus.Gauge
}

func newRingMetrics(reg prometheus.Registerer) *ringMetrics {
	return &ringMetrics{
		inserts: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "logring_inserts_total",
			Help: "logring_inserts_total counts successful Insert calls.",
		}),
		pops: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "logring_pops_total",
			Help: "logring_pops_total counts successful Pop calls that removed an entry.",
		}),
		overwrites: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "logring_overwrites_total",
			Help: "logring_overwrites_total counts inserts that discarded the oldest entry because the ring was full.",
		}),
		tailReconciled: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "logring_tail_reconciled_total",
			Help: "logring_tail_reconciled_total counts how many times update_tail had to skip past entries asynchronously deleted from outside the ring.",
		}),
		controlRecreated: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "logring_control_recreated_total",
			Help: "logring_control_recreated_total counts how many times the control record was recreated after being found truncated or corrupt.",
		}),
		liveEntries: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "logring_live_entries",
			Help: "logring_live_entries is the last-observed number of entries tracked by the ring.",
		}),
	}
}
