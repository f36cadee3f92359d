package audit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	entriesWritten = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rewardvault",
		Subsystem: "audit",
		Name:      "entries_written_total",
		Help:      "Audit entries persisted, by action.",
	}, []string{"action"})

	writeFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rewardvault",
		Subsystem: "audit",
		Name:      "write_failures_total",
		Help:      "Audit write failures by stage (inline, retry, redelivery, dropped).",
	}, []string{"stage"})
)
