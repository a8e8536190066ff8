package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	vfileChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "social_host_vfile_checks_total",
			Help: "vfile presentations by outcome.",
		},
		[]string{"operation", "outcome"},
	)

	accountTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "social_host_account_transitions_total",
			Help: "Successful account lifecycle transitions.",
		},
		[]string{"transition"},
	)

	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "social_host_cache_hits_total",
		Help: "Public reads answered from the account cache.",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "social_host_cache_misses_total",
		Help: "Public reads that went to the store.",
	})

	sweepRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "social_host_sweep_runs_total",
		Help: "Completed expiry sweeps.",
	})
	sweptAccountsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "social_host_swept_accounts_total",
		Help: "Accounts deleted by the expiry sweep.",
	})
	sweepErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "social_host_sweep_errors_total",
		Help: "Per-account failures during expiry sweeps.",
	})
)
