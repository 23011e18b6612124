package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "merchantops"
)

var (
	// Connector account metrics
	ConnectorAccountsCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "mca_create_total",
		Help:      "Count of merchant connector accounts created.",
	}, []string{"connector", "merchant"})

	// Admin operation metrics
	AdminOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "admin_operations_total",
		Help:      "Count of admin operations by outcome.",
	}, []string{"operation", "status"})

	AdminOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "admin_operation_duration_seconds",
		Help:      "Time taken by admin operations.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})

	// Routing metrics
	RoutingDefaultConfigUpdatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "routing_default_config_updates_total",
		Help:      "Default routing list registrations by scope and result.",
	}, []string{"scope", "transaction_type", "result"})

	CacheInvalidationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_invalidations_total",
		Help:      "Cache invalidation publishes by backend and outcome.",
	}, []string{"backend", "status"})

	// Open banking metrics
	OpenBankingRecipientsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "open_banking_recipients_total",
		Help:      "Open banking recipient registrations.",
	}, []string{"connector", "method", "status"})

	PostCommitStepFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "post_commit_step_failures_total",
		Help:      "Post-commit step attempts that failed.",
	}, []string{"step"})
)
