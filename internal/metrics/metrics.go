// Package metrics defines Prometheus metrics for the moderation engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Engine metrics
var (
	MessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "modguard_messages_total",
		Help: "Total number of messages evaluated, by decision outcome",
	}, []string{"outcome"})

	MutesInstalledTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "modguard_mutes_installed_total",
		Help: "Total number of mutes installed, by reason",
	}, []string{"reason"})

	MessagesDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "modguard_messages_deleted_total",
		Help: "Total number of message deletions requested",
	})
)

// Persistence metrics
var (
	PersistErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "modguard_persist_errors_total",
		Help: "Total number of failed snapshot writes",
	})
)

// Chat client metrics
var (
	ChatErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "modguard_chat_errors_total",
		Help: "Total number of failed chat API calls, by method",
	}, []string{"method"})

	UpdatesReceivedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "modguard_updates_received_total",
		Help: "Total number of updates received from the chat platform",
	})

	PollerConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "modguard_poller_connected",
		Help: "Update poller state (1=polling, 0=backing off)",
	})
)
