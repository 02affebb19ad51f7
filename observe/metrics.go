// Copyright 2026 The Warbler Authors
// SPDX-License-Identifier: Apache-2.0

// Package observe provides Prometheus instrumentation for the session
// engine: stanza flow, command admission, and file-transfer outcomes.
// All Metrics methods are nil-safe so instrumented code never has to
// branch on whether metrics are configured.
package observe

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the Prometheus instruments used by the session engine.
type Metrics struct {
	registry *prometheus.Registry

	Stanzas          *prometheus.CounterVec
	HandlerErrors    prometheus.Counter
	Commands         *prometheus.CounterVec
	CommandsRejected *prometheus.CounterVec
	TransfersDone    prometheus.Counter
	TransferBytes    prometheus.Counter
	UploadFallbacks  prometheus.Counter
	MessagesDropped  prometheus.Counter
}

// NewMetrics creates the instrument set on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	metrics := &Metrics{
		registry: registry,
		Stanzas: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "warbler",
			Name:      "stanzas_total",
			Help:      "Inbound stanzas handled, by kind.",
		}, []string{"kind"}),
		HandlerErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "warbler",
			Name:      "handler_errors_total",
			Help:      "Stanza handler failures (caught, loop continued).",
		}),
		Commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "warbler",
			Name:      "commands_total",
			Help:      "Commands dispatched, by name.",
		}, []string{"command"}),
		CommandsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "warbler",
			Name:      "commands_rejected_total",
			Help:      "Commands rejected before dispatch, by reason.",
		}, []string{"reason"}),
		TransfersDone: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "warbler",
			Name:      "transfers_finalized_total",
			Help:      "In-band file transfers written to disk.",
		}),
		TransferBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "warbler",
			Name:      "transfer_bytes_total",
			Help:      "Decoded in-band transfer bytes received.",
		}),
		UploadFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "warbler",
			Name:      "upload_fallbacks_total",
			Help:      "File sends that fell back to the in-band notification path.",
		}),
		MessagesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "warbler",
			Name:      "messages_dropped_total",
			Help:      "Forwarded messages dropped because the host queue was full.",
		}),
	}
	registry.MustRegister(
		metrics.Stanzas,
		metrics.HandlerErrors,
		metrics.Commands,
		metrics.CommandsRejected,
		metrics.TransfersDone,
		metrics.TransferBytes,
		metrics.UploadFallbacks,
		metrics.MessagesDropped,
	)
	return metrics
}

// Handler returns the /metrics HTTP handler for this instrument set.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// CountStanza records one handled inbound stanza of the given kind.
func (m *Metrics) CountStanza(kind string) {
	if m == nil {
		return
	}
	m.Stanzas.WithLabelValues(kind).Inc()
}

// CountHandlerError records a caught stanza handler failure.
func (m *Metrics) CountHandlerError() {
	if m == nil {
		return
	}
	m.HandlerErrors.Inc()
}

// CountCommand records one dispatched command.
func (m *Metrics) CountCommand(name string) {
	if m == nil {
		return
	}
	m.Commands.WithLabelValues(name).Inc()
}

// CountCommandRejected records a command stopped before dispatch.
func (m *Metrics) CountCommandRejected(reason string) {
	if m == nil {
		return
	}
	m.CommandsRejected.WithLabelValues(reason).Inc()
}

// CountTransfer records a finalized in-band transfer of the given size.
func (m *Metrics) CountTransfer(bytes int64) {
	if m == nil {
		return
	}
	m.TransfersDone.Inc()
	m.TransferBytes.Add(float64(bytes))
}

// CountUploadFallback records a degraded file send.
func (m *Metrics) CountUploadFallback() {
	if m == nil {
		return
	}
	m.UploadFallbacks.Inc()
}

// CountMessageDropped records a forwarded message lost to a full queue.
func (m *Metrics) CountMessageDropped() {
	if m == nil {
		return
	}
	m.MessagesDropped.Inc()
}
