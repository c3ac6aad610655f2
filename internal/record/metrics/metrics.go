// Package metrics provides observability for the record module.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	dErrors "contactdir/pkg/domain-errors"
)

// Metrics tracks accepted mutations and validation rejections by error code.
// A nil *Metrics is a no-op so tests can run without registering collectors.
type Metrics struct {
	RecordsCreated     prometheus.Counter
	RecordsPatched     prometheus.Counter
	RecordsDeleted     prometheus.Counter
	ValidationFailures *prometheus.CounterVec
}

// New creates a Metrics instance registered on the default registry.
func New() *Metrics {
	return &Metrics{
		RecordsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "contactdir_records_created_total",
			Help: "Total number of records accepted for creation",
		}),
		RecordsPatched: promauto.NewCounter(prometheus.CounterOpts{
			Name: "contactdir_records_patched_total",
			Help: "Total number of records accepted for patching",
		}),
		RecordsDeleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "contactdir_records_deleted_total",
			Help: "Total number of records removed",
		}),
		ValidationFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "contactdir_validation_failures_total",
			Help: "Total number of rejected requests by error code",
		}, []string{"code"}),
	}
}

func (m *Metrics) IncrementCreated() {
	if m != nil {
		m.RecordsCreated.Inc()
	}
}

func (m *Metrics) IncrementPatched() {
	if m != nil {
		m.RecordsPatched.Inc()
	}
}

func (m *Metrics) IncrementDeleted() {
	if m != nil {
		m.RecordsDeleted.Inc()
	}
}

// ObserveRejection records a validation failure by its domain error code.
// Non-domain errors count as internal.
func (m *Metrics) ObserveRejection(err error) {
	if m == nil || err == nil {
		return
	}
	code := dErrors.CodeInternal
	if de, ok := dErrors.FromError(err); ok {
		code = de.Code
	}
	m.ValidationFailures.WithLabelValues(string(code)).Inc()
}
