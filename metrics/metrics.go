package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks intake form activity.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	FormsAssigned           prometheus.Counter
	ResponseSubmissions     *prometheus.CounterVec
	DocumentUploads         *prometheus.CounterVec
	VersionConflicts        prometheus.Counter
	StatusTransitions       *prometheus.CounterVec
	NotificationsSent       *prometheus.CounterVec
	SubmitResponsesDuration prometheus.Histogram
}

// New registers the form metrics with the default registry
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers the form metrics with reg. Tests pass a fresh registry.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		FormsAssigned: factory.NewCounter(prometheus.CounterOpts{
			Name: "forms_assigned_total",
			Help: "Total number of intake forms assigned to clients",
		}),
		ResponseSubmissions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "forms_response_submissions_total",
			Help: "Response submissions by outcome",
		}, []string{"outcome"}),
		DocumentUploads: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "forms_document_uploads_total",
			Help: "Document uploads by outcome",
		}, []string{"outcome"}),
		VersionConflicts: factory.NewCounter(prometheus.CounterOpts{
			Name: "forms_version_conflicts_total",
			Help: "Writes rejected because the form changed since it was read",
		}),
		StatusTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "forms_status_transitions_total",
			Help: "Form status transitions by target status",
		}, []string{"status"}),
		NotificationsSent: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "forms_notifications_total",
			Help: "Form notification emails by type and delivery status",
		}, []string{"type", "status"}),
		SubmitResponsesDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "forms_submit_responses_duration_seconds",
			Help:    "Duration of response submissions",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
	}
}

func (m *Metrics) IncrementAssigned() {
	if m == nil {
		return
	}
	m.FormsAssigned.Inc()
}

// RecordSubmission counts a response submission outcome (saved, unchanged, completed, rejected)
func (m *Metrics) RecordSubmission(outcome string) {
	if m == nil {
		return
	}
	m.ResponseSubmissions.WithLabelValues(outcome).Inc()
}

// RecordUpload counts a document upload outcome (stored, duplicate, rejected)
func (m *Metrics) RecordUpload(outcome string) {
	if m == nil {
		return
	}
	m.DocumentUploads.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncrementConflicts() {
	if m == nil {
		return
	}
	m.VersionConflicts.Inc()
}

func (m *Metrics) RecordTransition(status string) {
	if m == nil {
		return
	}
	m.StatusTransitions.WithLabelValues(status).Inc()
}

func (m *Metrics) RecordNotification(notificationType, status string) {
	if m == nil {
		return
	}
	m.NotificationsSent.WithLabelValues(notificationType, status).Inc()
}

// ObserveSubmitResponses records the duration of a submission.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveSubmitResponses(start time.Time) {
	if m == nil {
		return
	}
	m.SubmitResponsesDuration.Observe(time.Since(start).Seconds())
}
