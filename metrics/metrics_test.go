package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsRecord(t *testing.T) {
	m := NewWithRegistry(prometheus.NewRegistry())

	m.IncrementAssigned()
	m.RecordSubmission("saved")
	m.RecordSubmission("saved")
	m.RecordUpload("rejected")
	m.IncrementConflicts()
	m.RecordTransition("COMPLETED")
	m.RecordNotification("ASSIGNMENT", "SENT")
	m.ObserveSubmitResponses(time.Now())

	assert.Equal(t, 1.0, testutil.ToFloat64(m.FormsAssigned))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ResponseSubmissions.WithLabelValues("saved")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DocumentUploads.WithLabelValues("rejected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.VersionConflicts))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StatusTransitions.WithLabelValues("COMPLETED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NotificationsSent.WithLabelValues("ASSIGNMENT", "SENT")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncrementAssigned()
		m.RecordSubmission("saved")
		m.RecordUpload("stored")
		m.IncrementConflicts()
		m.RecordTransition("REVIEWED")
		m.RecordNotification("REMINDER", "FAILED")
		m.ObserveSubmitResponses(time.Now())
	})
}
