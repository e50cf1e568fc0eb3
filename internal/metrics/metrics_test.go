package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)

	m.AuthSubmission("login", "success")
	m.AuthSubmission("login", "success")
	m.UploadAdmission("tooLarge")
	m.UploadFinished("cancelled")

	assert.Equal(t, float64(2), testutil.ToFloat64(m.authSubmissions.WithLabelValues("login", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.uploadAdmissions.WithLabelValues("tooLarge")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.uploadFinished.WithLabelValues("cancelled")))
}

func TestMetrics_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg)
	require.NoError(t, err)

	_, err = New(reg)
	assert.Error(t, err)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.AuthSubmission("login", "network")
		m.UploadAdmission("accepted")
		m.UploadFinished("completed")
	})
}
