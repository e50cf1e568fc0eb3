package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the domain counters of the client core.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	authSubmissions  *prometheus.CounterVec
	uploadAdmissions *prometheus.CounterVec
	uploadFinished   *prometheus.CounterVec
}

// New creates the counters and registers them on reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		authSubmissions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lexdesk_auth_submissions_total",
				Help: "Credential submissions by operation and result.",
			},
			[]string{"operation", "result"},
		),
		uploadAdmissions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lexdesk_upload_admissions_total",
				Help: "Candidate files by validation outcome.",
			},
			[]string{"outcome"},
		),
		uploadFinished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lexdesk_upload_finished_total",
				Help: "Tracked uploads that left the running state, by final status.",
			},
			[]string{"status"},
		),
	}

	for _, c := range []prometheus.Collector{m.authSubmissions, m.uploadAdmissions, m.uploadFinished} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// AuthSubmission counts one login/register round trip; result is "success", "rejected" or "network".
func (m *Metrics) AuthSubmission(operation, result string) {
	if m == nil {
		return
	}
	m.authSubmissions.WithLabelValues(operation, result).Inc()
}

// UploadAdmission counts one validated candidate; outcome is "accepted" or the reject reason.
func (m *Metrics) UploadAdmission(outcome string) {
	if m == nil {
		return
	}
	m.uploadAdmissions.WithLabelValues(outcome).Inc()
}

// UploadFinished counts a task that stopped; status is "completed", "error" or "cancelled".
func (m *Metrics) UploadFinished(status string) {
	if m == nil {
		return
	}
	m.uploadFinished.WithLabelValues(status).Inc()
}
