package metrics

import (
	"time"

	"github.com/mktdata/admin-console/internal/observability/errors"
	"github.com/mktdata/admin-console/internal/observability/statsd"
	"github.com/prometheus/client_golang/prometheus"
)

// Result constants for metric tagging.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultInvalid = "invalid"
	ResultLocked  = "locked"
)

// GateMetrics fans console gate counters out to Prometheus and an optional StatsD sink.
// A nil *GateMetrics is a valid no-op.
type GateMetrics struct {
	sink statsd.Sink

	loginAttempts *prometheus.CounterVec
	lockouts      prometheus.Counter
	signOuts      *prometheus.CounterVec
	accessDenied  prometheus.Counter
	auditWrites   *prometheus.CounterVec
	auditPruned   prometheus.Counter
	activeTabs    prometheus.Gauge
}

// NewGateMetrics registers the gate collectors with reg. sink may be nil.
func NewGateMetrics(reg prometheus.Registerer, sink statsd.Sink) (*GateMetrics, error) {
	m := &GateMetrics{
		sink: sink,
		loginAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "console_gate_login_attempts_total",
			Help: "Login attempts by result (success, invalid, locked, error)",
		}, []string{"result"}),
		lockouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "console_gate_lockouts_total",
			Help: "Times a tab crossed the failed-attempt threshold",
		}),
		signOuts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "console_gate_sign_outs_total",
			Help: "Sign-outs by reason",
		}, []string{"reason"}),
		accessDenied: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "console_gate_access_denied_total",
			Help: "Authenticated non-admin sessions that entered the denial flow",
		}),
		auditWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "console_gate_audit_writes_total",
			Help: "Audit event writes by result",
		}, []string{"result"}),
		auditPruned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "console_gate_audit_pruned_total",
			Help: "Audit events deleted by retention",
		}),
		activeTabs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "console_gate_active_tabs",
			Help: "Console tabs with a live context",
		}),
	}
	if reg != nil {
		for _, c := range []prometheus.Collector{
			m.loginAttempts, m.lockouts, m.signOuts, m.accessDenied, m.auditWrites, m.auditPruned, m.activeTabs,
		} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

// LoginAttempt counts one login attempt with the given result.
func (m *GateMetrics) LoginAttempt(result string) {
	if m == nil {
		return
	}
	m.loginAttempts.WithLabelValues(result).Inc()
	m.count("login.attempt", map[string]string{"result": result})
}

// Lockout counts a threshold crossing.
func (m *GateMetrics) Lockout() {
	if m == nil {
		return
	}
	m.lockouts.Inc()
	m.count("login.lockout", nil)
}

// SignOut counts a sign-out with its logout reason.
func (m *GateMetrics) SignOut(reason string) {
	if m == nil {
		return
	}
	m.signOuts.WithLabelValues(reason).Inc()
	m.count("session.sign_out", map[string]string{"reason": reason})
}

// AccessDenied counts entry into the denial flow.
func (m *GateMetrics) AccessDenied() {
	if m == nil {
		return
	}
	m.accessDenied.Inc()
	m.count("session.access_denied", nil)
}

// AuditWrite counts an audit insert. err is classified for the StatsD tag.
func (m *GateMetrics) AuditWrite(err error) {
	if m == nil {
		return
	}
	tags := map[string]string{"result": ResultSuccess}
	if err != nil {
		tags["result"] = ResultError
		if class := errors.Classify(err); class != "" {
			tags["error_class"] = class
		}
	}
	m.auditWrites.WithLabelValues(tags["result"]).Inc()
	m.count("audit.write", tags)
}

// AuditPruned records one retention pass.
func (m *GateMetrics) AuditPruned(deleted int64, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	tags := map[string]string{"result": ResultSuccess}
	if err != nil {
		tags["result"] = ResultError
	}
	m.auditPruned.Add(float64(deleted))
	if m.sink != nil {
		m.sink.Count("audit.pruned", deleted, CloneTags(tags))
		m.sink.Timing("audit.prune_duration", elapsed, CloneTags(tags))
	}
}

// ActiveTabs reports the current number of console tabs.
func (m *GateMetrics) ActiveTabs(n int) {
	if m == nil {
		return
	}
	m.activeTabs.Set(float64(n))
	if m.sink != nil {
		m.sink.Gauge("tabs.active", float64(n), nil)
	}
}

func (m *GateMetrics) count(name string, tags map[string]string) {
	if m.sink == nil {
		return
	}
	m.sink.Count(name, 1, CloneTags(tags))
}

// CloneTags creates a shallow copy of a tag map, filtering out empty keys.
func CloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		if k != "" {
			out[k] = v
		}
	}
	return out
}
