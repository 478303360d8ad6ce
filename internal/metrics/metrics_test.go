package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := New(reg)

	m.TokenVerified("refresh", ResultOK)
	m.TokenVerified("refresh", ResultOK)
	m.TokenVerified("access", "expired")
	m.Login(ResultFailed)
	m.Rotation(ResultOK)
	m.HTTPRequest("GET", "/v1/users/{userId}", 200, 15*time.Millisecond)

	require.Equal(t, 2.0, testutil.ToFloat64(m.tokenVerifications.WithLabelValues("refresh", ResultOK)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.tokenVerifications.WithLabelValues("access", "expired")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.logins.WithLabelValues(ResultFailed)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.rotations.WithLabelValues(ResultOK)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/v1/users/{userId}", "200")))
	require.Equal(t, 1, testutil.CollectAndCount(m.httpDuration))
}

func TestMetrics_NilSafe(t *testing.T) {
	t.Parallel()

	var m *Metrics
	require.NotPanics(t, func() {
		m.TokenVerified("access", ResultOK)
		m.Login(ResultOK)
		m.Rotation(ResultFailed)
		m.HTTPRequest("POST", "/", 500, time.Second)
	})
}

func TestNew_DoubleRegistrationPanics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	_ = New(reg)
	require.Panics(t, func() { _ = New(reg) })
}
