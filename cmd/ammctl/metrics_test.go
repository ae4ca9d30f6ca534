package main

import (
	"io"
	"net/http"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ammclient/internal/gateway"
)

func TestMetricsServerExposesGatewayCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	gateway.NewMetrics("ammctl_test", reg)
	extra := prometheus.NewCounter(prometheus.CounterOpts{Name: "ammctl_test_marker_total", Help: "marker"})
	reg.MustRegister(extra)
	extra.Add(3)

	srv, err := startMetricsServer("127.0.0.1:0", reg, zap.NewNop())
	require.NoError(t, err)
	defer srv.Close()

	resp, err := http.Get("http://" + srv.addr + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "ammctl_test_marker_total 3")
	assert.Contains(t, string(body), "ammctl_test_gateway_poll_attempts_total 0")
}
