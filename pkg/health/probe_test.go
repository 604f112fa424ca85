package health

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cuemby/mirrorctl/pkg/host"
	"github.com/cuemby/mirrorctl/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubExecutor struct {
	err   error
	calls []string
}

func (s *stubExecutor) Run(ctx context.Context, name string, args ...string) error {
	s.calls = append(s.calls, strings.TrimSpace(name+" "+strings.Join(args, " ")))
	return s.err
}

func TestTCPChecker(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()

	result := NewTCPChecker(addr).Check(context.Background())
	assert.True(t, result.Healthy, result.Message)
	assert.Contains(t, result.Message, addr)

	require.NoError(t, listener.Close())

	result = NewTCPChecker(addr).Check(context.Background())
	assert.False(t, result.Healthy)
	assert.Contains(t, result.Message, "connection failed")
}

func TestExecChecker(t *testing.T) {
	exec := &stubExecutor{}
	result := NewExecChecker(exec, "nginx", "-t").Check(context.Background())
	assert.True(t, result.Healthy)
	assert.Equal(t, []string{"nginx -t"}, exec.calls)
	assert.Equal(t, CheckTypeExec, NewExecChecker(exec).Type())

	exec.err = fmt.Errorf("%w: nginx exited 1: unknown directive", host.ErrCommandFailed)
	result = NewExecChecker(exec, "nginx", "-t").Check(context.Background())
	assert.False(t, result.Healthy)
	assert.Contains(t, result.Message, "unknown directive")

	result = NewExecChecker(exec).Check(context.Background())
	assert.False(t, result.Healthy)
	assert.Equal(t, "no command specified", result.Message)
}

func TestProbe_RunsEveryCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<title>Index of /</title>"))
	}))
	defer server.Close()

	probe := NewProbe(
		NamedCheck{Name: "config", Checker: NewExecChecker(&stubExecutor{err: errors.New("nginx: not found")}, "nginx", "-t")},
		NamedCheck{Name: "index", Checker: NewHTTPChecker(server.URL).WithBody("Index of")},
	)

	reports := probe.Run(context.Background())
	require.Len(t, reports, 2)

	assert.Equal(t, "config", reports[0].Name)
	assert.Equal(t, CheckTypeExec, reports[0].Type)
	assert.False(t, reports[0].Result.Healthy)

	assert.Equal(t, "index", reports[1].Name)
	assert.True(t, reports[1].Result.Healthy, reports[1].Result.Message)

	assert.False(t, Healthy(reports))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.ProbeHealthy.WithLabelValues("config")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ProbeHealthy.WithLabelValues("index")))
}

func TestHealthy(t *testing.T) {
	assert.True(t, Healthy(nil))
	assert.True(t, Healthy([]Report{{Result: Result{Healthy: true}}}))
	assert.False(t, Healthy([]Report{{Result: Result{Healthy: true}}, {Result: Result{Healthy: false}}}))
}
