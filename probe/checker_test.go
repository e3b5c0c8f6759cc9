package probe

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// serverPort extracts host and port from an httptest server URL.
func serverPort(t *testing.T, ts *httptest.Server) (string, int) {
	t.Helper()
	host, portStr, err := net.SplitHostPort(ts.Listener.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return host, port
}

func TestWaitReady_Immediate(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()
	host, port := serverPort(t, ts)

	elapsed, err := NewChecker().WaitReady(context.Background(), host, port, "/", 5*time.Second)
	require.NoError(t, err)
	assert.Less(t, elapsed, 5*time.Second)
}

func TestWaitReady_BecomesHealthy(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Unready for the first two probes, like a server still warming up.
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()
	host, port := serverPort(t, ts)

	elapsed, err := NewChecker().WaitReady(context.Background(), host, port, "/", 10*time.Second)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, calls.Load(), int32(3))
	assert.Less(t, elapsed, 10*time.Second)
}

func TestWaitReady_NeverListens(t *testing.T) {
	// Reserve a port and close it so nothing is listening there.
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())

	_, err = NewChecker().WaitReady(context.Background(), "127.0.0.1", port, "/", 1500*time.Millisecond)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not accepting connections")
}

func TestWaitReady_UnhealthyWithinWindow(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()
	host, port := serverPort(t, ts)

	_, err := NewChecker().WaitReady(context.Background(), host, port, "/", 1500*time.Millisecond)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "did not answer")
}

func TestWaitReady_ContextCanceled(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(200 * time.Millisecond)
		cancel()
	}()

	_, err = NewChecker().WaitReady(ctx, "127.0.0.1", port, "/", time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCheck(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/healthz":
			w.WriteHeader(http.StatusOK)
		case "/redirect":
			w.WriteHeader(http.StatusFound)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer ts.Close()
	host, port := serverPort(t, ts)
	checker := NewChecker()

	assert.NoError(t, checker.Check(context.Background(), host, port, "/healthz"))
	assert.NoError(t, checker.Check(context.Background(), host, port, "healthz"), "missing leading slash is tolerated")
	assert.NoError(t, checker.Check(context.Background(), host, port, "/redirect"), "redirect statuses count as ready")

	err := checker.Check(context.Background(), host, port, "/missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 404")
}

func TestDialHost(t *testing.T) {
	tests := []struct {
		bind     string
		expected string
	}{
		{"0.0.0.0", "127.0.0.1"},
		{"", "127.0.0.1"},
		{"::", "127.0.0.1"},
		{"[::]", "127.0.0.1"},
		{"127.0.0.1", "127.0.0.1"},
		{"192.168.1.10", "192.168.1.10"},
		{"dashboard.internal", "dashboard.internal"},
	}

	for _, test := range tests {
		assert.Equal(t, test.expected, DialHost(test.bind), "DialHost(%q)", test.bind)
	}
}
