// Package probe verifies that a served app is actually reachable: first that
// its port accepts TCP connections, then that its health path answers HTTP.
package probe

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const pollInterval = 500 * time.Millisecond

// Checker performs readiness checks against a served app.
type Checker struct {
	http *resty.Client
}

// NewChecker creates a Checker with a short per-request timeout so a stuck
// app cannot swallow the whole readiness window in one call.
func NewChecker() *Checker {
	return &Checker{
		http: resty.New().SetTimeout(2 * time.Second),
	}
}

// WaitReady blocks until the app on addr:port accepts TCP connections and
// its health path answers with a success status, or the window elapses. It
// returns how long readiness took.
func (c *Checker) WaitReady(ctx context.Context, addr string, port int, path string, window time.Duration) (time.Duration, error) {
	start := time.Now()
	target := net.JoinHostPort(DialHost(addr), strconv.Itoa(port))

	deadline := time.NewTimer(window)
	defer deadline.Stop()
	tick := time.NewTicker(pollInterval)
	defer tick.Stop()

	tcpUp := false
	for {
		if !tcpUp {
			conn, err := net.DialTimeout("tcp", target, pollInterval)
			if err == nil {
				conn.Close()
				tcpUp = true
			}
		}
		if tcpUp {
			if err := c.Check(ctx, addr, port, path); err == nil {
				return time.Since(start), nil
			}
		}

		select {
		case <-ctx.Done():
			return time.Since(start), ctx.Err()
		case <-deadline.C:
			if tcpUp {
				return time.Since(start), fmt.Errorf("%s accepted connections but %s did not answer within %s", target, healthPath(path), window)
			}
			return time.Since(start), fmt.Errorf("%s not accepting connections within %s", target, window)
		case <-tick.C:
		}
	}
}

// Check performs a single HTTP readiness request. Any status below 400
// counts as ready.
func (c *Checker) Check(ctx context.Context, addr string, port int, path string) error {
	url := fmt.Sprintf("http://%s%s", net.JoinHostPort(DialHost(addr), strconv.Itoa(port)), healthPath(path))

	resp, err := c.http.R().SetContext(ctx).Get(url)
	if err != nil {
		return fmt.Errorf("failed to reach %s: %w", url, err)
	}
	if resp.StatusCode() >= 200 && resp.StatusCode() < 400 {
		return nil
	}
	return fmt.Errorf("unexpected status %d from %s", resp.StatusCode(), url)
}

// DialHost maps a wildcard bind address to a dialable loopback host.
func DialHost(bind string) string {
	switch bind {
	case "", "0.0.0.0", "::", "[::]":
		return "127.0.0.1"
	}
	return bind
}

func healthPath(path string) string {
	if path == "" {
		return "/"
	}
	if !strings.HasPrefix(path, "/") {
		return "/" + path
	}
	return path
}
