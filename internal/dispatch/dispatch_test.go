package dispatch

import (
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func targetFor(t *testing.T, rawURL, name string, timeout time.Duration) Target {
	t.Helper()

	u, err := url.Parse(rawURL)
	require.NoError(t, err)
	host, portStr, err := net.SplitHostPort(u.Host)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	return Target{Name: name, Host: host, Port: port, Timeout: timeout}
}

func TestDispatch_UnknownService(t *testing.T) {
	var calls int
	d := NewDispatcher(nil, func(string) { calls++ })

	_, err := d.Dispatch("missing-service", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownService))
	assert.Equal(t, 0, calls, "no call should be counted for an unknown service")
}

func TestDispatch_PassesUpstreamThroughVerbatim(t *testing.T) {
	var gotBody []byte
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte(`{"detail":"odd status"}`))
	}))
	defer ts.Close()

	d := NewDispatcher([]Target{targetFor(t, ts.URL, "echo", time.Second)}, nil)

	result, err := d.Dispatch("echo", []byte(`{"k":"v"}`))
	require.NoError(t, err, "a completed call is never an error, whatever the status")
	assert.Equal(t, http.StatusTeapot, result.Status)
	assert.Equal(t, `{"detail":"odd status"}`, string(result.Body))
	assert.Equal(t, "application/json", result.ContentType)
	assert.Equal(t, `{"k":"v"}`, string(gotBody))
}

func TestDispatch_Timeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer ts.Close()

	d := NewDispatcher([]Target{targetFor(t, ts.URL, "slow", 50*time.Millisecond)}, nil)

	_, err := d.Dispatch("slow", nil)
	require.Error(t, err)

	var dispErr *Error
	require.True(t, errors.As(err, &dispErr))
	assert.Equal(t, KindTimeout, dispErr.Kind, "a bounded call that never completes is a timeout, not a transport error")
	assert.Equal(t, "slow", dispErr.Service)
}

func TestDispatch_TransportError(t *testing.T) {
	// Grab a port that nothing listens on.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	host, portStr, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	port, _ := strconv.Atoi(portStr)

	d := NewDispatcher([]Target{{Name: "dead", Host: host, Port: port, Timeout: time.Second}}, nil)

	_, err = d.Dispatch("dead", nil)
	require.Error(t, err)

	var dispErr *Error
	require.True(t, errors.As(err, &dispErr))
	assert.Equal(t, KindTransport, dispErr.Kind)
}

func TestDispatch_CountsEveryAttempt(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer ts.Close()

	counts := make(map[string]int)
	d := NewDispatcher([]Target{targetFor(t, ts.URL, "slow", 20*time.Millisecond)}, func(name string) {
		counts[name]++
	})

	d.Dispatch("slow", nil)
	d.Dispatch("slow", nil)

	assert.Equal(t, 2, counts["slow"], "attempts are counted at issue time, before the outcome is known")
}

func TestDispatcher_Names(t *testing.T) {
	d := NewDispatcher([]Target{
		{Name: "order-service", Host: "h", Port: 1},
		{Name: "user-service", Host: "h", Port: 2},
	}, nil)

	assert.Equal(t, []string{"order-service", "user-service"}, d.Names())
}

func TestDispatcher_DefaultTimeout(t *testing.T) {
	d := NewDispatcher([]Target{{Name: "svc", Host: "h", Port: 1}}, nil)
	target, ok := d.Lookup("svc")
	require.True(t, ok)
	assert.Equal(t, DefaultTimeout, target.Timeout)
}
