package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/hrvibe/hrvibe-core/internal/recruiting"
)

type fakeAuthorizer struct {
	managerID int64
	err       error
	calls     int
}

func (f *fakeAuthorizer) CompleteAuthorization(_ context.Context, state, code string) (int64, error) {
	f.calls++
	return f.managerID, f.err
}

func get(t *testing.T, h http.Handler, target string) (*http.Response, string) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	resp := rec.Result()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestHealth(t *testing.T) {
	s := New("", &fakeAuthorizer{}, nil, prometheus.NewRegistry(), zaptest.NewLogger(t))

	resp, body := get(t, s.Router(), "/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body)
}

func TestOAuthCallback(t *testing.T) {
	tests := []struct {
		name       string
		target     string
		err        error
		wantStatus int
		wantHook   bool
	}{
		{name: "ok", target: "/oauth/callback?code=c&state=s", wantStatus: http.StatusOK, wantHook: true},
		{name: "missing code", target: "/oauth/callback?state=s", wantStatus: http.StatusBadRequest},
		{name: "missing state", target: "/oauth/callback?code=c", wantStatus: http.StatusBadRequest},
		{name: "unknown state", target: "/oauth/callback?code=c&state=s", err: recruiting.ErrUnknownState, wantStatus: http.StatusNotFound},
		{name: "exchange failed", target: "/oauth/callback?code=c&state=s", err: errors.New("boom"), wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auth := &fakeAuthorizer{managerID: 42, err: tt.err}
			var hooked int64
			hook := func(_ context.Context, id int64) error {
				hooked = id
				return nil
			}

			s := New("", auth, hook, prometheus.NewRegistry(), zaptest.NewLogger(t))
			resp, _ := get(t, s.Router(), tt.target)

			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			if tt.wantHook {
				assert.Equal(t, int64(42), hooked)
			} else {
				assert.Zero(t, hooked)
			}
		})
	}
}

func TestOAuthCallbackHookErrorStillSucceeds(t *testing.T) {
	hook := func(context.Context, int64) error { return errors.New("telegram is down") }
	s := New("", &fakeAuthorizer{managerID: 1}, hook, prometheus.NewRegistry(), zaptest.NewLogger(t))

	resp, body := get(t, s.Router(), "/oauth/callback?code=c&state=s")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Авторизация прошла успешно")
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "hrvibe_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()

	s := New("", &fakeAuthorizer{}, nil, reg, zaptest.NewLogger(t))
	resp, body := get(t, s.Router(), "/metrics")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "hrvibe_test_total 1")
}

func TestRunShutsDownOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := New("127.0.0.1:0", &fakeAuthorizer{}, nil, prometheus.NewRegistry(), zaptest.NewLogger(t))

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
