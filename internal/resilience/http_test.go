package resilience

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fastBackoff = Backoff{MaxRetries: 2, InitialInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond}

func newServer(t *testing.T, statuses ...int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		n := int(calls.Add(1)) - 1
		status := statuses[len(statuses)-1]
		if n < len(statuses) {
			status = statuses[n]
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte("body"))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func get(url string) func() (*http.Request, error) {
	return func() (*http.Request, error) { return http.NewRequest(http.MethodGet, url, nil) }
}

func TestDo_RetriesServerErrors(t *testing.T) {
	srv, calls := newServer(t, http.StatusBadGateway, http.StatusTooManyRequests, http.StatusOK)

	resp, err := Do(context.Background(), Config{Client: srv.Client(), Backoff: fastBackoff}, NewBreaker(t.Name()), get(srv.URL))

	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(3), calls.Load())
}

func TestDo_GivesUpAfterMaxRetries(t *testing.T) {
	srv, calls := newServer(t, http.StatusInternalServerError)

	_, err := Do(context.Background(), Config{Client: srv.Client(), Backoff: fastBackoff}, NewBreaker(t.Name()), get(srv.URL))

	assert.ErrorIs(t, err, ErrServerError)
	assert.Equal(t, int32(3), calls.Load())
}

func TestDo_ClientErrorsAreNotRetried(t *testing.T) {
	srv, calls := newServer(t, http.StatusNotFound)
	cb := NewBreaker(t.Name())

	for i := 0; i < 10; i++ {
		_, err := Do(context.Background(), Config{Client: srv.Client(), Backoff: fastBackoff}, cb, get(srv.URL))

		var se *StatusError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, http.StatusNotFound, StatusCode(err))
	}
	// One call per attempt and the breaker never opened.
	assert.Equal(t, int32(10), calls.Load())
}

func TestDo_CircuitOpens(t *testing.T) {
	srv, _ := newServer(t, http.StatusServiceUnavailable)
	cb := NewBreaker(t.Name())
	cfg := Config{Client: srv.Client(), Backoff: Backoff{MaxRetries: 0, InitialInterval: time.Millisecond}}

	var err error
	for i := 0; i < 10; i++ {
		_, err = Do(context.Background(), cfg, cb, get(srv.URL))
	}

	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestDo_Config(t *testing.T) {
	_, err := Do(context.Background(), Config{}, NewBreaker(t.Name()), get("http://example.invalid"))
	assert.ErrorIs(t, err, ErrNoHTTPClient)

	_, err = Do(context.Background(), Config{Client: http.DefaultClient}, NewBreaker(t.Name()), get("http://example.invalid"))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestDo_ContextCancelled(t *testing.T) {
	srv, _ := newServer(t, http.StatusOK)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Do(ctx, Config{Client: srv.Client(), Backoff: fastBackoff}, NewBreaker(t.Name()), get(srv.URL))

	assert.ErrorIs(t, err, context.Canceled)
}

func TestBackoff_Delay(t *testing.T) {
	b := Backoff{MaxRetries: 5, InitialInterval: 100 * time.Millisecond, MaxInterval: time.Second}

	assert.Equal(t, 100*time.Millisecond, b.Delay(0))
	assert.Equal(t, 400*time.Millisecond, b.Delay(2))
	assert.Equal(t, time.Second, b.Delay(4))
	assert.Equal(t, time.Second, b.Delay(80))
}
