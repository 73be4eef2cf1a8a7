package fetch

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/require"
)

func TestGet_UserAgentAndSuccess(t *testing.T) {
	t.Setenv("KEIBA_UA", "test-agent/1.0")
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	cl, err := New(Options{Timeout: 2 * time.Second})
	require.NoError(t, err)
	resp, err := cl.Get(context.Background(), srv.URL)
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, "test-agent/1.0", gotUA)
}

func TestGet_RetryOnServerError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	cl, err := New(Options{Retry: 1, RetryDelay: 10 * time.Millisecond, Timeout: 2 * time.Second})
	require.NoError(t, err)
	resp, err := cl.Get(context.Background(), srv.URL)
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestGet_NotFoundIsNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	cl, err := New(Options{Retry: 3, RetryDelay: 10 * time.Millisecond})
	require.NoError(t, err)
	_, err = cl.Get(context.Background(), srv.URL)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	require.Equal(t, http.StatusNotFound, se.Code)
	require.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestGet_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer srv.Close()

	cl, err := New(Options{Timeout: 100 * time.Millisecond})
	require.NoError(t, err)
	_, err = cl.Get(context.Background(), srv.URL)
	require.Error(t, err)
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return
	}
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGet_BreakerOpensAfterFailures(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	cl, err := New(Options{BreakerFailures: 2, BreakerCooldown: time.Minute})
	require.NoError(t, err)
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		_, err := cl.Get(ctx, srv.URL)
		require.Error(t, err)
	}
	_, err = cl.Get(ctx, srv.URL)
	require.ErrorIs(t, err, gobreaker.ErrOpenState)
	require.Equal(t, int32(2), atomic.LoadInt32(&calls), "open breaker must not reach the server")
}

func TestNew_RejectsNegativeRetry(t *testing.T) {
	_, err := New(Options{Retry: -1})
	require.Error(t, err)
}
