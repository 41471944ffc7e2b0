package geocode

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/liftcare/field-bot/internal/apperr"
)

func TestReverse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "46.9750000", r.URL.Query().Get("lat"))
		assert.Equal(t, "uk", r.URL.Query().Get("accept-language"))
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(`{"address":{"road":"вулиця Лазурна","house_number":"32А"}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, zap.NewNop())
	addr, err := c.Reverse(context.Background(), 46.975, 31.994)
	require.NoError(t, err)
	assert.Equal(t, Address{Road: "вулиця Лазурна", HouseNumber: "32а"}, addr)
}

func TestReverseNoRoad(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":"Unable to geocode"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second, zap.NewNop()).Reverse(context.Background(), 0, 0)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestReverseTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	start := time.Now()
	_, err := NewClient(srv.URL, 50*time.Millisecond, zap.NewNop()).Reverse(context.Background(), 0, 0)
	assert.True(t, apperr.Is(err, apperr.KindGeoTimeout), "got %v", err)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestReverseUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second, zap.NewNop()).Reverse(context.Background(), 0, 0)
	assert.Error(t, err)
	assert.False(t, apperr.Is(err, apperr.KindGeoTimeout))
}
