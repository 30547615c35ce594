package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/civic-report-api/internal/models"
	"github.com/noah-isme/civic-report-api/pkg/config"
	appErrors "github.com/noah-isme/civic-report-api/pkg/errors"
)

type memoryCache struct {
	values map[string]interface{}
}

func (m *memoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	v, ok := m.values[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	if s, ok := dest.(*string); ok {
		*s = v.(string)
	}
	return nil
}

func (m *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	m.values[key] = value
	return nil
}

func (m *memoryCache) DeleteByPattern(ctx context.Context, pattern string) error {
	return nil
}

func geocodeConfig(baseURL string) config.GeocodeConfig {
	return config.GeocodeConfig{Enabled: true, BaseURL: baseURL, UserAgent: "test-agent", Timeout: time.Second, CacheTTL: time.Minute}
}

func TestGeocodeReverseUsesCache(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "/reverse", r.URL.Path)
		assert.Equal(t, "12.9716", r.URL.Query().Get("lat"))
		assert.Equal(t, "77.5946", r.URL.Query().Get("lon"))
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(`{"display_name":"MG Road, Bengaluru"}`))
	}))
	defer srv.Close()

	cache := NewCacheService(&memoryCache{values: map[string]interface{}{}}, nil, time.Minute, nil, true)
	svc := NewGeocodeService(geocodeConfig(srv.URL), srv.Client(), cache, nil)

	addr, err := svc.Reverse(context.Background(), 12.9716, 77.5946)
	require.NoError(t, err)
	assert.Equal(t, "MG Road, Bengaluru", addr)

	addr, err = svc.Reverse(context.Background(), 12.9716, 77.5946)
	require.NoError(t, err)
	assert.Equal(t, "MG Road, Bengaluru", addr)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestGeocodeReverseFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	svc := NewGeocodeService(geocodeConfig(srv.URL), srv.Client(), nil, nil)
	_, err := svc.Reverse(context.Background(), 1, 2)
	assert.ErrorIs(t, err, appErrors.ErrLocationUnknown)
	assert.True(t, appErrors.IsLocation(err))

	_, err = svc.Reverse(context.Background(), 100, 2)
	assert.ErrorIs(t, err, appErrors.ErrLocationUnknown)
}

func TestGeocodeReverseTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	cfg := geocodeConfig(srv.URL)
	cfg.Timeout = 20 * time.Millisecond
	svc := NewGeocodeService(cfg, srv.Client(), nil, nil)

	_, err := svc.Reverse(context.Background(), 1, 2)
	assert.ErrorIs(t, err, appErrors.ErrLocationTimeout)
}

func TestGeocodeDescribeFallsBackToCoordinates(t *testing.T) {
	svc := NewGeocodeService(config.GeocodeConfig{}, nil, nil, nil)

	loc := svc.Describe(context.Background(), models.Location{Latitude: 12.9716, Longitude: 77.5946})
	assert.Equal(t, "12.9716, 77.5946", loc.Address)

	loc = svc.Describe(context.Background(), models.Location{Latitude: 1, Longitude: 2, Address: "Given"})
	assert.Equal(t, "Given", loc.Address)
}
