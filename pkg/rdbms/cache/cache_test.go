package cache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thetechidea/beepdatasources/pkg/errors"
	"github.com/thetechidea/beepdatasources/pkg/metrics"
	"github.com/thetechidea/beepdatasources/pkg/models"
)

type countingLoader struct {
	calls     atomic.Int32
	refreshes atomic.Int32
	delay     time.Duration
	err       error
}

func (l *countingLoader) load(ctx context.Context, name string, refresh bool) (*models.EntityStructure, error) {
	n := l.calls.Add(1)
	if refresh {
		l.refreshes.Add(1)
	}
	if l.delay > 0 {
		time.Sleep(l.delay)
	}
	if l.err != nil {
		return nil, l.err
	}
	return &models.EntityStructure{EntityName: name, DatasourceEntityName: fmt.Sprintf("v%d", n)}, nil
}

func TestGetMemoizes(t *testing.T) {
	l := &countingLoader{}
	c := New(l.load, 0)
	ctx := context.Background()

	first, err := c.Get(ctx, "Orders", false)
	require.NoError(t, err)
	second, err := c.Get(ctx, "orders", false)
	require.NoError(t, err)
	third, err := c.Get(ctx, " ORDERS ", false)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Same(t, first, third)
	assert.Equal(t, int32(1), l.calls.Load())
	assert.Equal(t, 1, c.Len())
}

func TestGetRefreshOverwrites(t *testing.T) {
	l := &countingLoader{}
	c := New(l.load, 0)
	ctx := context.Background()

	first, err := c.Get(ctx, "orders", false)
	require.NoError(t, err)
	assert.Equal(t, "v1", first.DatasourceEntityName)

	refreshed, err := c.Get(ctx, "orders", true)
	require.NoError(t, err)
	assert.Equal(t, "v2", refreshed.DatasourceEntityName)
	assert.Equal(t, int32(1), l.refreshes.Load())

	cached, err := c.Get(ctx, "Orders", false)
	require.NoError(t, err)
	assert.Same(t, refreshed, cached)
	assert.Equal(t, int32(2), l.calls.Load())
}

func TestRefreshOnColdKey(t *testing.T) {
	l := &countingLoader{}
	c := New(l.load, 0)

	v, err := c.Get(context.Background(), "orders", true)
	require.NoError(t, err)
	assert.Equal(t, "v1", v.DatasourceEntityName)

	p, ok := c.Peek("ORDERS")
	require.True(t, ok)
	assert.Same(t, v, p)
}

func TestLoaderErrorsAreNotCached(t *testing.T) {
	l := &countingLoader{err: errors.New(errors.ErrorTypeNotFound, "no such table")}
	c := New(l.load, 0)
	ctx := context.Background()

	_, err := c.Get(ctx, "missing", false)
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
	_, err = c.Get(ctx, "missing", false)
	assert.Error(t, err)

	assert.Equal(t, int32(2), l.calls.Load())
	assert.Equal(t, 0, c.Len())
}

func TestEmptyName(t *testing.T) {
	l := &countingLoader{}
	c := New(l.load, 0)

	_, err := c.Get(context.Background(), "  ", false)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
	assert.Zero(t, l.calls.Load())
}

func TestConcurrentMissesLoadOnce(t *testing.T) {
	l := &countingLoader{delay: 20 * time.Millisecond}
	c := New(l.load, 0)
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make([]*models.EntityStructure, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := c.Get(ctx, "orders", false)
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), l.calls.Load())
	for _, r := range results {
		assert.Same(t, results[0], r)
	}
}

func TestInvalidateAndClear(t *testing.T) {
	l := &countingLoader{}
	c := New(l.load, 0)
	ctx := context.Background()

	_, err := c.Get(ctx, "a", false)
	require.NoError(t, err)
	_, err = c.Get(ctx, "b", false)
	require.NoError(t, err)
	require.Equal(t, 2, c.Len())

	c.Invalidate("A")
	assert.Equal(t, 1, c.Len())
	_, ok := c.Peek("a")
	assert.False(t, ok)

	c.Clear()
	assert.Equal(t, 0, c.Len())
}

func TestTTLExpiry(t *testing.T) {
	l := &countingLoader{}
	c := New(l.load, 30*time.Millisecond)
	ctx := context.Background()

	_, err := c.Get(ctx, "orders", false)
	require.NoError(t, err)
	time.Sleep(60 * time.Millisecond)
	v, err := c.Get(ctx, "orders", false)
	require.NoError(t, err)

	assert.Equal(t, "v2", v.DatasourceEntityName)
}

func TestCacheMetrics(t *testing.T) {
	l := &countingLoader{}
	c := New(l.load, 0).WithName("metrics_test")
	ctx := context.Background()

	_, _ = c.Get(ctx, "x", false)
	_, _ = c.Get(ctx, "x", false)
	_, _ = c.Get(ctx, "x", true)

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.CacheRequests.WithLabelValues("metrics_test", metrics.CacheMiss)))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.CacheRequests.WithLabelValues("metrics_test", metrics.CacheHit)))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.CacheRequests.WithLabelValues("metrics_test", metrics.CacheRefresh)))
}
