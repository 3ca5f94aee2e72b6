package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/AlexandroFSD/price-tracker/internal/domain"
	"github.com/AlexandroFSD/price-tracker/internal/extract"
	"github.com/AlexandroFSD/price-tracker/services/cache"
)

func testOptions() Options {
	opts := DefaultOptions()
	opts.Retries = 3
	opts.RetryDelay = 10 * time.Millisecond
	opts.PerHostRate = rate.Inf
	return opts
}

func newTestFetcher(cooldowns *memoryCache) *Fetcher {
	var svc cache.Service
	if cooldowns != nil {
		svc = cooldowns
	}
	return NewFetcher(extract.NewExtractor(extract.XPathEngine{}), testOptions(), svc)
}

// memoryCache is a map-backed cache.Service for tests.
type memoryCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemoryCache() *memoryCache {
	return &memoryCache{data: make(map[string][]byte)}
}

func (m *memoryCache) Get(key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	value, ok := m.data[key]
	if !ok {
		return nil, fmt.Errorf("cache miss")
	}
	return value, nil
}

func (m *memoryCache) Set(key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memoryCache) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func pricePage(price string) string {
	return fmt.Sprintf(`<html><body><span id="price">%s</span></body></html>`, price)
}

func TestCheckAllPreservesInputOrder(t *testing.T) {
	prices := map[string]string{
		"/a": "10.00",
		"/b": "20.00",
		"/c": "30.00",
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, pricePage(prices[r.URL.Path]))
	}))
	defer server.Close()

	items := []domain.ItemSpec{
		{Name: "A", URL: server.URL + "/a", Selectors: []string{"#price"}, TargetPrice: 5},
		{Name: "B", URL: server.URL + "/b", Selectors: []string{"#price"}, TargetPrice: 5},
		{Name: "C", URL: server.URL + "/c", Selectors: []string{"#price"}, TargetPrice: 5},
	}

	outcomes := newTestFetcher(nil).CheckAll(context.Background(), items)

	require.Len(t, outcomes, 3)
	for i, want := range []float64{10, 20, 30} {
		assert.Equal(t, items[i].Name, outcomes[i].Item.Name)
		assert.Equal(t, domain.StatusSuccess, outcomes[i].Status)
		require.NotNil(t, outcomes[i].Price)
		assert.InDelta(t, want, *outcomes[i].Price, 1e-9)
	}
}

func TestCheckAllRetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, pricePage("99.99"))
	}))
	defer server.Close()

	items := []domain.ItemSpec{{Name: "Flaky", URL: server.URL, Selectors: []string{"#price"}}}
	outcomes := newTestFetcher(nil).CheckAll(context.Background(), items)

	require.Len(t, outcomes, 1)
	assert.Equal(t, domain.StatusSuccess, outcomes[0].Status)
	require.NotNil(t, outcomes[0].Price)
	assert.InDelta(t, 99.99, *outcomes[0].Price, 1e-9)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestCheckAllFetchFailedAfterAllRetries(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	items := []domain.ItemSpec{{Name: "Down", URL: server.URL, Selectors: []string{"#price"}}}
	outcomes := newTestFetcher(nil).CheckAll(context.Background(), items)

	require.Len(t, outcomes, 1)
	assert.Equal(t, domain.StatusFetchFailed, outcomes[0].Status)
	assert.Nil(t, outcomes[0].Price)
	assert.Contains(t, outcomes[0].ErrorDetail, "failed to fetch content")
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestCheckAllRetriesClientErrors(t *testing.T) {
	// 4xx consumes retry attempts just like 5xx and transport failures.
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	items := []domain.ItemSpec{{Name: "Gone", URL: server.URL, Selectors: []string{"#price"}}}
	outcomes := newTestFetcher(nil).CheckAll(context.Background(), items)

	require.Len(t, outcomes, 1)
	assert.Equal(t, domain.StatusFetchFailed, outcomes[0].Status)
	assert.Contains(t, outcomes[0].ErrorDetail, "failed to fetch content")
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestCheckAllRecoversFromTransientClientErrors(t *testing.T) {
	// Anti-bot layers hand out 403s that clear up on a later attempt.
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		fmt.Fprint(w, pricePage("59.99"))
	}))
	defer server.Close()

	items := []domain.ItemSpec{{Name: "Guarded", URL: server.URL, Selectors: []string{"#price"}}}
	outcomes := newTestFetcher(nil).CheckAll(context.Background(), items)

	require.Len(t, outcomes, 1)
	assert.Equal(t, domain.StatusSuccess, outcomes[0].Status)
	require.NotNil(t, outcomes[0].Price)
	assert.InDelta(t, 59.99, *outcomes[0].Price, 1e-9)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestCheckAllSkipsItemsWithoutURL(t *testing.T) {
	items := []domain.ItemSpec{
		{Name: "Blank", URL: "   ", Selectors: []string{"#price"}},
	}

	outcomes := newTestFetcher(nil).CheckAll(context.Background(), items)

	require.Len(t, outcomes, 1)
	assert.Equal(t, domain.StatusSkipped, outcomes[0].Status)
	assert.Nil(t, outcomes[0].Price)
}

func TestCheckAllFailsUnusableURLs(t *testing.T) {
	// A URL that is present but cannot be fetched is a fetch failure, not a
	// skip; no network is touched either way.
	items := []domain.ItemSpec{
		{Name: "NoScheme", URL: "shop.example.com/widget", Selectors: []string{"#price"}},
		{Name: "BadScheme", URL: "ftp://shop.example.com/widget", Selectors: []string{"#price"}},
	}

	outcomes := newTestFetcher(nil).CheckAll(context.Background(), items)

	require.Len(t, outcomes, 2)
	for _, outcome := range outcomes {
		assert.Equal(t, domain.StatusFetchFailed, outcome.Status)
		assert.Nil(t, outcome.Price)
		assert.NotEmpty(t, outcome.ErrorDetail)
	}
}

func TestCheckAllSuccessWithoutPrice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><p>Out of stock</p></body></html>`)
	}))
	defer server.Close()

	items := []domain.ItemSpec{{Name: "Sold out", URL: server.URL, Selectors: []string{"#price"}}}
	outcomes := newTestFetcher(nil).CheckAll(context.Background(), items)

	require.Len(t, outcomes, 1)
	// The page was reachable, so this is a success, just with no reading.
	assert.Equal(t, domain.StatusSuccess, outcomes[0].Status)
	assert.Nil(t, outcomes[0].Price)
}

func TestRateLimitStartsCooldown(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Retry-After", "120")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	cooldowns := newMemoryCache()
	fetcher := newTestFetcher(cooldowns)
	items := []domain.ItemSpec{{Name: "Limited", URL: server.URL, Selectors: []string{"#price"}}}

	outcomes := fetcher.CheckAll(context.Background(), items)
	require.Len(t, outcomes, 1)
	assert.Equal(t, domain.StatusFetchFailed, outcomes[0].Status)
	// 429 is terminal, no retries
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	// The next pass skips the host without touching the network.
	outcomes = fetcher.CheckAll(context.Background(), items)
	require.Len(t, outcomes, 1)
	assert.Equal(t, domain.StatusSkipped, outcomes[0].Status)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestPerHostConcurrencyLimit(t *testing.T) {
	var inFlight, peak int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		current := atomic.AddInt32(&inFlight, 1)
		for {
			old := atomic.LoadInt32(&peak)
			if current <= old || atomic.CompareAndSwapInt32(&peak, old, current) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		fmt.Fprint(w, pricePage("1.00"))
	}))
	defer server.Close()

	opts := testOptions()
	opts.PerHostConcurrency = 2
	fetcher := NewFetcher(extract.NewExtractor(nil), opts, nil)

	items := make([]domain.ItemSpec, 8)
	for i := range items {
		items[i] = domain.ItemSpec{
			Name:      fmt.Sprintf("Item %d", i),
			URL:       fmt.Sprintf("%s/%d", server.URL, i),
			Selectors: []string{"#price"},
		}
	}

	outcomes := fetcher.CheckAll(context.Background(), items)

	require.Len(t, outcomes, 8)
	for _, outcome := range outcomes {
		assert.Equal(t, domain.StatusSuccess, outcome.Status)
	}
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}
