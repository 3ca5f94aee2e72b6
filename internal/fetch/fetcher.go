package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	mathrand "math/rand"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/html/charset"
	"golang.org/x/time/rate"

	"github.com/AlexandroFSD/price-tracker/internal/domain"
	"github.com/AlexandroFSD/price-tracker/logger"
	trkerr "github.com/AlexandroFSD/price-tracker/pkg/errors"
	"github.com/AlexandroFSD/price-tracker/services/cache"
)

// Browser-like request headers. Some shops serve stripped or blocked pages
// to obvious bots.
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/112.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/14.0.3 Safari/605.1.15",
}

// PriceExtractor pulls a price out of fetched markup.
type PriceExtractor interface {
	Price(markup []byte, selectors []string) (float64, bool)
}

// Options tunes the fetch pass.
type Options struct {
	ConnectTimeout     time.Duration
	TotalTimeout       time.Duration
	Retries            int
	RetryDelay         time.Duration
	PerHostConcurrency int
	PerHostRate        rate.Limit
	CooldownTTL        time.Duration
}

// DefaultOptions returns the tuning used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		ConnectTimeout:     5 * time.Second,
		TotalTimeout:       15 * time.Second,
		Retries:            3,
		RetryDelay:         2 * time.Second,
		PerHostConcurrency: 10,
		PerHostRate:        rate.Limit(5),
		CooldownTTL:        5 * time.Minute,
	}
}

// Fetcher downloads product pages concurrently and runs price extraction on
// each. All items fan out at once; requests to the same host are throttled by
// a per-host semaphore and rate limiter so no single shop sees a burst.
type Fetcher struct {
	client    *http.Client
	extractor PriceExtractor
	opts      Options
	cooldowns cache.Service
	log       *logger.Logger

	mu       sync.Mutex
	hostSem  map[string]chan struct{}
	hostRate map[string]*rate.Limiter
}

// NewFetcher creates a fetcher. cooldowns may be nil, which disables the
// cross-run rate-limit memory.
func NewFetcher(extractor PriceExtractor, opts Options, cooldowns cache.Service) *Fetcher {
	dialer := &net.Dialer{Timeout: opts.ConnectTimeout}
	return &Fetcher{
		client: &http.Client{
			Timeout: opts.TotalTimeout,
			Transport: &http.Transport{
				DialContext:         dialer.DialContext,
				TLSHandshakeTimeout: opts.ConnectTimeout,
				MaxIdleConnsPerHost: opts.PerHostConcurrency,
			},
		},
		extractor: extractor,
		opts:      opts,
		cooldowns: cooldowns,
		log:       logger.ForComponent("fetcher"),
		hostSem:   make(map[string]chan struct{}),
		hostRate:  make(map[string]*rate.Limiter),
	}
}

// CheckAll fetches every item concurrently and returns one outcome per item,
// in input order. It never returns an error: per-item failures are carried in
// the outcome status.
func (f *Fetcher) CheckAll(ctx context.Context, items []domain.ItemSpec) []domain.FetchOutcome {
	outcomes := make([]domain.FetchOutcome, len(items))

	var wg sync.WaitGroup
	for i, item := range items {
		wg.Add(1)
		go func(i int, item domain.ItemSpec) {
			defer wg.Done()
			outcomes[i] = f.checkOne(ctx, item)
		}(i, item)
	}
	wg.Wait()

	return outcomes
}

// checkOne produces the outcome for a single item. Skipped is reserved for
// items the check cannot even start on (nothing configured); a present but
// unusable URL counts as a fetch failure.
func (f *Fetcher) checkOne(ctx context.Context, item domain.ItemSpec) domain.FetchOutcome {
	outcome := domain.FetchOutcome{Item: item}
	ilog := logger.ForItem(item.Name)

	if strings.TrimSpace(item.URL) == "" {
		ilog.Warn().Msg("Skipping item with no url")
		outcome.Status = domain.StatusSkipped
		outcome.ErrorDetail = "no url configured"
		return outcome
	}
	if len(item.Selectors) == 0 {
		ilog.Warn().Msg("Skipping item with no selectors")
		outcome.Status = domain.StatusSkipped
		outcome.ErrorDetail = "no selectors configured"
		return outcome
	}

	host, err := hostOf(item.URL)
	if err != nil {
		ilog.Warn().Str("url", item.URL).Err(err).Msg("Item URL is unusable")
		outcome.Status = domain.StatusFetchFailed
		outcome.ErrorDetail = err.Error()
		return outcome
	}

	if f.inCooldown(host) {
		ilog.Info().Str("host", host).Msg("Host is cooling down after a rate limit, skipping")
		outcome.Status = domain.StatusSkipped
		outcome.ErrorDetail = "host in rate-limit cooldown"
		return outcome
	}

	release := f.acquireHost(host)
	defer release()

	body, err := f.fetchWithRetries(ctx, item, host)
	if err != nil {
		ilog.Warn().Err(err).Msg("Fetch failed")
		outcome.Status = domain.StatusFetchFailed
		outcome.ErrorDetail = err.Error()
		return outcome
	}

	outcome.Status = domain.StatusSuccess
	if value, ok := f.extractor.Price(body, item.Selectors); ok {
		outcome.Price = &value
	} else {
		ilog.Warn().Str("url", item.URL).Msg("Page fetched but no selector produced a price")
	}
	return outcome
}

// fetchWithRetries downloads one page, retrying transient failures with a
// fixed delay. A rate-limit response aborts the attempts and puts the host
// into cooldown.
func (f *Fetcher) fetchWithRetries(ctx context.Context, item domain.ItemSpec, host string) ([]byte, error) {
	var lastErr error

	for attempt := 1; attempt <= f.opts.Retries; attempt++ {
		if err := f.waitHostRate(ctx, host); err != nil {
			return nil, trkerr.NewNetwork(item.Name, "canceled while rate limiting", err)
		}

		body, retriable, err := f.fetchOnce(ctx, item.URL)
		if err == nil {
			return body, nil
		}
		lastErr = err

		if !retriable {
			return nil, err
		}
		if attempt < f.opts.Retries {
			f.log.Debug().
				Str("item", item.Name).
				Int("attempt", attempt).
				Err(err).
				Msg("Fetch attempt failed, retrying")
			select {
			case <-time.After(f.opts.RetryDelay):
			case <-ctx.Done():
				return nil, trkerr.NewNetwork(item.Name, "canceled during retry delay", ctx.Err())
			}
		}
	}

	f.log.Warn().
		Str("item", item.Name).
		Int("attempts", f.opts.Retries).
		Err(lastErr).
		Msg("Fetch attempts exhausted")
	return nil, trkerr.NewNetwork(item.Name, "failed to fetch content", lastErr)
}

// fetchOnce performs one GET. The bool reports whether the failure is worth
// retrying.
func (f *Fetcher) fetchOnce(ctx context.Context, pageURL string) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create request: %w", err)
	}

	rnd := mathrand.New(mathrand.NewSource(time.Now().UnixNano()))
	req.Header.Set("User-Agent", userAgents[rnd.Intn(len(userAgents))])
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, ctx.Err() == nil, fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		f.startCooldown(req.URL.Host, resp.Header.Get("Retry-After"))
		return nil, false, fmt.Errorf("rate limited by %s; retry after %q", req.URL.Host, resp.Header.Get("Retry-After"))
	}
	// Any other non-2xx consumes a retry attempt. Anti-bot layers hand out
	// transient 403/404s that clear up on a later try; redirects were already
	// followed by the client.
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, true, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("failed to read response body: %w", err)
	}

	return toUTF8(bodyBytes, resp.Header.Get("Content-Type"))
}

// toUTF8 converts the body to UTF-8 when the page declares another encoding.
func toUTF8(body []byte, contentType string) ([]byte, bool, error) {
	encoding, name, _ := charset.DetermineEncoding(body, contentType)
	if name == "utf-8" || name == "UTF-8" {
		return body, false, nil
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, encoding.NewDecoder().Reader(bytes.NewReader(body))); err != nil {
		return nil, false, fmt.Errorf("failed to convert body to UTF-8: %w", err)
	}
	return buf.Bytes(), false, nil
}

// acquireHost takes a slot on the host's semaphore and returns the release.
func (f *Fetcher) acquireHost(host string) func() {
	f.mu.Lock()
	sem, ok := f.hostSem[host]
	if !ok {
		sem = make(chan struct{}, f.opts.PerHostConcurrency)
		f.hostSem[host] = sem
	}
	f.mu.Unlock()

	sem <- struct{}{}
	return func() { <-sem }
}

// waitHostRate blocks until the host's rate limiter allows a request.
func (f *Fetcher) waitHostRate(ctx context.Context, host string) error {
	if f.opts.PerHostRate <= 0 {
		return nil
	}

	f.mu.Lock()
	limiter, ok := f.hostRate[host]
	if !ok {
		limiter = rate.NewLimiter(f.opts.PerHostRate, f.opts.PerHostConcurrency)
		f.hostRate[host] = limiter
	}
	f.mu.Unlock()

	return limiter.Wait(ctx)
}

func (f *Fetcher) inCooldown(host string) bool {
	if f.cooldowns == nil {
		return false
	}
	_, err := f.cooldowns.Get(cooldownKey(host))
	return err == nil
}

// startCooldown remembers that a host rate-limited us, so later runs skip it
// until the TTL expires. Failures here only cost us the memory.
func (f *Fetcher) startCooldown(host, retryAfter string) {
	if f.cooldowns == nil {
		return
	}
	if err := f.cooldowns.Set(cooldownKey(host), []byte(retryAfter), f.opts.CooldownTTL); err != nil {
		f.log.Debug().Str("host", host).Err(err).Msg("Failed to record host cooldown")
	}
}

func cooldownKey(host string) string {
	return "cooldown:" + host
}

func hostOf(pageURL string) (string, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported URL scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("URL has no host")
	}
	return u.Host, nil
}
