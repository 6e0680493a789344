package client

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"strconv"
	"time"

	"nba_salaries/ingestion/internal/metrics"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultRetryBase = 1 * time.Second
)

// DefaultHeaders returns the browser-like header set sent with every request
func DefaultHeaders() map[string]string {
	return map[string]string{
		"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36",
		"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		"Accept-Language": "en-US,en;q=0.9",
		"Referer":         "https://www.spotrac.com/",
		"Connection":      "keep-alive",
	}
}

// FetchError is returned when every attempt to retrieve a page failed
type FetchError struct {
	URL        string
	Attempts   int
	StatusCode int // last HTTP status observed, 0 if no response was received
	Err        error
}

func (e *FetchError) Error() string {
	msg := fmt.Sprintf("fetch %s failed after %d attempts (last status %d)", e.URL, e.Attempts, e.StatusCode)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// FetcherConfig configures a Fetcher. Zero values fall back to defaults.
type FetcherConfig struct {
	Timeout   time.Duration     // ceiling for a single attempt
	RetryBase time.Duration     // attempt n waits n*RetryBase before retrying
	Headers   map[string]string // sent with every request
}

// Fetcher retrieves HTML pages over one reused HTTP session
type Fetcher struct {
	http      *resty.Client
	retryBase time.Duration
}

// NewFetcher creates a fetcher with its own session (cookie jar, keep-alive
// transport and a fixed header set)
func NewFetcher(cfg FetcherConfig) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = defaultRetryBase
	}
	headers := cfg.Headers
	if headers == nil {
		headers = DefaultHeaders()
	}

	httpClient := resty.New()
	httpClient.SetTimeout(cfg.Timeout)
	httpClient.SetRetryCount(0)
	// SetHeaders copies into the client's own header map
	httpClient.SetHeaders(headers)

	jar, err := cookiejar.New(nil)
	if err == nil {
		httpClient.SetCookieJar(jar)
	}

	return &Fetcher{
		http:      httpClient,
		retryBase: cfg.RetryBase,
	}
}

// Fetch performs GET url until a 200 response arrives or maxAttempts is
// exhausted. A failed attempt n (1-based) is followed by a wait of
// n*RetryBase. Exhaustion returns a *FetchError.
func (f *Fetcher) Fetch(ctx context.Context, url string, maxAttempts int) (string, error) {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var (
		lastStatus int
		lastErr    error
	)

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * f.retryBase
			log.Info().
				Str("url", url).
				Int("attempt", attempt+1).
				Dur("backoff", backoff).
				Msg("Retrying page fetch after backoff")

			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}

		log.Debug().
			Str("url", url).
			Int("attempt", attempt+1).
			Msg("Fetching page")

		start := time.Now()
		resp, err := f.http.R().
			SetContext(ctx).
			Get(url)
		duration := time.Since(start).Seconds()

		if err != nil {
			metrics.RecordFetchAttempt("error", duration)
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			lastStatus = 0
			lastErr = err
			log.Warn().
				Err(err).
				Str("url", url).
				Int("attempt", attempt+1).
				Msg("Page fetch failed")
			continue
		}

		lastStatus = resp.StatusCode()
		metrics.RecordFetchAttempt(strconv.Itoa(lastStatus), duration)

		if lastStatus == http.StatusOK {
			log.Debug().
				Str("url", url).
				Int("status", lastStatus).
				Int("size", len(resp.Body())).
				Msg("Page fetched")
			return resp.String(), nil
		}

		lastErr = nil
		log.Warn().
			Str("url", url).
			Int("status", lastStatus).
			Int("attempt", attempt+1).
			Msg("Page fetch returned non-success status")
	}

	return "", &FetchError{
		URL:        url,
		Attempts:   maxAttempts,
		StatusCode: lastStatus,
		Err:        lastErr,
	}
}
