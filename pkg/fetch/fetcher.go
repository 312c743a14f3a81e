package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/review-scraper/pkg/config"
	"github.com/Sriram-PR/review-scraper/pkg/utils"
)

// RetryPolicy controls how many times a request is retried and how long to back off
type RetryPolicy struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// RetryPolicyFromConfig extracts the retry settings from the application config
func RetryPolicyFromConfig(cfg *config.AppConfig) RetryPolicy {
	return RetryPolicy{
		MaxRetries:   cfg.MaxRetries,
		InitialDelay: cfg.InitialRetryDelay,
		MaxDelay:     cfg.MaxRetryDelay,
	}
}

// Delay returns the backoff before the given retry attempt (attempt >= 1):
// initial * 2^(attempt-1), capped at MaxDelay, with +/-10% jitter.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	delay := time.Duration(float64(p.InitialDelay) * math.Pow(2, float64(attempt-1)))
	if delay <= 0 || (p.MaxDelay > 0 && delay > p.MaxDelay) {
		delay = p.MaxDelay
	}
	return jitter(delay)
}

// jitter spreads d by +/-10%
func jitter(d time.Duration) time.Duration {
	spread := int64(d) / 5
	if spread <= 0 {
		return d
	}
	out := d + time.Duration(rand.Int63n(spread)) - d/10
	if out < 0 {
		return 0
	}
	return out
}

// Fetcher performs HTTP requests with retry on transient failures (network errors, 5xx, 429)
type Fetcher struct {
	client *http.Client
	policy RetryPolicy
	log    *logrus.Entry
}

// NewFetcher creates a Fetcher over the given client
func NewFetcher(client *http.Client, policy RetryPolicy, log *logrus.Entry) *Fetcher {
	return &Fetcher{client: client, policy: policy, log: log}
}

// attemptResult classifies a single request attempt
type attemptResult int

const (
	attemptOK attemptResult = iota
	attemptRetry
	attemptFatal
)

// classifyStatus maps an HTTP status code to a retry decision and, for non-2xx, an error
func classifyStatus(resp *http.Response) (attemptResult, error) {
	code := resp.StatusCode
	switch {
	case code >= 200 && code < 300:
		return attemptOK, nil
	case code >= 500:
		return attemptRetry, fmt.Errorf("%w: status %d %s", utils.ErrServerHTTPError, code, resp.Status)
	case code == http.StatusTooManyRequests:
		return attemptRetry, fmt.Errorf("%w: status %d %s", utils.ErrClientHTTPError, code, resp.Status)
	case code >= 400:
		return attemptFatal, fmt.Errorf("%w: status %d %s", utils.ErrClientHTTPError, code, resp.Status)
	default:
		return attemptFatal, fmt.Errorf("%w: status %d %s", utils.ErrOtherHTTPError, code, resp.Status)
	}
}

func drain(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// Do sends req, retrying transient failures with exponential backoff.
// On success the caller owns resp.Body. For non-retryable 4xx/3xx statuses the response
// is returned alongside the error and the caller must close the body.
func (f *Fetcher) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	reqLog := f.log.WithField("url", req.URL.String())
	var lastErr error

	for attempt := 0; attempt <= f.policy.MaxRetries; attempt++ {
		if attempt > 0 {
			wait := f.policy.Delay(attempt)
			reqLog.WithFields(logrus.Fields{"attempt": attempt, "max_retries": f.policy.MaxRetries, "delay": wait}).Warn("Retrying request...")
			timer := time.NewTimer(wait)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return nil, fmt.Errorf("context cancelled (%v) during retry delay after error: %w", ctx.Err(), lastErr)
			}
		} else if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("context cancelled before first attempt: %w", err)
		}

		resp, err := f.client.Do(req.WithContext(ctx))
		if err != nil {
			drain(resp)
			if isContextErr(err) {
				reqLog.Warnf("Context cancelled/timed out during request: %v", err)
				return nil, err
			}
			reqLog.WithField("attempt", attempt).Errorf("Network error: %v", err)
			lastErr = err
			continue
		}

		result, statusErr := classifyStatus(resp)
		resLog := reqLog.WithFields(logrus.Fields{"status_code": resp.StatusCode, "attempt": attempt})
		switch result {
		case attemptOK:
			resLog.Debug("Successfully fetched")
			return resp, nil
		case attemptRetry:
			resLog.Warn("Transient HTTP status, retrying...")
			drain(resp)
			lastErr = statusErr
		case attemptFatal:
			resLog.Warn("Non-retryable HTTP status")
			return resp, statusErr
		}
	}

	reqLog.Errorf("All %d fetch attempts failed. Last error: %v", f.policy.MaxRetries+1, lastErr)
	if lastErr == nil {
		return nil, utils.ErrRetryFailed
	}
	return nil, fmt.Errorf("%w: %w", utils.ErrRetryFailed, lastErr)
}
