// Package webhook delivers job-completion callbacks to caller-supplied
// URLs. Delivery is at-least-once and best-effort: Dispatch returns
// immediately and the retry schedule runs on its own goroutine so a
// slow or dead receiver never blocks the job queue's worker pool.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"

	"github.com/episoded/episoded/internal/config"
	"github.com/episoded/episoded/internal/jobqueue"
	"github.com/episoded/episoded/pkg/httpclient"
)

// Dispatcher implements jobqueue.WebhookDispatcher. Every delivery goes
// through the shared "webhook" httpclient profile (pkg/httpclient), so
// every request passes that profile's circuit breaker; transport-level
// retries are turned off (see New). Dispatcher layers two things on top
// of that: an attempt schedule driven by backoff/v4 (cfg.MaxAttempts
// attempts; waits start at cfg.BaseDelay, grow 4x with backoff/v4's
// default jitter and are capped at cfg.MaxDelay, so the defaults of 3
// attempts and 1s give waits of about 1s and 4s), and a per-destination-host breaker
// (gobreaker) so one chronically-failing receiver can't exhaust every
// job's retry budget once it's known to be down.
type Dispatcher struct {
	client *httpclient.Client
	cfg    config.WebhookConfig
	logger *slog.Logger

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

// New builds a Dispatcher using factory's "webhook" circuit-breaker
// profile. Transport-level retries are disabled on the returned client
// (RetryAttempts: 0) since Dispatcher owns the retry schedule itself.
func New(factory *httpclient.ClientFactory, cfg config.WebhookConfig, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	client := factory.CreateClientWithConfig("webhook", httpclient.Config{
		Timeout:       cfg.Timeout,
		RetryAttempts: 0,
		UserAgent:     "episoded-webhook/1.0",
	})
	return &Dispatcher{
		client:   client,
		cfg:      cfg,
		logger:   logger,
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

// Dispatch fires the terminal-status callback for a job. It never
// blocks the caller: delivery, retries, and circuit breaking all run on
// a detached goroutine.
func (d *Dispatcher) Dispatch(ctx context.Context, webhookURL string, payload jobqueue.WebhookPayload) {
	go d.deliver(webhookURL, payload)
}

// maxWebhookBodyBytes bounds the payload posted to a receiver. A job's
// Result can in principle carry an arbitrarily large collaborator
// response; callers expect a bounded, fast-to-parse callback body, not
// a dump of everything the pipeline produced.
const maxWebhookBodyBytes = 1 << 20

func (d *Dispatcher) deliver(webhookURL string, payload jobqueue.WebhookPayload) {
	body, err := json.Marshal(payload)
	if err != nil {
		d.logger.Error("failed to marshal webhook payload",
			slog.String("job_id", payload.JobID), slog.String("error", err.Error()))
		return
	}
	if len(body) > maxWebhookBodyBytes {
		payload.Result = nil
		payload.Truncated = true
		body, err = json.Marshal(payload)
		if err != nil {
			d.logger.Error("failed to marshal truncated webhook payload",
				slog.String("job_id", payload.JobID), slog.String("error", err.Error()))
			return
		}
		d.logger.Warn("webhook payload exceeded size limit, result field dropped",
			slog.String("job_id", payload.JobID), slog.Int("limit_bytes", maxWebhookBodyBytes))
	}

	breaker := d.breakerFor(webhookURL)

	maxAttempts := d.cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = d.cfg.BaseDelay
	bo.MaxInterval = d.cfg.MaxDelay
	bo.Multiplier = 4
	bo.MaxElapsedTime = 0
	policy := backoff.WithMaxRetries(bo, uint64(maxAttempts-1))

	attempt := 0
	operation := func() error {
		attempt++
		_, err := breaker.Execute(func() (any, error) {
			return nil, d.post(webhookURL, body)
		})
		return err
	}

	notify := func(err error, wait time.Duration) {
		d.logger.Warn("webhook delivery attempt failed, retrying",
			slog.String("job_id", payload.JobID),
			slog.String("url", webhookURL),
			slog.Int("attempt", attempt),
			slog.Duration("next_attempt_in", wait),
			slog.String("error", err.Error()))
	}

	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		d.logger.Error("webhook delivery exhausted all attempts",
			slog.String("job_id", payload.JobID),
			slog.String("url", webhookURL),
			slog.Int("attempts", attempt),
			slog.String("error", err.Error()))
	}
}

func (d *Dispatcher) post(webhookURL string, body []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(fmt.Errorf("building webhook request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("posting webhook: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook receiver returned status %d", resp.StatusCode)
	}
	return nil
}

// breakerFor returns the per-host circuit breaker for webhookURL,
// creating it on first use. Hostless or unparseable URLs share a single
// fallback breaker rather than failing delivery outright.
func (d *Dispatcher) breakerFor(webhookURL string) *gobreaker.CircuitBreaker {
	host := "unknown"
	if u, err := url.Parse(webhookURL); err == nil && u.Host != "" {
		host = u.Host
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if b, ok := d.breakers[host]; ok {
		return b
	}

	maxAttempts := d.cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	b := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "webhook:" + host,
		MaxRequests: 1,
		Interval:    0,
		Timeout:     d.cfg.MaxDelay * 4,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(maxAttempts*2)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			d.logger.Info("webhook circuit breaker state change",
				slog.String("breaker", name), slog.String("from", from.String()), slog.String("to", to.String()))
		},
	})
	d.breakers[host] = b
	return b
}
