// Copyright 2026 The Cohortgrid Authors
// SPDX-License-Identifier: Apache-2.0

// Package probe implements the readiness probe the node bootstrap runs
// against its upstream server before doing anything else. The probe is
// a short, best-effort wait for a co-located dependency: a bounded
// number of time-limited HTTP GETs at a fixed interval, with no
// backoff growth. If the upstream never answers with a success status,
// the bootstrap aborts; retrying the whole sequence is the container
// orchestrator's job, not ours.
package probe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cohortgrid/containerboot/lib/clock"
)

// ErrUnready reports that the upstream did not become reachable within
// the allowed attempts. Fatal to the bootstrap.
var ErrUnready = errors.New("upstream is not ready")

// Defaults for a co-located upstream on the same container network.
const (
	DefaultAttempts = 5
	DefaultTimeout  = 4 * time.Second
	DefaultInterval = 5 * time.Second
)

// Prober polls a URL until it answers with a success status or the
// attempt budget is exhausted.
type Prober struct {
	// Attempts is the number of requests made before giving up.
	// Defaults to DefaultAttempts when zero.
	Attempts int

	// Timeout bounds each individual request. Defaults to
	// DefaultTimeout when zero.
	Timeout time.Duration

	// Interval is the fixed wait between consecutive attempts.
	// Defaults to DefaultInterval when zero.
	Interval time.Duration

	// Client issues the requests. Defaults to http.DefaultClient.
	Client *http.Client

	// Clock provides the inter-attempt sleep. Defaults to the real
	// clock.
	Clock clock.Clock

	// Logger records per-attempt outcomes. Defaults to slog.Default.
	Logger *slog.Logger
}

// Wait polls url until a response with a 2xx status arrives or the
// attempt budget is exhausted, in which case the returned error wraps
// [ErrUnready]. Any other outcome of an attempt (connection error,
// per-attempt timeout, non-2xx status) counts as a failed attempt.
func (p *Prober) Wait(ctx context.Context, url string) error {
	attempts := p.Attempts
	if attempts <= 0 {
		attempts = DefaultAttempts
	}
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	clk := p.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		ok, err := p.attempt(ctx, client, url, timeout)
		if ok {
			logger.Info("upstream is ready", "url", url, "attempt", attempt)
			return nil
		}
		logger.Warn("upstream not ready",
			"url", url,
			"attempt", attempt,
			"attempts", attempts,
			"error", err,
		)

		if attempt < attempts {
			clk.Sleep(interval)
		}
	}

	return fmt.Errorf("%w after %d attempts: %s", ErrUnready, attempts, url)
}

// attempt issues one time-bounded GET. Returns ok=true on a 2xx
// response; otherwise the error describes the failure.
func (p *Prober) attempt(ctx context.Context, client *http.Client, url string, timeout time.Duration) (bool, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	request, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, url, nil)
	if err != nil {
		return false, fmt.Errorf("building probe request: %w", err)
	}

	response, err := client.Do(request)
	if err != nil {
		return false, err
	}
	defer response.Body.Close()

	// Drain so the connection can be reused by the next attempt.
	io.Copy(io.Discard, io.LimitReader(response.Body, 4096))

	if response.StatusCode < 200 || response.StatusCode > 299 {
		return false, fmt.Errorf("status %s", response.Status)
	}
	return true, nil
}
