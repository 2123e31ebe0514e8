package connectivity

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Prober drives a Broadcaster from periodic reachability checks against the
// backend's health endpoint. A 2xx response within the timeout means online.
type Prober struct {
	target   *Broadcaster
	client   *http.Client
	url      string
	interval time.Duration
	timeout  time.Duration
	logger   zerolog.Logger
}

func NewProber(target *Broadcaster, client *http.Client, healthURL string, interval, timeout time.Duration, logger zerolog.Logger) *Prober {
	if client == nil {
		client = http.DefaultClient
	}
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Prober{
		target:   target,
		client:   client,
		url:      healthURL,
		interval: interval,
		timeout:  timeout,
		logger:   logger.With().Str("component", "connectivity").Logger(),
	}
}

// Run probes immediately and then on every tick until ctx is done.
// The broadcaster is only updated when the observed state changes.
func (p *Prober) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	first := true
	for {
		online := p.Probe(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if first || online != p.target.Online() {
			p.logger.Info().Bool("online", online).Msg("Connectivity changed")
			p.target.Set(online)
			first = false
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Probe performs a single reachability check.
func (p *Prober) Probe(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if err := p.check(ctx); err != nil {
		p.logger.Debug().Err(err).Str("url", p.url).Msg("Backend unreachable")
		return false
	}
	return true
}

func (p *Prober) check(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return fmt.Errorf("build probe request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("health status %d", resp.StatusCode)
	}
	return nil
}
