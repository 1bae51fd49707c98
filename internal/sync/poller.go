package sync

import (
	"context"
	"errors"
	gosync "sync"
	"time"

	"github.com/rs/zerolog"
)

// ErrSyncUnavailable indicates the poll fallback gave up after too many
// consecutive failures. The owner must retry explicitly; the poller will not.
var ErrSyncUnavailable = errors.New("sync unavailable: poll failure threshold exceeded")

// DefaultMaxFailures is the consecutive-failure count at which polling stops.
const DefaultMaxFailures = 5

// PollFunc fetches authoritative state once. Returning done=true stops the
// poller cleanly, e.g. a student whose feedback has arrived has nothing left
// to poll for.
type PollFunc func(ctx context.Context) (done bool, err error)

// PollerConfig tunes a Poller.
type PollerConfig struct {
	Interval    time.Duration
	MaxFailures int
	Logger      zerolog.Logger
}

// Poller drives the polling fallback: a fixed-interval pull with a
// consecutive-failure cutoff. One success resets the failure counter. All
// timers die with Stop or context cancellation, so a stale poller can never
// write into a successor session's state.
type Poller struct {
	cfg   PollerConfig
	fetch PollFunc

	stopOnce gosync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}

	mu       gosync.Mutex
	failures int
	err      error
	started  bool
}

// NewPoller builds a poller; Start launches it.
func NewPoller(cfg PollerConfig, fetch PollFunc) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = DefaultMaxFailures
	}
	return &Poller{
		cfg:    cfg,
		fetch:  fetch,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start launches the poll loop. It is a no-op on a poller that already ran.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go p.run(ctx)
}

func (p *Poller) run(ctx context.Context) {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case <-ticker.C:
			done, err := p.fetch(ctx)
			if err != nil {
				if p.recordFailure(err) {
					return
				}
				continue
			}
			p.recordSuccess()
			if done {
				return
			}
		}
	}
}

// recordFailure bumps the consecutive-failure counter and reports whether
// the threshold has been reached.
func (p *Poller) recordFailure(err error) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.failures++
	p.cfg.Logger.Warn().Err(err).Int("consecutive_failures", p.failures).Msg("poll failed")
	if p.failures < p.cfg.MaxFailures {
		return false
	}
	p.err = ErrSyncUnavailable
	p.cfg.Logger.Error().Int("consecutive_failures", p.failures).Msg("poll failure threshold exceeded, stopping")
	return true
}

func (p *Poller) recordSuccess() {
	p.mu.Lock()
	p.failures = 0
	p.mu.Unlock()
}

// Stop tears the poll loop down. Safe to call more than once.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() { close(p.stopCh) })
}

// Done is closed once the loop has exited for any reason.
func (p *Poller) Done() <-chan struct{} {
	return p.doneCh
}

// Err reports ErrSyncUnavailable if the poller stopped because the failure
// threshold was crossed, nil otherwise.
func (p *Poller) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// ConsecutiveFailures reports the current failure streak.
func (p *Poller) ConsecutiveFailures() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.failures
}
