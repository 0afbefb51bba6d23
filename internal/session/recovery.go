package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fetchwise/product-scraper/internal/proxy"
)

const maxRotationBackoff = 10 * time.Second

// Controller rotates a session onto fresh proxies when it hits a block
// wall. One controller can serve many sessions; all per-session rotation
// state lives on the session itself.
type Controller struct {
	pool   *proxy.Pool
	logger *slog.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

func NewController(pool *proxy.Pool, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{pool: pool, logger: logger, sleep: sleepContext}
}

// Recover rotates proxies until the block clears or the session's rotation
// budget runs out. The attempt counter advances exactly once per pass, so
// the loop runs at most MaxRotations times. An exhausted pool fails fast:
// there is no point waiting when no fresh exit route exists.
func (c *Controller) Recover(ctx context.Context, s *Session) error {
	s.state = StateRecovering

	for s.rotations < s.opts.MaxRotations {
		indicator, blocked := DetectBlock(s.content, s.opts.ContentFloor)
		if !blocked {
			s.state = StateLoaded
			return nil
		}

		next, err := c.pool.Next()
		if err != nil {
			s.state = StateFailed
			return fmt.Errorf("rotating proxy for %s: %w", s.opts.URL, err)
		}

		s.rotations++
		c.logger.Info("rotating proxy",
			"url", s.opts.URL,
			"indicator", indicator,
			"attempt", s.rotations,
			"max_attempts", s.opts.MaxRotations)

		if s.rotations > 1 {
			if err := c.sleep(ctx, rotationBackoff(s.rotations)); err != nil {
				s.state = StateFailed
				return err
			}
		}

		if err := c.rebuild(ctx, s, next); err != nil {
			s.state = StateFailed
			return err
		}
	}

	if indicator, blocked := DetectBlock(s.content, s.opts.ContentFloor); blocked {
		s.state = StateFailed
		return &BlockDetectedError{URL: s.opts.URL, Indicator: indicator}
	}

	s.state = StateLoaded
	return nil
}

// rebuild tears the session's browser down, brings it back up behind the
// new proxy, and reloads the page.
func (c *Controller) rebuild(ctx context.Context, s *Session, proxyURL string) error {
	s.opts.Proxy = proxyURL

	if err := s.resetDriver(ctx); err != nil {
		return err
	}

	finalURL, err := s.driver.Navigate(ctx, s.opts.URL, s.opts.NavTimeout)
	if err != nil {
		return &NavigationError{URL: s.opts.URL, Err: err}
	}
	s.finalURL = finalURL

	content, err := s.driver.Content(ctx)
	if err != nil {
		return fmt.Errorf("reading page content after rotation: %w", err)
	}
	s.content = content
	return nil
}

// rotationBackoff grows 2^attempt seconds with a hard cap, keeping worst
// case recovery time predictable.
func rotationBackoff(attempt int) time.Duration {
	d := time.Duration(1<<uint(attempt)) * time.Second
	if d > maxRotationBackoff {
		return maxRotationBackoff
	}
	return d
}

func sleepContext(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
