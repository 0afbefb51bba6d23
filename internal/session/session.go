package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

const (
	DefaultNavigationTimeout = 300 * time.Second
	DefaultMaxRotations      = 3

	// navRetries bounds driver rebuilds for transient network errors during
	// the initial navigation. Proxy rotation is a separate mechanism.
	navRetries = 2
)

type State string

const (
	StateInit       State = "init"
	StateNavigating State = "navigating"
	StateLoaded     State = "loaded"
	StateBlocked    State = "blocked"
	StateRecovering State = "recovering"
	StateFailed     State = "failed"
	StateClosed     State = "closed"
)

// BrowserDriver is one live browser context bound to one proxy identity.
// Navigate returns the final URL after redirects.
type BrowserDriver interface {
	Navigate(ctx context.Context, url string, timeout time.Duration) (string, error)
	Content(ctx context.Context) (string, error)
	BlockedRequests() int64
	Close(ctx context.Context) error
}

// DriverOptions carry the per-session identity a driver is built with.
type DriverOptions struct {
	Proxy       string
	UserAgent   string
	BlockImages bool
	TargetURL   string
}

// DriverFactory builds fresh drivers. Recovery rebuilds through it after
// every proxy rotation, so a factory must be safe to call repeatedly.
type DriverFactory interface {
	NewDriver(ctx context.Context, opts DriverOptions) (BrowserDriver, error)
}

// Options configure one fetch session.
type Options struct {
	URL          string
	Proxy        string
	UserAgent    string
	BlockImages  bool
	MaxRotations int
	NavTimeout   time.Duration
	ContentFloor int
}

// Session owns one browser context for one URL. It is not safe for
// concurrent use; each extraction task creates its own.
type Session struct {
	opts     Options
	factory  DriverFactory
	recovery *Controller
	logger   *slog.Logger

	driver      BrowserDriver
	state       State
	finalURL    string
	content     string
	rotations   int
	blockedReqs int64
}

// New builds a session in the init state. recovery may be nil, in which
// case a detected block fails the session immediately.
func New(factory DriverFactory, recovery *Controller, logger *slog.Logger, opts Options) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxRotations <= 0 {
		opts.MaxRotations = DefaultMaxRotations
	}
	if opts.NavTimeout <= 0 {
		opts.NavTimeout = DefaultNavigationTimeout
	}
	if opts.ContentFloor <= 0 {
		opts.ContentFloor = DefaultContentFloor
	}
	return &Session{
		opts:     opts,
		factory:  factory,
		recovery: recovery,
		logger:   logger,
		state:    StateInit,
		finalURL: opts.URL,
	}
}

// Acquire navigates to the session URL and returns the page content and the
// final URL after redirects. A block wall triggers proxy rotation through
// the recovery controller before anything is surfaced to the caller.
func (s *Session) Acquire(ctx context.Context) (string, string, error) {
	if s.state != StateInit {
		return "", "", fmt.Errorf("session for %s already used (state %s)", s.opts.URL, s.state)
	}
	s.state = StateNavigating

	driver, err := s.factory.NewDriver(ctx, s.driverOptions())
	if err != nil {
		s.state = StateFailed
		return "", "", fmt.Errorf("starting browser: %w", err)
	}
	s.driver = driver

	if err := s.navigate(ctx); err != nil {
		s.state = StateFailed
		return "", "", err
	}

	content, err := s.driver.Content(ctx)
	if err != nil {
		s.state = StateFailed
		return "", "", fmt.Errorf("reading page content: %w", err)
	}
	s.content = content

	if indicator, blocked := DetectBlock(s.content, s.opts.ContentFloor); blocked {
		s.state = StateBlocked
		s.logger.Warn("block wall detected",
			"url", s.opts.URL,
			"indicator", indicator)

		if s.recovery == nil {
			s.state = StateFailed
			return "", "", &BlockDetectedError{URL: s.opts.URL, Indicator: indicator}
		}
		if err := s.recovery.Recover(ctx, s); err != nil {
			return "", "", err
		}
	}

	s.state = StateLoaded
	return s.content, s.finalURL, nil
}

// Close releases the browser context. Safe to call from any state and more
// than once; pipelines defer it on every exit path.
func (s *Session) Close(ctx context.Context) {
	if s.state == StateClosed {
		return
	}
	if s.driver != nil {
		s.blockedReqs += s.driver.BlockedRequests()
		if err := s.driver.Close(ctx); err != nil {
			s.logger.Warn("closing browser driver", "url", s.opts.URL, "error", err)
		}
		s.driver = nil
	}
	s.state = StateClosed
}

// State reports the current lifecycle state.
func (s *Session) State() State {
	return s.state
}

// FinalURL is the URL after redirects, valid once Acquire returned.
func (s *Session) FinalURL() string {
	return s.finalURL
}

// Rotations reports how many proxy rotations recovery performed.
func (s *Session) Rotations() int {
	return s.rotations
}

// BlockedRequests reports how many requests this session's drivers aborted,
// typically image traffic when block_images is on. Counts accumulate across
// proxy rotations.
func (s *Session) BlockedRequests() int64 {
	total := s.blockedReqs
	if s.driver != nil {
		total += s.driver.BlockedRequests()
	}
	return total
}

func (s *Session) driverOptions() DriverOptions {
	return DriverOptions{
		Proxy:       s.opts.Proxy,
		UserAgent:   s.opts.UserAgent,
		BlockImages: s.opts.BlockImages,
		TargetURL:   s.opts.URL,
	}
}

// navigate loads the target URL, rebuilding the driver between attempts
// when the failure looks like a dropped connection rather than a block.
func (s *Session) navigate(ctx context.Context) error {
	var lastErr error
	for attempt := 0; attempt <= navRetries; attempt++ {
		if attempt > 0 {
			s.logger.Info("retrying navigation after transient error",
				"url", s.opts.URL,
				"attempt", attempt,
				"error", lastErr)
			if err := s.resetDriver(ctx); err != nil {
				return err
			}
		}

		finalURL, err := s.driver.Navigate(ctx, s.opts.URL, s.opts.NavTimeout)
		if err == nil {
			s.finalURL = finalURL
			return nil
		}
		lastErr = err
		if !isTransientNavError(err) {
			break
		}
	}
	return &NavigationError{URL: s.opts.URL, Err: lastErr}
}

// resetDriver tears down the current driver and builds a replacement with
// the same identity.
func (s *Session) resetDriver(ctx context.Context) error {
	if s.driver != nil {
		s.blockedReqs += s.driver.BlockedRequests()
		if err := s.driver.Close(ctx); err != nil {
			s.logger.Warn("closing driver before rebuild", "url", s.opts.URL, "error", err)
		}
	}
	driver, err := s.factory.NewDriver(ctx, s.driverOptions())
	if err != nil {
		return fmt.Errorf("rebuilding browser: %w", err)
	}
	s.driver = driver
	return nil
}

func isTransientNavError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "net::ERR_FAILED") ||
		strings.Contains(msg, "net::ERR_CONNECTION") ||
		strings.Contains(msg, "net::ERR_EMPTY_RESPONSE")
}
