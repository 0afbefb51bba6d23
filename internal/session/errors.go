package session

import "fmt"

// NavigationError reports a page load failure after retries, keeping the
// target URL for diagnostics.
type NavigationError struct {
	URL string
	Err error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("navigation to %s failed: %v", e.URL, e.Err)
}

func (e *NavigationError) Unwrap() error {
	return e.Err
}

// BlockDetectedError reports an anti-bot wall that survived recovery. It is
// only surfaced once rotation attempts are exhausted.
type BlockDetectedError struct {
	URL       string
	Indicator string
}

func (e *BlockDetectedError) Error() string {
	return fmt.Sprintf("blocked at %s (indicator: %q)", e.URL, e.Indicator)
}
