package proxy

import (
	"errors"
	"strings"
	"sync"
)

// ErrProxyExhausted is returned by Next when the pool has nothing to hand
// out. Callers treat it as non-retryable: without a fresh exit route there
// is no point looping.
var ErrProxyExhausted = errors.New("proxy pool exhausted")

// Pool rotates proxy server URLs round-robin. Multiple sessions may share
// one pool; rotation bookkeeping is synchronized, the handed-out strings
// are immutable.
type Pool struct {
	mu      sync.Mutex
	proxies []string
	next    int
}

// NewPool builds a pool from the configured proxy list. Blank entries are
// dropped so a trailing comma in PROXY_URLS does not produce an empty proxy.
func NewPool(proxies []string) *Pool {
	cleaned := make([]string, 0, len(proxies))
	for _, p := range proxies {
		p = strings.TrimSpace(p)
		if p != "" {
			cleaned = append(cleaned, p)
		}
	}
	return &Pool{proxies: cleaned}
}

// Next returns the next proxy in rotation, wrapping around once the list is
// consumed. An empty pool fails fast with ErrProxyExhausted.
func (p *Pool) Next() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.proxies) == 0 {
		return "", ErrProxyExhausted
	}

	proxy := p.proxies[p.next%len(p.proxies)]
	p.next++
	return proxy, nil
}

// Size reports how many proxies the pool rotates over.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.proxies)
}
