// Package normalize turns messy, locale-dependent text scraped off product
// pages into typed values: prices, currencies, ratings and review counts.
// Everything in here is pure and safe for concurrent use.
package normalize

import (
	"fmt"
	"net/url"
	"strings"
)

// NormalizationError reports input that survived extraction but could not be
// turned into a typed value. Callers drop the field and keep going; this
// error never aborts a scrape.
type NormalizationError struct {
	Field  string
	Input  string
	Reason string
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("normalize %s: %s (input %q)", e.Field, e.Reason, e.Input)
}

// Domain extracts the lowercased host from a URL, without the port. An
// unparseable URL yields "".
func Domain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	return host
}

var europeanSuffixes = []string{".de", ".fr", ".it", ".es", ".nl"}

var europeanHosts = []string{"bol.com", "cdiscount.com", "otto.de"}

// IsEuropeanDomain reports whether a host belongs to a marketplace that
// writes decimal commas. It drives both number parsing defaults and the
// geolocation picked for browser contexts.
func IsEuropeanDomain(domain string) bool {
	d := strings.ToLower(domain)
	if i := strings.IndexByte(d, ':'); i >= 0 {
		d = d[:i]
	}
	for _, suffix := range europeanSuffixes {
		if strings.HasSuffix(d, suffix) {
			return true
		}
	}
	for _, host := range europeanHosts {
		if strings.Contains(d, host) {
			return true
		}
	}
	return false
}
