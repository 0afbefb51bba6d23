package extract

import (
	"strings"

	"github.com/fetchwise/product-scraper/internal/normalize"
)

// Detection is the outcome of platform detection. Confidence is 1.0 for a
// domain match, scaled by indicator count for HTML signatures (capped below
// 1.0), and 0 for the generic fallback.
type Detection struct {
	Platform   string   `json:"platform"`
	Confidence float64  `json:"confidence"`
	Indicators []string `json:"indicators,omitempty"`
}

// Detector identifies the storefront platform behind a URL and its rendered
// HTML. The URL's domain is authoritative; HTML signatures cover hosted
// platforms running on custom domains.
type Detector struct{}

func NewDetector() *Detector { return &Detector{} }

var platformDomains = []struct {
	fragment string
	platform string
}{
	{"amazon.", "amazon"},
	{"ebay.", "ebay"},
	{"otto.de", "otto"},
	{"bol.com", "bol"},
	{"jd.com", "jd"},
	{"joybuy.com", "jd"},
	{"cdiscount.com", "cdiscount"},
	{"myshopify.com", "shopify"},
}

var platformSignatures = []struct {
	platform string
	markers  []string
}{
	{"shopify", []string{"cdn.shopify.com", "shopify.theme", "x-shopify", "/cdn/shop/", "shopify-section"}},
	{"woocommerce", []string{"woocommerce", "wp-content/plugins/woocommerce", "wc-block"}},
	{"squarespace", []string{"static1.squarespace.com", "squarespace.com", "sqs-block"}},
	{"bigcommerce", []string{"cdn11.bigcommerce.com", "bigcommerce.com", "stencil-utils"}},
}

func (d *Detector) Detect(rawURL, html string) Detection {
	host := normalize.Domain(rawURL)
	if host == "" {
		host = strings.ToLower(rawURL)
	}
	for _, entry := range platformDomains {
		if strings.Contains(host, entry.fragment) {
			return Detection{
				Platform:   entry.platform,
				Confidence: 1.0,
				Indicators: []string{"domain:" + entry.fragment},
			}
		}
	}

	lower := strings.ToLower(html)
	var best Detection
	for _, sig := range platformSignatures {
		var hits []string
		for _, marker := range sig.markers {
			if strings.Contains(lower, marker) {
				hits = append(hits, marker)
			}
		}
		if len(hits) == 0 {
			continue
		}
		confidence := 0.5 + 0.15*float64(len(hits))
		if confidence > 0.95 {
			confidence = 0.95
		}
		if confidence > best.Confidence {
			best = Detection{Platform: sig.platform, Confidence: confidence, Indicators: hits}
		}
	}
	if best.Platform != "" {
		return best
	}

	return Detection{Platform: "generic", Confidence: 0}
}
