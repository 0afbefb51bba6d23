// Package extract turns rendered product pages into raw source records.
// Every adapter walks the same ladder: embedded platform JSON, JSON-LD
// structured data, Open Graph style meta tags, and finally DOM selectors.
// Nothing here normalizes numbers; payloads carry text and fusion decides.
package extract

import (
	"fmt"

	"github.com/PuerkitoBio/goquery"

	"github.com/fetchwise/product-scraper/internal/models"
)

// PlatformAdapter extracts all raw sources one platform knows how to find.
// Adapters are stateless and safe for concurrent use. Returned errors are
// advisory: they report malformed structured data that was skipped, never a
// failed extraction.
type PlatformAdapter interface {
	ID() string
	Sources(doc *goquery.Document, pageURL string) ([]models.RawSourceRecord, []error)
}

// FieldExtractionError reports a field that could not be pulled out of the
// page. It is logged and the field stays absent; extraction never aborts
// because one selector misbehaved.
type FieldExtractionError struct {
	Field string
	Err   error
}

func (e *FieldExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.Field, e.Err)
}

func (e *FieldExtractionError) Unwrap() error { return e.Err }

// Adapter is the standard PlatformAdapter: shared structured-data passes
// plus a platform-specific DOM selector configuration.
type Adapter struct {
	id        string
	selectors SelectorConfig
}

func NewAdapter(id string, selectors SelectorConfig) *Adapter {
	return &Adapter{id: id, selectors: selectors}
}

func (a *Adapter) ID() string { return a.id }

func (a *Adapter) Sources(doc *goquery.Document, pageURL string) ([]models.RawSourceRecord, []error) {
	var sources []models.RawSourceRecord
	var errs []error

	platform, perrs := PlatformJSONSources(doc)
	sources = append(sources, platform...)
	errs = append(errs, perrs...)

	jsonld, jerrs := JSONLDSources(doc)
	sources = append(sources, jsonld...)
	errs = append(errs, jerrs...)

	if src, ok := MetaTagSource(doc); ok {
		sources = append(sources, src)
	}
	if src, ok := DOMSource(doc, a.selectors); ok {
		sources = append(sources, src)
	}
	return sources, errs
}
