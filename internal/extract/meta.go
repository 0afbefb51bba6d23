package extract

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/fetchwise/product-scraper/internal/models"
)

// MetaTagSource reads Open Graph, Twitter card and product meta tags. Thin,
// but often the only structured data a generic storefront exposes.
func MetaTagSource(doc *goquery.Document) (models.RawSourceRecord, bool) {
	p := models.SourcePayload{
		Title:       metaContent(doc, "og:title", "twitter:title"),
		Description: metaContent(doc, "og:description", "twitter:description", "description"),
		PriceText:   metaContent(doc, "product:price:amount", "og:price:amount", "product:price", "og:price"),
		Currency:    metaContent(doc, "product:price:currency", "og:price:currency"),
		Brand:       metaContent(doc, "product:brand", "og:brand"),
	}
	p.Availability = availabilityToken(metaContent(doc, "product:availability", "og:availability"))

	if p.PriceText == "" {
		p.PriceText = metaItemprop(doc, "price")
	}
	if p.Currency == "" {
		p.Currency = metaItemprop(doc, "priceCurrency")
	}

	p.Images = metaImages(doc)

	if category := metaContent(doc, "product:category", "og:category"); category != "" {
		p.Specifications = map[string]string{"category": category}
	}

	if p.IsEmpty() {
		return models.RawSourceRecord{}, false
	}
	return models.NewRawSourceRecord(models.SourceMetaTags, p), true
}

// metaContent returns the first non-empty content attribute among the given
// property/name values, in the order given.
func metaContent(doc *goquery.Document, names ...string) string {
	for _, name := range names {
		sel := doc.Find(fmt.Sprintf(`meta[property=%q], meta[name=%q]`, name, name)).First()
		if content, ok := sel.Attr("content"); ok {
			if trimmed := strings.TrimSpace(content); trimmed != "" {
				return trimmed
			}
		}
	}
	return ""
}

func metaItemprop(doc *goquery.Document, prop string) string {
	sel := doc.Find(fmt.Sprintf(`meta[itemprop=%q]`, prop)).First()
	content, _ := sel.Attr("content")
	return strings.TrimSpace(content)
}

func metaImages(doc *goquery.Document) []string {
	var out []string
	for _, name := range []string{"og:image", "og:image:secure_url", "twitter:image"} {
		doc.Find(fmt.Sprintf(`meta[property=%q], meta[name=%q]`, name, name)).Each(func(_ int, s *goquery.Selection) {
			if content, ok := s.Attr("content"); ok {
				if trimmed := strings.TrimSpace(content); trimmed != "" {
					out = append(out, trimmed)
				}
			}
		})
	}
	return out
}
