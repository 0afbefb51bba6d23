package extract

import (
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/fetchwise/product-scraper/internal/models"
)

// SelectorConfig is a platform's DOM fallback: ordered CSS selector lists
// per field, tried until one yields text. Only consulted by fusion when the
// structured sources left a field empty.
type SelectorConfig struct {
	Title       []string
	Price       []string
	Currency    []string
	Description []string
	Images      []string
	// ImageAttrs overrides the attribute probe order on matched image
	// elements; empty means the defaults.
	ImageAttrs []string
	// ImageIDAttr and ImageIDBase turn bare image ids into CDN URLs for
	// shops that lazy-load from an id attribute.
	ImageIDAttr string
	ImageIDBase string
	Rating      []string
	ReviewCount []string
	// Specs selectors match containers with dt/dd pairs or table rows.
	Specs []string
}

var defaultImageAttrs = []string{"src", "data-src", "data-zoom-src", "data-old-hires"}

// DOMSource runs the selector fallbacks over the page. All values stay raw
// text; fusion normalizes them with page context.
func DOMSource(doc *goquery.Document, cfg SelectorConfig) (models.RawSourceRecord, bool) {
	p := models.SourcePayload{
		Title:           firstText(doc, cfg.Title),
		PriceText:       firstText(doc, cfg.Price),
		Currency:        firstText(doc, cfg.Currency),
		Description:     descriptionText(doc, cfg.Description),
		RatingText:      ratingText(doc, cfg.Rating),
		ReviewCountText: firstText(doc, cfg.ReviewCount),
	}
	p.Images, p.ImageWidths = domImages(doc, cfg)
	p.Specifications = domSpecs(doc, cfg.Specs)

	if p.Currency == "" {
		// The price text usually carries the symbol; fusion maps it.
		p.Currency = p.PriceText
	}

	if p.IsEmpty() {
		return models.RawSourceRecord{}, false
	}
	return models.NewRawSourceRecord(models.SourceDOMFallback, p), true
}

func firstText(doc *goquery.Document, selectors []string) string {
	for _, sel := range selectors {
		text := collapseSpace(doc.Find(sel).First().Text())
		if text != "" {
			return text
		}
	}
	return ""
}

// descriptionText joins every element the selector matches, so paragraph
// lists come back as one block. Very short matches are navigation noise.
func descriptionText(doc *goquery.Document, selectors []string) string {
	for _, sel := range selectors {
		var parts []string
		doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
			if text := collapseSpace(s.Text()); text != "" {
				parts = append(parts, text)
			}
		})
		joined := strings.Join(parts, " ")
		if len(joined) > 10 {
			return joined
		}
	}
	return ""
}

// ratingText prefers aria-label over visible text: star widgets often render
// icons and keep the actual value in the label.
func ratingText(doc *goquery.Document, selectors []string) string {
	for _, sel := range selectors {
		el := doc.Find(sel).First()
		if el.Length() == 0 {
			continue
		}
		if label, ok := el.Attr("aria-label"); ok && collapseSpace(label) != "" {
			return collapseSpace(label)
		}
		if text := collapseSpace(el.Text()); text != "" {
			return text
		}
	}
	return ""
}

func domImages(doc *goquery.Document, cfg SelectorConfig) ([]string, map[string]int) {
	attrs := cfg.ImageAttrs
	if len(attrs) == 0 {
		attrs = defaultImageAttrs
	}

	var refs []string
	widths := make(map[string]int)
	seen := make(map[string]bool)

	for _, sel := range cfg.Images {
		doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
			if cfg.ImageIDAttr != "" {
				if id, ok := s.Attr(cfg.ImageIDAttr); ok && strings.TrimSpace(id) != "" {
					ref := cfg.ImageIDBase + strings.TrimSpace(id)
					if !seen[ref] {
						seen[ref] = true
						refs = append(refs, ref)
					}
					return
				}
			}
			for _, attr := range attrs {
				value, ok := s.Attr(attr)
				if !ok {
					continue
				}
				ref := strings.TrimSpace(value)
				if ref == "" || strings.HasPrefix(ref, "data:") {
					continue
				}
				if !seen[ref] {
					seen[ref] = true
					refs = append(refs, ref)
					if w := elementWidth(s); w > 0 {
						widths[ref] = w
					}
				}
				break
			}
		})
		if len(refs) >= 2 {
			break
		}
	}

	if len(widths) == 0 {
		widths = nil
	}
	return refs, widths
}

func elementWidth(s *goquery.Selection) int {
	w, ok := s.Attr("width")
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(w), "px"))
	if err != nil {
		return 0
	}
	return n
}

// domSpecs walks every matched container and harvests key/value rows from
// definition lists and tables. The first selector that yields anything wins.
func domSpecs(doc *goquery.Document, selectors []string) map[string]string {
	for _, sel := range selectors {
		matched := doc.Find(sel)
		if matched.Length() == 0 {
			continue
		}

		specs := make(map[string]string)
		matched.Each(func(_ int, container *goquery.Selection) {
			dts := container.Find("dt")
			dds := container.Find("dd")
			pairs := dts.Length()
			if dds.Length() < pairs {
				pairs = dds.Length()
			}
			for i := 0; i < pairs; i++ {
				setSpec(specs, dts.Eq(i).Text(), dds.Eq(i).Text())
			}

			container.Find("tr").Each(func(_ int, row *goquery.Selection) {
				cells := row.Find("th, td")
				if cells.Length() >= 2 {
					setSpec(specs, cells.Eq(0).Text(), cells.Eq(cells.Length()-1).Text())
				}
			})
		})
		if len(specs) > 0 {
			return specs
		}
	}
	return nil
}

func setSpec(specs map[string]string, key, value string) {
	k := collapseSpace(key)
	v := collapseSpace(value)
	if k == "" || v == "" {
		return
	}
	if _, ok := specs[k]; !ok {
		specs[k] = v
	}
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
