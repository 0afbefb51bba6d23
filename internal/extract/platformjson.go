package extract

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/fetchwise/product-scraper/internal/models"
	"github.com/fetchwise/product-scraper/internal/normalize"
)

// PlatformJSONSources parses store-platform product JSON: Shopify style
// ProductJson script tags and data-product-json attributes. An object counts
// as product JSON when it carries a title or a variants list. This is the
// highest-trust source a page can offer.
func PlatformJSONSources(doc *goquery.Document) ([]models.RawSourceRecord, []error) {
	var out []models.RawSourceRecord
	var errs []error

	doc.Find(`script[id^="ProductJson-"], script[id^="WH-ProductJson-"]`).Each(func(_ int, s *goquery.Selection) {
		src, err := productJSONSource(s.Text())
		if err != nil {
			errs = append(errs, err)
			return
		}
		if src != nil {
			out = append(out, *src)
		}
	})

	if sel := doc.Find("[data-product-json]").First(); sel.Length() > 0 {
		if raw, ok := sel.Attr("data-product-json"); ok {
			src, err := productJSONSource(raw)
			if err != nil {
				errs = append(errs, err)
			} else if src != nil {
				out = append(out, *src)
			}
		}
	}
	return out, errs
}

func productJSONSource(raw string) (*models.RawSourceRecord, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil, &FieldExtractionError{Field: "platform_json", Err: err}
	}
	if _, ok := data["title"]; !ok {
		if _, ok := data["variants"]; !ok {
			return nil, nil
		}
	}

	p := models.SourcePayload{
		Title:       stringField(data, "title"),
		Description: stringField(data, "description"),
		Currency:    stringField(data, "currency"),
		SKU:         stringField(data, "sku"),
	}

	variants := asMaps(data["variants"])

	if s := anyToString(data["price"]); s != "" {
		p.PriceText = s
	} else {
		for _, v := range variants {
			if s := anyToString(v["price"]); s != "" {
				p.PriceText = s
				break
			}
		}
	}
	if p.Currency == "" {
		for _, v := range variants {
			if s := stringField(v, "currency"); s != "" {
				p.Currency = s
				break
			}
		}
	}
	if p.SKU == "" && len(variants) > 0 {
		p.SKU = stringField(variants[0], "sku")
	}

	p.Images = productJSONImages(data["images"])

	p.Brand = stringField(data, "brand")
	if p.Brand == "" {
		p.Brand = stringField(data, "vendor")
	}

	if available, ok := data["available"].(bool); ok {
		if available {
			p.Availability = "InStock"
		} else {
			p.Availability = "OutOfStock"
		}
	}

	applyProductJSONRating(&p, data["rating"])

	specs := make(map[string]string)
	if s := stringField(data, "product_type"); s != "" {
		specs["product_type"] = s
	}
	if tags := joinStrings(data["tags"]); tags != "" {
		specs["tags"] = tags
	}
	for i, opt := range asMaps(data["options"]) {
		name := stringField(opt, "name")
		if name == "" {
			name = fmt.Sprintf("option_%d", i+1)
		}
		if values := joinStrings(opt["values"]); values != "" {
			specs[strings.ToLower(name)] = values
		}
	}
	if len(specs) > 0 {
		p.Specifications = specs
	}

	if p.IsEmpty() {
		return nil, nil
	}
	src := models.NewRawSourceRecord(models.SourcePlatformJSON, p)
	return &src, nil
}

// applyProductJSONRating handles the rating shapes Shopify review apps
// inject: a bare number or an object with one of several value/count keys.
func applyProductJSONRating(p *models.SourcePayload, v any) {
	switch rating := v.(type) {
	case float64:
		r := normalize.ClampRating(rating)
		p.Rating = &r
	case map[string]any:
		for _, key := range []string{"value", "ratingValue", "rating", "averageRating", "score"} {
			if f, ok := toFloat(rating[key]); ok {
				r := normalize.ClampRating(f)
				p.Rating = &r
				break
			}
		}
		for _, key := range []string{"review_count", "reviewCount", "count", "numberOfReviews", "totalReviews", "reviews_count"} {
			if n, ok := toCount(rating[key]); ok {
				p.ReviewCount = &n
				break
			}
		}
	}
}

func productJSONImages(v any) []string {
	entries, ok := v.([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, entry := range entries {
		switch img := entry.(type) {
		case string:
			if img != "" {
				out = append(out, img)
			}
		case map[string]any:
			if s := stringField(img, "src"); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

func asMaps(v any) []map[string]any {
	entries, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(entries))
	for _, entry := range entries {
		if m, ok := entry.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

func joinStrings(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case []any:
		var parts []string
		for _, entry := range t {
			if s, ok := entry.(string); ok && strings.TrimSpace(s) != "" {
				parts = append(parts, strings.TrimSpace(s))
			}
		}
		return strings.Join(parts, ", ")
	}
	return ""
}
