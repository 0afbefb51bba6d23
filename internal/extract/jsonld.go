package extract

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/fetchwise/product-scraper/internal/models"
	"github.com/fetchwise/product-scraper/internal/normalize"
)

// JSONLDSources walks every application/ld+json script on the page. Product
// and ProductGroup nodes become full sources; standalone AggregateRating and
// Rating nodes become rating-only sources. Nodes can sit at the top level,
// in an array, or under @graph.
func JSONLDSources(doc *goquery.Document) ([]models.RawSourceRecord, []error) {
	var out []models.RawSourceRecord
	var errs []error

	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		raw := strings.TrimSpace(s.Text())
		if raw == "" {
			return
		}
		var data any
		if err := json.Unmarshal([]byte(raw), &data); err != nil {
			errs = append(errs, &FieldExtractionError{Field: "json_ld", Err: err})
			return
		}
		out = append(out, walkLD(data)...)
	})
	return out, errs
}

func walkLD(node any) []models.RawSourceRecord {
	switch v := node.(type) {
	case []any:
		var out []models.RawSourceRecord
		for _, item := range v {
			out = append(out, walkLD(item)...)
		}
		return out
	case map[string]any:
		if graph, ok := v["@graph"].([]any); ok {
			var out []models.RawSourceRecord
			for _, item := range graph {
				out = append(out, walkLD(item)...)
			}
			return out
		}
		switch ldType(v) {
		case "Product", "ProductGroup":
			if src, ok := productFromLD(v); ok {
				return []models.RawSourceRecord{src}
			}
		case "AggregateRating", "Rating":
			if src, ok := ratingFromLD(v); ok {
				return []models.RawSourceRecord{src}
			}
		}
	}
	return nil
}

// ldType resolves @type, which may be a string or an array of strings.
func ldType(item map[string]any) string {
	switch t := item["@type"].(type) {
	case string:
		return t
	case []any:
		for _, entry := range t {
			s, ok := entry.(string)
			if !ok {
				continue
			}
			switch s {
			case "Product", "ProductGroup", "AggregateRating", "Rating":
				return s
			}
		}
	}
	return ""
}

func productFromLD(item map[string]any) (models.RawSourceRecord, bool) {
	p := models.SourcePayload{
		Title:       stringField(item, "name"),
		Description: stringField(item, "description"),
	}

	switch b := item["brand"].(type) {
	case string:
		p.Brand = b
	case map[string]any:
		p.Brand = stringField(b, "name")
	}

	if offer := firstOffer(item["offers"]); offer != nil {
		p.PriceText = offerPrice(offer)
		p.Currency = offerCurrency(offer)
		p.SKU = stringField(offer, "sku")
		p.Availability = availabilityToken(stringField(offer, "availability"))
	}
	if p.PriceText == "" {
		p.PriceText, p.Currency = variantPrice(item, p.Currency)
	}
	if p.SKU == "" {
		p.SKU = stringField(item, "sku")
	}

	p.Images = ldImages(item["image"])

	if ar, ok := item["aggregateRating"].(map[string]any); ok {
		applyRatingNode(&p, ar)
	}
	if p.Rating == nil {
		if v, ok := toFloat(item["rating"]); ok {
			rating := normalize.ClampRating(v)
			p.Rating = &rating
		}
	}
	if p.ReviewCount == nil {
		for _, key := range []string{"reviewCount", "numberOfReviews"} {
			if n, ok := toCount(item[key]); ok {
				p.ReviewCount = &n
				break
			}
		}
	}

	specs := make(map[string]string)
	if props, ok := item["additionalProperty"].([]any); ok {
		for _, prop := range props {
			pm, ok := prop.(map[string]any)
			if !ok {
				continue
			}
			name := stringField(pm, "name")
			value := anyToString(pm["value"])
			if name != "" && value != "" {
				specs[name] = value
			}
		}
	}
	for _, key := range []string{"category", "mpn", "gtin", "gtin13", "model"} {
		if v := anyToString(item[key]); v != "" {
			specs[key] = v
		}
	}
	if len(specs) > 0 {
		p.Specifications = specs
	}

	if p.IsEmpty() {
		return models.RawSourceRecord{}, false
	}
	return models.NewRawSourceRecord(models.SourceJSONLD, p), true
}

func ratingFromLD(item map[string]any) (models.RawSourceRecord, bool) {
	var p models.SourcePayload
	applyRatingNode(&p, item)
	if p.Rating == nil && p.ReviewCount == nil {
		return models.RawSourceRecord{}, false
	}
	return models.NewRawSourceRecord(models.SourceJSONLDRating, p), true
}

// applyRatingNode reads ratingValue/bestRating/reviewCount from a rating
// object, rescaling to the 0..5 range when the node declares its own scale.
func applyRatingNode(p *models.SourcePayload, node map[string]any) {
	if value, ok := toFloat(node["ratingValue"]); ok {
		if best, ok := toFloat(node["bestRating"]); ok {
			value = normalize.RescaleRating(value, best)
		} else {
			value = normalize.ClampRating(value)
		}
		p.Rating = &value
	}
	if p.ReviewCount == nil {
		for _, key := range []string{"reviewCount", "ratingCount"} {
			if n, ok := toCount(node[key]); ok {
				p.ReviewCount = &n
				break
			}
		}
	}
}

// firstOffer unwraps offers that are a single object or an array of them.
func firstOffer(v any) map[string]any {
	switch o := v.(type) {
	case map[string]any:
		return o
	case []any:
		for _, entry := range o {
			if m, ok := entry.(map[string]any); ok {
				return m
			}
		}
	}
	return nil
}

// offerPrice probes the keys sellers actually use, most specific first.
// lowPrice wins over highPrice for ranged offers.
func offerPrice(offer map[string]any) string {
	if s := anyToString(offer["price"]); s != "" {
		return s
	}
	switch spec := offer["priceSpecification"].(type) {
	case map[string]any:
		if s := anyToString(spec["price"]); s != "" {
			return s
		}
	case []any:
		if len(spec) > 0 {
			if m, ok := spec[0].(map[string]any); ok {
				if s := anyToString(m["price"]); s != "" {
					return s
				}
			}
		}
	}
	for _, key := range []string{"lowPrice", "highPrice", "amount", "value", "cost", "priceAmount"} {
		if s := anyToString(offer[key]); s != "" {
			return s
		}
	}
	return ""
}

func offerCurrency(offer map[string]any) string {
	if s := anyToString(offer["priceCurrency"]); s != "" {
		return s
	}
	switch spec := offer["priceSpecification"].(type) {
	case map[string]any:
		if s := anyToString(spec["priceCurrency"]); s != "" {
			return s
		}
	case []any:
		if len(spec) > 0 {
			if m, ok := spec[0].(map[string]any); ok {
				if s := anyToString(m["priceCurrency"]); s != "" {
					return s
				}
			}
		}
	}
	for _, key := range []string{"currency", "currencyCode"} {
		if s := anyToString(offer[key]); s != "" {
			return s
		}
	}
	return ""
}

// variantPrice scans hasVariant entries for the first offer with a price.
func variantPrice(item map[string]any, currency string) (string, string) {
	variants, ok := item["hasVariant"].([]any)
	if !ok {
		return "", currency
	}
	for _, v := range variants {
		vm, ok := v.(map[string]any)
		if !ok {
			continue
		}
		offer := firstOffer(vm["offers"])
		if offer == nil {
			continue
		}
		if price := offerPrice(offer); price != "" {
			if currency == "" {
				currency = offerCurrency(offer)
			}
			return price, currency
		}
	}
	return "", currency
}

// ldImages accepts the image field in all its shapes: a bare string, an
// object with url/src/image, or an array mixing both.
func ldImages(v any) []string {
	switch img := v.(type) {
	case string:
		if img != "" {
			return []string{img}
		}
	case map[string]any:
		if u := imageURL(img); u != "" {
			return []string{u}
		}
	case []any:
		var out []string
		for _, entry := range img {
			switch e := entry.(type) {
			case string:
				if e != "" {
					out = append(out, e)
				}
			case map[string]any:
				if u := imageURL(e); u != "" {
					out = append(out, u)
				}
			}
		}
		return out
	}
	return nil
}

func imageURL(m map[string]any) string {
	for _, key := range []string{"url", "src", "image", "contentUrl"} {
		if s := stringField(m, key); s != "" {
			return s
		}
	}
	return ""
}

func availabilityToken(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '/'); i >= 0 {
		s = s[i+1:]
	}
	return s
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return strings.TrimSpace(s)
}

// anyToString renders JSON scalars to text. Numbers keep their shortest
// exact form so "12.5" survives a decode/encode round trip.
func anyToString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	case int:
		return strconv.Itoa(t)
	}
	return ""
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(t), ",", ".")
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		return f, err == nil
	}
	return 0, false
}

func toCount(v any) (int, bool) {
	switch t := v.(type) {
	case float64:
		if t < 0 {
			return 0, false
		}
		return int(t), true
	case string:
		n, err := normalize.ParseReviewCount(t)
		return n, err == nil
	}
	return 0, false
}
