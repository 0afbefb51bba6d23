package models

// SourceKind identifies where a raw extraction payload came from. Fusion
// merges sources strictly by descending priority, so the kind doubles as the
// trust level of the data.
type SourceKind string

const (
	SourcePlatformJSON SourceKind = "platform_json"
	SourceJSONLD       SourceKind = "json_ld"
	SourceMetaTags     SourceKind = "meta_tags"
	SourceDOMFallback  SourceKind = "dom_fallback"
	// SourceJSONLDRating is a standalone rating object with no product
	// around it. It only ever contributes rating and review count.
	SourceJSONLDRating SourceKind = "json_ld_rating"
)

func (k SourceKind) Priority() int {
	switch k {
	case SourcePlatformJSON:
		return 40
	case SourceJSONLD:
		return 30
	case SourceMetaTags:
		return 20
	case SourceDOMFallback:
		return 10
	case SourceJSONLDRating:
		return 5
	default:
		return 0
	}
}

// RatingOnly reports whether the source may only contribute rating fields.
func (k SourceKind) RatingOnly() bool {
	return k == SourceJSONLDRating
}

// SourcePayload is the sparse field set one source extracted from a page.
// Price and rating text stay unparsed here; normalization happens during
// fusion where the page domain is known. Pre-parsed numeric values (from
// structured data that carries real numbers) go straight into the pointer
// fields instead.
type SourcePayload struct {
	Title           string
	Description     string
	PriceText       string
	Price           *float64
	Currency        string
	Images          []string
	ImageWidths     map[string]int
	Rating          *float64
	RatingText      string
	ReviewCount     *int
	ReviewCountText string
	Brand           string
	SKU             string
	Availability    string
	Specifications  map[string]string
}

// IsEmpty reports whether the payload carries no data worth fusing.
func (p *SourcePayload) IsEmpty() bool {
	return p.Title == "" && p.Description == "" && p.PriceText == "" &&
		p.Price == nil && p.Currency == "" && len(p.Images) == 0 &&
		p.Rating == nil && p.RatingText == "" && p.ReviewCount == nil &&
		p.ReviewCountText == "" && p.Brand == "" && p.SKU == "" &&
		p.Availability == "" && len(p.Specifications) == 0
}

// RawSourceRecord pairs a payload with its origin. Records are immutable once
// produced by an adapter; fusion never writes back into them.
type RawSourceRecord struct {
	Kind     SourceKind
	Priority int
	Payload  SourcePayload
}

func NewRawSourceRecord(kind SourceKind, payload SourcePayload) RawSourceRecord {
	return RawSourceRecord{
		Kind:     kind,
		Priority: kind.Priority(),
		Payload:  payload,
	}
}
