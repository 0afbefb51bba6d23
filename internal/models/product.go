package models

import "time"

// ProductRecord is the normalized output of the extraction pipeline. All
// fields are best-effort: partial records are a valid outcome, and absent
// numeric fields stay nil rather than defaulting to zero.
type ProductRecord struct {
	Title          string            `json:"title,omitempty"`
	Price          *float64          `json:"price,omitempty"`
	Currency       string            `json:"currency,omitempty"`
	Description    string            `json:"description,omitempty"`
	Images         []string          `json:"images"`
	Rating         *float64          `json:"rating,omitempty"`
	ReviewCount    *int              `json:"review_count,omitempty"`
	Brand          string            `json:"brand,omitempty"`
	SKU            string            `json:"sku,omitempty"`
	Availability   string            `json:"availability,omitempty"`
	Specifications map[string]string `json:"specifications,omitempty"`
}

func NewProductRecord() *ProductRecord {
	return &ProductRecord{
		Images:         make([]string, 0),
		Specifications: make(map[string]string),
	}
}

// IsEmpty reports whether nothing was extracted at all. Callers use this to
// tell a page that yielded no data apart from a partial success.
func (p *ProductRecord) IsEmpty() bool {
	return p.Title == "" && p.Price == nil && p.Currency == "" &&
		p.Description == "" && len(p.Images) == 0 && p.Rating == nil &&
		p.ReviewCount == nil && p.Brand == "" && p.SKU == "" &&
		p.Availability == "" && len(p.Specifications) == 0
}

// Diagnostics carries observability metadata alongside a ProductRecord. It is
// returned to callers but never merged into the record itself.
type Diagnostics struct {
	OriginalURL        string            `json:"original_url"`
	FinalURL           string            `json:"final_url"`
	Redirected         bool              `json:"redirected"`
	Platform           string            `json:"platform"`
	PlatformConfidence float64           `json:"platform_confidence"`
	Provenance         map[string]string `json:"provenance,omitempty"`
	RotationAttempts   int               `json:"rotation_attempts"`
	BlockedRequests    int64             `json:"blocked_requests"`
	CacheHit           bool              `json:"cache_hit"`
	ScrapedAt          time.Time         `json:"scraped_at"`
}
