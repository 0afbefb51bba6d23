// Package fusion merges the raw source records extracted from one page into
// a single ProductRecord. Sources are consumed strictly by descending
// priority: for scalar fields the first non-empty value wins, images are
// pooled and curated, and specification maps merge key by key.
package fusion

import (
	"fmt"
	"sort"
	"strings"

	"github.com/fetchwise/product-scraper/internal/images"
	"github.com/fetchwise/product-scraper/internal/models"
	"github.com/fetchwise/product-scraper/internal/normalize"
)

// FieldError records a value that survived extraction but failed
// normalization. The field is dropped; the scrape continues.
type FieldError struct {
	Field string
	Kind  models.SourceKind
	Err   error
}

func (e FieldError) Error() string {
	return fmt.Sprintf("fuse %s from %s: %v", e.Field, e.Kind, e.Err)
}

// Provenance maps each populated record field to the source it came from.
type Provenance map[string]models.SourceKind

// Options carries the page context fusion needs: the domain drives regional
// number parsing and currency defaults, the page URL resolves relative image
// references.
type Options struct {
	Domain        string
	PageURL       string
	MinImageWidth int
}

// Fuse merges sources into one record. It never fails: an empty source list
// yields an empty record, and per-field normalization errors are returned
// for logging without aborting the merge.
func Fuse(sources []models.RawSourceRecord, opts Options) (*models.ProductRecord, Provenance, []FieldError) {
	ordered := make([]models.RawSourceRecord, len(sources))
	copy(ordered, sources)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority > ordered[j].Priority
	})

	record := models.NewProductRecord()
	prov := make(Provenance)
	var fieldErrs []FieldError

	var priceKind models.SourceKind
	var currencyText string
	var imageRefs []string
	imageWidths := make(map[string]int)

	for _, src := range ordered {
		p := src.Payload

		if !src.Kind.RatingOnly() {
			if record.Title == "" && strings.TrimSpace(p.Title) != "" {
				record.Title = strings.TrimSpace(p.Title)
				prov["title"] = src.Kind
			}
			if record.Description == "" && strings.TrimSpace(p.Description) != "" {
				record.Description = strings.TrimSpace(p.Description)
				prov["description"] = src.Kind
			}
			if record.Brand == "" && strings.TrimSpace(p.Brand) != "" {
				record.Brand = strings.TrimSpace(p.Brand)
				prov["brand"] = src.Kind
			}
			if record.SKU == "" && strings.TrimSpace(p.SKU) != "" {
				record.SKU = strings.TrimSpace(p.SKU)
				prov["sku"] = src.Kind
			}
			if record.Availability == "" && strings.TrimSpace(p.Availability) != "" {
				record.Availability = strings.TrimSpace(p.Availability)
				prov["availability"] = src.Kind
			}

			if record.Price == nil {
				if value, ok, err := sourcePrice(p, opts.Domain); ok {
					record.Price = &value
					priceKind = src.Kind
					prov["price"] = src.Kind
				} else if err != nil {
					fieldErrs = append(fieldErrs, FieldError{Field: "price", Kind: src.Kind, Err: err})
				}
			}
			if currencyText == "" && strings.TrimSpace(p.Currency) != "" {
				currencyText = strings.TrimSpace(p.Currency)
				prov["currency"] = src.Kind
			}

			if len(p.Images) > 0 {
				if _, seen := prov["images"]; !seen {
					prov["images"] = src.Kind
				}
				imageRefs = append(imageRefs, p.Images...)
				for ref, w := range p.ImageWidths {
					if _, ok := imageWidths[ref]; !ok {
						imageWidths[ref] = w
					}
				}
			}

			for key, value := range p.Specifications {
				if _, ok := record.Specifications[key]; !ok && key != "" && value != "" {
					record.Specifications[key] = value
					if _, seen := prov["specifications"]; !seen {
						prov["specifications"] = src.Kind
					}
				}
			}
		}

		if record.Rating == nil {
			if p.Rating != nil {
				rating := normalize.ClampRating(*p.Rating)
				record.Rating = &rating
				prov["rating"] = src.Kind
			} else if strings.TrimSpace(p.RatingText) != "" {
				rating, err := normalize.ParseRating(p.RatingText)
				if err != nil {
					fieldErrs = append(fieldErrs, FieldError{Field: "rating", Kind: src.Kind, Err: err})
				} else {
					record.Rating = &rating
					prov["rating"] = src.Kind
				}
			}
		}
		if record.ReviewCount == nil {
			if p.ReviewCount != nil && *p.ReviewCount >= 0 {
				count := *p.ReviewCount
				record.ReviewCount = &count
				prov["review_count"] = src.Kind
			} else if strings.TrimSpace(p.ReviewCountText) != "" {
				count, err := normalize.ParseReviewCount(p.ReviewCountText)
				if err != nil {
					fieldErrs = append(fieldErrs, FieldError{Field: "review_count", Kind: src.Kind, Err: err})
				} else {
					record.ReviewCount = &count
					prov["review_count"] = src.Kind
				}
			}
		}
	}

	if currencyText != "" {
		record.Currency = normalize.MapCurrency(currencyText, opts.Domain)
	} else if record.Price != nil {
		// A price without any currency signal still gets the marketplace
		// default so the pair stays usable.
		record.Currency = normalize.DefaultCurrency(opts.Domain)
		prov["currency"] = priceKind
	}

	record.Images = images.Curate(imageRefs, images.Options{
		BaseURL:  opts.PageURL,
		MinWidth: opts.MinImageWidth,
		Widths:   imageWidths,
	})
	if len(record.Images) == 0 {
		delete(prov, "images")
	}
	if len(record.Specifications) == 0 {
		record.Specifications = nil
	}

	return record, prov, fieldErrs
}

// sourcePrice resolves one source's price contribution: a pre-parsed value
// when the source carried real numbers, otherwise a normalization pass over
// the raw text. ok is false when the source has nothing usable.
func sourcePrice(p models.SourcePayload, domain string) (float64, bool, error) {
	if p.Price != nil {
		if *p.Price < 0 {
			return 0, false, &normalize.NormalizationError{
				Field:  "price",
				Input:  fmt.Sprintf("%v", *p.Price),
				Reason: "negative price",
			}
		}
		return *p.Price, true, nil
	}
	if strings.TrimSpace(p.PriceText) == "" {
		return 0, false, nil
	}
	value, err := normalize.ParseAmount(p.PriceText, domain)
	if err != nil {
		return 0, false, err
	}
	return value, true, nil
}
