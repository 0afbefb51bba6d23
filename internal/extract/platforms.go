package extract

import "sort"

// Selector sets mirror the markup each marketplace actually serves. Generic
// covers everything without a dedicated adapter; Shopify shops rarely need
// DOM fallbacks at all because the ProductJson pass carries the page, so the
// shopify adapter reuses the generic selectors.

var genericSelectors = SelectorConfig{
	Title: []string{
		"h1",
		".product-title",
		".product-name",
		`[data-testid="product-title"]`,
		".title",
		`h1[itemprop="name"]`,
		".product-info h1",
		".product-details h1",
		".product-header h1",
		".product-main h1",
	},
	Price: []string{
		".price",
		".product-price",
		".current-price",
		`[data-testid="price"]`,
		".amount",
		".price-current",
		".price-main",
		".product-price .price",
		".price-wrapper .price",
		`[itemprop="price"]`,
		".price-box .price",
	},
	Currency: []string{
		"[data-currency]",
		".currency",
		".price-currency",
		`[itemprop="priceCurrency"]`,
		".price .currency",
	},
	Description: []string{
		".description",
		".product-description",
		".summary",
		`[data-testid="description"]`,
		".product-summary",
		`[itemprop="description"]`,
		".product-overview",
		".product-text",
	},
	Images: []string{
		".product-image img",
		".gallery img",
		".main-image img",
		`[data-testid="product-image"]`,
		".product-photo img",
		".product-gallery img",
		".product-images img",
		".product-main-image img",
		".product-hero img",
	},
	Rating: []string{
		".rating",
		".product-rating",
		"[data-rating]",
		`[itemprop="ratingValue"]`,
		".stars",
		".star-rating",
		".review-rating",
		".rating-value",
	},
	ReviewCount: []string{
		".review-count",
		".reviews-count",
		"[data-review-count]",
		`[itemprop="reviewCount"]`,
		".product-reviews-count",
		".review-count-text",
	},
	Specs: []string{
		".specifications",
		".product-specs",
		".product-specifications",
		".specs",
		".product-details",
	},
}

var amazonSelectors = SelectorConfig{
	Title: []string{
		"#productTitle",
		".product-title",
		".a-size-large.a-spacing-none",
		".a-size-large.a-color-base",
	},
	Price: []string{
		".a-price .a-offscreen",
		".a-price-current .a-offscreen",
		".a-price-range .a-offscreen",
		".a-price-whole",
	},
	Description: []string{
		"#productDescription p",
		".a-expander-content p",
	},
	Images: []string{
		"img[data-old-hires]",
		"#landingImage",
		".a-dynamic-image",
	},
	ImageAttrs: []string{"data-old-hires", "src"},
	Rating: []string{
		".a-icon-alt",
		".a-icon-star .a-icon-alt",
		".a-icon-star-small .a-icon-alt",
	},
	ReviewCount: []string{
		"#acrCustomerReviewText",
		"#averageCustomerReviews .a-size-base",
	},
	Specs: []string{
		"#productDetails_techSpec_section_1",
		"#prodDetails table",
		".prodDetTable",
		"#detailBullets_feature_div",
	},
}

var ebaySelectors = SelectorConfig{
	Title: []string{"h1.x-item-title__mainTitle"},
	Price: []string{".x-price-primary"},
	Description: []string{
		"h2#subtitle",
		"div.x-item-description-child",
	},
	Images: []string{
		"div.ux-image-carousel-item.image img",
		`img[data-zoom-src*="ebayimg.com"]`,
		`img[src*="ebayimg.com"]`,
		".ux-image img",
	},
	ImageAttrs: []string{"data-zoom-src", "src"},
	Rating: []string{
		"div.ux-summary span.ux-summary__start--rating span.ux-textspans",
	},
	ReviewCount: []string{
		"div.ux-summary span.ux-summary__count span.ux-textspans",
	},
	Specs: []string{"dl.ux-labels-values"},
}

var ottoSelectors = SelectorConfig{
	Title: []string{
		".pdp_short-info__main-name",
		".js_pdp_short-info__main-name",
	},
	Price:    []string{".pdp_price__price-parts"},
	Currency: []string{".pdp_price__price-parts"},
	Description: []string{
		".js_pdp_description",
		".pdp_description",
		".product-description",
		".pdp_selling-points",
	},
	Images:      []string{"div.js_pdp_main-image__slide"},
	ImageIDAttr: "data-image-id",
	ImageIDBase: "https://i.otto.de/i/otto/",
	Rating: []string{
		".pdp_cr-rating-score",
		".js_pdp_cr-rating-score",
	},
	ReviewCount: []string{".js_pdp_cr-rating--review-count"},
	Specs:       []string{".pdp_details__characteristics-html table"},
}

var bolSelectors = SelectorConfig{
	Title: []string{
		`[data-testid="product-title"]`,
		".product-title",
		".product-name",
	},
	Price: []string{
		`[data-test="price"]`,
		".promo-price",
	},
	Description: []string{
		`[data-test="product-description"]`,
		".product-description",
		`[data-test="description"]`,
		".description",
	},
	Images: []string{
		`[data-testid="product-image"] img`,
		".product-image img",
		".gallery img",
		".main-image img",
		".product-photo img",
	},
	Rating: []string{
		".pdp-header__rating",
		".star-rating-experiment",
		`[data-test="rating"]`,
	},
	ReviewCount: []string{
		`[data-test="rating-suffix"]`,
		".pdp-header__rating",
	},
	Specs: []string{
		`[data-testid="specifications"]`,
		".specs",
		".specifications",
		".product-specs",
	},
}

var jdSelectors = SelectorConfig{
	Title:       []string{".sku-name"},
	Price:       []string{".p-price .price"},
	Description: []string{".news"},
	Images: []string{
		".spec-img img",
		".zoom-thumb img",
		".spec-n1 img",
	},
	Rating:      []string{".comment-item .comment-star"},
	ReviewCount: []string{".comment-count"},
	Specs: []string{
		".Ptable",
		".parameter2",
	},
}

var cdiscountSelectors = SelectorConfig{
	Title: []string{".c-fp-heading__title"},
	Price: []string{
		".c-price.c-price--xl.c-price--promo",
		`.c-price[itemprop="price"]`,
	},
	Currency:    []string{`[itemprop="priceCurrency"]`},
	Description: []string{"div#MarketingLongDescription"},
	Images: []string{
		"div.c-productViewer__thumb img",
		".c-productViewer img",
	},
	Rating: []string{"span.c-stars-rating__text"},
	ReviewCount: []string{
		".fpProductRating .fpReviewCount",
		".fpProductRating .fpRatingCount",
		".review-count",
		".rating-count",
	},
	Specs: []string{".table--fpDescTb"},
}

// Registry resolves a detected platform to its adapter, falling back to the
// generic one for anything it has no dedicated support for.
type Registry struct {
	adapters map[string]PlatformAdapter
	generic  PlatformAdapter
}

func NewRegistry() *Registry {
	r := &Registry{
		adapters: make(map[string]PlatformAdapter),
		generic:  NewAdapter("generic", genericSelectors),
	}
	for id, cfg := range map[string]SelectorConfig{
		"amazon":    amazonSelectors,
		"shopify":   genericSelectors,
		"ebay":      ebaySelectors,
		"otto":      ottoSelectors,
		"bol":       bolSelectors,
		"jd":        jdSelectors,
		"cdiscount": cdiscountSelectors,
	} {
		r.adapters[id] = NewAdapter(id, cfg)
	}
	return r
}

// Adapter never returns nil; unknown platforms get the generic adapter.
func (r *Registry) Adapter(platform string) PlatformAdapter {
	if a, ok := r.adapters[platform]; ok {
		return a
	}
	return r.generic
}

// Platforms lists the dedicated adapters plus the generic fallback, sorted.
func (r *Registry) Platforms() []string {
	out := make([]string, 0, len(r.adapters)+1)
	for id := range r.adapters {
		out = append(out, id)
	}
	out = append(out, r.generic.ID())
	sort.Strings(out)
	return out
}
