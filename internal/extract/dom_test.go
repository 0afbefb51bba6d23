package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fetchwise/product-scraper/internal/models"
)

func TestDOMSourceAmazonSelectors(t *testing.T) {
	html := `<html><body>
	<span id="productTitle"> Ergo Office Chair </span>
	<span class="a-price"><span class="a-offscreen">$189.99</span></span>
	<div id="productDescription"><p>Adjustable lumbar support.</p><p>Five year warranty.</p></div>
	<img id="landingImage" src="https://m.media-amazon.com/images/I/71chair.jpg"/>
	<i class="a-icon-star"><span class="a-icon-alt">4.3 out of 5 stars</span></i>
	<span id="acrCustomerReviewText">1,204 ratings</span>
	<table id="productDetails_techSpec_section_1">
		<tr><th>Item Weight</th><td>14.2 kg</td></tr>
		<tr><th>Colour</th><td>Black</td></tr>
	</table>
	</body></html>`

	src, ok := DOMSource(mustDoc(t, html), amazonSelectors)
	require.True(t, ok)
	assert.Equal(t, models.SourceDOMFallback, src.Kind)
	assert.Equal(t, 10, src.Priority)

	p := src.Payload
	assert.Equal(t, "Ergo Office Chair", p.Title)
	assert.Equal(t, "$189.99", p.PriceText)
	assert.Equal(t, "Adjustable lumbar support. Five year warranty.", p.Description)
	assert.Equal(t, []string{"https://m.media-amazon.com/images/I/71chair.jpg"}, p.Images)
	assert.Equal(t, "4.3 out of 5 stars", p.RatingText)
	assert.Equal(t, "1,204 ratings", p.ReviewCountText)
	assert.Equal(t, map[string]string{
		"Item Weight": "14.2 kg",
		"Colour":      "Black",
	}, p.Specifications)
}

func TestDOMSourceCurrencyFallsBackToPriceText(t *testing.T) {
	html := `<body>
	<h1>Steel Bottle</h1>
	<div class="price">19,95 €</div>
	</body>`

	src, ok := DOMSource(mustDoc(t, html), genericSelectors)
	require.True(t, ok)
	assert.Equal(t, "19,95 €", src.Payload.PriceText)
	assert.Equal(t, "19,95 €", src.Payload.Currency)
}

func TestDOMSourceImageWidthsAndLazyAttrs(t *testing.T) {
	html := `<body>
	<div class="gallery">
		<img data-src="https://cdn.example.com/p/one.jpg" width="1600"/>
		<img src="https://cdn.example.com/p/two.jpg" width="320px"/>
	</div>
	</body>`

	src, ok := DOMSource(mustDoc(t, html), genericSelectors)
	require.True(t, ok)
	assert.Equal(t, []string{
		"https://cdn.example.com/p/one.jpg",
		"https://cdn.example.com/p/two.jpg",
	}, src.Payload.Images)
	assert.Equal(t, map[string]int{
		"https://cdn.example.com/p/one.jpg": 1600,
		"https://cdn.example.com/p/two.jpg": 320,
	}, src.Payload.ImageWidths)
}

func TestDOMSourceImageIDTemplate(t *testing.T) {
	html := `<body>
	<div class="js_pdp_main-image__slide" data-image-id="ABC123"></div>
	<div class="js_pdp_main-image__slide" data-image-id="DEF456"></div>
	</body>`

	src, ok := DOMSource(mustDoc(t, html), ottoSelectors)
	require.True(t, ok)
	assert.Equal(t, []string{
		"https://i.otto.de/i/otto/ABC123",
		"https://i.otto.de/i/otto/DEF456",
	}, src.Payload.Images)
}

func TestDOMSourceDefinitionListSpecs(t *testing.T) {
	html := `<body>
	<h1 class="x-item-title__mainTitle">Vintage Lens</h1>
	<dl class="ux-labels-values"><dt>Mount</dt><dd>M42</dd></dl>
	<dl class="ux-labels-values"><dt>Focal Length</dt><dd>50mm</dd></dl>
	</body>`

	src, ok := DOMSource(mustDoc(t, html), ebaySelectors)
	require.True(t, ok)
	assert.Equal(t, map[string]string{
		"Mount":        "M42",
		"Focal Length": "50mm",
	}, src.Payload.Specifications)
}

func TestDOMSourceEmptyPage(t *testing.T) {
	_, ok := DOMSource(mustDoc(t, "<body><div>nothing here</div></body>"), amazonSelectors)
	assert.False(t, ok)
}

func TestDOMSourceRatingFromAriaLabel(t *testing.T) {
	html := `<body>
	<h1>Mug</h1>
	<div class="rating" aria-label="4.8 von 5 Sternen"><span>★★★★★</span></div>
	</body>`

	src, ok := DOMSource(mustDoc(t, html), genericSelectors)
	require.True(t, ok)
	assert.Equal(t, "4.8 von 5 Sternen", src.Payload.RatingText)
}
