package browser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsImageURL(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want bool
	}{
		{"jpg extension", "https://example.com/products/widget.jpg", true},
		{"extension with query", "https://example.com/widget.webp?quality=80", true},
		{"extension with fragment", "https://example.com/widget.PNG#zoom", true},
		{"images path", "https://example.com/images/widget-large", true},
		{"thumbnail path", "https://example.com/thumbnail/abc", true},
		{"product images path", "https://shop.example.com/product-images/123", true},
		{"amazon cdn", "https://m.media-amazon.com/images/I/81abc", true},
		{"bol cdn", "https://media.s.bol.com/xyz/550x704", true},
		{"cloudinary", "https://res.cloudinary.com/demo/upload/sample", true},
		{"product page", "https://example.com/products/widget", false},
		{"api call", "https://example.com/api/v1/pricing", false},
		{"script asset", "https://example.com/assets/app.js", false},
		{"stylesheet", "https://example.com/assets/site.css", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isImageURL(tt.url))
		})
	}
}
