package images

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCurateGroupsSizeVariants(t *testing.T) {
	refs := []string{
		"https://cdn.example.com/p/a_thumb.jpg",
		"https://cdn.example.com/p/a_800x800.jpg",
		"https://cdn.example.com/p/a_large.jpg",
	}

	out := Curate(refs, Options{})

	assert.Equal(t, []string{"https://cdn.example.com/p/a_large.jpg"}, out)
}

func TestCurateIsIdempotent(t *testing.T) {
	refs := []string{
		"https://cdn.example.com/p/a_thumb.jpg",
		"https://cdn.example.com/p/a_large.jpg",
		"//cdn.example.com/p/b_original.jpg",
		"/gallery/c.png",
		"https://cdn.example.com/p/d.svg",
	}
	opts := Options{BaseURL: "https://shop.example.com/item/1"}

	first := Curate(refs, opts)
	second := Curate(first, opts)

	assert.Equal(t, first, second)
	assert.NotEmpty(t, first)
}

func TestCurateOrderAndDedup(t *testing.T) {
	refs := []string{
		"https://cdn.example.com/p/front.jpg",
		"https://cdn.example.com/p/side.jpg",
		"https://cdn.example.com/p/front.jpg",
	}

	out := Curate(refs, Options{})

	assert.Equal(t, []string{
		"https://cdn.example.com/p/front.jpg",
		"https://cdn.example.com/p/side.jpg",
	}, out)
}

func TestCurateDropsVectorAndAnimatedFormats(t *testing.T) {
	refs := []string{
		"https://cdn.example.com/p/logo.svg",
		"https://cdn.example.com/p/spinner.gif",
		"https://cdn.example.com/p/photo.jpg",
	}

	out := Curate(refs, Options{})

	assert.Equal(t, []string{"https://cdn.example.com/p/photo.jpg"}, out)
}

func TestCurateWidthFiltering(t *testing.T) {
	tests := []struct {
		name string
		refs []string
		opts Options
		want []string
	}{
		{
			name: "known small width dropped",
			refs: []string{"https://cdn.example.com/p/a_320x320.jpg"},
			opts: Options{},
			want: []string{},
		},
		{
			name: "unknown width kept",
			refs: []string{"https://cdn.example.com/p/a.jpg"},
			opts: Options{},
			want: []string{"https://cdn.example.com/p/a.jpg"},
		},
		{
			name: "query width respected",
			refs: []string{"https://cdn.example.com/p/a.jpg?width=2048"},
			opts: Options{},
			want: []string{"https://cdn.example.com/p/a.jpg?width=2048"},
		},
		{
			name: "dom width overrides url",
			refs: []string{"/p/hero.jpg"},
			opts: Options{
				BaseURL: "https://shop.example.com/item",
				Widths:  map[string]int{"/p/hero.jpg": 480},
			},
			want: []string{},
		},
		{
			name: "custom minimum width",
			refs: []string{"https://cdn.example.com/p/a_800x800.jpg"},
			opts: Options{MinWidth: 600},
			want: []string{"https://cdn.example.com/p/a_800x800.jpg"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Curate(tt.refs, tt.opts))
		})
	}
}

func TestCurateResolvesRelativeReferences(t *testing.T) {
	refs := []string{
		"//cdn.example.com/p/a.jpg",
		"/static/b.jpg",
		"c.jpg",
		"data:image/png;base64,AAAA",
		"",
	}

	out := Curate(refs, Options{BaseURL: "https://shop.example.com/items/42"})

	assert.Equal(t, []string{
		"https://cdn.example.com/p/a.jpg",
		"https://shop.example.com/static/b.jpg",
		"https://shop.example.com/items/c.jpg",
	}, out)
}

func TestCurateScoringPrefersCleanLargeURLs(t *testing.T) {
	refs := []string{
		"https://cdn.example.com/p/a.jpg?v=1&session=abc",
		"https://cdn.example.com/p/a.jpg",
	}

	out := Curate(refs, Options{})

	// Same canonical base; the URL without tracking params scores higher.
	assert.Equal(t, []string{"https://cdn.example.com/p/a.jpg"}, out)
}
