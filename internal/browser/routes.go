package browser

import "strings"

var imageExtensions = []string{
	".png", ".jpg", ".jpeg", ".gif", ".webp", ".svg", ".ico", ".avif", ".bmp",
}

var imagePathKeywords = []string{
	"/images/",
	"/img/",
	"/photo/",
	"/photos/",
	"/picture/",
	"/pictures/",
	"/thumbnail/",
	"/thumb/",
	"/thumbs/",
	"/gallery/",
	"/uploads/",
	"/product-images/",
	"/product_img/",
	"/productimg/",
}

// imageCDNHosts are hosts that serve storefront imagery almost exclusively,
// worth cutting even when the request carries an opaque resource type.
var imageCDNHosts = []string{
	"media-amazon.com",
	"ebayimg.com",
	"ebaystatic.com",
	"ebaycdn.com",
	"media.s.bol.com",
	"image.cdiscount.com",
	"cdiscount-static.com",
	"cdiscount-cdn.com",
	"cloudfront.net",
	"akamaized.net",
	"cdn77.org",
	"fastly.net",
	"imgix.net",
	"cloudinary.com",
}

// isImageURL reports whether a request URL points at product imagery by
// extension, path keyword, or known image CDN.
func isImageURL(rawURL string) bool {
	lower := strings.ToLower(rawURL)

	path := lower
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	for _, ext := range imageExtensions {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	for _, keyword := range imagePathKeywords {
		if strings.Contains(path, keyword) {
			return true
		}
	}
	for _, host := range imageCDNHosts {
		if strings.Contains(lower, host) {
			return true
		}
	}
	return false
}
