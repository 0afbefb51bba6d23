// Package images deduplicates and ranks product image references. Pages list
// the same photo many times at different sizes; the curator groups those
// variants, keeps the best one per group and drops obvious non-product assets.
package images

import (
	"net/url"
	"path"
	"regexp"
	"strconv"
	"strings"
)

// DefaultMinWidth is the smallest width considered a real product photo.
// References with an unknown width are kept.
const DefaultMinWidth = 1024

// Candidate is the working form of one image reference. It only lives for
// the duration of a Curate call.
type Candidate struct {
	RawURL           string
	CanonicalBaseURL string
	InferredWidth    int
	FormatHint       string
	Score            int
}

// Options configures a curation pass.
type Options struct {
	// BaseURL resolves relative references, usually the final page URL.
	BaseURL string
	// MinWidth drops references known to be narrower; zero means
	// DefaultMinWidth.
	MinWidth int
	// Widths carries widths observed on DOM elements, keyed by the
	// reference exactly as it appeared in the source.
	Widths map[string]int
}

var (
	// sizeTokenPattern matches filename suffixes that only encode a render
	// size, so "a_thumb.jpg" and "a_800x800.jpg" collapse into one group.
	sizeTokenPattern = regexp.MustCompile(`(?i)[._-](?:thumb(?:nail)?|small|mini|tiny|icon|large|original|hi-?res|big|medium|zoom|grande|s[lsx]\d{2,4}|ac_[a-z]{2}\d{2,4}|\d{1,4}x\d{1,4}|\d{2,4}px)$`)

	dimensionPattern = regexp.MustCompile(`(\d{2,4})\s*[xX]\s*\d{2,4}`)
	// Three digits minimum: two-digit filename suffixes are usually gallery
	// indexes, not widths.
	suffixPattern     = regexp.MustCompile(`[_-](\d{3,4})(?:px)?\.[A-Za-z]+$`)
	queryWidthPattern = regexp.MustCompile(`[?&](?:w|width)=(\d{2,5})`)
)

var largeKeywords = []string{"large", "original", "hires", "hi-res", "high", "big", "master", "zoom", "full", "grande"}

var smallKeywords = []string{"thumb", "small", "mini", "tiny", "icon", "sprite", "swatch"}

var sizeParams = map[string]bool{"w": true, "h": true, "width": true, "height": true, "size": true, "sz": true}

var droppedFormats = map[string]bool{"svg": true, "gif": true}

// Curate turns raw image references into a deduplicated, ordered list of
// absolute URLs. The pass is idempotent: feeding the output back in returns
// it unchanged.
func Curate(refs []string, opts Options) []string {
	minWidth := opts.MinWidth
	if minWidth <= 0 {
		minWidth = DefaultMinWidth
	}

	groups := make(map[string][]Candidate)
	var order []string
	for _, ref := range refs {
		c, ok := newCandidate(ref, opts)
		if !ok {
			continue
		}
		if _, seen := groups[c.CanonicalBaseURL]; !seen {
			order = append(order, c.CanonicalBaseURL)
		}
		groups[c.CanonicalBaseURL] = append(groups[c.CanonicalBaseURL], c)
	}

	out := make([]string, 0, len(order))
	for _, key := range order {
		winner := pickWinner(groups[key])
		if droppedFormats[winner.FormatHint] {
			continue
		}
		if winner.InferredWidth > 0 && winner.InferredWidth < minWidth {
			continue
		}
		out = append(out, winner.RawURL)
	}
	return out
}

func newCandidate(ref string, opts Options) (Candidate, bool) {
	abs, ok := absolutize(ref, opts.BaseURL)
	if !ok {
		return Candidate{}, false
	}

	width := 0
	if w, ok := opts.Widths[ref]; ok && w > 0 {
		width = w
	} else {
		width = inferWidth(abs)
	}

	c := Candidate{
		RawURL:           abs,
		CanonicalBaseURL: canonicalBase(abs),
		InferredWidth:    width,
		FormatHint:       formatHint(abs),
	}
	c.Score = score(c)
	return c, true
}

func pickWinner(group []Candidate) Candidate {
	winner := group[0]
	for _, c := range group[1:] {
		if c.Score > winner.Score {
			winner = c
		}
	}
	return winner
}

func absolutize(ref, base string) (string, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", false
	}
	lower := strings.ToLower(ref)
	if strings.HasPrefix(lower, "data:") || strings.HasPrefix(lower, "javascript:") || strings.HasPrefix(lower, "about:") {
		return "", false
	}
	if strings.HasPrefix(ref, "//") {
		return "https:" + ref, true
	}

	u, err := url.Parse(ref)
	if err != nil {
		return "", false
	}
	if u.IsAbs() {
		if u.Scheme != "http" && u.Scheme != "https" {
			return "", false
		}
		return u.String(), true
	}

	b, err := url.Parse(base)
	if err != nil || !b.IsAbs() {
		return "", false
	}
	return b.ResolveReference(u).String(), true
}

// canonicalBase strips the query, fragment and any trailing size token from
// the filename. Two references with the same base are variants of one image.
func canonicalBase(abs string) string {
	u, err := url.Parse(abs)
	if err != nil {
		return abs
	}

	dir, file := path.Split(u.Path)
	ext := path.Ext(file)
	stem := strings.TrimSuffix(file, ext)

	for {
		trimmed := strings.TrimRight(stem, "._-")
		loc := sizeTokenPattern.FindStringIndex(trimmed)
		if loc == nil || loc[0] == 0 {
			stem = trimmed
			break
		}
		stem = trimmed[:loc[0]]
	}
	if stem == "" {
		stem = strings.TrimSuffix(file, ext)
	}

	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host) + dir + stem + strings.ToLower(ext)
}

func score(c Candidate) int {
	s := 0
	lower := strings.ToLower(c.RawURL)
	for _, kw := range largeKeywords {
		if strings.Contains(lower, kw) {
			s += 3
		}
	}
	for _, kw := range smallKeywords {
		if strings.Contains(lower, kw) {
			s -= 3
		}
	}

	if u, err := url.Parse(c.RawURL); err == nil {
		for key := range u.Query() {
			if sizeParams[strings.ToLower(key)] {
				s += 2
			} else {
				s--
			}
		}
	}
	return s
}

func inferWidth(abs string) int {
	if m := queryWidthPattern.FindStringSubmatch(abs); m != nil {
		return atoiSafe(m[1])
	}
	if m := dimensionPattern.FindStringSubmatch(abs); m != nil {
		return atoiSafe(m[1])
	}
	if m := suffixPattern.FindStringSubmatch(abs); m != nil {
		return atoiSafe(m[1])
	}
	return 0
}

func formatHint(abs string) string {
	u, err := url.Parse(abs)
	if err != nil {
		return ""
	}
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(u.Path), "."))
	return ext
}

func atoiSafe(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
