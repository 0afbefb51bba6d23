package normalize

import (
	"regexp"
	"strconv"
	"strings"
)

// amountPattern matches grouped numbers ("1.234,56", "1,234.56"), plain
// decimals and bare integers. Alternatives are ordered longest-first so the
// grouped form wins when it applies.
var amountPattern = regexp.MustCompile(`\d{1,3}(?:[.,]\d{3})*[.,]\d{2}|\d+[.,]\d{2}|\d+`)

// currencySymbolPattern covers every symbol the currency table knows about,
// so it can be stripped before number matching and looked up afterwards.
var currencySymbolPattern = regexp.MustCompile(`[$€£¥₹₽₩₪₨₦₡₫₱₲₴₵₸₺₼₾₿]`)

// ParseAmount extracts a price from free-form text. The domain is a regional
// hint: on European marketplaces an ambiguous number defaults to the
// decimal-comma reading. The separator convention is decided from the number
// itself first and the domain only breaks ties:
//
//	"1.234,56" -> 1234.56 (two digits after the comma, comma is decimal)
//	"1,234.56" -> 1234.56 (two digits after the dot, dot is decimal)
//	"1,299"    -> 1299    (three digits after a lone comma, comma groups)
//	"86,80"    -> 86.80   (two digits after a lone comma, comma is decimal)
func ParseAmount(text, domain string) (float64, error) {
	if strings.TrimSpace(text) == "" {
		return 0, &NormalizationError{Field: "price", Input: text, Reason: "empty input"}
	}

	cleaned := currencySymbolPattern.ReplaceAllString(text, "")
	cleaned = stripSpaces(cleaned)

	num := longestMatch(cleaned)
	if num == "" {
		return 0, &NormalizationError{Field: "price", Input: text, Reason: "no numeric value found"}
	}

	european := IsEuropeanDomain(domain)
	hasComma := strings.Contains(num, ",")
	hasDot := strings.Contains(num, ".")

	switch {
	case hasComma && hasDot:
		afterComma := trailingLen(num, ',')
		afterDot := trailingLen(num, '.')
		if afterComma == 2 && afterDot != 2 {
			european = true
		} else if afterDot == 2 && afterComma != 2 {
			european = false
		}
	case hasComma:
		if strings.Count(num, ",") == 1 {
			switch trailingLen(num, ',') {
			case 2:
				european = true
			case 3:
				european = false
			}
		}
	default:
		// Only a dot, or no separator at all: read as a plain decimal
		// regardless of domain.
		european = false
	}

	if european {
		num = strings.ReplaceAll(num, ".", "")
		num = strings.ReplaceAll(num, ",", ".")
	} else {
		num = strings.ReplaceAll(num, ",", "")
	}

	value, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, &NormalizationError{Field: "price", Input: text, Reason: "unparseable number"}
	}
	return value, nil
}

func stripSpaces(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r', ' ', ' ', ' ':
			return -1
		}
		return r
	}, s)
}

// longestMatch picks the longest candidate in the text, first one on ties.
// Prices are often surrounded by struck-through list prices and unit counts;
// the longest run is the one with grouping and decimals intact.
func longestMatch(s string) string {
	matches := amountPattern.FindAllString(s, -1)
	best := ""
	for _, m := range matches {
		if len(m) > len(best) {
			best = m
		}
	}
	return best
}

// trailingLen counts the characters after the last occurrence of sep. With
// both separators present that tail can include the other separator, which
// is exactly what makes "1.234,56" resolve the way it should.
func trailingLen(s string, sep byte) int {
	i := strings.LastIndexByte(s, sep)
	if i < 0 {
		return 0
	}
	return len(s) - i - 1
}
