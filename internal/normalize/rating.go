package normalize

import (
	"regexp"
	"strconv"
	"strings"
)

// ratingScalePattern matches explicit scales: "4.5 out of 5", "4,2 von 5",
// "4 sur 5", "9.2/10". Decimal commas are accepted everywhere.
var ratingScalePattern = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*(?:out\s+of|von|sur|/)\s*(\d+(?:[.,]\d+)?)`)

var ratingValuePattern = regexp.MustCompile(`\d+(?:[.,]\d+)?`)

// reviewWordPattern strips the localized label around a review count so only
// the number survives.
var reviewWordPattern = regexp.MustCompile(`(?i)(bewertungen|évaluations?|commentaires?|ratings?|reviews?|customers?|avis|mal|times|x)`)

var digitPattern = regexp.MustCompile(`\d`)

// ParseRating extracts a star rating from text and rescales it to the 0..5
// range. "9/10" becomes 4.5; a plain "4.6" passes through. Values are always
// clamped into [0, 5].
func ParseRating(text string) (float64, error) {
	if strings.TrimSpace(text) == "" {
		return 0, &NormalizationError{Field: "rating", Input: text, Reason: "empty input"}
	}

	if m := ratingScalePattern.FindStringSubmatch(text); m != nil {
		value, err1 := parseDecimal(m[1])
		scale, err2 := parseDecimal(m[2])
		if err1 == nil && err2 == nil && scale > 0 {
			return ClampRating(value / scale * 5), nil
		}
	}

	if m := ratingValuePattern.FindString(text); m != "" {
		value, err := parseDecimal(m)
		if err == nil {
			return ClampRating(value), nil
		}
	}

	return 0, &NormalizationError{Field: "rating", Input: text, Reason: "no rating value found"}
}

// RescaleRating converts a rating on an arbitrary scale (JSON-LD bestRating)
// to the 0..5 range.
func RescaleRating(value, best float64) float64 {
	if best > 0 && best != 5 {
		value = value / best * 5
	}
	return ClampRating(value)
}

func ClampRating(r float64) float64 {
	if r < 0 {
		return 0
	}
	if r > 5 {
		return 5
	}
	return r
}

// ParseReviewCount extracts a non-negative integer from review-count text
// such as "1,234 ratings" or "256 Bewertungen".
func ParseReviewCount(text string) (int, error) {
	if strings.TrimSpace(text) == "" {
		return 0, &NormalizationError{Field: "review_count", Input: text, Reason: "empty input"}
	}

	cleaned := reviewWordPattern.ReplaceAllString(text, "")
	digits := strings.Join(digitPattern.FindAllString(cleaned, -1), "")
	if digits == "" {
		return 0, &NormalizationError{Field: "review_count", Input: text, Reason: "no digits found"}
	}

	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, &NormalizationError{Field: "review_count", Input: text, Reason: "count out of range"}
	}
	return n, nil
}

func parseDecimal(s string) (float64, error) {
	return strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
}
