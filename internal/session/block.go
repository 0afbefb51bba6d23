package session

import "strings"

// DefaultContentFloor is the body length below which a page is suspicious
// enough to scan for bot-check wording. Real product pages are far larger.
const DefaultContentFloor = 2048

// blockIndicators mark a block page regardless of content length.
var blockIndicators = []string{
	"temporarily blocked",
	"access temporarily unavailable",
	"rate limit exceeded",
	"too many requests",
	"access denied",
}

// botKeywords only count on short pages; "captcha" appears in the footer
// scripts of plenty of legitimate storefronts.
var botKeywords = []string{
	"captcha",
	"robot check",
	"verify you are human",
	"are you a robot",
	"just a moment",
	"attention required",
	"checking your browser",
	"enable javascript and cookies",
}

// DetectBlock classifies page content as a bot-defense response. It returns
// the matched indicator and true when the page is a block wall. A floor of
// zero or less uses DefaultContentFloor.
func DetectBlock(content string, floor int) (string, bool) {
	if content == "" {
		return "", false
	}
	if floor <= 0 {
		floor = DefaultContentFloor
	}

	lower := strings.ToLower(content)

	for _, indicator := range blockIndicators {
		if strings.Contains(lower, indicator) {
			return indicator, true
		}
	}

	if len(content) < floor {
		for _, keyword := range botKeywords {
			if strings.Contains(lower, keyword) {
				return keyword, true
			}
		}
	}

	return "", false
}
