package normalize

import (
	"regexp"
	"strings"
)

var currencySymbols = map[string]string{
	"$": "USD",
	"€": "EUR",
	"£": "GBP",
	"¥": "JPY",
	"₹": "INR",
	"₽": "RUB",
	"₩": "KRW",
	"₪": "ILS",
	"₨": "PKR",
	"₦": "NGN",
	"₡": "CRC",
	"₫": "VND",
	"₱": "PHP",
	"₲": "PYG",
	"₴": "UAH",
	"₵": "GHS",
	"₸": "KZT",
	"₺": "TRY",
	"₼": "AZN",
	"₾": "GEL",
	"₿": "BTC",
}

// domainCurrencies maps marketplace hosts to the currency their prices are
// listed in. Checked by substring so regional storefront subdomains match.
var domainCurrencies = []struct {
	host string
	code string
}{
	{"amazon.com.au", "AUD"},
	{"amazon.com.br", "BRL"},
	{"amazon.com.mx", "MXN"},
	{"amazon.co.uk", "GBP"},
	{"amazon.co.jp", "JPY"},
	{"amazon.com", "USD"},
	{"amazon.de", "EUR"},
	{"amazon.fr", "EUR"},
	{"amazon.it", "EUR"},
	{"amazon.es", "EUR"},
	{"amazon.ca", "CAD"},
	{"amazon.in", "INR"},
	{"ebay.co.uk", "GBP"},
	{"ebay.com", "USD"},
	{"ebay.de", "EUR"},
	{"ebay.fr", "EUR"},
	{"ebay.it", "EUR"},
	{"ebay.es", "EUR"},
	{"ebay.nl", "EUR"},
	{"otto.de", "EUR"},
	{"bol.com", "EUR"},
	{"cdiscount.com", "EUR"},
}

var isoCodePattern = regexp.MustCompile(`^[A-Z]{3}$`)

var embeddedCodePattern = regexp.MustCompile(`\b(USD|EUR|GBP|JPY|INR|RUB|KRW|ILS|PKR|NGN|CRC|VND|PHP|PYG|UAH|GHS|KZT|TRY|AZN|GEL|BTC|CAD|AUD|BRL|MXN|CHF|SEK|NOK|DKK|PLN|CZK|CNY|HKD|SGD|NZD)\b`)

// MapCurrency resolves raw currency text (a symbol, a code, or a phrase
// containing either) to an ISO 4217 code. Empty or unrecognized text falls
// back to the marketplace default for the domain, USD when the domain is
// unknown too.
func MapCurrency(text, domain string) string {
	t := strings.TrimSpace(text)
	if t == "" {
		return DefaultCurrency(domain)
	}

	if sym := currencySymbolPattern.FindString(t); sym != "" {
		if code, ok := currencySymbols[sym]; ok {
			return code
		}
	}
	if code, ok := currencySymbols[t]; ok {
		return code
	}
	if isoCodePattern.MatchString(t) {
		return t
	}
	if m := embeddedCodePattern.FindStringSubmatch(strings.ToUpper(t)); m != nil {
		return m[1]
	}
	return DefaultCurrency(domain)
}

// DefaultCurrency returns the listing currency for a marketplace host.
func DefaultCurrency(domain string) string {
	d := strings.ToLower(domain)
	for _, entry := range domainCurrencies {
		if strings.Contains(d, entry.host) {
			return entry.code
		}
	}
	return "USD"
}
