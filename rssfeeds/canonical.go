package rssfeeds

import (
	"net/url"
	"regexp"
	"strings"
)

// CanonicalURL normalises a link for deduplication: lowercase scheme and
// host, no fragment, no tracking parameters, no trailing slash.
func CanonicalURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return strings.ToLower(raw)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawFragment = ""

	q := u.Query()
	for k := range q {
		lk := strings.ToLower(k)
		if strings.HasPrefix(lk, "utm_") || lk == "fbclid" || lk == "gclid" {
			q.Del(k)
		}
	}
	u.RawQuery = q.Encode()

	return strings.TrimRight(u.String(), "/")
}

var (
	tickerPattern   = regexp.MustCompile(`^[A-Z]{1,5}(\.[A-Z]{1,2})?$`)
	cashtagPattern  = regexp.MustCompile(`\$([A-Z]{1,5}(?:\.[A-Z]{1,2})?)\b`)
	exchangePattern = regexp.MustCompile(`\((?:NASDAQ|NYSE|NYSEARCA|AMEX|OTC)\s*:\s*([A-Z]{1,5}(?:\.[A-Z]{1,2})?)\)`)
)

// DetectTicker looks for a symbol in the text: cashtags like $AAPL first,
// then exchange notation like (NASDAQ: AAPL), then ticker-shaped categories.
func DetectTicker(title, summary string, categories []string) string {
	for _, text := range []string{title, summary} {
		if m := cashtagPattern.FindStringSubmatch(text); m != nil {
			return m[1]
		}
		if m := exchangePattern.FindStringSubmatch(strings.ToUpper(text)); m != nil {
			return m[1]
		}
	}
	for _, c := range categories {
		c = strings.TrimSpace(c)
		if tickerPattern.MatchString(c) {
			return c
		}
	}
	return ""
}
