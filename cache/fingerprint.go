package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Fingerprint is the cache key for one (content, ticker, model) triple.
// Title and body are lowercased with whitespace collapsed so cosmetic feed
// differences hash the same.
func Fingerprint(title, body, ticker, model string) string {
	h := sha256.New()
	for _, part := range []string{
		normalizeText(title),
		normalizeText(body),
		strings.ToUpper(strings.TrimSpace(ticker)),
		strings.TrimSpace(model),
	} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

func normalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
