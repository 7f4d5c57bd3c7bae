package catalog

import (
	"strings"
)

// minBarcodeDigits is the shortest numeric code treated as an EAN/GTIN barcode.
const minBarcodeDigits = 12

// NormalizeCode trims and uppercases a product code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// NormalizeCandidates normalizes codes, dropping empties and duplicates
// while keeping the caller's order.
func NormalizeCandidates(raw []string) []string {
	out := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, c := range raw {
		n := NormalizeCode(c)
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

// IsLikelyBarcode reports whether code looks like a long numeric retail
// barcode. With no prefixes any long numeric code qualifies.
func IsLikelyBarcode(code string, prefixes []string) bool {
	if len(code) < minBarcodeDigits {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	if len(prefixes) == 0 {
		return true
	}
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(code, p) {
			return true
		}
	}
	return false
}

// PreferCandidates normalizes raw and moves barcodes behind every other
// candidate. Barcodes are often shared across package sizes, so they are a
// last resort rather than a primary key. Relative order is otherwise kept.
func PreferCandidates(raw []string, barcodePrefixes []string) []string {
	codes := NormalizeCandidates(raw)
	primary := make([]string, 0, len(codes))
	var barcodes []string
	for _, c := range codes {
		if IsLikelyBarcode(c, barcodePrefixes) {
			barcodes = append(barcodes, c)
			continue
		}
		primary = append(primary, c)
	}
	return append(primary, barcodes...)
}
