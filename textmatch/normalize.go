package textmatch

import "strings"

// Normalize lowercases, blanks anything outside [a-z0-9 ] (non-ASCII included)
// and collapses whitespace. Alias keys and search text go through the same
// transform so reads and writes always agree. Idempotent.
func Normalize(text string) string {
	lowered := strings.ToLower(text)
	mapped := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= '0' && r <= '9':
			return r
		default:
			return ' '
		}
	}, lowered)
	return strings.Join(strings.Fields(mapped), " ")
}

// ExtractStoreLineCode pulls a leading store-internal SKU off a receipt line.
// Many retail receipts prefix each line with one, and it is a stronger match
// key than the fuzzy product description. Returns "" when the first token does
// not look like a code.
func ExtractStoreLineCode(rawText string) string {
	normalized := Normalize(rawText)
	tokens := strings.Fields(normalized)
	if len(tokens) < 2 {
		return ""
	}

	code := tokens[0]
	if len(code) < 4 || len(code) > 16 {
		return ""
	}
	hasDigit := false
	for _, r := range code {
		switch {
		case r >= '0' && r <= '9':
			hasDigit = true
		case r >= 'a' && r <= 'z':
		default:
			return ""
		}
	}
	if !hasDigit {
		return ""
	}

	// The remainder must carry at least one letter, otherwise the "code" is
	// likely a quantity or price misread from a purely numeric line.
	remainderHasAlpha := false
	for _, tok := range tokens[1:] {
		for _, r := range tok {
			if r >= 'a' && r <= 'z' {
				remainderHasAlpha = true
				break
			}
		}
		if remainderHasAlpha {
			break
		}
	}
	if !remainderHasAlpha {
		return ""
	}

	return code
}
