package ocr

import (
	"regexp"
	"strings"
	"unicode"

	"ordersbot/internal/ledger"
)

var (
	groupedAmount = regexp.MustCompile(`^\d{1,3}(?:[.,]\d{3})+$`)
	plainAmount   = regexp.MustCompile(`^\d+$`)
	currencyTail  = regexp.MustCompile(`(?i)(vnd|vnđ|đồng|đ|₫)$`)
	currencyWord  = regexp.MustCompile(`(?i)^(vnd|vnđ|đồng|đ|₫)$`)
)

// ExtractAmounts returns the money amounts found in receipt text. A token counts when it has
// thousands separators ("250.000", "1,250,000") or a currency marker ("250000đ", "250000 VND").
func ExtractAmounts(text string) []int64 {
	tokens := strings.FieldsFunc(text, func(r rune) bool {
		return unicode.IsSpace(r) || r == ':' || r == '(' || r == ')' || r == '|'
	})

	var out []int64
	for i, tok := range tokens {
		tok = strings.TrimLeft(tok, "+-")
		tok = strings.TrimRight(tok, ".,;")

		hasCurrency := false
		if loc := currencyTail.FindStringIndex(tok); loc != nil && loc[0] > 0 {
			tok = tok[:loc[0]]
			hasCurrency = true
		}
		if i+1 < len(tokens) && currencyWord.MatchString(tokens[i+1]) {
			hasCurrency = true
		}

		if !groupedAmount.MatchString(tok) && !(hasCurrency && plainAmount.MatchString(tok)) {
			continue
		}
		amount, err := ledger.ParseAmount(tok)
		if err != nil || amount <= 0 {
			continue
		}
		out = append(out, amount)
	}
	return out
}

// LargestAmount returns the largest amount in text, or 0 when there is none.
func LargestAmount(text string) int64 {
	var largest int64
	for _, a := range ExtractAmounts(text) {
		if a > largest {
			largest = a
		}
	}
	return largest
}
