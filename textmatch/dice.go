package textmatch

// DiceSimilarity estimates similarity between two short names using
// character-bigram overlap: 2*|intersection| / (|bigramsA| + |bigramsB|).
// Both inputs are normalized first. Empty-or-equal inputs score 1; a blank
// side therefore disables rather than trips downstream mismatch checks.
func DiceSimilarity(a, b string) float64 {
	na := Normalize(a)
	nb := Normalize(b)
	if na == nb || na == "" || nb == "" {
		return 1
	}

	bigramsA := bigrams(na)
	bigramsB := bigrams(nb)
	if len(bigramsA) == 0 || len(bigramsB) == 0 {
		return 0
	}

	counts := make(map[string]int, len(bigramsA))
	for _, bg := range bigramsA {
		counts[bg]++
	}
	intersection := 0
	for _, bg := range bigramsB {
		if counts[bg] > 0 {
			counts[bg]--
			intersection++
		}
	}

	return 2 * float64(intersection) / float64(len(bigramsA)+len(bigramsB))
}

func bigrams(s string) []string {
	runes := []rune(s)
	if len(runes) < 2 {
		return nil
	}
	out := make([]string, 0, len(runes)-1)
	for i := 0; i+1 < len(runes); i++ {
		out = append(out, string(runes[i:i+2]))
	}
	return out
}
