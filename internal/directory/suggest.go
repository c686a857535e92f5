package directory

import "strings"

// Suggest returns the closest candidate to a misheard name, or "" when
// nothing is close enough to offer. Voice transcription mangles names, so
// matching is deliberately loose: normalized containment first, then shared
// leading words.
func Suggest(heard string, candidates []string) string {
	norm := normalizeName(heard)
	if norm == "" {
		return ""
	}

	for _, c := range candidates {
		cn := normalizeName(c)
		if strings.Contains(cn, norm) || strings.Contains(norm, cn) {
			return c
		}
	}

	heardWords := strings.Fields(norm)
	best := ""
	bestShared := 0
	for _, c := range candidates {
		shared := sharedWords(heardWords, strings.Fields(normalizeName(c)))
		if shared > bestShared {
			bestShared = shared
			best = c
		}
	}
	return best
}

func sharedWords(a, b []string) int {
	set := make(map[string]struct{}, len(a))
	for _, w := range a {
		set[w] = struct{}{}
	}
	n := 0
	for _, w := range b {
		if _, ok := set[w]; ok {
			n++
		}
	}
	return n
}

func normalizeName(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
