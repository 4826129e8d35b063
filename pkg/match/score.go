package match

import "strings"

// combinedScore blends word-set overlap with character-level edit distance:
// 0.7 x Jaccard(word sets) + 0.3 x (1 - normalized Levenshtein). Word
// overlap dominates because the rows reorder and drop words far more often
// than they misspell them. maxEdit caps the edit-distance component: past
// that many edits the strings are considered character-wise unrelated and
// only word overlap counts.
func combinedScore(a, b string, maxEdit int) float64 {
	return 0.7*jaccard(a, b) + 0.3*levenshteinSimilarity(a, b, maxEdit)
}

// jaccard computes |A∩B| / |A∪B| over the whitespace-split word sets.
func jaccard(a, b string) float64 {
	wordsA := wordSet(a)
	wordsB := wordSet(b)
	if len(wordsA) == 0 && len(wordsB) == 0 {
		return 0
	}

	intersection := 0
	for w := range wordsA {
		if _, ok := wordsB[w]; ok {
			intersection++
		}
	}
	union := len(wordsA) + len(wordsB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func wordSet(s string) map[string]struct{} {
	fields := strings.Fields(strings.Trim(s, ", "))
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[strings.Trim(f, ",")] = struct{}{}
	}
	return set
}

// levenshteinSimilarity returns 1 - dist/maxLen, or 0 when the distance
// exceeds maxEdit (maxEdit <= 0 disables the cap).
func levenshteinSimilarity(a, b string, maxEdit int) float64 {
	if a == "" && b == "" {
		return 0
	}
	dist := levenshtein(a, b)
	if maxEdit > 0 && dist > maxEdit {
		return 0
	}
	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}
	if longest == 0 {
		return 0
	}
	return 1 - float64(dist)/float64(longest)
}

// levenshtein computes edit distance over runes with the classic
// two-row dynamic program.
func levenshtein(a, b string) int {
	ra := []rune(a)
	rb := []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min3(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}

// clamp01 bounds a score to [0, 1]; scores from the external search
// backend are not trusted to be pre-normalized.
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
