package normalize

import (
	"sort"
	"strings"
)

// AddressKeywords extracts the set of meaningful location tokens from an
// address: words of three or more characters that are not purely numeric
// (house numbers, PIN codes). Directional and structural words (EAST,
// SECTOR, DISTRICT) are kept because they distinguish real places. The
// result is sorted for stable composite keys.
func AddressKeywords(address string) []string {
	s := Fold(address)
	if s == "" {
		return nil
	}

	seen := make(map[string]struct{})
	for _, part := range strings.Split(s, ",") {
		for _, word := range strings.Fields(part) {
			word = strings.Trim(word, ".,;:()[]{}")
			if len(word) < 3 {
				continue
			}
			if isNumeric(word) {
				continue
			}
			seen[word] = struct{}{}
		}
	}

	if len(seen) == 0 {
		return nil
	}
	keywords := make([]string, 0, len(seen))
	for w := range seen {
		keywords = append(keywords, w)
	}
	sort.Strings(keywords)
	return keywords
}

// CompositeKey builds the "NAME, ADDRESS_KEYWORDS" key the matcher's
// composite pass indexes on. With no usable address tokens the key is the
// name alone.
func CompositeKey(normalizedName, address string) string {
	name := strings.TrimSpace(normalizedName)
	if name == "" {
		return ""
	}
	keywords := AddressKeywords(address)
	if len(keywords) == 0 {
		return name
	}
	return name + ", " + strings.Join(keywords, " ")
}

// isNumeric reports whether the word is digits, ignoring - and / joiners.
func isNumeric(word string) bool {
	stripped := strings.NewReplacer("-", "", "/", "").Replace(word)
	if stripped == "" {
		return false
	}
	for _, r := range stripped {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
