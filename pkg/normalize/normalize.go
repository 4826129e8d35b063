// Package normalize canonicalizes free-text names from human-typed
// spreadsheet rows. Normalization is deterministic and idempotent: applying
// it twice always yields the same string as applying it once. Every matcher
// comparison and registry index key goes through this package, so the rule
// order is load-bearing: case folding and whitespace first, punctuation
// stripping second, abbreviation expansion third, typo correction last (so
// expanded forms can still be corrected).
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Kind selects the rule table for a dimension. College names and course
// names share structure but not abbreviations: "MS" is MASTER OF SURGERY in
// a course but part of a proper name in "MS RAMAIAH MEDICAL COLLEGE".
type Kind int

const (
	// KindCollege normalizes college/institute names.
	KindCollege Kind = iota
	// KindCourse normalizes course names.
	KindCourse
	// KindState normalizes state names.
	KindState
	// KindCategory normalizes reservation category names.
	KindCategory
	// KindQuota normalizes seat quota names.
	KindQuota
	// KindAddress normalizes address/locality text.
	KindAddress
)

// String returns the lowercase name of the kind, used in log fields.
func (k Kind) String() string {
	switch k {
	case KindCollege:
		return "college"
	case KindCourse:
		return "course"
	case KindState:
		return "state"
	case KindCategory:
		return "category"
	case KindQuota:
		return "quota"
	case KindAddress:
		return "address"
	default:
		return "unknown"
	}
}

// replacement is a known-typo substring correction.
type replacement struct {
	from string
	to   string
}

// Normalizer applies the static rule tables. The zero value is not usable;
// construct with New.
type Normalizer struct {
	abbreviations map[Kind]map[string]string
	typos         []replacement
	stripMarks    transform.Transformer
}

// New returns a Normalizer with the built-in rule tables.
func New() *Normalizer {
	return &Normalizer{
		abbreviations: map[Kind]map[string]string{
			KindCollege: {
				"GOVT": "GOVERNMENT",
				"GOV":  "GOVERNMENT",
				"SMS":  "SAWAI MAN SINGH",
				"ESI":  "EMPLOYEES STATE INSURANCE",
				"ESIC": "EMPLOYEES STATE INSURANCE CORPORATION",
				"HOSP": "HOSPITAL",
				"SSH":  "SUPER SPECIALITY HOSPITAL",
				"SDH":  "SUB DISTRICT HOSPITAL",
				"MED":  "MEDICAL",
				"COLL": "COLLEGE",
				"INST": "INSTITUTE",
				"UNIV": "UNIVERSITY",
			},
			KindCourse: {
				"PG":    "POST GRADUATE",
				"UG":    "UNDER GRADUATE",
				"MD":    "DOCTOR OF MEDICINE",
				"DM":    "DOCTOR OF MEDICINE",
				"MS":    "MASTER OF SURGERY",
				"MCH":   "MASTER OF CHIRURGICAL",
				"OBST":  "OBSTETRICS",
				"GYNAE": "GYNAECOLOGY",
			},
			KindState: {
				"UP": "UTTAR PRADESH",
				"MP": "MADHYA PRADESH",
				"TN": "TAMIL NADU",
				"WB": "WEST BENGAL",
				"HP": "HIMACHAL PRADESH",
				"AP": "ANDHRA PRADESH",
			},
			KindCategory: {
				"GEN": "GENERAL",
				"UR":  "GENERAL",
			},
			KindQuota: {
				"AIQ":  "ALL INDIA QUOTA",
				"SQ":   "STATE QUOTA",
				"MGMT": "MANAGEMENT",
			},
			KindAddress: {
				"DIST": "DISTRICT",
				"RD":   "ROAD",
				"NR":   "NEAR",
			},
		},
		typos: []replacement{
			{"COLLGE", "COLLEGE"},
			{"COLLEG ", "COLLEGE "},
			{"INSTITUE", "INSTITUTE"},
			{"INSTUTE", "INSTITUTE"},
			{"UNIVERSTY", "UNIVERSITY"},
			{"HOSPTAL", "HOSPITAL"},
			{"MEDICSL", "MEDICAL"},
			{"GOVERMENT", "GOVERNMENT"},
			{"GOVERNEMENT", "GOVERNMENT"},
		},
		stripMarks: transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC),
	}
}

// Normalize canonicalizes text for the given kind. Unknown or empty input
// degrades to the case/whitespace-normalized form; it never fails.
func (n *Normalizer) Normalize(text string, kind Kind) string {
	s := Fold(n.stripDiacritics(text))
	if s == "" {
		return ""
	}

	s = stripPunctuation(s)
	s = n.expandAbbreviations(s, kind)
	s = n.correctTypos(s)

	// Expansion and correction can introduce doubled spaces.
	return Fold(s)
}

// Fold applies only the case and whitespace rules: upper-case, collapse
// interior whitespace runs, trim. This is the graceful-degradation form
// and is idempotent by construction.
func Fold(text string) string {
	return strings.Join(strings.Fields(strings.ToUpper(text)), " ")
}

// stripDiacritics removes combining marks so "KÉRALA" and "KERALA" compare
// equal.
func (n *Normalizer) stripDiacritics(s string) string {
	out, _, err := transform.String(n.stripMarks, s)
	if err != nil {
		return s
	}
	return out
}

// stripPunctuation removes disallowed punctuation. Commas, hyphens and
// dots become spaces so "X, Y", "X-Y" and "X Y" converge on one normal
// form; brackets and slashes survive because the rows use them to carry
// secondary names ("X (FORMERLY Y)") and alternatives ("MD/MS").
func stripPunctuation(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '(', r == ')', r == '/':
			b.WriteRune(r)
		case r == ',', r == '-', r == '.':
			b.WriteRune(' ')
		}
	}
	return b.String()
}

// expandAbbreviations replaces whole tokens using the kind's dictionary.
// Token-wise replacement keeps the operation idempotent as long as no
// expansion output token is itself a dictionary key, which the tables
// guarantee.
func (n *Normalizer) expandAbbreviations(s string, kind Kind) string {
	dict := n.abbreviations[kind]
	if len(dict) == 0 {
		return s
	}

	fields := strings.Fields(s)
	for i, f := range fields {
		if exp, ok := dict[f]; ok {
			fields[i] = exp
		}
	}
	return strings.Join(fields, " ")
}

// correctTypos applies the fixed substring-replacement table. Runs after
// abbreviation expansion so an expanded form can still be corrected.
func (n *Normalizer) correctTypos(s string) string {
	for _, r := range n.typos {
		s = strings.ReplaceAll(s, r.from, r.to)
	}
	return s
}

// PrimaryName returns the portion of a name before the first bracket, used
// as the main matching form for names like "X COLLEGE (FORMERLY Y)".
func PrimaryName(text string) string {
	if i := strings.IndexByte(text, '('); i >= 0 {
		return strings.TrimSpace(text[:i])
	}
	return strings.TrimSpace(text)
}

// SecondaryName returns the bracketed portion of a name, if any. The
// registry registers it as an alternate-name alias candidate.
func SecondaryName(text string) string {
	open := strings.IndexByte(text, '(')
	if open < 0 {
		return ""
	}
	close := strings.IndexByte(text[open:], ')')
	if close < 0 {
		return ""
	}
	sec := strings.TrimSpace(text[open+1 : open+close])
	// Longest prefix first so "FORMERLY KNOWN AS Y" yields "Y", not
	// "KNOWN AS Y".
	for _, prefix := range []string{"FORMERLY KNOWN AS ", "FORMERLY ", "ERSTWHILE "} {
		if strings.HasPrefix(sec, prefix) {
			sec = strings.TrimPrefix(sec, prefix)
			break
		}
	}
	return strings.TrimSpace(sec)
}
