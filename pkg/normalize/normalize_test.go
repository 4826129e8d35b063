package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeCollege(t *testing.T) {
	n := New()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "abbreviation expansion",
			input: "SMS MEDICAL COLLEGE, JAIPUR, RAJASTHAN",
			want:  "SAWAI MAN SINGH MEDICAL COLLEGE JAIPUR RAJASTHAN",
		},
		{
			name:  "govt expansion with messy spacing",
			input: "  GOVT   MEDICAL  COLLEGE ,KOTA",
			want:  "GOVERNMENT MEDICAL COLLEGE KOTA",
		},
		{
			name:  "already expanded form unchanged",
			input: "GOVERNMENT MEDICAL COLLEGE KOTA",
			want:  "GOVERNMENT MEDICAL COLLEGE KOTA",
		},
		{
			name:  "typo corrected after expansion",
			input: "OSMANIA MEDICAL COLLGE",
			want:  "OSMANIA MEDICAL COLLEGE",
		},
		{
			name:  "lowercase input",
			input: "govt medical college, kota",
			want:  "GOVERNMENT MEDICAL COLLEGE KOTA",
		},
		{
			name:  "hyphens and dots become spaces",
			input: "B.J. MEDICAL COLLEGE",
			want:  "B J MEDICAL COLLEGE",
		},
		{
			name:  "diacritics stripped",
			input: "KÉRALA INST OF MEDICAL SCIENCES",
			want:  "KERALA INSTITUTE OF MEDICAL SCIENCES",
		},
		{
			name:  "empty input",
			input: "",
			want:  "",
		},
		{
			name:  "punctuation only",
			input: "!!!",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, n.Normalize(tt.input, KindCollege))
		})
	}
}

func TestNormalizeCourseDoesNotUseCollegeAbbreviations(t *testing.T) {
	n := New()

	// MS is a course abbreviation, never expanded in a college name.
	assert.Equal(t, "MS RAMAIAH MEDICAL COLLEGE", n.Normalize("MS RAMAIAH MEDICAL COLLEGE", KindCollege))
	assert.Equal(t, "MASTER OF SURGERY (GENERAL SURGERY)", n.Normalize("MS (GENERAL SURGERY)", KindCourse))
}

func TestNormalizeIdempotent(t *testing.T) {
	n := New()

	inputs := []string{
		"SMS MEDICAL COLLEGE, JAIPUR",
		"GOVT MEDICAL COLLEGE, KOTA",
		"govt. medical college - kota",
		"OSMANIA MEDICAL COLLGE",
		"ESIC MODEL HOSP",
		"M.D. (GENERAL MEDICINE)",
		"ALL INDIA INST OF MEDICAL SCIENCES, NEW DELHI",
		"",
		"   ",
		"!!!,,,///",
		"KÉRALA UNIV",
	}

	for _, kind := range []Kind{KindCollege, KindCourse, KindState, KindCategory, KindQuota, KindAddress} {
		for _, input := range inputs {
			once := n.Normalize(input, kind)
			twice := n.Normalize(once, kind)
			require.Equal(t, once, twice, "normalize not idempotent for %q kind %s", input, kind)
		}
	}
}

func TestConvergentForms(t *testing.T) {
	n := New()

	// Comma and non-comma spellings of the same college must reach the
	// same normal form and therefore the same index key.
	a := n.Normalize("GOVT MEDICAL COLLEGE, KOTA", KindCollege)
	b := n.Normalize("GOVERNMENT MEDICAL COLLEGE KOTA", KindCollege)
	assert.Equal(t, a, b)
	assert.Equal(t, "GOVERNMENT MEDICAL COLLEGE KOTA", a)
}

func TestFold(t *testing.T) {
	assert.Equal(t, "A B C", Fold("  a   b\tc "))
	assert.Equal(t, "", Fold("   "))
}

func TestPrimarySecondaryName(t *testing.T) {
	assert.Equal(t, "KING GEORGE MEDICAL UNIVERSITY", PrimaryName("KING GEORGE MEDICAL UNIVERSITY (FORMERLY KGMC)"))
	assert.Equal(t, "KGMC", SecondaryName("KING GEORGE MEDICAL UNIVERSITY (FORMERLY KGMC)"))
	assert.Equal(t, "KGMC", SecondaryName("KING GEORGE MEDICAL UNIVERSITY (FORMERLY KNOWN AS KGMC)"))
	assert.Equal(t, "MADRAS MEDICAL COLLEGE", SecondaryName("CHENNAI MEDICAL COLLEGE (ERSTWHILE MADRAS MEDICAL COLLEGE)"))
	assert.Equal(t, "PLAIN NAME", PrimaryName("PLAIN NAME"))
	assert.Equal(t, "", SecondaryName("PLAIN NAME"))
	assert.Equal(t, "", SecondaryName("BROKEN (BRACKET"))
}

func TestAddressKeywords(t *testing.T) {
	kws := AddressKeywords("Sector 16-A, Near City Hospital, Jaipur, 302001")
	assert.Equal(t, []string{"16-A", "CITY", "HOSPITAL", "JAIPUR", "NEAR", "SECTOR"}, kws)

	assert.Nil(t, AddressKeywords(""))
	assert.Nil(t, AddressKeywords("12 34 56"))
}

func TestCompositeKey(t *testing.T) {
	key := CompositeKey("SAWAI MAN SINGH MEDICAL COLLEGE", "JLN Marg, Jaipur")
	assert.Equal(t, "SAWAI MAN SINGH MEDICAL COLLEGE, JAIPUR JLN MARG", key)

	assert.Equal(t, "X COLLEGE", CompositeKey("X COLLEGE", ""))
	assert.Equal(t, "", CompositeKey("", "anywhere"))
}
