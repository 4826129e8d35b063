package masterdata

import "testing"

// NewTestRegistry builds a small registry with representative master data:
// multi-campus same-name colleges, alternate names, and a PG course with a
// UG parent. Used across the matcher and pipeline tests.
func NewTestRegistry(t testing.TB) *Registry {
	t.Helper()

	r, err := New()
	if err != nil {
		t.Fatalf("failed to create registry: %v", err)
	}

	entities := []Entity{
		&State{Meta: Meta{ID: 1, Name: "RAJASTHAN"}},
		&State{Meta: Meta{ID: 2, Name: "MAHARASHTRA"}},
		&State{Meta: Meta{ID: 3, Name: "KARNATAKA"}},

		&Course{Meta: Meta{ID: 1, Name: "MBBS"}, Domain: DomainMedical, Level: LevelUG, DurationYears: 5},
		&Course{Meta: Meta{ID: 2, Name: "MD (GENERAL MEDICINE)"}, Domain: DomainMedical, Level: LevelPG, DurationYears: 3, ParentCourseID: 1},
		&Course{Meta: Meta{ID: 3, Name: "BDS"}, Domain: DomainDental, Level: LevelUG, DurationYears: 5},

		&College{
			Meta:       Meta{ID: 1, Name: "SAWAI MAN SINGH MEDICAL COLLEGE"},
			StateID:    1,
			Management: ManagementGovernment,
			Domain:     DomainMedical,
			Location:   "JAIPUR",
			Address:    "JLN MARG, JAIPUR",
			CourseIDs:  []int64{1, 2},
		},
		&College{
			Meta:       Meta{ID: 2, Name: "GOVERNMENT MEDICAL COLLEGE"},
			StateID:    1,
			Management: ManagementGovernment,
			Domain:     DomainMedical,
			Location:   "KOTA",
			Address:    "RANGBARI ROAD, KOTA",
			CourseIDs:  []int64{1},
		},
		&College{
			Meta:       Meta{ID: 3, Name: "GOVERNMENT MEDICAL COLLEGE"},
			StateID:    2,
			Management: ManagementGovernment,
			Domain:     DomainMedical,
			Location:   "AURANGABAD",
			Address:    "PANCHAKKI ROAD, AURANGABAD",
			CourseIDs:  []int64{1},
		},
		&College{
			Meta:           Meta{ID: 4, Name: "GRANT MEDICAL COLLEGE"},
			StateID:        2,
			Management:     ManagementGovernment,
			Domain:         DomainMedical,
			Location:       "MUMBAI",
			Address:        "BYCULLA, MUMBAI",
			AlternateNames: []string{"GRANT GOVT MEDICAL COLLEGE, MUMBAI"},
			CourseIDs:      []int64{1, 2},
		},
		&College{
			Meta:       Meta{ID: 5, Name: "GOVERNMENT DENTAL COLLEGE"},
			StateID:    1,
			Management: ManagementGovernment,
			Domain:     DomainDental,
			Location:   "JAIPUR",
			Address:    "SUBHASH NAGAR, JAIPUR",
			CourseIDs:  []int64{3},
		},

		&Category{Meta: Meta{ID: 1, Name: "GENERAL"}},
		&Category{Meta: Meta{ID: 2, Name: "OBC"}},
		&Category{Meta: Meta{ID: 3, Name: "SC"}},
		&Category{Meta: Meta{ID: 4, Name: "ST"}},
		&Category{Meta: Meta{ID: 5, Name: "EWS"}},

		&Quota{Meta: Meta{ID: 1, Name: "ALL INDIA QUOTA"}},
		&Quota{Meta: Meta{ID: 2, Name: "STATE QUOTA"}},
		&Quota{Meta: Meta{ID: 3, Name: "MANAGEMENT"}},
		&Quota{Meta: Meta{ID: 4, Name: "NRI"}},
	}

	for _, e := range entities {
		if _, err := r.Add(e); err != nil {
			t.Fatalf("failed to add %s %q: %v", e.EntityType(), e.EntityMeta().Name, err)
		}
	}

	return r
}
