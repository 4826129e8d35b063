// Package masterdata provides the canonical, versioned registry of states,
// colleges, courses, categories and quotas that every import must resolve
// against. The registry is loaded once per process (or per batch run),
// indexed for O(1) exact lookup and hierarchical narrowing, and treated as
// immutable while a batch is running. New entities approved by review are
// merged between batches via ApplyPending.
package masterdata

import (
	"github.com/agentstation/utc"
)

// EntityType discriminates the master entity variants. The matcher and the
// review queue switch exhaustively over this closed set.
type EntityType string

const (
	// EntityTypeState is a state or union territory.
	EntityTypeState EntityType = "state"
	// EntityTypeCollege is a medical, dental, or DNB institution.
	EntityTypeCollege EntityType = "college"
	// EntityTypeCourse is a UG or PG course.
	EntityTypeCourse EntityType = "course"
	// EntityTypeCategory is a reservation category.
	EntityTypeCategory EntityType = "category"
	// EntityTypeQuota is a seat quota.
	EntityTypeQuota EntityType = "quota"
)

// String returns the string representation of an EntityType.
func (t EntityType) String() string { return string(t) }

// Valid reports whether t is one of the known entity types.
func (t EntityType) Valid() bool {
	switch t {
	case EntityTypeState, EntityTypeCollege, EntityTypeCourse, EntityTypeCategory, EntityTypeQuota:
		return true
	}
	return false
}

// Management classifies who runs a college.
type Management string

// Management values.
const (
	ManagementGovernment  Management = "GOVERNMENT"
	ManagementPrivate     Management = "PRIVATE"
	ManagementTrust       Management = "TRUST"
	ManagementCorporation Management = "CORPORATION"
)

// CourseDomain is the stream a course belongs to.
type CourseDomain string

// CourseDomain values.
const (
	DomainMedical CourseDomain = "MEDICAL"
	DomainDental  CourseDomain = "DENTAL"
	DomainDNB     CourseDomain = "DNB"
)

// CourseLevel is the degree level of a course.
type CourseLevel string

// CourseLevel values.
const (
	LevelUG CourseLevel = "UG"
	LevelPG CourseLevel = "PG"
)

// Meta carries the fields common to every master entity. Version starts at
// 1 and increments on every mutation; entities are never deleted, only
// marked inactive.
type Meta struct {
	ID             int64    `json:"id" yaml:"id"`
	Name           string   `json:"name" yaml:"name"`
	NormalizedName string   `json:"normalized_name,omitempty" yaml:"normalized_name,omitempty"` // Derived at load; cached
	Version        int      `json:"version" yaml:"version"`
	IsActive       bool     `json:"is_active" yaml:"is_active"`
	CreatedBy      string   `json:"created_by,omitempty" yaml:"created_by,omitempty"`
	UpdatedBy      string   `json:"updated_by,omitempty" yaml:"updated_by,omitempty"`
	CreatedAt      utc.Time `json:"created_at,omitempty" yaml:"created_at,omitempty"`
	UpdatedAt      utc.Time `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
}

// State is a state or union territory master record.
type State struct {
	Meta `yaml:",inline"`
}

// College is an institution master record. StateID is an owning relation to
// the State; AlternateNames are extra spellings used only for matching.
type College struct {
	Meta           `yaml:",inline"`
	StateID        int64      `json:"state_id" yaml:"state_id"`
	Management     Management `json:"management,omitempty" yaml:"management,omitempty"`
	Location       string     `json:"location,omitempty" yaml:"location,omitempty"`
	Address        string     `json:"address,omitempty" yaml:"address,omitempty"`
	Domain         CourseDomain `json:"domain,omitempty" yaml:"domain,omitempty"`
	AlternateNames []string   `json:"alternate_names,omitempty" yaml:"alternate_names,omitempty"`
	CourseIDs      []int64    `json:"course_ids,omitempty" yaml:"course_ids,omitempty"` // Courses offered
}

// Course is a course master record. ParentCourseID is a one-directional
// reference from a PG specialization to its UG course; the parent never
// points back.
type Course struct {
	Meta           `yaml:",inline"`
	Domain         CourseDomain `json:"domain" yaml:"domain"`
	Level          CourseLevel  `json:"level" yaml:"level"`
	DurationYears  int          `json:"duration_years,omitempty" yaml:"duration_years,omitempty"`
	ParentCourseID int64        `json:"parent_course_id,omitempty" yaml:"parent_course_id,omitempty"`
}

// Category is a reservation category master record.
type Category struct {
	Meta `yaml:",inline"`
}

// Quota is a seat quota master record.
type Quota struct {
	Meta `yaml:",inline"`
}

// Entity is the closed union over the master entity variants.
type Entity interface {
	EntityType() EntityType
	EntityMeta() *Meta
	Ref() Ref
}

// EntityType implementations for each variant.

// EntityType returns EntityTypeState.
func (s *State) EntityType() EntityType { return EntityTypeState }

// EntityType returns EntityTypeCollege.
func (c *College) EntityType() EntityType { return EntityTypeCollege }

// EntityType returns EntityTypeCourse.
func (c *Course) EntityType() EntityType { return EntityTypeCourse }

// EntityType returns EntityTypeCategory.
func (c *Category) EntityType() EntityType { return EntityTypeCategory }

// EntityType returns EntityTypeQuota.
func (q *Quota) EntityType() EntityType { return EntityTypeQuota }

// EntityMeta returns the shared metadata block.
func (m *Meta) EntityMeta() *Meta { return m }

// Ref is a lightweight handle to a master entity, safe to copy across
// matcher workers.
type Ref struct {
	Type           EntityType
	ID             int64
	Name           string
	NormalizedName string
}

// Ref returns a handle for the state.
func (s *State) Ref() Ref {
	return Ref{Type: EntityTypeState, ID: s.ID, Name: s.Name, NormalizedName: s.NormalizedName}
}

// Ref returns a handle for the college.
func (c *College) Ref() Ref {
	return Ref{Type: EntityTypeCollege, ID: c.ID, Name: c.Name, NormalizedName: c.NormalizedName}
}

// Ref returns a handle for the course.
func (c *Course) Ref() Ref {
	return Ref{Type: EntityTypeCourse, ID: c.ID, Name: c.Name, NormalizedName: c.NormalizedName}
}

// Ref returns a handle for the category.
func (c *Category) Ref() Ref {
	return Ref{Type: EntityTypeCategory, ID: c.ID, Name: c.Name, NormalizedName: c.NormalizedName}
}

// Ref returns a handle for the quota.
func (q *Quota) Ref() Ref {
	return Ref{Type: EntityTypeQuota, ID: q.ID, Name: q.Name, NormalizedName: q.NormalizedName}
}

// Compile-time union checks.
var (
	_ Entity = (*State)(nil)
	_ Entity = (*College)(nil)
	_ Entity = (*Course)(nil)
	_ Entity = (*Category)(nil)
	_ Entity = (*Quota)(nil)
)
