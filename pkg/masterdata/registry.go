package masterdata

import (
	"fmt"
	"sort"
	"sync"

	"github.com/agentstation/utc"

	"github.com/admitkit/medmatch/pkg/errors"
	"github.com/admitkit/medmatch/pkg/normalize"
)

// Registry is the load-once, read-many indexed view of all master entities.
// It is safe to share read-only across matcher workers; writes (Add,
// ApplyPending) must only happen between batch runs.
type Registry struct {
	mu   sync.RWMutex
	norm *normalize.Normalizer

	states     map[int64]*State
	colleges   map[int64]*College
	courses    map[int64]*Course
	categories map[int64]*Category
	quotas     map[int64]*Quota

	// byName maps normalized name (and known alternate names) to entity ids
	// per type, for O(1) exact and alias lookup. Only colleges may share a
	// normalized name (multi-campus institutions); every other type is
	// unique by name.
	byName map[EntityType]map[string][]int64

	// composite maps the "NAME, ADDRESS_KEYWORDS" college key to college id.
	composite map[string]int64

	// stateColleges and courseColleges support hierarchical narrowing.
	stateColleges  map[int64][]int64
	courseColleges map[int64]map[int64]struct{}

	// addressNorm caches each college's normalized address+location text.
	addressNorm map[int64]string

	nextID map[EntityType]int64
}

// New creates a registry. With a filesystem option the master data files
// are loaded immediately; without one the registry starts empty (used by
// tests and by review-approval flows that add entities programmatically).
func New(opts ...Option) (*Registry, error) {
	cfg := registryDefaults().apply(opts...)

	r := &Registry{
		norm:           normalize.New(),
		states:         make(map[int64]*State),
		colleges:       make(map[int64]*College),
		courses:        make(map[int64]*Course),
		categories:     make(map[int64]*Category),
		quotas:         make(map[int64]*Quota),
		byName:         make(map[EntityType]map[string][]int64),
		composite:      make(map[string]int64),
		stateColleges:  make(map[int64][]int64),
		courseColleges: make(map[int64]map[int64]struct{}),
		addressNorm:    make(map[int64]string),
		nextID:         make(map[EntityType]int64),
	}
	for _, t := range []EntityType{EntityTypeState, EntityTypeCollege, EntityTypeCourse, EntityTypeCategory, EntityTypeQuota} {
		r.byName[t] = make(map[string][]int64)
	}

	if cfg.readFS != nil {
		if err := r.load(cfg.readFS); err != nil {
			return nil, errors.WrapRegistry(cfg.sourceName, err)
		}
	}

	return r, nil
}

// Normalizer returns the rule table shared with this registry's indexes.
// Matching must use the same normalizer the index keys were built with.
func (r *Registry) Normalizer() *normalize.Normalizer {
	return r.norm
}

// NormalizeKind maps an entity type to its normalization rule table. The
// matcher uses it so queries normalize with the same rules the index keys
// were built with.
func NormalizeKind(t EntityType) normalize.Kind {
	return kindFor(t)
}

// kindFor maps an entity type to its normalization rule table.
func kindFor(t EntityType) normalize.Kind {
	switch t {
	case EntityTypeCollege:
		return normalize.KindCollege
	case EntityTypeCourse:
		return normalize.KindCourse
	case EntityTypeState:
		return normalize.KindState
	case EntityTypeCategory:
		return normalize.KindCategory
	case EntityTypeQuota:
		return normalize.KindQuota
	default:
		return normalize.KindAddress
	}
}

// Add indexes a new master entity. The entity's ID is assigned when zero,
// NormalizedName is derived, and version defaults to 1. Add must not be
// called while a batch is running; the registry is read-only mid-batch.
func (r *Registry) Add(e Entity) (int64, error) {
	if e == nil {
		return 0, errors.New("entity cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.addLocked(e)
}

func (r *Registry) addLocked(e Entity) (int64, error) {
	m := e.EntityMeta()
	t := e.EntityType()

	if m.Name == "" {
		return 0, errors.NewValidationError("name", m.Name, "must not be empty")
	}
	if m.ID == 0 {
		m.ID = r.nextIDLocked(t)
	} else if m.ID > r.nextID[t] {
		r.nextID[t] = m.ID
	}
	if m.Version == 0 {
		m.Version = 1
	}
	m.IsActive = true
	m.NormalizedName = r.norm.Normalize(m.Name, kindFor(t))
	if m.CreatedAt.IsZero() {
		m.CreatedAt = utc.Now()
		m.UpdatedAt = m.CreatedAt
	}

	// Colleges may legitimately share a normalized name across campuses;
	// the composite key and the locality filter disambiguate them. Every
	// other type must be unique by name.
	if t != EntityTypeCollege {
		if ids := r.byName[t][m.NormalizedName]; len(ids) > 0 && ids[0] != m.ID {
			return 0, errors.WrapResource("add", t.String(), m.Name, errors.ErrAlreadyExists)
		}
	}

	switch v := e.(type) {
	case *State:
		r.states[m.ID] = v
	case *College:
		r.colleges[m.ID] = v
		r.indexCollegeLocked(v)
	case *Course:
		r.courses[m.ID] = v
	case *Category:
		r.categories[m.ID] = v
	case *Quota:
		r.quotas[m.ID] = v
	default:
		return 0, fmt.Errorf("unsupported entity type %T", e)
	}

	r.indexNamesLocked(t, m.ID, m.Name, m.NormalizedName)
	return m.ID, nil
}

// indexNamesLocked registers the full normalized name plus aliases: the
// portion before a bracket and the bracketed secondary name, so
// "X (FORMERLY Y)" is reachable as "X (FORMERLY Y)", "X" and "Y".
func (r *Registry) indexNamesLocked(t EntityType, id int64, rawName, normName string) {
	r.appendNameLocked(t, normName, id)

	if primary := normalize.PrimaryName(rawName); primary != rawName {
		if key := r.norm.Normalize(primary, kindFor(t)); key != "" && key != normName {
			r.appendNameLocked(t, key, id)
		}
	}
	if sec := normalize.SecondaryName(rawName); sec != "" {
		if key := r.norm.Normalize(sec, kindFor(t)); key != "" && key != normName {
			r.appendNameLocked(t, key, id)
		}
	}
}

func (r *Registry) appendNameLocked(t EntityType, key string, id int64) {
	for _, existing := range r.byName[t][key] {
		if existing == id {
			return
		}
	}
	r.byName[t][key] = append(r.byName[t][key], id)
}

func (r *Registry) indexCollegeLocked(c *College) {
	for _, alt := range c.AlternateNames {
		key := r.norm.Normalize(alt, normalize.KindCollege)
		if key == "" {
			continue
		}
		r.appendNameLocked(EntityTypeCollege, key, c.ID)
	}

	addr := r.norm.Normalize(c.Address+" "+c.Location, normalize.KindAddress)
	r.addressNorm[c.ID] = addr
	r.composite[normalize.CompositeKey(c.NormalizedName, addr)] = c.ID

	r.stateColleges[c.StateID] = append(r.stateColleges[c.StateID], c.ID)
	for _, courseID := range c.CourseIDs {
		set, ok := r.courseColleges[courseID]
		if !ok {
			set = make(map[int64]struct{})
			r.courseColleges[courseID] = set
		}
		set[c.ID] = struct{}{}
	}
}

func (r *Registry) nextIDLocked(t EntityType) int64 {
	r.nextID[t]++
	return r.nextID[t]
}

// ReserveID allocates the next entity id for a type without indexing
// anything. The audit store uses it to stamp entities created through
// review approval before they are merged by ApplyPending.
func (r *Registry) ReserveID(t EntityType) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.nextIDLocked(t)
}

// Update replaces the entity with the same id, rebuilding its name and
// hierarchy indexes. Like Add it must only be called between batch runs.
func (r *Registry) Update(e Entity) error {
	if e == nil {
		return errors.New("entity cannot be nil")
	}
	m := e.EntityMeta()
	t := e.EntityType()
	if m.ID == 0 {
		return errors.NewValidationError("id", "0", "must reference an existing entity")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.existsLocked(t, m.ID) {
		return errors.WrapResource("update", t.String(), m.Name, errors.ErrNotFound)
	}
	r.removeLocked(t, m.ID)
	_, err := r.addLocked(e)
	return err
}

func (r *Registry) existsLocked(t EntityType, id int64) bool {
	switch t {
	case EntityTypeState:
		_, ok := r.states[id]
		return ok
	case EntityTypeCollege:
		_, ok := r.colleges[id]
		return ok
	case EntityTypeCourse:
		_, ok := r.courses[id]
		return ok
	case EntityTypeCategory:
		_, ok := r.categories[id]
		return ok
	case EntityTypeQuota:
		_, ok := r.quotas[id]
		return ok
	}
	return false
}

// removeLocked drops an entity from the type map and every index that
// references its id.
func (r *Registry) removeLocked(t EntityType, id int64) {
	if t == EntityTypeCollege {
		if c, ok := r.colleges[id]; ok {
			r.stateColleges[c.StateID] = removeID(r.stateColleges[c.StateID], id)
			for _, courseID := range c.CourseIDs {
				delete(r.courseColleges[courseID], id)
			}
		}
		delete(r.addressNorm, id)
		for key, cid := range r.composite {
			if cid == id {
				delete(r.composite, key)
			}
		}
	}

	switch t {
	case EntityTypeState:
		delete(r.states, id)
	case EntityTypeCollege:
		delete(r.colleges, id)
	case EntityTypeCourse:
		delete(r.courses, id)
	case EntityTypeCategory:
		delete(r.categories, id)
	case EntityTypeQuota:
		delete(r.quotas, id)
	}

	for key, ids := range r.byName[t] {
		filtered := removeID(ids, id)
		if len(filtered) == 0 {
			delete(r.byName[t], key)
		} else {
			r.byName[t][key] = filtered
		}
	}
}

func removeID(ids []int64, id int64) []int64 {
	out := ids[:0:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

// LookupExact returns the single entity whose normalized name or alias
// equals the given normalized name. When several colleges share the name
// it reports no match; callers that need the full candidate list use
// LookupName.
func (r *Registry) LookupExact(t EntityType, normalizedName string) (Ref, bool) {
	refs := r.LookupName(t, normalizedName)
	if len(refs) != 1 {
		return Ref{}, false
	}
	return refs[0], true
}

// LookupName returns every active entity indexed under the normalized name.
func (r *Registry) LookupName(t EntityType, normalizedName string) []Ref {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.byName[t][normalizedName]
	refs := make([]Ref, 0, len(ids))
	for _, id := range ids {
		if ref, ok := r.refLocked(t, id); ok {
			refs = append(refs, ref)
		}
	}
	return refs
}

// LookupComposite returns the college indexed under the given composite
// "NAME, ADDRESS_KEYWORDS" key.
func (r *Registry) LookupComposite(key string) (Ref, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.composite[key]
	if !ok {
		return Ref{}, false
	}
	return r.refLocked(EntityTypeCollege, id)
}

// CandidatesByState returns refs for every college in the given state.
func (r *Registry) CandidatesByState(stateID int64) []Ref {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.stateColleges[stateID]
	refs := make([]Ref, 0, len(ids))
	for _, id := range ids {
		if c, ok := r.colleges[id]; ok && c.IsActive {
			refs = append(refs, c.Ref())
		}
	}
	return refs
}

// CandidatesByCourse returns the set of college ids offering the course.
func (r *Registry) CandidatesByCourse(courseID int64) map[int64]struct{} {
	r.mu.RLock()
	defer r.mu.RUnlock()

	src := r.courseColleges[courseID]
	out := make(map[int64]struct{}, len(src))
	for id := range src {
		out[id] = struct{}{}
	}
	return out
}

// All returns refs for every active entity of the given type, ordered by id.
func (r *Registry) All(t EntityType) []Ref {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var refs []Ref
	switch t {
	case EntityTypeState:
		for _, e := range r.states {
			if e.IsActive {
				refs = append(refs, e.Ref())
			}
		}
	case EntityTypeCollege:
		for _, e := range r.colleges {
			if e.IsActive {
				refs = append(refs, e.Ref())
			}
		}
	case EntityTypeCourse:
		for _, e := range r.courses {
			if e.IsActive {
				refs = append(refs, e.Ref())
			}
		}
	case EntityTypeCategory:
		for _, e := range r.categories {
			if e.IsActive {
				refs = append(refs, e.Ref())
			}
		}
	case EntityTypeQuota:
		for _, e := range r.quotas {
			if e.IsActive {
				refs = append(refs, e.Ref())
			}
		}
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].ID < refs[j].ID })
	return refs
}

// State returns a copy of the state with the given id.
func (r *Registry) State(id int64) (State, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if s, ok := r.states[id]; ok {
		return *s, nil
	}
	return State{}, errors.NewNotFoundError(EntityTypeState.String(), fmt.Sprint(id))
}

// College returns a copy of the college with the given id.
func (r *Registry) College(id int64) (College, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if c, ok := r.colleges[id]; ok {
		return *c, nil
	}
	return College{}, errors.NewNotFoundError(EntityTypeCollege.String(), fmt.Sprint(id))
}

// Course returns a copy of the course with the given id.
func (r *Registry) Course(id int64) (Course, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if c, ok := r.courses[id]; ok {
		return *c, nil
	}
	return Course{}, errors.NewNotFoundError(EntityTypeCourse.String(), fmt.Sprint(id))
}

// Entity returns a copy of the entity with the given type and id. The
// returned value is safe to mutate; it shares no memory with the registry
// aside from slice fields, which callers must not modify.
func (r *Registry) Entity(t EntityType, id int64) (Entity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	switch t {
	case EntityTypeState:
		if s, ok := r.states[id]; ok {
			c := *s
			return &c, nil
		}
	case EntityTypeCollege:
		if v, ok := r.colleges[id]; ok {
			c := *v
			return &c, nil
		}
	case EntityTypeCourse:
		if v, ok := r.courses[id]; ok {
			c := *v
			return &c, nil
		}
	case EntityTypeCategory:
		if v, ok := r.categories[id]; ok {
			c := *v
			return &c, nil
		}
	case EntityTypeQuota:
		if v, ok := r.quotas[id]; ok {
			c := *v
			return &c, nil
		}
	}
	return nil, errors.NewNotFoundError(t.String(), fmt.Sprint(id))
}

// NormalizedAddress returns the cached normalized address+location text for
// a college, used by the locality filter.
func (r *Registry) NormalizedAddress(collegeID int64) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.addressNorm[collegeID]
}

// ApplyPending merges entities created by review approval into the indexes.
// Call only between batch runs; the registry must not change mid-batch.
func (r *Registry) ApplyPending(entities []Entity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range entities {
		if _, err := r.addLocked(e); err != nil {
			return err
		}
	}
	return nil
}

// Stats reports per-type entity counts.
func (r *Registry) Stats() map[EntityType]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return map[EntityType]int{
		EntityTypeState:    len(r.states),
		EntityTypeCollege:  len(r.colleges),
		EntityTypeCourse:   len(r.courses),
		EntityTypeCategory: len(r.categories),
		EntityTypeQuota:    len(r.quotas),
	}
}

func (r *Registry) refLocked(t EntityType, id int64) (Ref, bool) {
	switch t {
	case EntityTypeState:
		if e, ok := r.states[id]; ok && e.IsActive {
			return e.Ref(), true
		}
	case EntityTypeCollege:
		if e, ok := r.colleges[id]; ok && e.IsActive {
			return e.Ref(), true
		}
	case EntityTypeCourse:
		if e, ok := r.courses[id]; ok && e.IsActive {
			return e.Ref(), true
		}
	case EntityTypeCategory:
		if e, ok := r.categories[id]; ok && e.IsActive {
			return e.Ref(), true
		}
	case EntityTypeQuota:
		if e, ok := r.quotas[id]; ok && e.IsActive {
			return e.Ref(), true
		}
	}
	return Ref{}, false
}
