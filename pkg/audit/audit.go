// Package audit records every master-data mutation as an append-only
// stream of entries. Entries are never modified once written; an entity's
// history is a fold over its entries in append order.
package audit

import (
	"fmt"
	"sync"

	"github.com/agentstation/utc"
	"github.com/google/uuid"

	"github.com/admitkit/medmatch/pkg/errors"
	"github.com/admitkit/medmatch/pkg/logging"
	"github.com/admitkit/medmatch/pkg/masterdata"
)

// Action is the kind of event an entry records.
type Action string

const (
	ActionCreate      Action = "CREATE"
	ActionUpdate      Action = "UPDATE"
	ActionImportMatch Action = "IMPORT_MATCH"
)

// MatchRecord is the payload of an IMPORT_MATCH entry. It ties a raw
// input string to the entity it resolved to without mutating the entity.
type MatchRecord struct {
	RawInput   string  `json:"rawInput"`
	Confidence float64 `json:"confidence"`
	Method     string  `json:"method"`
	BatchID    string  `json:"batchId"`
}

// Entry is one immutable audit event.
type Entry struct {
	ID         string               `json:"id"`
	Seq        int64                `json:"seq"`
	Action     Action               `json:"action"`
	EntityType masterdata.EntityType `json:"entityType"`
	EntityID   int64                `json:"entityId"`
	Version    int                  `json:"version"`
	Actor      string               `json:"actor"`
	Before     masterdata.Entity    `json:"before,omitempty"`
	After      masterdata.Entity    `json:"after,omitempty"`
	Match      *MatchRecord         `json:"match,omitempty"`
	CreatedAt  utc.Time             `json:"createdAt"`
}

// Store is the append-only audit log plus the staging area for entities
// created or updated through it. The registry stays read-only during a
// batch run, so mutations accumulate in the pending set until
// Flush hands them to the registry between batches.
type Store struct {
	mu       sync.Mutex
	registry *masterdata.Registry
	entries  []Entry
	pending  []masterdata.Entity
	seq      int64
	notify   func(Entry)
}

// NewStore creates an audit store backed by the given registry.
func NewStore(registry *masterdata.Registry) *Store {
	return &Store{registry: registry}
}

// SetNotify registers a callback fired after each append. The callback
// runs outside the store lock and may call back into the store.
func (s *Store) SetNotify(fn func(Entry)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notify = fn
}

// Create stamps a new entity (version 1, actor, timestamps), reserves its
// id, appends a CREATE entry, and stages the entity for the next registry
// merge. The new id is usable immediately for audit and review linkage
// even though the entity is not matchable until Flush.
func (s *Store) Create(e masterdata.Entity, actor string) (int64, error) {
	if e == nil {
		return 0, errors.New("entity cannot be nil")
	}
	m := e.EntityMeta()
	if m.Name == "" {
		return 0, errors.NewValidationError("name", m.Name, "must not be empty")
	}

	s.mu.Lock()

	if m.ID == 0 {
		m.ID = s.registry.ReserveID(e.EntityType())
	}
	m.Version = 1
	m.IsActive = true
	m.CreatedBy = actor
	m.UpdatedBy = actor
	m.CreatedAt = utc.Now()
	m.UpdatedAt = m.CreatedAt

	entry := s.appendLocked(Entry{
		Action:     ActionCreate,
		EntityType: e.EntityType(),
		EntityID:   m.ID,
		Version:    m.Version,
		Actor:      actor,
		After:      e,
	})
	s.pending = append(s.pending, e)
	fn := s.notify
	s.mu.Unlock()

	logging.Info().
		Str("entity_type", e.EntityType().String()).
		Int64("entity_id", m.ID).
		Str("actor", actor).
		Msg("Entity created")
	if fn != nil {
		fn(entry)
	}
	return m.ID, nil
}

// Update records a new version of an existing entity. The entity carries
// the full new state; the previous state is snapshotted from the registry
// as the Before image and the version is bumped from it.
func (s *Store) Update(e masterdata.Entity, actor string) error {
	if e == nil {
		return errors.New("entity cannot be nil")
	}
	m := e.EntityMeta()
	t := e.EntityType()

	before, err := s.registry.Entity(t, m.ID)
	if err != nil {
		return errors.WrapResource("audit update", t.String(), fmt.Sprint(m.ID), err)
	}
	prev := before.EntityMeta()

	s.mu.Lock()

	m.Version = prev.Version + 1
	m.CreatedBy = prev.CreatedBy
	m.CreatedAt = prev.CreatedAt
	m.UpdatedBy = actor
	m.UpdatedAt = utc.Now()

	entry := s.appendLocked(Entry{
		Action:     ActionUpdate,
		EntityType: t,
		EntityID:   m.ID,
		Version:    m.Version,
		Actor:      actor,
		Before:     before,
		After:      e,
	})
	s.pending = append(s.pending, e)
	fn := s.notify
	s.mu.Unlock()

	if fn != nil {
		fn(entry)
	}
	return nil
}

// RecordMatch appends an IMPORT_MATCH entry tying a raw input to the
// entity it resolved to. No entity state changes.
func (s *Store) RecordMatch(t masterdata.EntityType, id int64, rec MatchRecord) {
	s.mu.Lock()
	entry := s.appendLocked(Entry{
		Action:     ActionImportMatch,
		EntityType: t,
		EntityID:   id,
		Actor:      "importer",
		Match:      &rec,
	})
	fn := s.notify
	s.mu.Unlock()

	if fn != nil {
		fn(entry)
	}
}

func (s *Store) appendLocked(e Entry) Entry {
	s.seq++
	e.ID = uuid.NewString()
	e.Seq = s.seq
	if e.CreatedAt.IsZero() {
		e.CreatedAt = utc.Now()
	}
	s.entries = append(s.entries, e)
	return e
}

// History returns the entries for one entity in append order.
func (s *Store) History(t masterdata.EntityType, id int64) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Entry
	for _, e := range s.entries {
		if e.EntityType == t && e.EntityID == id {
			out = append(out, e)
		}
	}
	return out
}

// Entries returns a snapshot of the full stream in append order.
func (s *Store) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Len reports the stream length. It only ever grows.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Flush merges every pending creation and update into the registry and
// clears the pending set. Call between batch runs only; audit entries are
// unaffected.
func (s *Store) Flush() error {
	s.mu.Lock()
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()

	for _, e := range pending {
		var err error
		if s.registryHas(e) {
			err = s.registry.Update(e)
		} else {
			err = s.registry.ApplyPending([]masterdata.Entity{e})
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// PendingCount reports how many staged mutations await Flush.
func (s *Store) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

func (s *Store) registryHas(e masterdata.Entity) bool {
	_, err := s.registry.Entity(e.EntityType(), e.EntityMeta().ID)
	return err == nil
}
