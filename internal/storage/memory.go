package storage

import (
	"context"
	"sort"
	"sync"
	"time"
)

type memoryLink struct {
	record     LinkRecord
	targetKind TargetKind
	targetID   string
}

// MemoryStorage is a concurrency-safe in-process link registry.
// Targets are stored by reference and resolved on every read, so a link whose
// asset or collection is gone comes back with a nil Target.
type MemoryStorage struct {
	mu          sync.RWMutex
	links       map[string]*memoryLink
	slugs       map[string]string
	assets      map[string]AssetRef
	collections map[string]CollectionRef
	events      []AccessEvent
}

func CreateMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		links:       make(map[string]*memoryLink),
		slugs:       make(map[string]string),
		assets:      make(map[string]AssetRef),
		collections: make(map[string]CollectionRef),
	}
}

func (m *MemoryStorage) AddAsset(_ context.Context, a AssetRef) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.assets[a.ID] = a
	return nil
}

func (m *MemoryStorage) AddCollection(_ context.Context, c CollectionRef) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.collections[c.ID] = c
	return nil
}

func (m *MemoryStorage) FindBySlug(_ context.Context, slug string) (*LinkRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.slugs[slug]
	if !ok {
		return nil, ErrNotFound
	}
	return m.snapshot(m.links[id]), nil
}

func (m *MemoryStorage) FindByID(_ context.Context, id string) (*LinkRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	l, ok := m.links[id]
	if !ok {
		return nil, ErrNotFound
	}
	return m.snapshot(l), nil
}

func (m *MemoryStorage) FindByOwner(_ context.Context, ownerID string) ([]LinkRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]LinkRecord, 0)
	for _, l := range m.links {
		if l.record.OwnerID == ownerID {
			result = append(result, *m.snapshot(l))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

// Create stores a new link. The slug must be unused and the target must exist.
func (m *MemoryStorage) Create(_ context.Context, rec LinkRecord) (*LinkRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, taken := m.slugs[rec.Slug]; taken {
		return nil, ErrConflict
	}
	if rec.Target == nil || !m.targetExists(rec.Target) {
		return nil, ErrTargetNotFound
	}

	l := &memoryLink{
		record:     cloneRecord(rec),
		targetKind: rec.Target.Kind(),
		targetID:   rec.Target.TargetID(),
	}
	l.record.Target = nil

	m.links[rec.ID] = l
	m.slugs[rec.Slug] = rec.ID
	return m.snapshot(l), nil
}

// Update replaces the owner-editable fields of an existing link.
// ViewCount and LastViewedAt are owned by the recorder and are left untouched.
func (m *MemoryStorage) Update(_ context.Context, rec LinkRecord) (*LinkRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.links[rec.ID]
	if !ok {
		return nil, ErrNotFound
	}

	if rec.Slug != l.record.Slug {
		if _, taken := m.slugs[rec.Slug]; taken {
			return nil, ErrConflict
		}
		delete(m.slugs, l.record.Slug)
		m.slugs[rec.Slug] = rec.ID
	}

	updated := cloneRecord(rec)
	updated.Target = nil
	updated.ViewCount = l.record.ViewCount
	updated.LastViewedAt = l.record.LastViewedAt
	updated.CreatedAt = l.record.CreatedAt
	l.record = updated

	return m.snapshot(l), nil
}

// IncrementViewCount bumps the counter under the write lock, so concurrent calls never lose updates.
func (m *MemoryStorage) IncrementViewCount(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.links[id]
	if !ok {
		return ErrNotFound
	}
	l.record.ViewCount++
	viewed := at
	l.record.LastViewedAt = &viewed
	return nil
}

func (m *MemoryStorage) AppendAccessEvents(_ context.Context, events []AccessEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.events = append(m.events, events...)
	return nil
}

// ListAccessEvents returns up to limit events of a link, newest first.
func (m *MemoryStorage) ListAccessEvents(_ context.Context, linkID string, limit int) ([]AccessEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]AccessEvent, 0)
	for i := len(m.events) - 1; i >= 0; i-- {
		if limit > 0 && len(result) == limit {
			break
		}
		if m.events[i].LinkID == linkID {
			result = append(result, m.events[i])
		}
	}
	return result, nil
}

func (m *MemoryStorage) PingContext(context.Context) error {
	return nil
}

func (m *MemoryStorage) targetExists(t Target) bool {
	switch ref := t.(type) {
	case AssetRef:
		_, ok := m.assets[ref.ID]
		return ok
	case CollectionRef:
		_, ok := m.collections[ref.ID]
		return ok
	}
	return false
}

func (m *MemoryStorage) snapshot(l *memoryLink) *LinkRecord {
	rec := cloneRecord(l.record)

	switch l.targetKind {
	case TargetAsset:
		if a, ok := m.assets[l.targetID]; ok {
			rec.Target = a
		}
	case TargetCollection:
		if c, ok := m.collections[l.targetID]; ok {
			rec.Target = c
		}
	}
	return &rec
}

func cloneRecord(rec LinkRecord) LinkRecord {
	out := rec
	if rec.ExpiresAt != nil {
		t := *rec.ExpiresAt
		out.ExpiresAt = &t
	}
	if rec.MaxViews != nil {
		n := *rec.MaxViews
		out.MaxViews = &n
	}
	if rec.LastViewedAt != nil {
		t := *rec.LastViewedAt
		out.LastViewedAt = &t
	}
	if rec.AllowedEmails != nil {
		out.AllowedEmails = append([]string(nil), rec.AllowedEmails...)
	}
	return out
}
