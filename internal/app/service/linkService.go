// Package service resolves links for visitors and manages them for owners.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/atinyakov/linkgate/internal/gate"
	"github.com/atinyakov/linkgate/internal/metrics"
	"github.com/atinyakov/linkgate/internal/recorder"
	"github.com/atinyakov/linkgate/internal/storage"
)

const recentEventsLimit = 20

var (
	// ErrForbidden is returned when a caller touches a link it does not own.
	ErrForbidden = errors.New("forbidden")

	ErrInvalidTarget = errors.New("invalid target kind")
)

// LinkServiceIface is what the HTTP and gRPC layers need from the service.
type LinkServiceIface interface {
	Inspect(ctx context.Context, slug string) (*Resolution, error)
	View(ctx context.Context, slug string, kind storage.EventType, visit recorder.Visit) (*Resolution, error)
	Verify(ctx context.Context, slug, password string, visit recorder.Visit) (*Resolution, error)
	CreateLink(ctx context.Context, ownerID string, in LinkInput) (*storage.LinkRecord, error)
	UpdateLink(ctx context.Context, ownerID, id string, patch LinkPatch) (*storage.LinkRecord, error)
	ListLinks(ctx context.Context, ownerID string) ([]storage.LinkRecord, error)
	LinkStats(ctx context.Context, ownerID, id string) (*LinkStats, error)
	PingContext(ctx context.Context) error
}

// Resolution pairs the gate decision with the record it was made on.
// Record is nil when the slug is unknown.
type Resolution struct {
	Record   *storage.LinkRecord
	Decision gate.Decision
}

// LinkInput describes a new link.
type LinkInput struct {
	Slug          string
	TargetKind    storage.TargetKind
	TargetID      string
	Password      string
	ExpiresAt     *time.Time
	MaxViews      *int64
	IsActive      *bool
	AllowedEmails []string
}

// LinkPatch changes selected fields of a link. Nil fields are left as they are.
type LinkPatch struct {
	Slug *string
	// Password set to "" removes the password.
	Password      *string
	ExpiresAt     *time.Time
	ClearExpiry   bool
	MaxViews      *int64
	ClearMaxViews bool
	IsActive      *bool
	AllowedEmails []string
}

type LinkStats struct {
	Link         *storage.LinkRecord
	ViewCount    int64
	LastViewedAt *time.Time
	RecentEvents []storage.AccessEvent
}

type LinkService struct {
	registry Registry
	events   EventLog
	recorder Recorder
	slugs    *SlugGenerator
	now      Clock
	logger   *zap.Logger
}

func NewLinkService(registry Registry, events EventLog, rec Recorder, now Clock, logger *zap.Logger) *LinkService {
	if now == nil {
		now = time.Now
	}

	return &LinkService{
		registry: registry,
		events:   events,
		recorder: rec,
		slugs:    NewSlugGenerator(8),
		now:      now,
		logger:   logger,
	}
}

func (s *LinkService) PingContext(ctx context.Context) error {
	return s.registry.PingContext(ctx)
}

func (s *LinkService) lookup(ctx context.Context, slug string) (*storage.LinkRecord, error) {
	rec, err := s.registry.FindBySlug(ctx, slug)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup %q: %w", slug, err)
	}
	return rec, nil
}

func (s *LinkService) evaluate(entry string, rec *storage.LinkRecord, password string) gate.Decision {
	decision := gate.Evaluate(rec, gate.RequestContext{SuppliedPassword: password, Now: s.now()})

	outcome := "resolved"
	if d, ok := decision.(gate.Denied); ok {
		outcome = d.Reason.String()
		s.logger.Debug("link denied", zap.String("entry", entry), zap.String("reason", outcome))
	}
	metrics.ResolutionsTotal.WithLabelValues(entry, outcome).Inc()

	return decision
}

func (s *LinkService) record(rec *storage.LinkRecord, decision gate.Decision, kind storage.EventType, visit recorder.Visit) {
	resolved, ok := decision.(gate.Resolved)
	if !ok {
		return
	}

	s.recorder.Record(recorder.Task{
		LinkID:    rec.ID,
		Target:    resolved.Target,
		EventType: kind,
		At:        s.now(),
		Visit:     visit,
	})
}

// Inspect evaluates a link without a password and without side effects.
func (s *LinkService) Inspect(ctx context.Context, slug string) (*Resolution, error) {
	rec, err := s.lookup(ctx, slug)
	if err != nil {
		return nil, err
	}

	return &Resolution{Record: rec, Decision: s.evaluate("inspect", rec, "")}, nil
}

// View resolves a link that needs no password and records the access.
// A password-gated link comes back as Denied(PasswordRequired) and nothing is recorded.
func (s *LinkService) View(ctx context.Context, slug string, kind storage.EventType, visit recorder.Visit) (*Resolution, error) {
	rec, err := s.lookup(ctx, slug)
	if err != nil {
		return nil, err
	}

	decision := s.evaluate("view", rec, "")
	s.record(rec, decision, kind, visit)

	return &Resolution{Record: rec, Decision: decision}, nil
}

// Verify checks the supplied password and records the access on success.
func (s *LinkService) Verify(ctx context.Context, slug, password string, visit recorder.Visit) (*Resolution, error) {
	rec, err := s.lookup(ctx, slug)
	if err != nil {
		return nil, err
	}

	decision := s.evaluate("verify", rec, password)
	s.record(rec, decision, storage.EventView, visit)

	return &Resolution{Record: rec, Decision: decision}, nil
}

func targetRef(kind storage.TargetKind, id string) (storage.Target, error) {
	switch kind {
	case storage.TargetAsset:
		return storage.AssetRef{ID: id}, nil
	case storage.TargetCollection:
		return storage.CollectionRef{ID: id}, nil
	}
	return nil, ErrInvalidTarget
}

func (s *LinkService) CreateLink(ctx context.Context, ownerID string, in LinkInput) (*storage.LinkRecord, error) {
	target, err := targetRef(in.TargetKind, in.TargetID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	rec := storage.LinkRecord{
		ID:            uuid.NewString(),
		Slug:          in.Slug,
		OwnerID:       ownerID,
		Target:        target,
		ExpiresAt:     in.ExpiresAt,
		MaxViews:      in.MaxViews,
		IsActive:      true,
		AllowedEmails: in.AllowedEmails,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if in.IsActive != nil {
		rec.IsActive = *in.IsActive
	}
	if rec.Slug == "" {
		rec.Slug = s.slugs.Generate(rec.ID)
	}
	if in.Password != "" {
		if rec.PasswordHash, err = gate.HashPassword(in.Password); err != nil {
			return nil, err
		}
	}

	created, err := s.registry.Create(ctx, rec)
	if err != nil {
		return nil, err
	}

	s.logger.Info("link created", zap.String("link_id", created.ID), zap.String("slug", created.Slug))
	return created, nil
}

func (s *LinkService) owned(ctx context.Context, ownerID, id string) (*storage.LinkRecord, error) {
	rec, err := s.registry.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.OwnerID != ownerID {
		return nil, ErrForbidden
	}
	return rec, nil
}

// UpdateLink applies patch to a link owned by ownerID. A slug rename fails with
// storage.ErrConflict when the new slug is taken.
func (s *LinkService) UpdateLink(ctx context.Context, ownerID, id string, patch LinkPatch) (*storage.LinkRecord, error) {
	rec, err := s.owned(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	if patch.Slug != nil {
		rec.Slug = *patch.Slug
	}
	if patch.Password != nil {
		rec.PasswordHash = ""
		if *patch.Password != "" {
			if rec.PasswordHash, err = gate.HashPassword(*patch.Password); err != nil {
				return nil, err
			}
		}
	}
	switch {
	case patch.ClearExpiry:
		rec.ExpiresAt = nil
	case patch.ExpiresAt != nil:
		rec.ExpiresAt = patch.ExpiresAt
	}
	switch {
	case patch.ClearMaxViews:
		rec.MaxViews = nil
	case patch.MaxViews != nil:
		rec.MaxViews = patch.MaxViews
	}
	if patch.IsActive != nil {
		rec.IsActive = *patch.IsActive
	}
	if patch.AllowedEmails != nil {
		rec.AllowedEmails = patch.AllowedEmails
	}
	rec.UpdatedAt = s.now()

	return s.registry.Update(ctx, *rec)
}

func (s *LinkService) ListLinks(ctx context.Context, ownerID string) ([]storage.LinkRecord, error) {
	return s.registry.FindByOwner(ctx, ownerID)
}

// LinkStats returns the counters and the most recent access events of an owned link.
func (s *LinkService) LinkStats(ctx context.Context, ownerID, id string) (*LinkStats, error) {
	rec, err := s.owned(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	events, err := s.events.ListAccessEvents(ctx, rec.ID, recentEventsLimit)
	if err != nil {
		return nil, err
	}

	return &LinkStats{
		Link:         rec,
		ViewCount:    rec.ViewCount,
		LastViewedAt: rec.LastViewedAt,
		RecentEvents: events,
	}, nil
}
