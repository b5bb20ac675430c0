package storage

import (
	"context"
	"time"

	"golang.org/x/crypto/bcrypt"
)

const (
	DemoOwnerID  = "demo-owner"
	DemoPassword = "demo123"
)

// SeedDemo fills the registry with the fixed demo dataset served when no database is configured.
func (m *MemoryStorage) SeedDemo(ctx context.Context, now time.Time) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(DemoPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	pdf := AssetRef{ID: "asset-demo-pdf", Filename: "demo.pdf", PublicPath: "/demo/demo.pdf"}
	kit := CollectionRef{ID: "collection-demo-kit", Slug: "demo-kit", Name: "Demo Kit"}

	if err := m.AddAsset(ctx, pdf); err != nil {
		return err
	}
	if err := m.AddCollection(ctx, kit); err != nil {
		return err
	}

	yesterday := now.Add(-24 * time.Hour)
	limit := int64(100)

	links := []LinkRecord{
		{ID: "link-demo", Slug: "demo", Target: pdf, IsActive: true},
		{ID: "link-demo-locked", Slug: "demo-locked", Target: pdf, IsActive: true, PasswordHash: string(hash)},
		{ID: "link-demo-expired", Slug: "demo-expired", Target: pdf, IsActive: true, ExpiresAt: &yesterday},
		{ID: "link-demo-limited", Slug: "demo-limited", Target: pdf, IsActive: true, MaxViews: &limit},
		{ID: "link-demo-disabled", Slug: "demo-disabled", Target: pdf, IsActive: false},
		{ID: "link-demo-collection", Slug: "demo-collection", Target: kit, IsActive: true},
	}

	for _, l := range links {
		l.OwnerID = DemoOwnerID
		l.CreatedAt = now
		l.UpdatedAt = now
		if _, err := m.Create(ctx, l); err != nil {
			return err
		}
	}

	// the limited link starts exhausted
	m.mu.Lock()
	m.links["link-demo-limited"].record.ViewCount = limit
	m.mu.Unlock()

	return nil
}
