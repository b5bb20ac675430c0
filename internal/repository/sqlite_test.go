package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/atinyakov/linkgate/internal/storage"
)

func openSQLite(t *testing.T) *LinkRepository {
	t.Helper()

	repo, err := Open(context.Background(), "sqlite::memory:", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	ctx := context.Background()
	require.NoError(t, repo.AddAsset(ctx, storage.AssetRef{ID: "a1", Filename: "demo.pdf", PublicPath: "/demo/demo.pdf"}))
	require.NoError(t, repo.AddCollection(ctx, storage.CollectionRef{ID: "c1", Slug: "demo-kit", Name: "Demo Kit"}))
	return repo
}

func TestSQLite_LinkLifecycle(t *testing.T) {
	repo := openSQLite(t)
	ctx := context.Background()

	limit := int64(5)
	expires := created.Add(24 * time.Hour)
	rec, err := repo.Create(ctx, storage.LinkRecord{
		ID: "l1", Slug: "demo", OwnerID: "u1", Target: storage.AssetRef{ID: "a1"},
		IsActive: true, MaxViews: &limit, ExpiresAt: &expires,
		AllowedEmails: []string{"a@example.com"}, CreatedAt: created, UpdatedAt: created,
	})
	require.NoError(t, err)
	assert.Equal(t, storage.AssetRef{ID: "a1", Filename: "demo.pdf", PublicPath: "/demo/demo.pdf"}, rec.Target)
	require.NotNil(t, rec.ExpiresAt)
	assert.True(t, rec.ExpiresAt.Equal(expires))
	assert.Equal(t, []string{"a@example.com"}, rec.AllowedEmails)

	_, err = repo.Create(ctx, storage.LinkRecord{
		ID: "l2", Slug: "demo", OwnerID: "u1", Target: storage.CollectionRef{ID: "c1"}, CreatedAt: created, UpdatedAt: created,
	})
	assert.ErrorIs(t, err, storage.ErrConflict)

	kit, err := repo.Create(ctx, storage.LinkRecord{
		ID: "l3", Slug: "kit", OwnerID: "u1", Target: storage.CollectionRef{ID: "c1"},
		IsActive: true, CreatedAt: created.Add(time.Minute), UpdatedAt: created,
	})
	require.NoError(t, err)
	assert.Equal(t, storage.CollectionRef{ID: "c1", Slug: "demo-kit", Name: "Demo Kit"}, kit.Target)

	rec.Slug = "kit"
	_, err = repo.Update(ctx, *rec)
	assert.ErrorIs(t, err, storage.ErrConflict)

	rec.Slug = "renamed"
	rec.MaxViews = nil
	rec.IsActive = false
	updated, err := repo.Update(ctx, *rec)
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Slug)
	assert.Nil(t, updated.MaxViews)
	assert.False(t, updated.IsActive)

	_, err = repo.FindBySlug(ctx, "demo")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	owned, err := repo.FindByOwner(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, owned, 2)
	assert.Equal(t, "l3", owned[0].ID)
}

func TestSQLite_ConcurrentIncrements(t *testing.T) {
	repo := openSQLite(t)
	ctx := context.Background()

	_, err := repo.Create(ctx, storage.LinkRecord{
		ID: "l1", Slug: "hot", OwnerID: "u1", Target: storage.AssetRef{ID: "a1"}, IsActive: true,
		CreatedAt: created, UpdatedAt: created,
	})
	require.NoError(t, err)

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, repo.IncrementViewCount(ctx, "l1", created))
		}()
	}
	wg.Wait()

	rec, err := repo.FindByID(ctx, "l1")
	require.NoError(t, err)
	assert.Equal(t, int64(n), rec.ViewCount)
	require.NotNil(t, rec.LastViewedAt)
	assert.True(t, rec.LastViewedAt.Equal(created))
}

func TestSQLite_AccessEvents(t *testing.T) {
	repo := openSQLite(t)
	ctx := context.Background()

	events := make([]storage.AccessEvent, 0, 30)
	for i := 0; i < 30; i++ {
		events = append(events, storage.AccessEvent{
			ID: "e" + string(rune('A'+i)), LinkID: "l1", TargetID: "a1",
			TargetKind: storage.TargetAsset, EventType: storage.EventView,
			Timestamp: created.Add(time.Duration(i) * time.Second), ClientIP: "203.0.113.7", Country: "NL",
		})
	}
	require.NoError(t, repo.AppendAccessEvents(ctx, events))

	got, err := repo.ListAccessEvents(ctx, "l1", 20)
	require.NoError(t, err)
	require.Len(t, got, 20)
	assert.Equal(t, events[29].ID, got[0].ID)
	assert.Equal(t, storage.EventView, got[0].EventType)
	assert.Equal(t, "NL", got[0].Country)

	assert.NoError(t, repo.PingContext(ctx))
}
