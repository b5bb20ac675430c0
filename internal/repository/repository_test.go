package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/atinyakov/linkgate/internal/storage"
)

var linkColumns = []string{
	"id", "slug", "owner_id", "password_hash", "expires_at", "max_views", "view_count",
	"is_active", "allowed_emails", "last_viewed_at", "created_at", "updated_at",
	"asset_id", "filename", "public_path", "collection_id", "slug", "name",
}

var created = time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)

// Helper to set up a mock DB and repository
func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *LinkRepository) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := CreateLinkRepository(db, Postgres, zap.NewNop())
	return db, mock, repo
}

func TestFindBySlug_Asset(t *testing.T) {
	_, mock, repo := setupMockDB(t)

	expires := created.Add(48 * time.Hour)
	mock.ExpectQuery(`FROM links l .* WHERE l\.slug = \$1;`).
		WithArgs("demo").
		WillReturnRows(sqlmock.NewRows(linkColumns).AddRow(
			"l1", "demo", "u1", "", expires, int64(10), int64(3),
			true, "a@example.com,b@example.com", nil, created, created,
			"a1", "demo.pdf", "/demo/demo.pdf", nil, nil, nil,
		))

	rec, err := repo.FindBySlug(context.Background(), "demo")
	require.NoError(t, err)

	assert.Equal(t, "l1", rec.ID)
	assert.Equal(t, storage.AssetRef{ID: "a1", Filename: "demo.pdf", PublicPath: "/demo/demo.pdf"}, rec.Target)
	require.NotNil(t, rec.ExpiresAt)
	assert.True(t, rec.ExpiresAt.Equal(expires))
	require.NotNil(t, rec.MaxViews)
	assert.Equal(t, int64(10), *rec.MaxViews)
	assert.Equal(t, int64(3), rec.ViewCount)
	assert.Nil(t, rec.LastViewedAt)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, rec.AllowedEmails)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindBySlug_CollectionAndDangling(t *testing.T) {
	_, mock, repo := setupMockDB(t)

	mock.ExpectQuery(`WHERE l\.slug = \$1;`).
		WithArgs("kit").
		WillReturnRows(sqlmock.NewRows(linkColumns).AddRow(
			"l2", "kit", "u1", "", nil, nil, int64(0),
			true, "", nil, created, created,
			nil, nil, nil, "c1", "demo-kit", "Demo Kit",
		))
	mock.ExpectQuery(`WHERE l\.slug = \$1;`).
		WithArgs("orphan").
		WillReturnRows(sqlmock.NewRows(linkColumns).AddRow(
			"l3", "orphan", "u1", "", nil, nil, int64(0),
			true, "", nil, created, created,
			"gone", nil, nil, nil, nil, nil,
		))

	rec, err := repo.FindBySlug(context.Background(), "kit")
	require.NoError(t, err)
	assert.Equal(t, storage.CollectionRef{ID: "c1", Slug: "demo-kit", Name: "Demo Kit"}, rec.Target)
	assert.Nil(t, rec.MaxViews)
	assert.Nil(t, rec.AllowedEmails)

	orphan, err := repo.FindBySlug(context.Background(), "orphan")
	require.NoError(t, err)
	assert.Nil(t, orphan.Target)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindBySlug_NotFound(t *testing.T) {
	_, mock, repo := setupMockDB(t)

	mock.ExpectQuery(`WHERE l\.slug = \$1;`).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindBySlug(context.Background(), "ghost")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindBySlug_DatabaseError(t *testing.T) {
	_, mock, repo := setupMockDB(t)

	mock.ExpectQuery(`WHERE l\.slug = \$1;`).
		WithArgs("demo").
		WillReturnError(errors.New("connection reset"))

	_, err := repo.FindBySlug(context.Background(), "demo")
	assert.EqualError(t, err, "connection reset")
	assert.NotErrorIs(t, err, storage.ErrNotFound)
}

func TestIncrementViewCount(t *testing.T) {
	_, mock, repo := setupMockDB(t)
	at := created.Add(time.Hour)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE links SET view_count = view_count + 1, last_viewed_at = $2 WHERE id = $1;")).
		WithArgs("l1", at).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE links SET view_count = view_count + 1")).
		WithArgs("missing", at).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.NoError(t, repo.IncrementViewCount(context.Background(), "l1", at))
	assert.ErrorIs(t, repo.IncrementViewCount(context.Background(), "missing", at), storage.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_Conflict(t *testing.T) {
	_, mock, repo := setupMockDB(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM assets WHERE id = $1;")).
		WithArgs("a1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectExec(`INSERT INTO links`).
		WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation})

	_, err := repo.Create(context.Background(), storage.LinkRecord{
		ID: "l1", Slug: "taken", Target: storage.AssetRef{ID: "a1"}, CreatedAt: created, UpdatedAt: created,
	})
	assert.ErrorIs(t, err, storage.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_MissingTarget(t *testing.T) {
	_, mock, repo := setupMockDB(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM collections WHERE id = $1;")).
		WithArgs("c9").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	_, err := repo.Create(context.Background(), storage.LinkRecord{ID: "l1", Slug: "s", Target: storage.CollectionRef{ID: "c9"}})
	assert.ErrorIs(t, err, storage.ErrTargetNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdate_NotFound(t *testing.T) {
	_, mock, repo := setupMockDB(t)

	mock.ExpectExec(`UPDATE links SET slug = \$2`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := repo.Update(context.Background(), storage.LinkRecord{ID: "ghost", Slug: "ghost"})
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendAccessEvents(t *testing.T) {
	_, mock, repo := setupMockDB(t)

	events := []storage.AccessEvent{
		{ID: "e1", LinkID: "l1", TargetID: "a1", TargetKind: storage.TargetAsset, EventType: storage.EventView, Timestamp: created},
		{ID: "e2", LinkID: "l1", TargetID: "a1", TargetKind: storage.TargetAsset, EventType: storage.EventView, Timestamp: created},
	}

	mock.ExpectBegin()
	prep := mock.ExpectPrepare(`INSERT INTO access_events`)
	prep.ExpectExec().WithArgs("e1", "l1", "a1", "asset", "view", created, "", "", "", "", "", "", "", "").
		WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().WithArgs("e2", "l1", "a1", "asset", "view", created, "", "", "", "", "", "", "", "").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	assert.NoError(t, repo.AppendAccessEvents(context.Background(), events))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendAccessEvents_Rollback(t *testing.T) {
	_, mock, repo := setupMockDB(t)

	mock.ExpectBegin()
	mock.ExpectPrepare(`INSERT INTO access_events`).
		ExpectExec().
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := repo.AppendAccessEvents(context.Background(), []storage.AccessEvent{{ID: "e1", Timestamp: created}})
	assert.EqualError(t, err, "disk full")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPlaceholdersForSQLite(t *testing.T) {
	repo := CreateLinkRepository(nil, SQLite, zap.NewNop())
	assert.Equal(t, "UPDATE links SET a = ?2 WHERE id = ?1;", repo.q("UPDATE links SET a = $2 WHERE id = $1;"))

	pg := CreateLinkRepository(nil, Postgres, zap.NewNop())
	assert.Equal(t, "WHERE id = $1", pg.q("WHERE id = $1"))
}

func TestDialectFor(t *testing.T) {
	tests := []struct {
		dsn     string
		dialect Dialect
		source  string
	}{
		{"postgres://u:p@localhost:5432/links?sslmode=disable", Postgres, "postgres://u:p@localhost:5432/links?sslmode=disable"},
		{"host=localhost user=u dbname=links", Postgres, "host=localhost user=u dbname=links"},
		{"sqlite:///var/lib/linkgate.db", SQLite, "/var/lib/linkgate.db"},
		{"sqlite::memory:", SQLite, ":memory:"},
		{"file:links.db?cache=shared", SQLite, "file:links.db?cache=shared"},
		{"data/links.db", SQLite, "data/links.db"},
	}

	for _, tt := range tests {
		t.Run(tt.dsn, func(t *testing.T) {
			d, src := DialectFor(tt.dsn)
			assert.Equal(t, tt.dialect, d)
			assert.Equal(t, tt.source, src)
		})
	}
}
