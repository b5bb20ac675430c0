package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/atinyakov/linkgate/internal/storage"
)

// Dialect selects the SQL flavour spoken to the database.
type Dialect int

const (
	Postgres Dialect = iota
	SQLite
)

func (d Dialect) driver() string {
	if d == SQLite {
		return "sqlite"
	}
	return "pgx"
}

// DialectFor guesses the dialect from a DSN and returns the DSN the driver expects.
func DialectFor(dsn string) (Dialect, string) {
	switch {
	case strings.HasPrefix(dsn, "sqlite://"):
		return SQLite, strings.TrimPrefix(dsn, "sqlite://")
	case strings.HasPrefix(dsn, "sqlite:"):
		return SQLite, strings.TrimPrefix(dsn, "sqlite:")
	case strings.HasPrefix(dsn, "file:"), dsn == ":memory:",
		strings.HasSuffix(dsn, ".db"), strings.HasSuffix(dsn, ".sqlite"):
		return SQLite, dsn
	}
	return Postgres, dsn
}

// Open connects to the database behind dsn and makes sure the schema exists.
func Open(ctx context.Context, dsn string, logger *zap.Logger) (*LinkRepository, error) {
	dialect, source := DialectFor(dsn)

	db, err := sql.Open(dialect.driver(), source)
	if err != nil {
		return nil, err
	}
	if dialect == SQLite {
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	repo := CreateLinkRepository(db, dialect, logger)
	if err := repo.InitSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("database connected and tables ready", zap.String("driver", dialect.driver()))
	return repo, nil
}

type LinkRepository struct {
	db      *sql.DB
	dialect Dialect
	logger  *zap.Logger
}

func CreateLinkRepository(db *sql.DB, dialect Dialect, logger *zap.Logger) *LinkRepository {
	return &LinkRepository{
		db:      db,
		dialect: dialect,
		logger:  logger,
	}
}

// q rewrites $n placeholders into ?n for SQLite.
func (r *LinkRepository) q(query string) string {
	if r.dialect == SQLite {
		return strings.ReplaceAll(query, "$", "?")
	}
	return query
}

func (r *LinkRepository) InitSchema(ctx context.Context) error {
	ts := "TIMESTAMPTZ"
	if r.dialect == SQLite {
		ts = "TIMESTAMP"
	}

	statements := []string{
		`CREATE TABLE IF NOT EXISTS assets (
			id TEXT PRIMARY KEY,
			filename TEXT NOT NULL,
			public_path TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS collections (
			id TEXT PRIMARY KEY,
			slug TEXT UNIQUE NOT NULL,
			name TEXT NOT NULL
		);`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS links (
			id TEXT PRIMARY KEY,
			slug TEXT UNIQUE NOT NULL,
			owner_id TEXT NOT NULL,
			asset_id TEXT,
			collection_id TEXT,
			password_hash TEXT NOT NULL DEFAULT '',
			expires_at %[1]s,
			max_views BIGINT,
			view_count BIGINT NOT NULL DEFAULT 0,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			allowed_emails TEXT NOT NULL DEFAULT '',
			last_viewed_at %[1]s,
			created_at %[1]s NOT NULL,
			updated_at %[1]s NOT NULL,
			CHECK ((asset_id IS NULL) <> (collection_id IS NULL))
		);`, ts),
		`CREATE INDEX IF NOT EXISTS links_owner_idx ON links (owner_id);`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS access_events (
			id TEXT PRIMARY KEY,
			link_id TEXT NOT NULL,
			target_id TEXT NOT NULL,
			target_kind TEXT NOT NULL,
			event_type TEXT NOT NULL,
			occurred_at %[1]s NOT NULL,
			client_ip TEXT NOT NULL DEFAULT '',
			user_agent TEXT NOT NULL DEFAULT '',
			referrer TEXT NOT NULL DEFAULT '',
			utm_source TEXT NOT NULL DEFAULT '',
			utm_medium TEXT NOT NULL DEFAULT '',
			utm_campaign TEXT NOT NULL DEFAULT '',
			country TEXT NOT NULL DEFAULT '',
			city TEXT NOT NULL DEFAULT ''
		);`, ts),
		`CREATE INDEX IF NOT EXISTS access_events_link_idx ON access_events (link_id, occurred_at);`,
	}

	for _, stmt := range statements {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

func (r *LinkRepository) AddAsset(ctx context.Context, a storage.AssetRef) error {
	_, err := r.db.ExecContext(ctx,
		r.q("INSERT INTO assets (id, filename, public_path) VALUES ($1, $2, $3) ON CONFLICT (id) DO NOTHING;"),
		a.ID, a.Filename, a.PublicPath,
	)
	return err
}

func (r *LinkRepository) AddCollection(ctx context.Context, c storage.CollectionRef) error {
	_, err := r.db.ExecContext(ctx,
		r.q("INSERT INTO collections (id, slug, name) VALUES ($1, $2, $3) ON CONFLICT (id) DO NOTHING;"),
		c.ID, c.Slug, c.Name,
	)
	return err
}

const selectLink = `SELECT l.id, l.slug, l.owner_id, l.password_hash, l.expires_at, l.max_views, l.view_count,
	l.is_active, l.allowed_emails, l.last_viewed_at, l.created_at, l.updated_at,
	l.asset_id, a.filename, a.public_path, l.collection_id, c.slug, c.name
FROM links l
LEFT JOIN assets a ON a.id = l.asset_id
LEFT JOIN collections c ON c.id = l.collection_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLink(row rowScanner) (*storage.LinkRecord, error) {
	var (
		rec                              storage.LinkRecord
		expiresAt, lastViewedAt          sql.NullTime
		maxViews                         sql.NullInt64
		allowed                          string
		assetID, filename, publicPath    sql.NullString
		collectionID, collSlug, collName sql.NullString
	)

	err := row.Scan(
		&rec.ID, &rec.Slug, &rec.OwnerID, &rec.PasswordHash, &expiresAt, &maxViews, &rec.ViewCount,
		&rec.IsActive, &allowed, &lastViewedAt, &rec.CreatedAt, &rec.UpdatedAt,
		&assetID, &filename, &publicPath, &collectionID, &collSlug, &collName,
	)
	if err != nil {
		return nil, err
	}

	if expiresAt.Valid {
		t := expiresAt.Time
		rec.ExpiresAt = &t
	}
	if lastViewedAt.Valid {
		t := lastViewedAt.Time
		rec.LastViewedAt = &t
	}
	if maxViews.Valid {
		n := maxViews.Int64
		rec.MaxViews = &n
	}
	if allowed != "" {
		rec.AllowedEmails = strings.Split(allowed, ",")
	}

	// a missing joined row leaves Target nil
	switch {
	case assetID.Valid && filename.Valid:
		rec.Target = storage.AssetRef{ID: assetID.String, Filename: filename.String, PublicPath: publicPath.String}
	case collectionID.Valid && collSlug.Valid:
		rec.Target = storage.CollectionRef{ID: collectionID.String, Slug: collSlug.String, Name: collName.String}
	}

	return &rec, nil
}

func (r *LinkRepository) findOne(ctx context.Context, where string, arg string) (*storage.LinkRecord, error) {
	row := r.db.QueryRowContext(ctx, r.q(selectLink+" WHERE "+where+";"), arg)

	rec, err := scanLink(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		r.logger.Error("failed to load link", zap.String("where", where), zap.Error(err))
		return nil, err
	}
	return rec, nil
}

func (r *LinkRepository) FindBySlug(ctx context.Context, slug string) (*storage.LinkRecord, error) {
	return r.findOne(ctx, "l.slug = $1", slug)
}

func (r *LinkRepository) FindByID(ctx context.Context, id string) (*storage.LinkRecord, error) {
	return r.findOne(ctx, "l.id = $1", id)
}

func (r *LinkRepository) FindByOwner(ctx context.Context, ownerID string) ([]storage.LinkRecord, error) {
	rows, err := r.db.QueryContext(ctx, r.q(selectLink+" WHERE l.owner_id = $1 ORDER BY l.created_at DESC;"), ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]storage.LinkRecord, 0)
	for rows.Next() {
		rec, err := scanLink(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func (r *LinkRepository) targetExists(ctx context.Context, t storage.Target) (bool, error) {
	var query string
	switch t.(type) {
	case storage.AssetRef:
		query = "SELECT COUNT(*) FROM assets WHERE id = $1;"
	case storage.CollectionRef:
		query = "SELECT COUNT(*) FROM collections WHERE id = $1;"
	default:
		return false, nil
	}

	var n int
	if err := r.db.QueryRowContext(ctx, r.q(query), t.TargetID()).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

func targetColumns(t storage.Target) (assetID, collectionID sql.NullString) {
	switch ref := t.(type) {
	case storage.AssetRef:
		assetID = sql.NullString{String: ref.ID, Valid: true}
	case storage.CollectionRef:
		collectionID = sql.NullString{String: ref.ID, Valid: true}
	}
	return assetID, collectionID
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func nullInt(n *int64) sql.NullInt64 {
	if n == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *n, Valid: true}
}

func (r *LinkRepository) Create(ctx context.Context, rec storage.LinkRecord) (*storage.LinkRecord, error) {
	ok, err := r.targetExists(ctx, rec.Target)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, storage.ErrTargetNotFound
	}

	assetID, collectionID := targetColumns(rec.Target)

	_, err = r.db.ExecContext(ctx, r.q(`INSERT INTO links (id, slug, owner_id, asset_id, collection_id, password_hash,
		expires_at, max_views, view_count, is_active, allowed_emails, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 0, $9, $10, $11, $12);`),
		rec.ID, rec.Slug, rec.OwnerID, assetID, collectionID, rec.PasswordHash,
		nullTime(rec.ExpiresAt), nullInt(rec.MaxViews), rec.IsActive, strings.Join(rec.AllowedEmails, ","),
		rec.CreatedAt.UTC(), rec.UpdatedAt.UTC(),
	)
	if isUniqueViolation(err) {
		return nil, storage.ErrConflict
	}
	if err != nil {
		r.logger.Error("failed to insert link", zap.String("slug", rec.Slug), zap.Error(err))
		return nil, err
	}

	return r.FindByID(ctx, rec.ID)
}

// Update writes the owner-editable fields. The counters are never touched here.
func (r *LinkRepository) Update(ctx context.Context, rec storage.LinkRecord) (*storage.LinkRecord, error) {
	res, err := r.db.ExecContext(ctx, r.q(`UPDATE links SET slug = $2, password_hash = $3, expires_at = $4,
		max_views = $5, is_active = $6, allowed_emails = $7, updated_at = $8 WHERE id = $1;`),
		rec.ID, rec.Slug, rec.PasswordHash, nullTime(rec.ExpiresAt), nullInt(rec.MaxViews),
		rec.IsActive, strings.Join(rec.AllowedEmails, ","), rec.UpdatedAt.UTC(),
	)
	if isUniqueViolation(err) {
		return nil, storage.ErrConflict
	}
	if err != nil {
		return nil, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, storage.ErrNotFound
	}

	return r.FindByID(ctx, rec.ID)
}

// IncrementViewCount is a single atomic UPDATE, concurrent callers never lose a view.
func (r *LinkRepository) IncrementViewCount(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		r.q("UPDATE links SET view_count = view_count + 1, last_viewed_at = $2 WHERE id = $1;"),
		id, at.UTC(),
	)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (r *LinkRepository) AppendAccessEvents(ctx context.Context, events []storage.AccessEvent) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, r.q(`INSERT INTO access_events (id, link_id, target_id, target_kind, event_type,
		occurred_at, client_ip, user_agent, referrer, utm_source, utm_medium, utm_campaign, country, city)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14);`))
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, e := range events {
		_, err := stmt.ExecContext(ctx, e.ID, e.LinkID, e.TargetID, string(e.TargetKind), string(e.EventType),
			e.Timestamp.UTC(), e.ClientIP, e.UserAgent, e.Referrer, e.UTMSource, e.UTMMedium, e.UTMCampaign,
			e.Country, e.City,
		)
		if err != nil {
			tx.Rollback()
			r.logger.Error("access events rolled back", zap.Int("count", len(events)), zap.Error(err))
			return err
		}
	}

	return tx.Commit()
}

func (r *LinkRepository) ListAccessEvents(ctx context.Context, linkID string, limit int) ([]storage.AccessEvent, error) {
	rows, err := r.db.QueryContext(ctx, r.q(`SELECT id, link_id, target_id, target_kind, event_type, occurred_at,
		client_ip, user_agent, referrer, utm_source, utm_medium, utm_campaign, country, city
		FROM access_events WHERE link_id = $1 ORDER BY occurred_at DESC LIMIT $2;`), linkID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]storage.AccessEvent, 0)
	for rows.Next() {
		var (
			e                     storage.AccessEvent
			targetKind, eventType string
		)
		err := rows.Scan(&e.ID, &e.LinkID, &e.TargetID, &targetKind, &eventType, &e.Timestamp,
			&e.ClientIP, &e.UserAgent, &e.Referrer, &e.UTMSource, &e.UTMMedium, &e.UTMCampaign, &e.Country, &e.City)
		if err != nil {
			return nil, err
		}
		e.TargetKind = storage.TargetKind(targetKind)
		e.EventType = storage.EventType(eventType)
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

func (r *LinkRepository) PingContext(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *LinkRepository) Close() error {
	return r.db.Close()
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.UniqueViolation
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}
	return false
}
