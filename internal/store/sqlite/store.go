// Package sqlite is the default storage backend: one database file holding
// the bookmark collection and the remote subscription records.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/MrSnakeDoc/storyshelf/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS bookmarks (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	photo_url TEXT NOT NULL DEFAULT '',
	lat REAL,
	lon REAL,
	created_at TEXT
);
CREATE TABLE IF NOT EXISTS subscriptions (
	endpoint TEXT PRIMARY KEY,
	id TEXT NOT NULL,
	p256dh TEXT NOT NULL,
	auth TEXT NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
`

// Store implements bookmark.Backend and subscription.Backend on SQLite.
// Bookmarks are listed in rowid order, which upserts leave untouched.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database at path.
func New(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("sqlite mkdir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	// A single writer avoids SQLITE_BUSY between pooled connections
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// ─────────────────────────────────────────────────────────────────
// Bookmarks
// ─────────────────────────────────────────────────────────────────

const bookmarkColumns = `id, name, description, photo_url, lat, lon, created_at`

func (s *Store) List(ctx context.Context) ([]domain.Bookmark, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+bookmarkColumns+` FROM bookmarks ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("sqlite list bookmarks: %w", err)
	}
	defer rows.Close()

	bookmarks := []domain.Bookmark{}
	for rows.Next() {
		b, err := scanBookmark(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite scan bookmark: %w", err)
		}
		bookmarks = append(bookmarks, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite list bookmarks: %w", err)
	}
	return bookmarks, nil
}

func (s *Store) Get(ctx context.Context, id string) (domain.Bookmark, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+bookmarkColumns+` FROM bookmarks WHERE id = ?`, id)
	b, err := scanBookmark(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Bookmark{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Bookmark{}, fmt.Errorf("sqlite get bookmark: %w", err)
	}
	return b, nil
}

func (s *Store) Put(ctx context.Context, b domain.Bookmark) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO bookmarks (`+bookmarkColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			photo_url = excluded.photo_url,
			lat = excluded.lat,
			lon = excluded.lon,
			created_at = excluded.created_at`,
		bookmarkArgs(b)...)
	if err != nil {
		return fmt.Errorf("sqlite put bookmark: %w", err)
	}
	return nil
}

func (s *Store) PutIfAbsent(ctx context.Context, b domain.Bookmark) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO bookmarks (`+bookmarkColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		bookmarkArgs(b)...)
	if err != nil {
		return false, fmt.Errorf("sqlite add bookmark: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite add bookmark: %w", err)
	}
	return n == 1, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM bookmarks WHERE id = ?`, id); err != nil {
		return fmt.Errorf("sqlite delete bookmark: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBookmark(sc scanner) (domain.Bookmark, error) {
	var (
		b         domain.Bookmark
		lat, lon  sql.NullFloat64
		createdAt sql.NullString
	)
	if err := sc.Scan(&b.ID, &b.Name, &b.Description, &b.PhotoURL, &lat, &lon, &createdAt); err != nil {
		return domain.Bookmark{}, err
	}
	if lat.Valid {
		b.Lat = domain.Coordinate(lat.Float64)
	}
	if lon.Valid {
		b.Lon = domain.Coordinate(lon.Float64)
	}
	if createdAt.Valid {
		if t, err := time.Parse(time.RFC3339Nano, createdAt.String); err == nil {
			b.CreatedAt = &t
		}
	}
	return b, nil
}

func bookmarkArgs(b domain.Bookmark) []any {
	var lat, lon, createdAt any
	if b.Lat != nil {
		lat = *b.Lat
	}
	if b.Lon != nil {
		lon = *b.Lon
	}
	if b.CreatedAt != nil {
		createdAt = b.CreatedAt.UTC().Format(time.RFC3339Nano)
	}
	return []any{b.ID, b.Name, b.Description, b.PhotoURL, lat, lon, createdAt}
}

// ─────────────────────────────────────────────────────────────────
// Subscriptions
// ─────────────────────────────────────────────────────────────────

func (s *Store) Upsert(ctx context.Context, rec domain.RemoteSubscription) (domain.RemoteSubscription, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO subscriptions (endpoint, id, p256dh, auth, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(endpoint) DO UPDATE SET
			p256dh = excluded.p256dh,
			auth = excluded.auth,
			updated_at = excluded.updated_at`,
		rec.Endpoint, rec.ID, rec.Keys.P256DH, rec.Keys.Auth,
		rec.CreatedAt.UTC().Format(time.RFC3339Nano),
		rec.UpdatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return domain.RemoteSubscription{}, fmt.Errorf("sqlite upsert subscription: %w", err)
	}
	return s.GetSubscription(ctx, rec.Endpoint)
}

func (s *Store) DeleteSubscription(ctx context.Context, endpoint string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM subscriptions WHERE endpoint = ?`, endpoint)
	if err != nil {
		return false, fmt.Errorf("sqlite delete subscription: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite delete subscription: %w", err)
	}
	return n > 0, nil
}

func (s *Store) GetSubscription(ctx context.Context, endpoint string) (domain.RemoteSubscription, error) {
	var (
		rec                  domain.RemoteSubscription
		createdAt, updatedAt string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT endpoint, id, p256dh, auth, created_at, updated_at
		FROM subscriptions WHERE endpoint = ?`, endpoint).
		Scan(&rec.Endpoint, &rec.ID, &rec.Keys.P256DH, &rec.Keys.Auth, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.RemoteSubscription{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.RemoteSubscription{}, fmt.Errorf("sqlite get subscription: %w", err)
	}
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	rec.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return rec, nil
}

func (s *Store) CountSubscriptions(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM subscriptions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite count subscriptions: %w", err)
	}
	return n, nil
}
