// Package store keeps offline marketplace snapshots in SQL and serves them
// back as a market data source.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/elonfeng/asoradar/pkg/market"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a listing is not in the snapshot.
var ErrNotFound = market.ErrNotFound

// Ranking kinds.
const (
	KindSearch     = "search"
	KindCollection = "collection"
	KindSimilar    = "similar"
)

const listingColumns = "id, title, description, developer, rating, free, category_id, reviews, installs, updated, url"

// Store is the persistence interface.
type Store interface {
	UpsertListings(ctx context.Context, listings []market.Listing) error
	GetListing(ctx context.Context, id string) (*market.Listing, error)
	SearchListings(ctx context.Context, term string, limit int) ([]market.Listing, error)

	SetRanking(ctx context.Context, kind, key string, ids []string) error
	Ranking(ctx context.Context, kind, key string, limit int) ([]market.Listing, error)

	SetSuggestions(ctx context.Context, term string, suggestions []string) error
	Suggestions(ctx context.Context, term string, limit int) ([]string, error)

	Import(ctx context.Context, snap *Snapshot) error
	Close() error
}

// SQLStore implements Store on SQLite or PostgreSQL.
type SQLStore struct {
	db *sqlx.DB
}

// driverFor picks the database driver and schema for a DSN. PostgreSQL URLs
// select lib/pq; anything else is a SQLite file path.
func driverFor(dsn string) (driver, source, schema string) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return "postgres", dsn, schemaPostgres
	}
	return "sqlite", dsn + "?_journal_mode=WAL&_busy_timeout=5000", schemaSQLite
}

// Open connects to the snapshot database and runs migrations.
func Open(dsn string) (*SQLStore, error) {
	driver, source, schema := driverFor(dsn)
	db, err := sqlx.Open(driver, source)
	if err != nil {
		return nil, fmt.Errorf("open %s %s: %w", driver, dsn, err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLStore{db: db}, nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) UpsertListings(ctx context.Context, listings []market.Listing) error {
	return upsertListings(ctx, s.db, listings)
}

func upsertListings(ctx context.Context, ext sqlx.ExtContext, listings []market.Listing) error {
	query := ext.Rebind(`
		INSERT INTO listings (` + listingColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			developer = excluded.developer,
			rating = excluded.rating,
			free = excluded.free,
			category_id = excluded.category_id,
			reviews = excluded.reviews,
			installs = excluded.installs,
			updated = excluded.updated,
			url = excluded.url
	`)
	for _, l := range listings {
		_, err := ext.ExecContext(ctx, query,
			l.ID, l.Title, l.Description, l.Developer, l.Rating, l.Free,
			l.CategoryID, l.Reviews, l.Installs, l.Updated.UTC(), l.URL)
		if err != nil {
			return fmt.Errorf("upsert listing %s: %w", l.ID, err)
		}
	}
	return nil
}

func (s *SQLStore) GetListing(ctx context.Context, id string) (*market.Listing, error) {
	var l market.Listing
	err := s.db.GetContext(ctx, &l, s.db.Rebind("SELECT "+listingColumns+" FROM listings WHERE id = ?"), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get listing %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get listing %s: %w", id, err)
	}
	return &l, nil
}

// SearchListings matches term against titles and descriptions, title hits
// first, then by installs and reviews.
func (s *SQLStore) SearchListings(ctx context.Context, term string, limit int) ([]market.Listing, error) {
	pattern := "%" + normalizeTerm(term) + "%"
	query := "SELECT " + listingColumns + ` FROM listings
		WHERE LOWER(title) LIKE ? OR LOWER(description) LIKE ?
		ORDER BY CASE WHEN LOWER(title) LIKE ? THEN 0 ELSE 1 END, installs DESC, reviews DESC, id`
	args := []any{pattern, pattern, pattern}
	query, args = withLimit(query, args, limit)

	var listings []market.Listing
	if err := s.db.SelectContext(ctx, &listings, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("search listings %q: %w", term, err)
	}
	return listings, nil
}

func (s *SQLStore) SetRanking(ctx context.Context, kind, key string, ids []string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin ranking %s/%s: %w", kind, key, err)
	}
	defer tx.Rollback()

	if err := setRanking(ctx, tx, kind, key, ids); err != nil {
		return err
	}
	return tx.Commit()
}

func setRanking(ctx context.Context, ext sqlx.ExtContext, kind, key string, ids []string) error {
	if _, err := ext.ExecContext(ctx, ext.Rebind("DELETE FROM rankings WHERE kind = ? AND ref = ?"), kind, key); err != nil {
		return fmt.Errorf("clear ranking %s/%s: %w", kind, key, err)
	}
	insert := ext.Rebind("INSERT INTO rankings (kind, ref, position, app_id) VALUES (?, ?, ?, ?)")
	for i, id := range ids {
		if _, err := ext.ExecContext(ctx, insert, kind, key, i, id); err != nil {
			return fmt.Errorf("insert ranking %s/%s: %w", kind, key, err)
		}
	}
	return nil
}

// Ranking returns the listings recorded under kind and key in rank order.
// Entries without a stored listing are skipped.
func (s *SQLStore) Ranking(ctx context.Context, kind, key string, limit int) ([]market.Listing, error) {
	query := `SELECT l.id, l.title, l.description, l.developer, l.rating, l.free,
			l.category_id, l.reviews, l.installs, l.updated, l.url
		FROM rankings r JOIN listings l ON l.id = r.app_id
		WHERE r.kind = ? AND r.ref = ?
		ORDER BY r.position`
	args := []any{kind, key}
	query, args = withLimit(query, args, limit)

	var listings []market.Listing
	if err := s.db.SelectContext(ctx, &listings, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("get ranking %s/%s: %w", kind, key, err)
	}
	return listings, nil
}

func (s *SQLStore) SetSuggestions(ctx context.Context, term string, suggestions []string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin suggestions %q: %w", term, err)
	}
	defer tx.Rollback()

	if err := setSuggestions(ctx, tx, term, suggestions); err != nil {
		return err
	}
	return tx.Commit()
}

func setSuggestions(ctx context.Context, ext sqlx.ExtContext, term string, suggestions []string) error {
	term = normalizeTerm(term)
	if _, err := ext.ExecContext(ctx, ext.Rebind("DELETE FROM suggestions WHERE term = ?"), term); err != nil {
		return fmt.Errorf("clear suggestions %q: %w", term, err)
	}
	insert := ext.Rebind("INSERT INTO suggestions (term, position, suggestion) VALUES (?, ?, ?)")
	for i, sg := range suggestions {
		if _, err := ext.ExecContext(ctx, insert, term, i, sg); err != nil {
			return fmt.Errorf("insert suggestion %q: %w", term, err)
		}
	}
	return nil
}

func (s *SQLStore) Suggestions(ctx context.Context, term string, limit int) ([]string, error) {
	query := "SELECT suggestion FROM suggestions WHERE term = ? ORDER BY position"
	args := []any{normalizeTerm(term)}
	query, args = withLimit(query, args, limit)

	var out []string
	if err := s.db.SelectContext(ctx, &out, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("get suggestions %q: %w", term, err)
	}
	return out, nil
}

// Import writes a snapshot in one transaction. Rankings and suggestions it
// names replace what was stored under the same keys.
func (s *SQLStore) Import(ctx context.Context, snap *Snapshot) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin import: %w", err)
	}
	defer tx.Rollback()

	if err := upsertListings(ctx, tx, snap.Apps); err != nil {
		return err
	}
	for term, ids := range snap.Searches {
		if err := setRanking(ctx, tx, KindSearch, normalizeTerm(term), ids); err != nil {
			return err
		}
	}
	for _, c := range snap.Collections {
		if err := setRanking(ctx, tx, KindCollection, CollectionKey(c.Collection, c.Category), c.Apps); err != nil {
			return err
		}
	}
	for appID, ids := range snap.Similar {
		if err := setRanking(ctx, tx, KindSimilar, appID, ids); err != nil {
			return err
		}
	}
	for term, sgs := range snap.Suggestions {
		if err := setSuggestions(ctx, tx, term, sgs); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit import: %w", err)
	}
	return nil
}

// CollectionKey is the ranking key of a collection within a category.
func CollectionKey(c market.Collection, category string) string {
	return string(c) + "/" + category
}

func normalizeTerm(term string) string {
	return strings.ToLower(strings.TrimSpace(term))
}

func withLimit(query string, args []any, limit int) (string, []any) {
	if limit <= 0 {
		return query, args
	}
	return query + " LIMIT ?", append(args, limit)
}
