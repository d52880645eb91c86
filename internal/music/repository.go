package music

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository is the Postgres-backed catalog.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new Repository with the given connection pool.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const selectRecords = `
	SELECT m.id, m.title, m.artist, m.storage_key, m.original_name, m.size_bytes,
	       m.content_type, m.owner_id, COALESCE(u.username, ''), m.created_at
	FROM music m
	LEFT JOIN users u ON u.id::text = m.owner_id`

// Create inserts rec and fills in its ID and CreatedAt.
func (r *Repository) Create(ctx context.Context, rec *Record) error {
	if strings.TrimSpace(rec.Title) == "" || strings.TrimSpace(rec.Artist) == "" ||
		rec.StorageKey == "" || rec.OwnerID == "" || rec.ContentType == "" {
		return fmt.Errorf("%w: record is missing required fields", ErrValidation)
	}

	err := r.db.QueryRow(ctx,
		`INSERT INTO music (title, artist, storage_key, original_name, size_bytes, content_type, owner_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at`,
		rec.Title, rec.Artist, rec.StorageKey, rec.OriginalName, rec.SizeBytes, rec.ContentType, rec.OwnerID,
	).Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert music: %w", err)
	}
	return nil
}

// ListAll returns every record, newest first, with owner names resolved.
func (r *Repository) ListAll(ctx context.Context) ([]Record, error) {
	return r.list(ctx, selectRecords+` ORDER BY m.created_at DESC, m.id`)
}

// ListByOwner returns the records uploaded by ownerID, newest first.
func (r *Repository) ListByOwner(ctx context.Context, ownerID string) ([]Record, error) {
	return r.list(ctx, selectRecords+` WHERE m.owner_id = $1 ORDER BY m.created_at DESC, m.id`, ownerID)
}

// FindByID fetches one record. Ids that are not UUIDs cannot exist.
func (r *Repository) FindByID(ctx context.Context, id string) (*Record, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}

	rows, err := r.db.Query(ctx, selectRecords+` WHERE m.id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("find music: %w", err)
	}
	rec, err := pgx.CollectExactlyOneRow(rows, scanRecord)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find music: %w", err)
	}
	return &rec, nil
}

// DeleteByID removes one record.
func (r *Repository) DeleteByID(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}

	tag, err := r.db.Exec(ctx, `DELETE FROM music WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete music: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) list(ctx context.Context, query string, args ...any) ([]Record, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list music: %w", err)
	}
	records, err := pgx.CollectRows(rows, scanRecord)
	if err != nil {
		return nil, fmt.Errorf("list music: %w", err)
	}
	return records, nil
}

func scanRecord(row pgx.CollectableRow) (Record, error) {
	var rec Record
	err := row.Scan(&rec.ID, &rec.Title, &rec.Artist, &rec.StorageKey, &rec.OriginalName, &rec.SizeBytes,
		&rec.ContentType, &rec.OwnerID, &rec.OwnerName, &rec.CreatedAt)
	return rec, err
}
