package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/cloud-gallery/pkg/gallery"
)

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Repository implements gallery.MetadataStore using PostgreSQL.
// Status values are parsed on read, so rows written by other tools with
// different case or padding still map onto the closed set.
type Repository struct {
	db DBTX
}

// New creates a new PostgreSQL repository
func New(db DBTX) *Repository {
	return &Repository{db: db}
}

// NewWithPool creates a new PostgreSQL repository with connection pool
func NewWithPool(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

// Error handling helper
func (r *Repository) handlePostgresError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("%w: %s", gallery.ErrImageExists, pgErr.Detail)
		case "23502": // not_null_violation
			return fmt.Errorf("required field %s is missing", pgErr.ColumnName)
		case "42P01": // undefined_table
			return fmt.Errorf("table does not exist - database migration required")
		default:
			return fmt.Errorf("database error in %s: %s (code: %s)", operation, pgErr.Message, pgErr.Code)
		}
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return gallery.ErrImageNotFound
	}

	return fmt.Errorf("database error in %s: %w", operation, err)
}

const imageColumns = `image_id, status, content_type, object_key, thumb_key, labels,
	owner_id, failure_reason, created_at, updated_at`

func (r *Repository) Create(ctx context.Context, rec *gallery.ImageRecord) error {
	status, err := gallery.ParseStatus(string(rec.Status))
	if err != nil {
		return err
	}

	query := `
		INSERT INTO images (` + imageColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err = r.db.Exec(ctx, query,
		rec.ImageID, string(status), rec.ContentType, rec.ObjectKey, rec.ThumbKey, rec.Labels,
		rec.OwnerID, rec.FailureReason, rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		return r.handlePostgresError("create image", err)
	}
	return nil
}

func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*gallery.ImageRecord, error) {
	query := `SELECT ` + imageColumns + ` FROM images WHERE image_id = $1`

	rec, err := scanImage(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, r.handlePostgresError("get image", err)
	}
	return rec, nil
}

func (r *Repository) CompleteReady(ctx context.Context, id uuid.UUID, update gallery.ReadyUpdate) error {
	query := `
		UPDATE images SET
			status = $2, thumb_key = $3, labels = $4, updated_at = $5
		WHERE image_id = $1 AND upper(btrim(status)) = $6`

	labels := update.Labels
	if labels == nil {
		labels = []string{}
	}
	tag, err := r.db.Exec(ctx, query,
		id, string(gallery.StatusReady), update.ThumbKey, labels, update.UpdatedAt, string(gallery.StatusPending))
	if err != nil {
		return r.handlePostgresError("complete image", err)
	}
	if tag.RowsAffected() == 0 {
		return r.conditionMiss(ctx, id)
	}
	return nil
}

func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, reason string, at time.Time) error {
	query := `
		UPDATE images SET
			status = $2, failure_reason = $3, updated_at = $4
		WHERE image_id = $1 AND upper(btrim(status)) = $5`

	tag, err := r.db.Exec(ctx, query, id, string(gallery.StatusFailed), reason, at, string(gallery.StatusPending))
	if err != nil {
		return r.handlePostgresError("fail image", err)
	}
	if tag.RowsAffected() == 0 {
		return r.conditionMiss(ctx, id)
	}
	return nil
}

// conditionMiss tells a lost race apart from a missing row after a
// conditional update touched nothing.
func (r *Repository) conditionMiss(ctx context.Context, id uuid.UUID) error {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM images WHERE image_id = $1)`, id).Scan(&exists)
	if err != nil {
		return r.handlePostgresError("check image", err)
	}
	if !exists {
		return gallery.ErrImageNotFound
	}
	return gallery.ErrRaceLost
}

func (r *Repository) List(ctx context.Context, filter gallery.ListFilter) ([]*gallery.ImageRecord, error) {
	query := `SELECT ` + imageColumns + ` FROM images`
	var args []interface{}

	var where []string
	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		where = append(where, fmt.Sprintf(`upper(btrim(status)) = $%d`, len(args)))
	}
	if filter.HasThumbnail {
		where = append(where, `thumb_key <> ''`)
	}
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, image_id`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, r.handlePostgresError("list images", err)
	}
	defer rows.Close()

	var result []*gallery.ImageRecord
	for rows.Next() {
		rec, err := scanImage(rows)
		if err != nil {
			return nil, r.handlePostgresError("scan image", err)
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, r.handlePostgresError("list images", err)
	}
	return result, nil
}

func scanImage(row pgx.Row) (*gallery.ImageRecord, error) {
	var (
		rec    gallery.ImageRecord
		status string
	)
	err := row.Scan(
		&rec.ImageID, &status, &rec.ContentType, &rec.ObjectKey, &rec.ThumbKey, &rec.Labels,
		&rec.OwnerID, &rec.FailureReason, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}

	rec.Status, err = gallery.ParseStatus(status)
	if err != nil {
		return nil, err
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	rec.UpdatedAt = rec.UpdatedAt.UTC()
	return &rec, nil
}
