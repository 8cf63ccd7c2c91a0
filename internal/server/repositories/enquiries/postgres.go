// Package enquiries provides the PostgreSQL-backed enquiry repository.
// Criteria and photo keys are stored as JSONB documents.
package enquiries

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dmitrijs2005/enquirykeeper/internal/common"
	"github.com/dmitrijs2005/enquirykeeper/internal/dbx"
	"github.com/dmitrijs2005/enquirykeeper/internal/server/models"
)

// uniqueViolation is the SQLSTATE for unique_violation.
const uniqueViolation = "23505"

const selectColumns = `SELECT id, criteria, photo_keys, recorded_audio, created_by, created_at, updated_at FROM enquiries`

// PostgresRepository implements enquiry storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Get loads an enquiry by id. Returns common.ErrorNotFound when absent.
func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.Enquiry, error) {
	return r.get(ctx, selectColumns+` WHERE id=$1`, id)
}

// GetForUpdate loads an enquiry and locks its row until the surrounding
// transaction ends. It must be called on a *sql.Tx.
func (r *PostgresRepository) GetForUpdate(ctx context.Context, id string) (*models.Enquiry, error) {
	return r.get(ctx, selectColumns+` WHERE id=$1 FOR UPDATE`, id)
}

func (r *PostgresRepository) get(ctx context.Context, query, id string) (*models.Enquiry, error) {
	var (
		e        models.Enquiry
		criteria []byte
		photos   []byte
		audio    sql.NullString
	)

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&e.ID, &criteria, &photos, &audio, &e.CreatedBy, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to select enquiry: %w", dbx.NotFound(err))
	}

	if err := json.Unmarshal(criteria, &e.Criteria); err != nil {
		return nil, fmt.Errorf("decode criteria: %w", err)
	}
	if e.Criteria == nil {
		e.Criteria = models.Criteria{}
	}
	if err := json.Unmarshal(photos, &e.PhotoKeys); err != nil {
		return nil, fmt.Errorf("decode photo keys: %w", err)
	}
	if e.PhotoKeys == nil {
		e.PhotoKeys = []string{}
	}
	e.RecordedAudio = audio.String

	return &e, nil
}

// Insert stores a new enquiry. An existing row with the same id is left
// untouched and common.ErrorAlreadyExists is returned.
func (r *PostgresRepository) Insert(ctx context.Context, e *models.Enquiry) error {
	criteria, photos, audio, err := encode(e)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO enquiries (id, criteria, photo_keys, recorded_audio, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7);
	`
	_, err = r.db.ExecContext(ctx, query,
		e.ID, criteria, photos, audio, e.CreatedBy, e.CreatedAt, e.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("enquiry %s: %w", e.ID, common.ErrorAlreadyExists)
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Save inserts the enquiry or replaces its mutable columns. created_by and
// created_at are written once and never touched by later saves.
func (r *PostgresRepository) Save(ctx context.Context, e *models.Enquiry) error {
	criteria, photos, audio, err := encode(e)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO enquiries (id, criteria, photo_keys, recorded_audio, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id)
		DO UPDATE SET
			criteria = EXCLUDED.criteria,
			photo_keys = EXCLUDED.photo_keys,
			recorded_audio = EXCLUDED.recorded_audio,
			updated_at = EXCLUDED.updated_at;
	`
	res, err := r.db.ExecContext(ctx, query,
		e.ID, criteria, photos, audio, e.CreatedBy, e.CreatedAt, e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n != 1 {
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
	return nil
}

func encode(e *models.Enquiry) (criteria, photos []byte, audio sql.NullString, err error) {
	c := e.Criteria
	if c == nil {
		c = models.Criteria{}
	}
	if criteria, err = json.Marshal(c); err != nil {
		return nil, nil, audio, fmt.Errorf("encode criteria: %w", err)
	}
	keys := e.PhotoKeys
	if keys == nil {
		keys = []string{}
	}
	if photos, err = json.Marshal(keys); err != nil {
		return nil, nil, audio, fmt.Errorf("encode photo keys: %w", err)
	}
	audio = sql.NullString{String: e.RecordedAudio, Valid: e.RecordedAudio != ""}
	return criteria, photos, audio, nil
}

// Count returns the number of stored enquiries.
func (r *PostgresRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM enquiries`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count enquiries: %w", err)
	}
	return n, nil
}
