package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/SrinuTirumanisetti/Video-Streaming-Application/internal/domain/entity"
)

type RecordStore struct {
	pool *pgxpool.Pool
}

func NewRecordStore(pool *pgxpool.Pool) *RecordStore {
	return &RecordStore{pool: pool}
}

func (s *RecordStore) Create(ctx context.Context, rec *entity.MediaRecord) error {
	query := `
		INSERT INTO media_records (
			id, filename, source_locator, mime_type, file_size,
			status, last_error, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`

	_, err := s.pool.Exec(ctx, query,
		rec.ID, rec.Filename, rec.SourceLocator, rec.MimeType, rec.Size,
		string(rec.Status), rec.LastError, rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert media record: %w", err)
	}
	return nil
}

func (s *RecordStore) Get(ctx context.Context, recordID string) (*entity.MediaRecord, error) {
	query := `
		SELECT id, filename, source_locator, mime_type, file_size,
			status, last_error, created_at, updated_at
		FROM media_records WHERE id=$1`

	rec := &entity.MediaRecord{}
	var status string
	err := s.pool.QueryRow(ctx, query, recordID).Scan(
		&rec.ID, &rec.Filename, &rec.SourceLocator, &rec.MimeType, &rec.Size,
		&status, &rec.LastError, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, entity.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find media record: %w", err)
	}
	rec.Status = entity.Status(status)
	return rec, nil
}

// CompareAndSetStatus is the single conditional UPDATE that makes racing
// terminal writes harmless: the row moves out of expected at most once.
func (s *RecordStore) CompareAndSetStatus(ctx context.Context, recordID string, expected, next entity.Status, lastError string) (bool, error) {
	query := `
		UPDATE media_records
		SET status=$3, last_error=$4, updated_at=now()
		WHERE id=$1 AND status=$2`

	tag, err := s.pool.Exec(ctx, query, recordID, string(expected), string(next), lastError)
	if err != nil {
		return false, fmt.Errorf("update media record status: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
