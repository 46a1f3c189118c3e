package cockroach

import (
	"context"
	stderrors "errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"eduadvise-backend/internal/domain"
	"eduadvise-backend/pkg/errors"
)

const fileColumns = `file_id, original_name, stored_name, size, content_type, uploaded_by, created_at`

// FileRepository persists uploaded-file metadata in CockroachDB; the
// bytes themselves live in object storage.
type FileRepository struct {
	pool *pgxpool.Pool
}

// NewFileRepository creates a new FileRepository
func NewFileRepository(pool *pgxpool.Pool) *FileRepository {
	return &FileRepository{pool: pool}
}

// Create inserts a new file record
func (r *FileRepository) Create(ctx context.Context, file *domain.UploadedFile) error {
	query := `
		INSERT INTO uploaded_files (file_id, original_name, stored_name, size, content_type, uploaded_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`
	err := r.pool.QueryRow(ctx, query,
		file.FileID,
		file.OriginalName,
		file.StoredName,
		file.Size,
		file.ContentType,
		file.UploadedBy,
	).Scan(&file.CreatedAt)
	if err != nil {
		return errors.DatabaseError(err)
	}
	return nil
}

// GetByID retrieves metadata for one file
func (r *FileRepository) GetByID(ctx context.Context, fileID uuid.UUID) (*domain.UploadedFile, error) {
	query := `SELECT ` + fileColumns + ` FROM uploaded_files WHERE file_id = $1`

	file := &domain.UploadedFile{}
	err := r.pool.QueryRow(ctx, query, fileID).Scan(
		&file.FileID,
		&file.OriginalName,
		&file.StoredName,
		&file.Size,
		&file.ContentType,
		&file.UploadedBy,
		&file.CreatedAt,
	)
	if err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) {
			return nil, errors.FileNotFoundError()
		}
		return nil, errors.DatabaseError(err)
	}
	return file, nil
}

// ListByUser returns files uploaded by one user, newest first
func (r *FileRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.UploadedFile, error) {
	query := `
		SELECT ` + fileColumns + `
		FROM uploaded_files
		WHERE uploaded_by = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.pool.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, errors.DatabaseError(err)
	}
	defer rows.Close()

	var files []*domain.UploadedFile
	for rows.Next() {
		file := &domain.UploadedFile{}
		if err := rows.Scan(
			&file.FileID,
			&file.OriginalName,
			&file.StoredName,
			&file.Size,
			&file.ContentType,
			&file.UploadedBy,
			&file.CreatedAt,
		); err != nil {
			return nil, errors.DatabaseError(err)
		}
		files = append(files, file)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.DatabaseError(err)
	}
	return files, nil
}

// Delete removes a file record
func (r *FileRepository) Delete(ctx context.Context, fileID uuid.UUID) error {
	query := `DELETE FROM uploaded_files WHERE file_id = $1`
	cmdTag, err := r.pool.Exec(ctx, query, fileID)
	if err != nil {
		return errors.DatabaseError(err)
	}
	if cmdTag.RowsAffected() == 0 {
		return errors.FileNotFoundError()
	}
	return nil
}
