package domain

import (
	"time"

	"github.com/google/uuid"
)

// UploadedFile is the metadata record of a file shared in chat.
// The bytes live in MinIO under StoredName; this row maps to the
// CockroachDB uploaded_files table.
type UploadedFile struct {
	FileID       uuid.UUID `json:"file_id" db:"file_id"`
	OriginalName string    `json:"original_name" db:"original_name"`
	StoredName   string    `json:"stored_name" db:"stored_name"`
	Size         int64     `json:"size" db:"size"`
	ContentType  string    `json:"content_type" db:"content_type"`
	UploadedBy   uuid.UUID `json:"uploaded_by" db:"uploaded_by"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`

	// URL is the download path handed back to clients; not persisted
	URL string `json:"url,omitempty" db:"-"`
}
