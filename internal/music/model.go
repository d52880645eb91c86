// Package music implements the audio catalog: uploads, listing, signed
// stream URLs and owner-only deletion.
package music

import (
	"errors"
	"io"
	"time"
)

var (
	// ErrValidation is returned for missing or malformed input.
	ErrValidation = errors.New("validation error")
	// ErrMissingFile is returned when an upload carries no file.
	ErrMissingFile = errors.New("no file uploaded")
	// ErrInvalidFileType is returned when the payload is not audio.
	ErrInvalidFileType = errors.New("only audio files are allowed")
	// ErrPayloadTooLarge is returned when the payload exceeds the upload limit.
	ErrPayloadTooLarge = errors.New("file too large")
	// ErrNotFound is returned when no record has the requested id.
	ErrNotFound = errors.New("music not found")
	// ErrForbidden is returned when the caller does not own the record.
	ErrForbidden = errors.New("not authorized to delete this music")
	// ErrStorage wraps object storage failures.
	ErrStorage = errors.New("storage error")
	// ErrCatalog wraps catalog failures.
	ErrCatalog = errors.New("catalog error")
)

// Record is one uploaded audio file.
type Record struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Artist       string    `json:"artist"`
	StorageKey   string    `json:"storageKey"`
	OriginalName string    `json:"originalName"`
	SizeBytes    int64     `json:"sizeBytes"`
	ContentType  string    `json:"contentType"`
	OwnerID      string    `json:"ownerId"`
	OwnerName    string    `json:"ownerName,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Summary is the public view returned right after an upload.
type Summary struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Artist       string    `json:"artist"`
	StorageKey   string    `json:"storageKey"`
	OriginalName string    `json:"originalName"`
	SizeBytes    int64     `json:"sizeBytes"`
	UploadedAt   time.Time `json:"uploadedAt"`
}

// Summary returns the upload summary of r.
func (r *Record) Summary() Summary {
	return Summary{
		ID:           r.ID,
		Title:        r.Title,
		Artist:       r.Artist,
		StorageKey:   r.StorageKey,
		OriginalName: r.OriginalName,
		SizeBytes:    r.SizeBytes,
		UploadedAt:   r.CreatedAt,
	}
}

// UploadInput is one file plus its metadata.
type UploadInput struct {
	Title        string
	Artist       string
	OriginalName string
	ContentType  string
	Size         int64
	Body         io.Reader
}

// Stream is a signed URL plus display metadata.
type Stream struct {
	URL    string `json:"url"`
	Title  string `json:"title"`
	Artist string `json:"artist"`
}
