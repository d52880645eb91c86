package music

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"

	"github.com/musicbox/service/internal/config"
	"github.com/musicbox/service/internal/identity"
	"github.com/musicbox/service/internal/metrics"
	"github.com/musicbox/service/internal/storage"
)

// sniffLen is how much of the body is inspected when the declared content
// type is missing or generic.
const sniffLen = 512

// Catalog persists records.
type Catalog interface {
	Create(ctx context.Context, rec *Record) error
	ListAll(ctx context.Context) ([]Record, error)
	ListByOwner(ctx context.Context, ownerID string) ([]Record, error)
	FindByID(ctx context.Context, id string) (*Record, error)
	DeleteByID(ctx context.Context, id string) error
}

// Service ties the catalog to the object storage gateway.
type Service struct {
	catalog Catalog
	gateway storage.Gateway
	cfg     *config.Config
	log     zerolog.Logger
}

// NewService creates a new music Service.
func NewService(catalog Catalog, gateway storage.Gateway, cfg *config.Config, log zerolog.Logger) *Service {
	return &Service{
		catalog: catalog,
		gateway: gateway,
		cfg:     cfg,
		log:     log.With().Str("component", "music-service").Logger(),
	}
}

// Upload validates in, writes the blob and then commits the catalog record.
// If the blob write fails nothing is recorded. If the catalog write fails
// the blob is left behind unreferenced.
func (s *Service) Upload(ctx context.Context, owner identity.Identity, in UploadInput) (rec *Record, err error) {
	defer func() {
		status := "success"
		if err != nil {
			status = "failure"
		}
		metrics.RecordUpload(status, in.Size)
	}()

	if in.Body == nil {
		return nil, ErrMissingFile
	}

	contentType, body, err := resolveContentType(in.ContentType, in.Body)
	if err != nil {
		return nil, err
	}
	if !isAudio(contentType) {
		return nil, fmt.Errorf("%w: got %q", ErrInvalidFileType, contentType)
	}
	if in.Size > s.cfg.MaxUploadBytes {
		return nil, fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrPayloadTooLarge, in.Size, s.cfg.MaxUploadBytes)
	}
	title, artist := strings.TrimSpace(in.Title), strings.TrimSpace(in.Artist)
	if title == "" || artist == "" {
		return nil, fmt.Errorf("%w: title and artist are required", ErrValidation)
	}

	key := NewStorageKey(in.OriginalName)
	s.log.Info().
		Str("original_name", in.OriginalName).
		Int64("size", in.Size).
		Str("content_type", contentType).
		Str("key", key).
		Msg("uploading audio")

	if err := s.gateway.Put(ctx, key, body, in.Size, contentType, in.OriginalName); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	rec = &Record{
		Title:        title,
		Artist:       artist,
		StorageKey:   key,
		OriginalName: in.OriginalName,
		SizeBytes:    in.Size,
		ContentType:  contentType,
		OwnerID:      owner.UserID,
		OwnerName:    owner.Username,
	}
	if err := s.catalog.Create(ctx, rec); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("catalog insert failed, blob left unreferenced")
		return nil, fmt.Errorf("%w: %w", ErrCatalog, err)
	}

	s.log.Info().Str("id", rec.ID).Str("title", rec.Title).Msg("audio saved")
	return rec, nil
}

// List returns every record, newest first.
func (s *Service) List(ctx context.Context) ([]Record, error) {
	records, err := s.catalog.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCatalog, err)
	}
	return records, nil
}

// ListByOwner returns the caller's own records, newest first.
func (s *Service) ListByOwner(ctx context.Context, owner identity.Identity) ([]Record, error) {
	records, err := s.catalog.ListByOwner(ctx, owner.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCatalog, err)
	}
	return records, nil
}

// Stream resolves id to a signed URL. Any authenticated caller may stream.
// A record whose blob is gone fails with storage.ErrObjectMissing.
func (s *Service) Stream(ctx context.Context, id string) (*Stream, error) {
	rec, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	s.log.Debug().Str("id", rec.ID).Str("title", rec.Title).Msg("signing stream url")
	url, err := s.gateway.SignedGetURL(ctx, rec.StorageKey, s.cfg.StreamURLTTL)
	if errors.Is(err, storage.ErrObjectMissing) {
		s.log.Warn().Str("id", rec.ID).Str("key", rec.StorageKey).Msg("catalog record points at a missing blob")
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	return &Stream{URL: url, Title: rec.Title, Artist: rec.Artist}, nil
}

// Delete removes the blob and then the record, only for the record's owner.
func (s *Service) Delete(ctx context.Context, caller identity.Identity, id string) error {
	rec, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	if rec.OwnerID != caller.UserID {
		return ErrForbidden
	}

	if err := s.gateway.Remove(ctx, rec.StorageKey); err != nil {
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}
	if err := s.catalog.DeleteByID(ctx, rec.ID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		s.log.Error().Err(err).Str("id", rec.ID).Str("key", rec.StorageKey).
			Msg("blob removed but catalog delete failed, record now dangling")
		return fmt.Errorf("%w: %w", ErrCatalog, err)
	}

	s.log.Info().Str("id", rec.ID).Str("owner", caller.UserID).Msg("audio deleted")
	return nil
}

func (s *Service) find(ctx context.Context, id string) (*Record, error) {
	rec, err := s.catalog.FindByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCatalog, err)
	}
	return rec, nil
}

// resolveContentType trusts the declared type unless it is missing or
// generic, in which case the head of body is sniffed. The returned reader
// replays any sniffed bytes.
func resolveContentType(declared string, body io.Reader) (string, io.Reader, error) {
	declared = strings.TrimSpace(declared)
	if declared != "" && !strings.HasPrefix(declared, "application/octet-stream") {
		return declared, body, nil
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(body, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return "", nil, fmt.Errorf("read upload: %w", err)
	}
	head = head[:n]
	return mimetype.Detect(head).String(), io.MultiReader(bytes.NewReader(head), body), nil
}

func isAudio(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return strings.HasPrefix(mediaType, "audio/")
}
