package music

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/musicbox/service/internal/identity"
	"github.com/musicbox/service/internal/response"
	"github.com/musicbox/service/internal/storage"
)

const (
	// formOverhead leaves room for the text fields and part headers on top
	// of the file itself.
	formOverhead = 1 << 20
	// maxFieldBytes bounds each text field of the upload form.
	maxFieldBytes = 4 << 10
)

var errMalformedForm = errors.New("malformed multipart form")

// Handler holds HTTP handlers for the music endpoints.
type Handler struct {
	svc      *Service
	maxBytes int64
	log      zerolog.Logger
}

// NewHandler creates a new music Handler.
func NewHandler(svc *Service, log zerolog.Logger) *Handler {
	return &Handler{
		svc:      svc,
		maxBytes: svc.cfg.MaxUploadBytes,
		log:      log.With().Str("component", "music-handler").Logger(),
	}
}

// Mount registers the music routes on r. The router must already be
// guarded by the auth middleware.
func (h *Handler) Mount(r chi.Router) {
	r.Post("/upload", h.Upload)
	r.Get("/music", h.List)
	r.Get("/music/{id}/stream", h.Stream)
	r.Delete("/music/{id}", h.Delete)
	r.Get("/my-music", h.ListMine)
}

type uploadResponse struct {
	Message string  `json:"message" example:"Music uploaded successfully"`
	Music   Summary `json:"music"`
}

// Upload godoc
//
//	@Summary		Upload audio
//	@Description	Store an audio file (max 100 MiB) with its title and artist.
//	@Tags			music
//	@Accept			multipart/form-data
//	@Produce		json
//	@Security		BearerAuth
//	@Param			title	formData	string	true	"Track title"
//	@Param			artist	formData	string	true	"Track artist"
//	@Param			music	formData	file	true	"Audio file"
//	@Success		201		{object}	uploadResponse
//	@Failure		400		{object}	response.ErrorBody
//	@Failure		401		{object}	response.ErrorBody
//	@Failure		500		{object}	response.ErrorBody
//	@Router			/upload [post]
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity.FromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "Access token required")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+formOverhead)
	mr, err := r.MultipartReader()
	if err != nil {
		response.BadRequest(w, "Invalid multipart form")
		return
	}

	form, err := h.readUploadForm(mr)
	if form != nil {
		defer form.cleanup()
	}
	if err != nil {
		h.writeError(w, err, "Error reading upload")
		return
	}

	rec, err := h.svc.Upload(r.Context(), caller, form.input())
	if err != nil {
		h.writeError(w, err, "Error uploading music")
		return
	}

	response.Created(w, uploadResponse{Message: "Music uploaded successfully", Music: rec.Summary()})
}

// parsedUpload is an upload request with the file spooled to disk.
type parsedUpload struct {
	title, artist string
	filename      string
	contentType   string
	size          int64
	file          *os.File
}

func (f *parsedUpload) input() UploadInput {
	in := UploadInput{
		Title:        f.title,
		Artist:       f.artist,
		OriginalName: f.filename,
		ContentType:  f.contentType,
		Size:         f.size,
	}
	if f.file != nil {
		in.Body = f.file
	}
	return in
}

func (f *parsedUpload) cleanup() {
	if f.file != nil {
		_ = f.file.Close()
		_ = os.Remove(f.file.Name())
	}
}

// readUploadForm walks the multipart parts in order. The file's type is
// checked from its part header (or its first bytes) before the rest of the
// part is read, so a non-audio payload is rejected whatever its size.
func (h *Handler) readUploadForm(mr *multipart.Reader) (*parsedUpload, error) {
	form := &parsedUpload{}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return form, formError(err)
		}

		switch {
		case part.FormName() == "music" && part.FileName() != "" && form.file == nil:
			if err := h.spoolFile(form, part); err != nil {
				return form, err
			}
		case part.FormName() == "title":
			form.title, err = readField(part)
		case part.FormName() == "artist":
			form.artist, err = readField(part)
		default:
			_, err = io.Copy(io.Discard, part)
		}
		if err != nil {
			return form, formError(err)
		}
	}

	if form.file == nil {
		return form, ErrMissingFile
	}
	return form, nil
}

func (h *Handler) spoolFile(form *parsedUpload, part *multipart.Part) error {
	contentType, body, err := resolveContentType(part.Header.Get("Content-Type"), part)
	if err != nil {
		return formError(err)
	}
	if !isAudio(contentType) {
		return fmt.Errorf("%w: got %q", ErrInvalidFileType, contentType)
	}

	tmp, err := os.CreateTemp("", "musicbox-upload-*")
	if err != nil {
		return fmt.Errorf("spool upload: %w", err)
	}
	form.file = tmp
	form.filename = part.FileName()
	form.contentType = contentType

	n, err := io.Copy(tmp, io.LimitReader(body, h.maxBytes+1))
	if err != nil {
		return formError(err)
	}
	if n > h.maxBytes {
		return fmt.Errorf("%w: more than %d bytes", ErrPayloadTooLarge, h.maxBytes)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewind upload: %w", err)
	}
	form.size = n
	return nil
}

func readField(part *multipart.Part) (string, error) {
	raw, err := io.ReadAll(io.LimitReader(part, maxFieldBytes))
	return string(raw), err
}

// formError classifies a failure while reading the request body.
func formError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return fmt.Errorf("%w: %w", ErrPayloadTooLarge, err)
	}
	return fmt.Errorf("%w: %w", errMalformedForm, err)
}

// List godoc
//
//	@Summary		List all music
//	@Description	Every uploaded track, newest first, with the uploader's name.
//	@Tags			music
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{array}		Record
//	@Failure		401	{object}	response.ErrorBody
//	@Failure		500	{object}	response.ErrorBody
//	@Router			/music [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	records, err := h.svc.List(r.Context())
	if err != nil {
		h.writeError(w, err, "Error fetching music")
		return
	}
	response.OK(w, nonNil(records))
}

// ListMine godoc
//
//	@Summary		List my music
//	@Description	Tracks uploaded by the caller, newest first.
//	@Tags			music
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{array}		Record
//	@Failure		401	{object}	response.ErrorBody
//	@Failure		500	{object}	response.ErrorBody
//	@Router			/my-music [get]
func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity.FromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "Access token required")
		return
	}

	records, err := h.svc.ListByOwner(r.Context(), caller)
	if err != nil {
		h.writeError(w, err, "Error fetching your music")
		return
	}
	response.OK(w, nonNil(records))
}

// Stream godoc
//
//	@Summary		Get stream URL
//	@Description	Returns a signed URL valid for one hour.
//	@Tags			music
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id	path		string	true	"Music ID"
//	@Success		200	{object}	Stream
//	@Failure		401	{object}	response.ErrorBody
//	@Failure		404	{object}	response.ErrorBody
//	@Failure		500	{object}	response.ErrorBody
//	@Router			/music/{id}/stream [get]
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	stream, err := h.svc.Stream(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err, "Error generating stream URL")
		return
	}
	response.OK(w, stream)
}

// Delete godoc
//
//	@Summary		Delete music
//	@Description	Removes the audio file and its record. Only the uploader may delete.
//	@Tags			music
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id	path		string	true	"Music ID"
//	@Success		200	{object}	response.MessageBody
//	@Failure		401	{object}	response.ErrorBody
//	@Failure		403	{object}	response.ErrorBody
//	@Failure		404	{object}	response.ErrorBody
//	@Failure		500	{object}	response.ErrorBody
//	@Router			/music/{id} [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity.FromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "Access token required")
		return
	}

	if err := h.svc.Delete(r.Context(), caller, chi.URLParam(r, "id")); err != nil {
		h.writeError(w, err, "Error deleting music")
		return
	}
	response.Message(w, "Music deleted successfully")
}

// writeError maps service errors onto the HTTP error taxonomy.
func (h *Handler) writeError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, ErrMissingFile):
		response.BadRequest(w, "No file uploaded")
	case errors.Is(err, errMalformedForm):
		response.Error(w, http.StatusBadRequest, "Invalid multipart form", err)
	case errors.Is(err, ErrInvalidFileType):
		response.BadRequest(w, "Only audio files are allowed!")
	case errors.Is(err, ErrPayloadTooLarge):
		response.BadRequest(w, "File too large")
	case errors.Is(err, ErrValidation):
		response.Error(w, http.StatusBadRequest, "Title and artist are required", err)
	case errors.Is(err, ErrNotFound):
		response.NotFound(w, "Music not found")
	case errors.Is(err, storage.ErrObjectMissing):
		response.NotFound(w, "Audio file missing from storage")
	case errors.Is(err, ErrForbidden):
		response.Forbidden(w, "Not authorized to delete this music")
	default:
		h.log.Error().Err(err).Msg(fallback)
		response.InternalError(w, fallback, err)
	}
}

func nonNil(records []Record) []Record {
	if records == nil {
		return []Record{}
	}
	return records
}
