package music

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/musicbox/service/internal/identity"
	"github.com/musicbox/service/internal/middleware"
	"github.com/musicbox/service/internal/response"
)

type tokenProvider map[string]identity.Identity

func (p tokenProvider) Authenticate(_ context.Context, credential string) (identity.Identity, error) {
	id, ok := p[credential]
	if !ok {
		return identity.Identity{}, identity.ErrUnauthenticated
	}
	return id, nil
}

type testServer struct {
	router  http.Handler
	catalog *memoryCatalog
	gateway *memoryGateway
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	svc, catalog, gateway := newTestService(t)
	h := NewHandler(svc, zerolog.Nop())

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.RequireAuth(tokenProvider{"alice-token": alice, "bob-token": bob}, zerolog.Nop()))
		h.Mount(r)
	})
	return &testServer{router: r, catalog: catalog, gateway: gateway}
}

func (s *testServer) do(t *testing.T, req *http.Request, token string) *httptest.ResponseRecorder {
	t.Helper()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

type uploadForm struct {
	title, artist string
	filename      string
	contentType   string
	data          []byte
	omitFile      bool
}

func newUploadRequest(t *testing.T, f uploadForm) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("title", f.title))
	require.NoError(t, mw.WriteField("artist", f.artist))
	if !f.omitFile {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="music"; filename=%q`, f.filename))
		header.Set("Content-Type", f.contentType)
		part, err := mw.CreatePart(header)
		require.NoError(t, err)
		_, err = part.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func (s *testServer) upload(t *testing.T, token, title string) Summary {
	t.Helper()
	req := newUploadRequest(t, uploadForm{
		title: title, artist: "Artist", filename: title + ".mp3",
		contentType: "audio/mpeg", data: []byte("ID3 bytes"),
	})
	rec := s.do(t, req, token)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var body uploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Music
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) response.ErrorBody {
	t.Helper()
	var body response.ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestUploadHandler(t *testing.T) {
	s := newTestServer(t)
	req := newUploadRequest(t, uploadForm{
		title: "Halo", artist: "Beyoncé", filename: "halo.mp3",
		contentType: "audio/mpeg", data: []byte("ID3 bytes"),
	})

	rec := s.do(t, req, "alice-token")

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var body uploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "Music uploaded successfully", body.Message)
	require.Equal(t, "Halo", body.Music.Title)
	require.Equal(t, "Beyoncé", body.Music.Artist)
	require.Equal(t, "halo.mp3", body.Music.OriginalName)
	require.EqualValues(t, len("ID3 bytes"), body.Music.SizeBytes)
	require.NotEmpty(t, body.Music.ID)
	require.False(t, body.Music.UploadedAt.IsZero())
	require.Equal(t, 1, s.gateway.len())
}

func TestUploadHandlerRejections(t *testing.T) {
	cases := []struct {
		name    string
		form    uploadForm
		token   string
		status  int
		message string
	}{
		{
			name:    "non audio",
			form:    uploadForm{title: "T", artist: "A", filename: "a.txt", contentType: "text/plain", data: []byte("hi")},
			token:   "alice-token",
			status:  http.StatusBadRequest,
			message: "Only audio files are allowed!",
		},
		{
			name:    "non audio larger than the body limit",
			form:    uploadForm{title: "T", artist: "A", filename: "a.txt", contentType: "text/plain", data: make([]byte, 2<<20)},
			token:   "alice-token",
			status:  http.StatusBadRequest,
			message: "Only audio files are allowed!",
		},
		{
			name:    "non audio without title",
			form:    uploadForm{artist: "A", filename: "a.pdf", contentType: "application/pdf", data: []byte("%PDF-1.4")},
			token:   "alice-token",
			status:  http.StatusBadRequest,
			message: "Only audio files are allowed!",
		},
		{
			name:    "audio larger than the body limit",
			form:    uploadForm{title: "T", artist: "A", filename: "a.mp3", contentType: "audio/mpeg", data: make([]byte, 2<<20)},
			token:   "alice-token",
			status:  http.StatusBadRequest,
			message: "File too large",
		},
		{
			name:    "missing file",
			form:    uploadForm{title: "T", artist: "A", omitFile: true},
			token:   "alice-token",
			status:  http.StatusBadRequest,
			message: "No file uploaded",
		},
		{
			name:    "missing title",
			form:    uploadForm{artist: "A", filename: "a.mp3", contentType: "audio/mpeg", data: []byte("x")},
			token:   "alice-token",
			status:  http.StatusBadRequest,
			message: "Title and artist are required",
		},
		{
			name:    "too large",
			form:    uploadForm{title: "T", artist: "A", filename: "a.mp3", contentType: "audio/mpeg", data: make([]byte, 4096)},
			token:   "alice-token",
			status:  http.StatusBadRequest,
			message: "File too large",
		},
		{
			name:    "no token",
			form:    uploadForm{title: "T", artist: "A", filename: "a.mp3", contentType: "audio/mpeg", data: []byte("x")},
			status:  http.StatusUnauthorized,
			message: "Access token required",
		},
		{
			name:    "bad token",
			form:    uploadForm{title: "T", artist: "A", filename: "a.mp3", contentType: "audio/mpeg", data: []byte("x")},
			token:   "forged",
			status:  http.StatusForbidden,
			message: "Invalid token",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestServer(t)

			rec := s.do(t, newUploadRequest(t, tc.form), tc.token)

			require.Equal(t, tc.status, rec.Code, rec.Body.String())
			require.Equal(t, tc.message, decodeError(t, rec).Message)
			require.Zero(t, s.gateway.len())
			require.Zero(t, s.catalog.len())
		})
	}
}

func TestUploadHandlerFileBeforeFields(t *testing.T) {
	s := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="music"; filename="first.mp3"`)
	header.Set("Content-Type", "audio/mpeg")
	part, err := mw.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write([]byte("ID3 bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("title", "Late Title"))
	require.NoError(t, mw.WriteField("artist", "Late Artist"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := s.do(t, req, "alice-token")

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var body uploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "Late Title", body.Music.Title)
	require.EqualValues(t, len("ID3 bytes"), body.Music.SizeBytes)
}

func TestUploadHandlerNotMultipart(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/upload", bytes.NewReader([]byte(`{"title":"T"}`)))
	req.Header.Set("Content-Type", "application/json")

	rec := s.do(t, req, "alice-token")

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "Invalid multipart form", decodeError(t, rec).Message)
}

func TestListHandlers(t *testing.T) {
	s := newTestServer(t)
	first := s.upload(t, "alice-token", "first")
	second := s.upload(t, "bob-token", "second")

	rec := s.do(t, httptest.NewRequest(http.MethodGet, "/api/music", nil), "alice-token")
	require.Equal(t, http.StatusOK, rec.Code)
	var all []Record
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &all))
	require.Equal(t, []string{second.ID, first.ID}, ids(all))

	rec = s.do(t, httptest.NewRequest(http.MethodGet, "/api/my-music", nil), "bob-token")
	require.Equal(t, http.StatusOK, rec.Code)
	var mine []Record
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &mine))
	require.Equal(t, []string{second.ID}, ids(mine))
}

func TestListHandlerEmptyIsArray(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, httptest.NewRequest(http.MethodGet, "/api/music", nil), "alice-token")

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `[]`, rec.Body.String())
}

func TestStreamHandler(t *testing.T) {
	s := newTestServer(t)
	track := s.upload(t, "alice-token", "song")

	rec := s.do(t, httptest.NewRequest(http.MethodGet, "/api/music/"+track.ID+"/stream", nil), "bob-token")
	require.Equal(t, http.StatusOK, rec.Code)
	var stream Stream
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stream))
	require.Equal(t, "song", stream.Title)
	require.Contains(t, stream.URL, track.StorageKey)

	again := s.do(t, httptest.NewRequest(http.MethodGet, "/api/music/"+track.ID+"/stream", nil), "bob-token")
	require.Equal(t, http.StatusOK, again.Code)
	var second Stream
	require.NoError(t, json.Unmarshal(again.Body.Bytes(), &second))
	require.NotEqual(t, stream.URL, second.URL)

	rec = s.do(t, httptest.NewRequest(http.MethodGet, "/api/music/not-a-uuid/stream", nil), "bob-token")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "Music not found", decodeError(t, rec).Message)

	require.NoError(t, s.gateway.Remove(context.Background(), track.StorageKey))
	rec = s.do(t, httptest.NewRequest(http.MethodGet, "/api/music/"+track.ID+"/stream", nil), "bob-token")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "Audio file missing from storage", decodeError(t, rec).Message)
}

func TestDeleteHandler(t *testing.T) {
	s := newTestServer(t)
	track := s.upload(t, "alice-token", "song")
	path := "/api/music/" + track.ID

	rec := s.do(t, httptest.NewRequest(http.MethodDelete, path, nil), "bob-token")
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, "Not authorized to delete this music", decodeError(t, rec).Message)
	require.Equal(t, 1, s.catalog.len())
	require.Equal(t, 1, s.gateway.len())

	rec = s.do(t, httptest.NewRequest(http.MethodDelete, path, nil), "alice-token")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"message":"Music deleted successfully"}`, rec.Body.String())
	require.Zero(t, s.catalog.len())
	require.Zero(t, s.gateway.len())

	rec = s.do(t, httptest.NewRequest(http.MethodDelete, path, nil), "alice-token")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, httptest.NewRequest(http.MethodGet, path+"/stream", nil), "alice-token")
	require.Equal(t, http.StatusNotFound, rec.Code)
}
