package user

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/musicbox/service/internal/identity"
)

type stubStore struct {
	users map[string]*User
}

func (s stubStore) Create(_ context.Context, username, email, hash string) (*User, error) {
	u := &User{ID: username, Username: username, Email: email, PasswordHash: hash}
	s.users[u.ID] = u
	return u, nil
}

func (s stubStore) GetByID(_ context.Context, id string) (*User, error) {
	if u, ok := s.users[id]; ok {
		return u, nil
	}
	return nil, ErrNotFound
}

func (s stubStore) GetByEmail(_ context.Context, email string) (*User, error) {
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, ErrNotFound
}

func (s stubStore) Exists(ctx context.Context, username, email string) (bool, error) {
	_, err := s.GetByEmail(ctx, email)
	_, ok := s.users[username]
	return err == nil || ok, nil
}

func TestGetMe(t *testing.T) {
	svc := NewService(stubStore{users: map[string]*User{}})
	_, err := svc.Create(context.Background(), "alice", " Alice@Example.com ", "hash")
	require.NoError(t, err)
	h := NewHandler(svc)

	get := func(id *identity.Identity) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
		if id != nil {
			req = req.WithContext(identity.WithIdentity(req.Context(), *id))
		}
		rec := httptest.NewRecorder()
		h.GetMe(rec, req)
		return rec
	}

	rec := get(&identity.Identity{UserID: "alice", Username: "alice"})
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "alice@example.com", body["email"])
	require.NotContains(t, body, "passwordHash")

	require.Equal(t, http.StatusNotFound, get(&identity.Identity{UserID: "ghost"}).Code)
	require.Equal(t, http.StatusUnauthorized, get(nil).Code)
}

func TestCreateRejectsDuplicate(t *testing.T) {
	svc := NewService(stubStore{users: map[string]*User{}})
	ctx := context.Background()

	_, err := svc.Create(ctx, "alice", "alice@example.com", "hash")
	require.NoError(t, err)
	_, err = svc.Create(ctx, "alice", "other@example.com", "hash")
	require.ErrorIs(t, err, ErrAlreadyExists)
}
