package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/mail"
	"strings"

	"github.com/rs/zerolog"

	"github.com/musicbox/service/internal/response"
	"github.com/musicbox/service/internal/user"
)

const (
	minPasswordLength = 6
	// maxPasswordBytes is the longest input bcrypt will hash.
	maxPasswordBytes = 72
)

// Handler holds HTTP handlers for auth endpoints.
type Handler struct {
	svc *Service
	log zerolog.Logger
}

// NewHandler creates a new auth Handler.
func NewHandler(svc *Service, log zerolog.Logger) *Handler {
	return &Handler{svc: svc, log: log.With().Str("component", "auth-handler").Logger()}
}

type registerRequest struct {
	Username string `json:"username" example:"alice"`
	Email    string `json:"email"    example:"alice@example.com"`
	Password string `json:"password" example:"s3cret!"`
}

type loginRequest struct {
	Email    string `json:"email"    example:"alice@example.com"`
	Password string `json:"password" example:"s3cret!"`
}

type userBody struct {
	ID       string `json:"id"       example:"e7eedc79-0707-4fe4-8734-526b7ef13a7b"`
	Username string `json:"username" example:"alice"`
	Email    string `json:"email"    example:"alice@example.com"`
}

type authResponse struct {
	Message string   `json:"message" example:"Login successful"`
	Token   string   `json:"token"   example:"eyJhbGci..."`
	User    userBody `json:"user"`
}

// Register godoc
//
//	@Summary		Register new user
//	@Description	Create an account and return a bearer token valid for 24 hours.
//	@Tags			auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		registerRequest	true	"Registration details"
//	@Success		201		{object}	authResponse
//	@Failure		400		{object}	response.ErrorBody
//	@Failure		500		{object}	response.ErrorBody
//	@Router			/register [post]
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Username) == "" {
		response.BadRequest(w, "Username is required")
		return
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		response.BadRequest(w, "Invalid email address")
		return
	}
	if len(req.Password) < minPasswordLength {
		response.BadRequest(w, "Password must be at least 6 characters")
		return
	}
	if len(req.Password) > maxPasswordBytes {
		response.BadRequest(w, "Password must be at most 72 bytes")
		return
	}

	res, err := h.svc.Register(r.Context(), req.Username, req.Email, req.Password)
	if errors.Is(err, user.ErrAlreadyExists) {
		response.BadRequest(w, "User already exists")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Msg("register failed")
		response.InternalError(w, "Error creating user", err)
		return
	}

	response.Created(w, newAuthResponse("User created successfully", res))
}

// Login godoc
//
//	@Summary		Log in
//	@Description	Exchange email and password for a bearer token valid for 24 hours.
//	@Tags			auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		loginRequest	true	"Credentials"
//	@Success		200		{object}	authResponse
//	@Failure		400		{object}	response.ErrorBody
//	@Failure		500		{object}	response.ErrorBody
//	@Router			/login [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	res, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if errors.Is(err, ErrInvalidCredentials) {
		response.BadRequest(w, "Invalid credentials")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Msg("login failed")
		response.InternalError(w, "Error logging in", err)
		return
	}

	response.OK(w, newAuthResponse("Login successful", res))
}

func newAuthResponse(message string, res *Result) authResponse {
	return authResponse{
		Message: message,
		Token:   res.Token,
		User: userBody{
			ID:       res.User.ID,
			Username: res.User.Username,
			Email:    res.User.Email,
		},
	}
}
