package user

import (
	"net/http"

	"github.com/musicbox/service/internal/identity"
	"github.com/musicbox/service/internal/response"
)

// Handler holds HTTP handlers for user-related endpoints.
type Handler struct {
	svc *Service
}

// NewHandler creates a new user Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// GetMe godoc
//
//	@Summary		Get current user
//	@Description	Returns the profile of the currently authenticated user.
//	@Tags			users
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	User
//	@Failure		401	{object}	response.ErrorBody
//	@Failure		404	{object}	response.ErrorBody
//	@Failure		500	{object}	response.ErrorBody
//	@Router			/me [get]
func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	id, ok := identity.FromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "Access token required")
		return
	}

	u, err := h.svc.GetByID(r.Context(), id.UserID)
	if err != nil {
		if h.svc.IsNotFound(err) {
			response.NotFound(w, "User not found")
			return
		}
		response.InternalError(w, "Error fetching user", err)
		return
	}

	response.OK(w, u)
}
