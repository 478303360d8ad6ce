package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/pribylovaa/auth-tokens/internal/errors"
	"github.com/pribylovaa/auth-tokens/internal/http/middleware"
)

// GetUser — GET /users/{userId}.
func (h *Handlers) GetUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, middleware.OwnerParam), 10, 64)
	if err != nil || id <= 0 {
		apierrors.WriteError(w, r, invalid("userId must be a positive integer"))
		return
	}

	user, err := h.Auth.UserByID(r.Context(), id)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, userFromModel(user))
}
