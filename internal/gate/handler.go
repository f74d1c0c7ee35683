package gate

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/promptforge-ai/promptforge/internal/api"
	"github.com/promptforge-ai/promptforge/internal/auth"
)

// Handler exposes the quota view the frontend renders as the free counter and
// pro badge.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Usage returns the authenticated user's quota status.
func (h *Handler) Usage(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserClaims(r.Context())
	if claims == nil {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	status, err := h.svc.Status(r.Context(), userID)
	if err != nil {
		slog.Error("fetching usage status", "error", err, "user_id", userID)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSON(w, http.StatusOK, status)
}
