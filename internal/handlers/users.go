package handlers

import (
	"context"
	"net/http"

	"github.com/voltgrid/identity/internal/auth"
	"github.com/voltgrid/identity/internal/models"
	"github.com/voltgrid/identity/pkg/httpx"
)

// UserDirectory resolves user ids to accounts
type UserDirectory interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// UserHandler handles user profile HTTP requests
type UserHandler struct {
	users UserDirectory
}

func NewUserHandler(users UserDirectory) *UserHandler {
	return &UserHandler{users: users}
}

// UserResponse is the API shape of an account
type UserResponse struct {
	ID        string  `json:"id"`
	Email     string  `json:"email"`
	Username  string  `json:"username"`
	Role      string  `json:"role"`
	Status    string  `json:"status"`
	CompanyID *string `json:"companyId,omitempty"`
	NetworkID *string `json:"networkId,omitempty"`
	StationID *string `json:"stationId,omitempty"`
}

// Me returns the authenticated user's own account
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaimsFromContext(r.Context())
	if claims == nil {
		httpx.WriteDomainError(w, models.ErrUnauthenticated)
		return
	}

	user, err := h.users.GetByID(r.Context(), claims.UserID)
	if err != nil {
		httpx.WriteDomainError(w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, UserResponse{
		ID:        user.ID,
		Email:     user.Email,
		Username:  user.Username,
		Role:      string(user.Role),
		Status:    string(user.Status),
		CompanyID: user.CompanyID,
		NetworkID: user.NetworkID,
		StationID: user.StationID,
	})
}
