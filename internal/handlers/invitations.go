package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/voltgrid/identity/internal/auth"
	"github.com/voltgrid/identity/internal/models"
	"github.com/voltgrid/identity/internal/services"
	"github.com/voltgrid/identity/pkg/httpx"
)

// InvitationServiceInterface defines the invitation operations the handler
// depends on
type InvitationServiceInterface interface {
	Create(ctx context.Context, input services.CreateInvitationInput) (*services.CreatedInvitation, error)
}

// InvitationHandler handles admin invitation HTTP requests
type InvitationHandler struct {
	service InvitationServiceInterface
}

func NewInvitationHandler(service InvitationServiceInterface) *InvitationHandler {
	return &InvitationHandler{service: service}
}

// CreateInvitationRequest represents the request body for issuing an invitation
type CreateInvitationRequest struct {
	Email string `json:"email" validate:"required,email"`
	Role  string `json:"role" validate:"required,oneof=guest user operator partner admin"`
}

// InvitationResponse echoes the invitation and its plain code. The code
// appears only here; it is stored hashed.
type InvitationResponse struct {
	InvitationID string    `json:"invitationId"`
	Email        string    `json:"email"`
	Role         string    `json:"role"`
	Code         string    `json:"code"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// Create issues an invitation. Admin only.
func (h *InvitationHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaimsFromContext(r.Context())
	if claims == nil {
		httpx.WriteDomainError(w, models.ErrUnauthenticated)
		return
	}

	var req CreateInvitationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "validation_failed", "invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		httpx.WriteDomainError(w, err)
		return
	}

	created, err := h.service.Create(r.Context(), services.CreateInvitationInput{
		Email:     req.Email,
		Role:      models.Role(req.Role),
		InvitedBy: claims.UserID,
	})
	if err != nil {
		httpx.WriteDomainError(w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, InvitationResponse{
		InvitationID: created.Invitation.ID,
		Email:        created.Invitation.Email,
		Role:         string(created.Invitation.Role),
		Code:         created.PlainCode,
		ExpiresAt:    created.Invitation.ExpiresAt,
	})
}
