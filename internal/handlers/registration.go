package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/voltgrid/identity/internal/models"
	"github.com/voltgrid/identity/internal/services"
	"github.com/voltgrid/identity/pkg/httpx"
)

// RegistrationServiceInterface defines the registration lifecycle operations
// the handler depends on
type RegistrationServiceInterface interface {
	Start(ctx context.Context, input services.StartRegistrationInput) (*services.StartRegistrationResult, error)
	Resend(ctx context.Context, email string) (*models.Registration, error)
	Verify(ctx context.Context, token string) (*services.VerifiedUser, error)
	Cancel(ctx context.Context, registrationID string) error
}

// RegistrationHandler handles signup lifecycle HTTP requests
type RegistrationHandler struct {
	service RegistrationServiceInterface
}

func NewRegistrationHandler(service RegistrationServiceInterface) *RegistrationHandler {
	return &RegistrationHandler{service: service}
}

// Request DTOs

// RegisterRequest represents the request body for opening a registration
type RegisterRequest struct {
	Email      string `json:"email" validate:"required,email"`
	Username   string `json:"username" validate:"required,min=3,max=32"`
	Password   string `json:"password" validate:"required"`
	FirstName  string `json:"firstName" validate:"max=64"`
	LastName   string `json:"lastName" validate:"max=64"`
	Phone      string `json:"phone" validate:"max=32"`
	InviteCode string `json:"inviteCode" validate:"max=128"`
}

// VerifyRequest represents the request body for consuming a verification token
type VerifyRequest struct {
	Token string `json:"token" validate:"required"`
}

// ResendRequest represents the request body for requesting a fresh
// verification email
type ResendRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// Response DTOs

type RegisterResponse struct {
	RegistrationID string    `json:"registrationId"`
	Email          string    `json:"email"` // masked
	Status         string    `json:"status"`
	ExpiresAt      time.Time `json:"expiresAt"`
}

type VerifyResponse struct {
	UserID   string `json:"userId"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

type ResendResponse struct {
	Message   string    `json:"message"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Register opens a new registration and sends the verification email
func (h *RegistrationHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "validation_failed", "invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		httpx.WriteDomainError(w, err)
		return
	}

	result, err := h.service.Start(r.Context(), services.StartRegistrationInput{
		Email:      req.Email,
		Username:   req.Username,
		Password:   req.Password,
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Phone:      req.Phone,
		InviteCode: req.InviteCode,
	})
	if err != nil {
		httpx.WriteDomainError(w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, RegisterResponse{
		RegistrationID: result.RegistrationID,
		Email:          result.MaskedEmail,
		Status:         string(result.Status),
		ExpiresAt:      result.ExpiresAt,
	})
}

// Verify consumes a verification token and activates the account
func (h *RegistrationHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "validation_failed", "invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		httpx.WriteDomainError(w, err)
		return
	}

	user, err := h.service.Verify(r.Context(), req.Token)
	if err != nil {
		httpx.WriteDomainError(w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, VerifyResponse{
		UserID:   user.UserID,
		Email:    user.Email,
		Username: user.Username,
		Role:     string(user.Role),
	})
}

// Resend rotates the verification token and sends a fresh email
func (h *RegistrationHandler) Resend(w http.ResponseWriter, r *http.Request) {
	var req ResendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "validation_failed", "invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		httpx.WriteDomainError(w, err)
		return
	}

	reg, err := h.service.Resend(r.Context(), req.Email)
	if err != nil {
		httpx.WriteDomainError(w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, ResendResponse{
		Message:   "verification email sent",
		ExpiresAt: reg.ExpiresAt,
	})
}

// Cancel withdraws a pending registration
func (h *RegistrationHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	registrationID := chi.URLParam(r, "id")
	if registrationID == "" {
		httpx.WriteError(w, http.StatusBadRequest, "validation_failed", "registration id is required")
		return
	}

	if err := h.service.Cancel(r.Context(), registrationID); err != nil {
		httpx.WriteDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
