package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/voltgrid/identity/internal/auth"
	"github.com/voltgrid/identity/internal/idp"
	"github.com/voltgrid/identity/internal/models"
	"github.com/voltgrid/identity/pkg/httpx"
)

// LoginServiceInterface defines the session operations the handler depends on
type LoginServiceInterface interface {
	Login(ctx context.Context, username, password string) (*idp.TokenSet, error)
	Refresh(ctx context.Context, refreshToken string) (*idp.TokenSet, error)
	Logout(ctx context.Context, claims *models.AuthorizationClaims) error
}

// AuthHandler handles login, refresh and logout HTTP requests
type AuthHandler struct {
	service LoginServiceInterface
}

func NewAuthHandler(service LoginServiceInterface) *AuthHandler {
	return &AuthHandler{service: service}
}

// LoginRequest represents the request body for login
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// RefreshRequest represents the request body for token refresh
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

// TokenResponse is the API shape of a provider token set
type TokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	TokenType    string `json:"tokenType"`
	ExpiresIn    int64  `json:"expiresIn"`
}

func tokenResponse(tokens *idp.TokenSet) TokenResponse {
	return TokenResponse{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		TokenType:    tokens.TokenType,
		ExpiresIn:    tokens.ExpiresIn,
	}
}

// Login exchanges credentials for a token set
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "validation_failed", "invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		httpx.WriteDomainError(w, err)
		return
	}

	tokens, err := h.service.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		httpx.WriteDomainError(w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, tokenResponse(tokens))
}

// Refresh exchanges a refresh token for a fresh token set
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "validation_failed", "invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		httpx.WriteDomainError(w, err)
		return
	}

	tokens, err := h.service.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		httpx.WriteDomainError(w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, tokenResponse(tokens))
}

// Logout revokes the presented access token
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaimsFromContext(r.Context())
	if claims == nil {
		httpx.WriteDomainError(w, models.ErrUnauthenticated)
		return
	}

	if err := h.service.Logout(r.Context(), claims); err != nil {
		httpx.WriteDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
