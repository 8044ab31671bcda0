package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voltgrid/identity/internal/models"
	"github.com/voltgrid/identity/internal/services"
)

func TestRegistrationHandler_Register_Success(t *testing.T) {
	expiresAt := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	svc := &MockRegistrationService{
		StartFunc: func(ctx context.Context, input services.StartRegistrationInput) (*services.StartRegistrationResult, error) {
			return &services.StartRegistrationResult{
				RegistrationID: "reg-1",
				MaskedEmail:    "a****@*******.com",
				Status:         models.RegistrationPending,
				ExpiresAt:      expiresAt,
			}, nil
		},
	}
	handler := NewRegistrationHandler(svc)

	body := `{"email":"alice@example.com","username":"alice","password":"Sup3rSecret"}`
	req := httptest.NewRequest(http.MethodPost, "/register", strings.NewReader(body))
	rec := httptest.NewRecorder()

	handler.Register(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)

	var resp RegisterResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "reg-1", resp.RegistrationID)
	assert.Equal(t, "a****@*******.com", resp.Email, "response must carry the masked email")
	assert.Equal(t, "pending", resp.Status)
}

func TestRegistrationHandler_Register_BadInput(t *testing.T) {
	handler := NewRegistrationHandler(&MockRegistrationService{})

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{`},
		{"missing email", `{"username":"alice","password":"Sup3rSecret"}`},
		{"bad email", `{"email":"nope","username":"alice","password":"Sup3rSecret"}`},
		{"short username", `{"email":"a@b.com","username":"ab","password":"Sup3rSecret"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/register", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()

			handler.Register(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestRegistrationHandler_Register_Conflict(t *testing.T) {
	svc := &MockRegistrationService{
		StartFunc: func(ctx context.Context, input services.StartRegistrationInput) (*services.StartRegistrationResult, error) {
			return nil, models.ErrConflict
		},
	}
	handler := NewRegistrationHandler(svc)

	body := `{"email":"alice@example.com","username":"alice","password":"Sup3rSecret"}`
	req := httptest.NewRequest(http.MethodPost, "/register", strings.NewReader(body))
	rec := httptest.NewRecorder()

	handler.Register(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRegistrationHandler_Verify(t *testing.T) {
	tests := []struct {
		name       string
		verifyErr  error
		wantStatus int
	}{
		{"success", nil, http.StatusOK},
		{"invalid token", models.ErrInvalidToken, http.StatusBadRequest},
		{"expired", models.ErrExpired, http.StatusBadRequest},
		{"provider down", models.ErrUpstreamUnavailable, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &MockRegistrationService{
				VerifyFunc: func(ctx context.Context, token string) (*services.VerifiedUser, error) {
					if tt.verifyErr != nil {
						return nil, tt.verifyErr
					}
					return &services.VerifiedUser{
						UserID: "user-1", Email: "alice@example.com", Username: "alice", Role: models.RoleUser,
					}, nil
				},
			}
			handler := NewRegistrationHandler(svc)

			req := httptest.NewRequest(http.MethodPost, "/verify", strings.NewReader(`{"token":"tok"}`))
			rec := httptest.NewRecorder()

			handler.Verify(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)

			if tt.verifyErr == nil {
				var resp VerifyResponse
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
				assert.Equal(t, "user-1", resp.UserID)
				assert.Equal(t, "user", resp.Role)
			}
		})
	}
}

func TestRegistrationHandler_Resend_RateLimited(t *testing.T) {
	svc := &MockRegistrationService{
		ResendFunc: func(ctx context.Context, email string) (*models.Registration, error) {
			return nil, models.ErrRateLimited
		},
	}
	handler := NewRegistrationHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/verify/resend", strings.NewReader(`{"email":"a@b.com"}`))
	rec := httptest.NewRecorder()

	handler.Resend(rec, req)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestRegistrationHandler_Cancel(t *testing.T) {
	cancelled := ""
	svc := &MockRegistrationService{
		CancelFunc: func(ctx context.Context, registrationID string) error {
			cancelled = registrationID
			return nil
		},
	}
	handler := NewRegistrationHandler(svc)

	router := chi.NewRouter()
	router.Post("/register/{id}/cancel", handler.Cancel)

	req := httptest.NewRequest(http.MethodPost, "/register/reg-1/cancel", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "reg-1", cancelled)
}

func TestRegistrationHandler_Cancel_Unknown(t *testing.T) {
	svc := &MockRegistrationService{
		CancelFunc: func(ctx context.Context, registrationID string) error {
			return models.ErrNotFound
		},
	}
	handler := NewRegistrationHandler(svc)

	router := chi.NewRouter()
	router.Post("/register/{id}/cancel", handler.Cancel)

	req := httptest.NewRequest(http.MethodPost, "/register/missing/cancel", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
