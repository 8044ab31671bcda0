package idp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/voltgrid/identity/internal/config"
	"github.com/voltgrid/identity/internal/models"
)

// KeycloakClient talks to a Keycloak-compatible provider over its admin REST
// API and OIDC token endpoint.
type KeycloakClient struct {
	baseURL      string
	realm        string
	clientID     string
	clientSecret string
	httpClient   *http.Client
	validator    *TokenValidator
	logger       *slog.Logger

	mu              sync.Mutex
	adminToken      string
	adminTokenUntil time.Time
}

func NewKeycloakClient(cfg *config.IdPConfig, logger *slog.Logger) (*KeycloakClient, error) {
	validator, err := NewTokenValidator(cfg)
	if err != nil {
		return nil, err
	}

	return &KeycloakClient{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		realm:        cfg.Realm,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		httpClient:   &http.Client{Timeout: cfg.RequestTimeout},
		validator:    validator,
		logger:       logger,
	}, nil
}

func (c *KeycloakClient) tokenEndpoint() string {
	return fmt.Sprintf("%s/realms/%s/protocol/openid-connect/token", c.baseURL, c.realm)
}

func (c *KeycloakClient) adminURL(parts ...string) string {
	return fmt.Sprintf("%s/admin/realms/%s/%s", c.baseURL, c.realm, strings.Join(parts, "/"))
}

// adminAccessToken returns a cached service-account token, refreshing it via
// the client-credentials grant when it is close to expiry.
func (c *KeycloakClient) adminAccessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.adminToken != "" && time.Now().Before(c.adminTokenUntil) {
		return c.adminToken, nil
	}

	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
	}

	tokens, err := c.postTokenForm(ctx, form)
	if err != nil {
		return "", err
	}

	c.adminToken = tokens.AccessToken
	// refresh 30s early so in-flight requests never carry a stale token
	c.adminTokenUntil = time.Now().Add(time.Duration(tokens.ExpiresIn)*time.Second - 30*time.Second)
	return c.adminToken, nil
}

func (c *KeycloakClient) postTokenForm(ctx context.Context, form url.Values) (*TokenSet, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenEndpoint(), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: token endpoint: %v", models.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		var tokens TokenSet
		if err := json.NewDecoder(resp.Body).Decode(&tokens); err != nil {
			return nil, fmt.Errorf("failed to decode token response: %w", err)
		}
		return &tokens, nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusBadRequest:
		// invalid credentials or invalid/expired refresh token
		return nil, models.ErrUnauthenticated
	default:
		return nil, fmt.Errorf("%w: token endpoint returned %d", models.ErrUpstreamUnavailable, resp.StatusCode)
	}
}

// keycloakUser is the admin API user representation subset we send
type keycloakUser struct {
	Username      string               `json:"username"`
	Email         string               `json:"email"`
	FirstName     string               `json:"firstName,omitempty"`
	LastName      string               `json:"lastName,omitempty"`
	Enabled       bool                 `json:"enabled"`
	EmailVerified bool                 `json:"emailVerified"`
	Credentials   []keycloakCredential `json:"credentials,omitempty"`
}

type keycloakCredential struct {
	Type       string `json:"type"`
	SecretData string `json:"secretData"`
	CredData   string `json:"credentialData"`
	Temporary  bool   `json:"temporary"`
}

// CreateAccount implements Client. The account is created enabled and with
// its email already verified; verification happened on our side.
func (c *KeycloakClient) CreateAccount(ctx context.Context, account NewAccount) (string, error) {
	secretData, _ := json.Marshal(map[string]string{"value": account.PasswordHash})
	credData, _ := json.Marshal(map[string]any{"algorithm": account.HashAlgorithm, "hashIterations": -1})

	body := keycloakUser{
		Username:      account.Username,
		Email:         account.Email,
		FirstName:     account.FirstName,
		LastName:      account.LastName,
		Enabled:       true,
		EmailVerified: true,
		Credentials: []keycloakCredential{{
			Type:       "password",
			SecretData: string(secretData),
			CredData:   string(credData),
			Temporary:  false,
		}},
	}

	resp, err := c.doAdmin(ctx, http.MethodPost, c.adminURL("users"), body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusCreated:
		// Location: .../admin/realms/{realm}/users/{id}
		location := resp.Header.Get("Location")
		subjectID := path.Base(location)
		if subjectID == "" || subjectID == "." || subjectID == "/" {
			return "", fmt.Errorf("%w: account created but no subject id returned", models.ErrUpstreamUnavailable)
		}
		return subjectID, nil
	case http.StatusConflict:
		return "", models.ErrConflict
	default:
		return "", c.unexpectedStatus("create account", resp)
	}
}

// FindAccountByUsername implements Client via an exact-match admin search
func (c *KeycloakClient) FindAccountByUsername(ctx context.Context, username string) (string, error) {
	query := url.Values{"username": {username}, "exact": {"true"}}
	resp, err := c.doAdmin(ctx, http.MethodGet, c.adminURL("users")+"?"+query.Encode(), nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", c.unexpectedStatus("find account", resp)
	}

	var users []struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&users); err != nil {
		return "", fmt.Errorf("failed to decode user search response: %w", err)
	}
	if len(users) == 0 {
		return "", models.ErrNotFound
	}
	return users[0].ID, nil
}

// EnableAccount implements Client
func (c *KeycloakClient) EnableAccount(ctx context.Context, subjectID string) error {
	return c.setEnabled(ctx, subjectID, true)
}

// DisableAccount implements Client
func (c *KeycloakClient) DisableAccount(ctx context.Context, subjectID string) error {
	return c.setEnabled(ctx, subjectID, false)
}

func (c *KeycloakClient) setEnabled(ctx context.Context, subjectID string, enabled bool) error {
	resp, err := c.doAdmin(ctx, http.MethodPut, c.adminURL("users", subjectID), map[string]bool{"enabled": enabled})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNoContent, http.StatusOK:
		return nil
	case http.StatusNotFound:
		return models.ErrNotFound
	default:
		return c.unexpectedStatus("update account", resp)
	}
}

// IssueToken implements Client (resource-owner password grant)
func (c *KeycloakClient) IssueToken(ctx context.Context, username, password string) (*TokenSet, error) {
	form := url.Values{
		"grant_type":    {"password"},
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
		"username":      {username},
		"password":      {password},
	}
	return c.postTokenForm(ctx, form)
}

// RefreshToken implements Client
func (c *KeycloakClient) RefreshToken(ctx context.Context, refreshToken string) (*TokenSet, error) {
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
		"refresh_token": {refreshToken},
	}
	return c.postTokenForm(ctx, form)
}

// ValidateToken implements Client
func (c *KeycloakClient) ValidateToken(_ context.Context, bearer string) (*RawClaims, error) {
	return c.validator.Validate(bearer)
}

func (c *KeycloakClient) doAdmin(ctx context.Context, method, rawURL string, body any) (*http.Response, error) {
	token, err := c.adminAccessToken(ctx)
	if err != nil {
		return nil, err
	}

	var payload io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		payload = strings.NewReader(string(encoded))
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, payload)
	if err != nil {
		return nil, fmt.Errorf("failed to build admin request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: admin API: %v", models.ErrUpstreamUnavailable, err)
	}
	return resp, nil
}

func (c *KeycloakClient) unexpectedStatus(op string, resp *http.Response) error {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	c.logger.Error("identity provider request failed",
		slog.String("operation", op),
		slog.Int("status", resp.StatusCode),
		slog.String("body", string(snippet)))
	return fmt.Errorf("%w: %s returned %d", models.ErrUpstreamUnavailable, op, resp.StatusCode)
}
