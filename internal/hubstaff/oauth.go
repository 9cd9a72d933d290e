package hubstaff

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/dmritesh/Refari-Notifier/internal/models"
	"github.com/dmritesh/Refari-Notifier/internal/storage"
)

// ErrCredentialsUnavailable means the organization has never completed
// the OAuth authorization flow.
var ErrCredentialsUnavailable = errors.New("hubstaff credentials unavailable")

// DefaultEndpoint is the Hubstaff OAuth/OIDC endpoint.
var DefaultEndpoint = oauth2.Endpoint{
	AuthURL:  "https://account.hubstaff.com/authorizations/new",
	TokenURL: "https://account.hubstaff.com/access_tokens",
}

// tokenRefreshMargin is how long before expiry a token is refreshed.
const tokenRefreshMargin = 5 * time.Minute

var oauthScopes = []string{"openid", "profile", "email", "hubstaff:read", "hubstaff:write"}

// TokenManagerConfig holds OAuth client configuration.
type TokenManagerConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Endpoint     oauth2.Endpoint // default: DefaultEndpoint
	APIBaseURL   string          // for organization discovery (default: DefaultBaseURL)
}

// TokenManager persists per-organization OAuth tokens encrypted and
// refreshes them before expiry.
type TokenManager struct {
	cfg        *oauth2.Config
	apiBaseURL string
	orgs       storage.OrganizationRepository
	httpClient *http.Client
}

// NewTokenManager creates a token manager backed by the organization
// repository for encrypted token persistence.
func NewTokenManager(cfg TokenManagerConfig, orgs storage.OrganizationRepository) *TokenManager {
	endpoint := cfg.Endpoint
	if endpoint.AuthURL == "" {
		endpoint = DefaultEndpoint
	}
	apiBaseURL := cfg.APIBaseURL
	if apiBaseURL == "" {
		apiBaseURL = DefaultBaseURL
	}

	return &TokenManager{
		cfg: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     endpoint,
			Scopes:       oauthScopes,
		},
		apiBaseURL: apiBaseURL,
		orgs:       orgs,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// AuthorizationURL returns the URL to send an administrator to for the
// organization's authorization flow.
func (m *TokenManager) AuthorizationURL(state string) string {
	return m.cfg.AuthCodeURL(state)
}

// Exchange trades an authorization code for tokens, discovers the
// organization's Hubstaff id, and persists everything encrypted.
func (m *TokenManager) Exchange(ctx context.Context, orgID, code string) error {
	token, err := m.cfg.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("exchange authorization code: %w", err)
	}

	// Auto-discover the primary Hubstaff organization. A failure here is
	// not fatal: the id can be set later, the tokens are still stored.
	hubstaffOrgID, err := m.discoverOrganization(ctx, token.AccessToken)
	if err != nil {
		log.Printf("organization discovery failed during oauth exchange: %v", err)
	}

	return m.persist(ctx, orgID, token, hubstaffOrgID)
}

// ValidAccessToken returns a usable access token for the organization,
// refreshing it first when it is expired or expiring within the margin.
func (m *TokenManager) ValidAccessToken(ctx context.Context, org *models.Organization) (string, error) {
	if !org.HasHubstaffCredentials() {
		return "", fmt.Errorf("organization %s: %w", org.ID, ErrCredentialsUnavailable)
	}

	expiresAt := org.HubstaffTokenExpiresAt
	if expiresAt == nil || time.Until(*expiresAt) < tokenRefreshMargin {
		return m.refresh(ctx, org)
	}

	accessToken, err := m.orgs.OpenSecret(org.HubstaffAccessToken)
	if err != nil {
		return "", fmt.Errorf("decrypt access token: %w", err)
	}
	return accessToken, nil
}

func (m *TokenManager) refresh(ctx context.Context, org *models.Organization) (string, error) {
	log.Printf("refreshing hubstaff token for org %s", org.ID)

	refreshToken, err := m.orgs.OpenSecret(org.HubstaffRefreshToken)
	if err != nil {
		return "", fmt.Errorf("decrypt refresh token: %w", err)
	}

	source := m.cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	token, err := source.Token()
	if err != nil {
		return "", fmt.Errorf("refresh token: %w", err)
	}

	if token.RefreshToken == "" {
		token.RefreshToken = refreshToken
	}
	if err := m.persist(ctx, org.ID, token, ""); err != nil {
		return "", err
	}
	return token.AccessToken, nil
}

func (m *TokenManager) persist(ctx context.Context, orgID string, token *oauth2.Token, hubstaffOrgID string) error {
	access, err := m.orgs.SealSecret(token.AccessToken)
	if err != nil {
		return fmt.Errorf("encrypt access token: %w", err)
	}
	refresh, err := m.orgs.SealSecret(token.RefreshToken)
	if err != nil {
		return fmt.Errorf("encrypt refresh token: %w", err)
	}

	if err := m.orgs.UpdateHubstaffTokens(ctx, orgID, access, refresh, token.Expiry, hubstaffOrgID); err != nil {
		return fmt.Errorf("store hubstaff tokens: %w", err)
	}
	return nil
}

// discoverOrganization fetches the first Hubstaff organization visible
// to the token and returns its id.
func (m *TokenManager) discoverOrganization(ctx context.Context, accessToken string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.apiBaseURL+"/organizations", nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("hubstaff API error: status %d, body: %s", resp.StatusCode, string(body))
	}

	var payload struct {
		Organizations []struct {
			ID int64 `json:"id"`
		} `json:"organizations"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(payload.Organizations) == 0 {
		return "", fmt.Errorf("token has no visible organizations")
	}

	id := fmt.Sprintf("%d", payload.Organizations[0].ID)
	log.Printf("auto-discovered hubstaff org id %s", id)
	return id, nil
}
