// Package auth supplies bearer credentials for the HighLevel API. Access
// tokens are short-lived and cached in redis per location; refresh tokens
// live in the directory store with the installation record.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/voicebook/internal/directory"
	"github.com/wolfman30/voicebook/pkg/logging"
)

const (
	defaultTimeout = 10 * time.Second

	// expirySlack is shaved off the platform's expires_in so a token is
	// never handed out moments before it dies mid-request.
	expirySlack = 60 * time.Second
)

// InstallationSource provides the per-location refresh token. Satisfied by
// directory.Store.
type InstallationSource interface {
	GetInstallation(ctx context.Context, locationID string) (*directory.Installation, error)
}

// Manager caches and refreshes per-location access tokens. It implements
// highlevel.TokenProvider.
type Manager struct {
	redis         *redis.Client
	installations InstallationSource
	httpClient    *http.Client
	tokenURL      string
	clientID      string
	clientSecret  string
	logger        *logging.Logger
}

// NewManager creates a token manager.
func NewManager(rdb *redis.Client, installations InstallationSource, tokenURL, clientID, clientSecret string, logger *logging.Logger) *Manager {
	if rdb == nil {
		panic("auth: redis client required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Manager{
		redis:         rdb,
		installations: installations,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		tokenURL:     tokenURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		logger:       logger,
	}
}

// Token returns a cached access token for the location, refreshing when the
// cache is cold.
func (m *Manager) Token(ctx context.Context, locationID string) (string, error) {
	token, err := m.redis.Get(ctx, tokenKey(locationID)).Result()
	if err == nil && token != "" {
		return token, nil
	}
	if err != nil && err != redis.Nil {
		// A flaky cache should not take booking down; fall through to a
		// fresh exchange.
		m.logger.Warn("token cache read failed", "location_id", locationID, "error", err)
	}
	return m.Refresh(ctx, locationID)
}

// Refresh exchanges the installation's refresh token for a new access token
// and caches it for its lifetime.
func (m *Manager) Refresh(ctx context.Context, locationID string) (string, error) {
	inst, err := m.installations.GetInstallation(ctx, locationID)
	if err != nil {
		return "", fmt.Errorf("auth: load installation: %w", err)
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", inst.RefreshToken)
	form.Set("client_id", m.clientID)
	form.Set("client_secret", m.clientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("auth: create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("auth: token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("auth: token endpoint status %d", resp.StatusCode)
	}

	var body struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("auth: decode token response: %w", err)
	}
	if body.AccessToken == "" {
		return "", fmt.Errorf("auth: token endpoint returned empty access token")
	}

	ttl := time.Duration(body.ExpiresIn)*time.Second - expirySlack
	if ttl > 0 {
		if err := m.redis.Set(ctx, tokenKey(locationID), body.AccessToken, ttl).Err(); err != nil {
			m.logger.Warn("token cache write failed", "location_id", locationID, "error", err)
		}
	}

	m.logger.Info("access token refreshed", "location_id", locationID, "expires_in", body.ExpiresIn)
	return body.AccessToken, nil
}

func tokenKey(locationID string) string {
	return fmt.Sprintf("hl_token:%s", locationID)
}
