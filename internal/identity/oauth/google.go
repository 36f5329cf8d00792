// Package oauth verifies provider-issued credentials for federated login.
package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	identitydomain "tenant-platform/backend/internal/identity/domain"
	"tenant-platform/backend/internal/identity/service"
)

// googleTokenInfoURL is Google's ID-token introspection endpoint.
const googleTokenInfoURL = "https://oauth2.googleapis.com/tokeninfo"

// ErrUnsupportedProvider is returned for providers this verifier does not handle.
var ErrUnsupportedProvider = errors.New("unsupported oauth provider")

// GoogleVerifier validates Google ID tokens against the tokeninfo endpoint
// and checks the token was issued for our client ID.
type GoogleVerifier struct {
	clientID string
	baseURL  string
	client   *http.Client
}

// NewGoogleVerifier returns a verifier for the given OAuth client ID.
func NewGoogleVerifier(clientID string) *GoogleVerifier {
	return &GoogleVerifier{
		clientID: clientID,
		baseURL:  googleTokenInfoURL,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

type tokenInfo struct {
	Subject       string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified string `json:"email_verified"`
	Name          string `json:"name"`
	Audience      string `json:"aud"`
}

// Verify introspects the ID token and returns the attested identity.
func (v *GoogleVerifier) Verify(ctx context.Context, provider identitydomain.Provider, providerToken string) (*service.VerifiedPrincipal, error) {
	if provider != identitydomain.ProviderGoogle {
		return nil, ErrUnsupportedProvider
	}
	if providerToken == "" {
		return nil, errors.New("empty credential")
	}

	endpoint := v.baseURL + "?id_token=" + url.QueryEscape(providerToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("google tokeninfo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("google tokeninfo: status %d", resp.StatusCode)
	}

	var info tokenInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("google tokeninfo: %w", err)
	}
	if info.Audience != v.clientID {
		return nil, errors.New("token audience mismatch")
	}
	if info.Email == "" || info.EmailVerified != "true" {
		return nil, errors.New("email not verified by provider")
	}

	return &service.VerifiedPrincipal{
		Subject: info.Subject,
		Email:   info.Email,
		Name:    info.Name,
	}, nil
}
