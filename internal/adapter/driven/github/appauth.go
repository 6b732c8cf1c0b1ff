package github

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang-jwt/jwt/v5"
	gh "github.com/google/go-github/v82/github"

	"github.com/ericfisherdev/forumbridge/internal/domain/model"
	"github.com/ericfisherdev/forumbridge/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.TokenExchanger = (*AppAuthenticator)(nil)

const (
	// assertionLifetime is how long the signed App assertion is valid. It is
	// only used once, for the exchange request.
	assertionLifetime = 5 * time.Minute

	// assertionBackdate covers clock skew between us and GitHub.
	assertionBackdate = 60 * time.Second
)

// AppAuthenticator exchanges a signed GitHub App assertion for an
// installation access token.
type AppAuthenticator struct {
	identity   model.SigningIdentity
	httpClient *http.Client
	baseURL    *url.URL
	clock      clock.Clock
}

// NewAppAuthenticator creates an AppAuthenticator. baseURL may be empty for github.com.
func NewAppAuthenticator(identity model.SigningIdentity, baseURL string, clk clock.Clock) (*AppAuthenticator, error) {
	return NewAppAuthenticatorWithHTTPClient(identity, &http.Client{Timeout: 30 * time.Second}, baseURL, clk)
}

// NewAppAuthenticatorWithHTTPClient creates an AppAuthenticator with a custom
// http.Client. This constructor is intended for testing.
func NewAppAuthenticatorWithHTTPClient(identity model.SigningIdentity, httpClient *http.Client, baseURL string, clk clock.Clock) (*AppAuthenticator, error) {
	if identity.PrivateKey == nil {
		return nil, errors.New("github app private key is required")
	}

	u, err := parseBaseURL(baseURL)
	if err != nil {
		return nil, err
	}

	return &AppAuthenticator{
		identity:   identity,
		httpClient: httpClient,
		baseURL:    u,
		clock:      clk,
	}, nil
}

// Exchange signs a fresh assertion and trades it for an installation token.
func (a *AppAuthenticator) Exchange(ctx context.Context) (model.InstallationCredential, error) {
	assertion, err := a.signAssertion()
	if err != nil {
		return model.InstallationCredential{}, fmt.Errorf("signing app assertion: %w", err)
	}

	client := gh.NewClient(a.httpClient).WithAuthToken(assertion)
	u := *a.baseURL
	client.BaseURL = &u

	token, _, err := client.Apps.CreateInstallationToken(ctx, a.identity.InstallationID, nil)
	if err != nil {
		return model.InstallationCredential{}, fmt.Errorf("creating installation token for installation %d: %w", a.identity.InstallationID, err)
	}

	if token.GetToken() == "" {
		return model.InstallationCredential{}, errors.New("token exchange returned an empty token")
	}

	return model.InstallationCredential{
		Token:     token.GetToken(),
		ExpiresAt: token.GetExpiresAt().Time,
	}, nil
}

// signAssertion creates the RS256 JWT GitHub expects from an App.
func (a *AppAuthenticator) signAssertion() (string, error) {
	now := a.clock.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    a.identity.AppID,
		IssuedAt:  jwt.NewNumericDate(now.Add(-assertionBackdate)),
		ExpiresAt: jwt.NewNumericDate(now.Add(assertionLifetime)),
	}

	return jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(a.identity.PrivateKey)
}

// ParsePrivateKey parses a GitHub App private key. Both the PEM file GitHub
// hands out and a bare base64-encoded DER key (PKCS1 or PKCS8) are accepted.
func ParsePrivateKey(raw string) (*rsa.PrivateKey, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, errors.New("private key is empty")
	}

	if strings.HasPrefix(raw, "-----BEGIN") {
		key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(raw))
		if err != nil {
			return nil, fmt.Errorf("parsing PEM private key: %w", err)
		}
		return key, nil
	}

	der, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("decoding base64 private key: %w", err)
	}

	key, err := x509.ParsePKCS1PrivateKey(der)
	if err == nil {
		return key, nil
	}

	parsed, pkcs8Err := x509.ParsePKCS8PrivateKey(der)
	if pkcs8Err != nil {
		return nil, fmt.Errorf("parsing private key: %w (also tried PKCS8: %v)", err, pkcs8Err)
	}

	rsaKey, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("private key is not RSA")
	}
	return rsaKey, nil
}
