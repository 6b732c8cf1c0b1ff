package github_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ghAdapter "github.com/ericfisherdev/forumbridge/internal/adapter/driven/github"
	"github.com/ericfisherdev/forumbridge/internal/domain/model"
)

func generateKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key
}

func newTestAuthenticator(t *testing.T, key *rsa.PrivateKey, clk clock.Clock, handler http.Handler) *ghAdapter.AppAuthenticator {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	identity := model.SigningIdentity{AppID: "12345", InstallationID: 678, PrivateKey: key}
	auth, err := ghAdapter.NewAppAuthenticatorWithHTTPClient(identity, server.Client(), server.URL, clk)
	require.NoError(t, err)
	return auth
}

func TestExchange_SignsAssertionAndReturnsToken(t *testing.T) {
	key := generateKey(t)
	clk := clock.NewMock()
	clk.Set(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	var assertion string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/app/installations/678/access_tokens", r.URL.Path)
		assertion = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"token":"ghs_fresh","expires_at":"2026-03-01T13:00:00Z"}`))
	})

	auth := newTestAuthenticator(t, key, clk, handler)
	cred, err := auth.Exchange(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "ghs_fresh", cred.Token)
	assert.True(t, cred.ExpiresAt.Equal(time.Date(2026, 3, 1, 13, 0, 0, 0, time.UTC)))

	var claims jwt.RegisteredClaims
	parsed, err := jwt.ParseWithClaims(assertion, &claims, func(*jwt.Token) (any, error) {
		return &key.PublicKey, nil
	}, jwt.WithValidMethods([]string{"RS256"}), jwt.WithTimeFunc(clk.Now))
	require.NoError(t, err)
	require.True(t, parsed.Valid)

	assert.Equal(t, "12345", claims.Issuer)
	assert.Equal(t, clk.Now().Add(-60*time.Second).Unix(), claims.IssuedAt.Unix())
	assert.Equal(t, clk.Now().Add(5*time.Minute).Unix(), claims.ExpiresAt.Unix())
}

func TestExchange_RejectedAssertion(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"Bad credentials"}`))
	})

	auth := newTestAuthenticator(t, generateKey(t), clock.NewMock(), handler)
	_, err := auth.Exchange(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "installation 678")
}

func TestExchange_EmptyToken(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"token":"","expires_at":"2026-03-01T13:00:00Z"}`))
	})

	auth := newTestAuthenticator(t, generateKey(t), clock.NewMock(), handler)
	_, err := auth.Exchange(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty token")
}

func TestNewAppAuthenticator_RequiresKey(t *testing.T) {
	_, err := ghAdapter.NewAppAuthenticator(model.SigningIdentity{AppID: "1"}, "", clock.New())
	require.Error(t, err)
}

func TestParsePrivateKey(t *testing.T) {
	key := generateKey(t)

	pkcs1 := x509.MarshalPKCS1PrivateKey(key)
	pkcs8, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)
	pemText := string(pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: pkcs1}))

	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{name: "pem", raw: pemText},
		{name: "pem with surrounding whitespace", raw: "\n  " + pemText + "\n"},
		{name: "base64 pkcs1", raw: base64.StdEncoding.EncodeToString(pkcs1)},
		{name: "base64 pkcs8", raw: base64.StdEncoding.EncodeToString(pkcs8)},
		{name: "empty", raw: "   ", wantErr: true},
		{name: "not base64", raw: "%%%not-a-key%%%", wantErr: true},
		{name: "base64 garbage", raw: base64.StdEncoding.EncodeToString([]byte("garbage")), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ghAdapter.ParsePrivateKey(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, key.Equal(got))
		})
	}
}
