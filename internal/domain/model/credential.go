package model

import (
	"crypto/rsa"
	"time"
)

// InstallationCredential is a short-lived bearer token that lets the bridge act
// on the issue tracker as an installed GitHub App. Values are never mutated
// after creation; renewal replaces the whole credential.
type InstallationCredential struct {
	Token     string
	ExpiresAt time.Time
}

// Remaining returns how long the credential stays valid as seen from now.
func (c InstallationCredential) Remaining(now time.Time) time.Duration {
	return c.ExpiresAt.Sub(now)
}

// SigningIdentity is the long-lived GitHub App identity used to mint the signed
// assertion that is exchanged for an InstallationCredential. It is loaded once
// at startup and never changes for the lifetime of the process.
type SigningIdentity struct {
	AppID          string // Issuer claim of the assertion.
	InstallationID int64
	PrivateKey     *rsa.PrivateKey
}
