// Package auth provides GitHub App authentication.
package auth

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// jwtIssuedAtSkew is subtracted from the issued-at claim to tolerate
	// clock differences to GitHub.
	jwtIssuedAtSkew = 30 * time.Second
	jwtLifetime     = 120 * time.Second
)

// Signer creates the JSON Web Tokens that authenticate the GitHub App.
type Signer struct {
	clientID string
	key      *rsa.PrivateKey
	now      func() time.Time
}

// NewSigner returns a signer for the app with the given client ID.
// privateKeyPEM is a PKCS#1 or PKCS#8 RSA private key.
func NewSigner(clientID string, privateKeyPEM []byte) (*Signer, error) {
	if clientID == "" {
		return nil, errors.New("client id is empty")
	}

	key, err := jwt.ParseRSAPrivateKeyFromPEM(privateKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("parsing private key failed: %w", err)
	}

	return &Signer{
		clientID: clientID,
		key:      key,
		now:      time.Now,
	}, nil
}

// NewSignerFromFile reads the private key from path and returns a Signer.
func NewSignerFromFile(clientID, path string) (*Signer, error) {
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading private key file failed: %w", err)
	}

	s, err := NewSigner(clientID, pem)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return s, nil
}

// SignedJWT returns a new RS256 signed JWT.
func (s *Signer) SignedJWT() (string, error) {
	now := s.now()

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.RegisteredClaims{
		Issuer:    s.clientID,
		IssuedAt:  jwt.NewNumericDate(now.Add(-jwtIssuedAtSkew)),
		ExpiresAt: jwt.NewNumericDate(now.Add(jwtLifetime)),
	})

	return token.SignedString(s.key)
}
