package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/simplesurance/mergeguard/internal/guarderr"
	"github.com/simplesurance/mergeguard/internal/logfields"
)

const loggerName = "token_cache"

// expirySafetyMargin is the minimal remaining lifetime of a cached token.
const expirySafetyMargin = 30 * time.Second

// InstallationToken is an access token for a GitHub App installation.
type InstallationToken struct {
	InstallationID int64
	Token          string
	ExpiresAt      time.Time
}

// JWTSigner creates the JWTs that are exchanged for installation tokens.
type JWTSigner interface {
	SignedJWT() (string, error)
}

// TokenMinter exchanges an app JWT for an installation token.
type TokenMinter interface {
	CreateInstallationToken(ctx context.Context, jwt string, installationID int64) (*InstallationToken, error)
}

// TokenCache provides installation tokens. Tokens are cached until they
// are about to expire.
// Concurrent calls for the same uncached installation can create multiple
// tokens, the last one is cached.
type TokenCache struct {
	signer JWTSigner
	minter TokenMinter
	logger *zap.Logger

	lock   sync.Mutex
	tokens map[int64]*InstallationToken

	now func() time.Time
}

func NewTokenCache(signer JWTSigner, minter TokenMinter) *TokenCache {
	return &TokenCache{
		signer: signer,
		minter: minter,
		logger: zap.L().Named(loggerName),
		tokens: map[int64]*InstallationToken{},
		now:    time.Now,
	}
}

func (c *TokenCache) cached(installationID int64) (string, bool) {
	c.lock.Lock()
	defer c.lock.Unlock()

	tok, exists := c.tokens[installationID]
	if !exists {
		return "", false
	}

	if !c.now().Add(expirySafetyMargin).Before(tok.ExpiresAt) {
		return "", false
	}

	return tok.Token, true
}

func (c *TokenCache) store(tok *InstallationToken) {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.tokens[tok.InstallationID] = tok
}

// Token returns a valid access token for the installation.
// Errors are returned as *guarderr.AuthError.
func (c *TokenCache) Token(ctx context.Context, installationID int64) (string, error) {
	if tok, ok := c.cached(installationID); ok {
		return tok, nil
	}

	logger := c.logger.With(logfields.Installation(installationID))

	jwt, err := c.signer.SignedJWT()
	if err != nil {
		return "", guarderr.NewAuthError(installationID, fmt.Errorf("signing jwt failed: %w", err))
	}

	tok, err := c.minter.CreateInstallationToken(ctx, jwt, installationID)
	if err != nil {
		return "", guarderr.NewAuthError(installationID, err)
	}

	if tok.Token == "" {
		return "", guarderr.NewAuthError(installationID, errors.New("received empty installation token"))
	}

	tok.InstallationID = installationID
	c.store(tok)

	logger.Debug(
		"created installation token",
		logfields.Event("installation_token_created"),
		zap.Time("expires_at", tok.ExpiresAt),
	)

	return tok.Token, nil
}

// Invalidate removes the cached token of the installation.
func (c *TokenCache) Invalidate(installationID int64) {
	c.lock.Lock()
	defer c.lock.Unlock()

	delete(c.tokens, installationID)
}
