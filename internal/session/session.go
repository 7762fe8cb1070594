// Package session issues and verifies the bearer tokens clients present after login.
//
// Tokens are PASETO v4.local: encrypted and authenticated with a 256-bit
// symmetric key, so clients cannot read or forge the claims.
package session

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"aidanwoods.dev/go-paseto"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/moodring/backend/internal/shared"
)

const (
	keyBytesSize = 32
	keyHexSize   = 64
)

// Credential is an issued session token and its expiry.
type Credential struct {
	Token     string    `json:"access_token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Claims are the verified contents of a session token.
type Claims struct {
	UserID     int64     `json:"user_id"`
	Issuer     string    `json:"iss"`
	Subject    string    `json:"sub"`
	Audience   string    `json:"aud"`
	Expiration time.Time `json:"exp"`
	NotBefore  time.Time `json:"nbf"`
	IssuedAt   time.Time `json:"iat"`
	TokenID    string    `json:"jti"`
}

// Issuer mints session credentials for authenticated users.
type Issuer interface {
	IssueSession(ctx context.Context, userID int64) (*Credential, error)
}

// Verifier checks session tokens presented by clients.
type Verifier interface {
	Verify(token string) (*Claims, error)
}

// PasetoIssuer implements [Issuer] and [Verifier] with PASETO v4.local tokens.
type PasetoIssuer struct {
	key      paseto.V4SymmetricKey
	issuer   string
	audience string
	ttl      time.Duration
	now      func() time.Time
}

// NewPasetoIssuer builds an issuer from cfg. The secret key must be 64 hex characters.
func NewPasetoIssuer(cfg shared.SessionConfig) (*PasetoIssuer, error) {
	if len(cfg.SecretKey) != keyHexSize {
		return nil, fmt.Errorf("%w: session key must be exactly %d hex characters (%d bytes), got %d",
			shared.ErrConfiguration, keyHexSize, keyBytesSize, len(cfg.SecretKey))
	}

	keyBytes, err := hex.DecodeString(cfg.SecretKey)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid hex string for session key: %w", shared.ErrConfiguration, err)
	}

	key, err := paseto.V4SymmetricKeyFromBytes(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create session key: %w", shared.ErrConfiguration, err)
	}

	if cfg.TTL <= 0 {
		return nil, fmt.Errorf("%w: session ttl must be positive", shared.ErrConfiguration)
	}

	return &PasetoIssuer{
		key:      key,
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		ttl:      cfg.TTL,
		now:      time.Now,
	}, nil
}

// GenerateKey returns a new random session key as hex.
func GenerateKey() string {
	return paseto.NewV4SymmetricKey().ExportHex()
}

// IssueSession returns an encrypted token identifying userID.
func (p *PasetoIssuer) IssueSession(ctx context.Context, userID int64) (*Credential, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := p.now()
	expires := now.Add(p.ttl)

	tokenID, err := gonanoid.New()
	if err != nil {
		return nil, fmt.Errorf("generate token ID: %w", err)
	}

	token := paseto.NewToken()
	token.SetIssuer(p.issuer)
	token.SetSubject(strconv.FormatInt(userID, 10))
	token.SetAudience(p.audience)
	token.SetIssuedAt(now)
	token.SetNotBefore(now)
	token.SetExpiration(expires)
	token.SetJti(tokenID)
	if err := token.Set("user_id", userID); err != nil {
		return nil, fmt.Errorf("set user_id claim: %w", err)
	}

	return &Credential{
		Token:     token.V4Encrypt(p.key, nil),
		ExpiresAt: expires,
	}, nil
}

// Verify decrypts token and checks issuer, audience and validity window.
func (p *PasetoIssuer) Verify(token string) (*Claims, error) {
	parser := paseto.NewParserWithoutExpiryCheck()
	parser.AddRule(paseto.ForAudience(p.audience))
	parser.AddRule(paseto.IssuedBy(p.issuer))
	parser.AddRule(paseto.ValidAt(p.now()))

	parsed, err := parser.ParseV4Local(p.key, token, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid session token: %w", shared.ErrUnauthorized, err)
	}

	var claims Claims
	if err := json.Unmarshal(parsed.ClaimsJSON(), &claims); err != nil {
		return nil, fmt.Errorf("%w: parse claims: %w", shared.ErrUnauthorized, err)
	}
	if claims.UserID <= 0 {
		return nil, fmt.Errorf("%w: session token has no user", shared.ErrUnauthorized)
	}
	return &claims, nil
}
