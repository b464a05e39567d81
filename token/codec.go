// Package token signs and verifies the compact, tamper-evident tokens
// the engine issues. Access and refresh tokens are signed with
// independent secrets so possession of one cannot forge the other.
package token

import (
	"bytes"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrExpired is returned when a token's expiry has passed.
	ErrExpired = errors.New("token expired")
	// ErrSignature is returned when a token is signed with the wrong key or algorithm.
	ErrSignature = errors.New("token signature invalid")
	// ErrMalformed is returned for tokens that do not parse at all.
	ErrMalformed = errors.New("token malformed")
)

// Config defines the codec's keys and lifetimes. AccessSecret and
// RefreshSecret must differ; rotating either invalidates every
// outstanding token signed with the old value.
type Config struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
	Leeway        time.Duration
}

// Payload is the claim set carried by both halves of a minted pair.
type Payload struct {
	UserID      string
	Email       string
	Role        string
	DisplayName string
	TokenID     string
}

type sessionClaims struct {
	Email       string `json:"email,omitempty"`
	Role        string `json:"role,omitempty"`
	DisplayName string `json:"name,omitempty"`
	TokenID     string `json:"tkid"`
	jwt.RegisteredClaims
}

// Codec issues and verifies access and refresh tokens. Instances are
// configured during initialization and then treated as immutable.
type Codec struct {
	config Config
}

// NewCodec validates cfg and returns a ready [Codec].
func NewCodec(cfg Config) (*Codec, error) {
	if len(cfg.AccessSecret) < 32 {
		return nil, errors.New("access secret must be at least 32 bytes")
	}
	if len(cfg.RefreshSecret) < 32 {
		return nil, errors.New("refresh secret must be at least 32 bytes")
	}
	if bytes.Equal(cfg.AccessSecret, cfg.RefreshSecret) {
		return nil, errors.New("access and refresh secrets must be independent")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}

	return &Codec{config: cfg}, nil
}

// IssueAccess signs a short-lived access token for p.
func (c *Codec) IssueAccess(p Payload) (string, error) {
	return c.issue(p, c.config.AccessSecret, c.config.AccessTTL)
}

// IssueRefresh signs a long-lived refresh token for p.
func (c *Codec) IssueRefresh(p Payload) (string, error) {
	return c.issue(p, c.config.RefreshSecret, c.config.RefreshTTL)
}

// VerifyAccess checks signature and expiry against the access secret
// and returns the embedded payload. It never touches storage.
func (c *Codec) VerifyAccess(tokenStr string) (*Payload, error) {
	return c.verify(tokenStr, c.config.AccessSecret)
}

// VerifyRefresh checks signature and expiry against the refresh secret
// and returns the embedded payload.
func (c *Codec) VerifyRefresh(tokenStr string) (*Payload, error) {
	return c.verify(tokenStr, c.config.RefreshSecret)
}

func (c *Codec) issue(p Payload, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := sessionClaims{
		Email:       p.Email,
		Role:        p.Role,
		DisplayName: p.DisplayName,
		TokenID:     p.TokenID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.UserID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    c.config.Issuer,
		},
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString(secret)
}

func (c *Codec) verify(tokenStr string, secret []byte) (*Payload, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	}
	if c.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(c.config.Leeway))
	}
	if c.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(c.config.Issuer))
	}

	parser := jwt.NewParser(options...)
	tok, err := parser.ParseWithClaims(tokenStr, &sessionClaims{}, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid),
			errors.Is(err, jwt.ErrTokenUnverifiable):
			return nil, ErrSignature
		default:
			return nil, ErrMalformed
		}
	}

	claims, ok := tok.Claims.(*sessionClaims)
	if !ok || !tok.Valid {
		return nil, ErrMalformed
	}
	if claims.Subject == "" || claims.TokenID == "" {
		return nil, ErrMalformed
	}

	return &Payload{
		UserID:      claims.Subject,
		Email:       claims.Email,
		Role:        claims.Role,
		DisplayName: claims.DisplayName,
		TokenID:     claims.TokenID,
	}, nil
}
