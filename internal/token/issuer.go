// Package token mints and verifies the signed, time-boxed tokens handed to
// clients: short-lived verification tokens that pin an OTP to the identity
// it was issued for, and session tokens returned on login.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrTokenInvalid = errors.New("token is invalid")
	ErrTokenExpired = errors.New("token has expired")
)

// Token formats accepted by New.
const (
	FormatJWT    = "jwt"
	FormatPaseto = "paseto"
)

const (
	kindVerification = "verification"
	kindSession      = "session"
)

// Identity is the account data embedded in every token.
type Identity struct {
	ID        uuid.UUID
	Firstname string
	Lastname  string
	Email     string
}

// SessionClaims are the decoded contents of a session token.
type SessionClaims struct {
	Identity
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// VerificationClaims are the decoded contents of a verification token.
type VerificationClaims struct {
	Identity
	VerificationCode string
	IssuedAt         time.Time
	ExpiresAt        time.Time
}

// Issuer mints and verifies both token kinds. Verification fails with
// ErrTokenExpired once the TTL has elapsed and ErrTokenInvalid otherwise.
type Issuer interface {
	MintVerification(id Identity, code string) (string, error)
	MintSession(id Identity) (string, error)
	VerifyVerification(tokenStr string) (*VerificationClaims, error)
	VerifySession(tokenStr string) (*SessionClaims, error)
}

// Config is shared by every Issuer implementation.
type Config struct {
	Secret          []byte
	VerificationTTL time.Duration
	SessionTTL      time.Duration
	// Now overrides the clock; defaults to time.Now.
	Now func() time.Time
}

func (c *Config) validate() error {
	if len(c.Secret) == 0 {
		return errors.New("token secret is required")
	}
	if c.VerificationTTL <= 0 || c.SessionTTL <= 0 {
		return errors.New("token TTLs must be positive")
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return nil
}

// New builds the Issuer for the given format.
func New(format string, cfg Config) (Issuer, error) {
	switch format {
	case FormatJWT, "":
		return NewJWTIssuer(cfg)
	case FormatPaseto:
		return NewPasetoIssuer(cfg)
	default:
		return nil, fmt.Errorf("unsupported token format %q", format)
	}
}

func parseIdentity(id, firstname, lastname, email string) (Identity, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return Identity{}, ErrTokenInvalid
	}
	return Identity{ID: uid, Firstname: firstname, Lastname: lastname, Email: email}, nil
}
