package token

import (
	"crypto/sha256"
	"fmt"
	"io"
	"time"

	"aidanwoods.dev/go-paseto"
	"golang.org/x/crypto/hkdf"
)

const pasetoKeyInfo = "otp-auth-api paseto v4.local"

// PasetoIssuer handles PASETO token creation and validation
// Uses v4.local (symmetric encryption with XChaCha20-Poly1305)
type PasetoIssuer struct {
	cfg          Config
	symmetricKey paseto.V4SymmetricKey
}

// NewPasetoIssuer derives the 32-byte v4.local key from the shared secret with HKDF-SHA256.
func NewPasetoIssuer(cfg Config) (*PasetoIssuer, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	raw := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, cfg.Secret, nil, []byte(pasetoKeyInfo)), raw); err != nil {
		return nil, fmt.Errorf("failed to derive symmetric key: %w", err)
	}

	key, err := paseto.V4SymmetricKeyFromBytes(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to create symmetric key: %w", err)
	}

	return &PasetoIssuer{cfg: cfg, symmetricKey: key}, nil
}

func (s *PasetoIssuer) MintVerification(id Identity, code string) (string, error) {
	tok := s.newToken(id, kindVerification, s.cfg.VerificationTTL)
	tok.SetString("verificationCode", code)
	return tok.V4Encrypt(s.symmetricKey, nil), nil
}

func (s *PasetoIssuer) MintSession(id Identity) (string, error) {
	tok := s.newToken(id, kindSession, s.cfg.SessionTTL)
	return tok.V4Encrypt(s.symmetricKey, nil), nil
}

func (s *PasetoIssuer) newToken(id Identity, kind string, ttl time.Duration) *paseto.Token {
	now := s.cfg.Now()

	tok := paseto.NewToken()
	tok.SetIssuedAt(now)
	tok.SetExpiration(now.Add(ttl))
	tok.SetString("firstname", id.Firstname)
	tok.SetString("email", id.Email)
	tok.SetString("lastname", id.Lastname)
	tok.SetString("id", id.ID.String())
	tok.SetString("kind", kind)
	return &tok
}

func (s *PasetoIssuer) VerifyVerification(tokenStr string) (*VerificationClaims, error) {
	tok, id, err := s.parse(tokenStr, kindVerification)
	if err != nil {
		return nil, err
	}

	code, err := tok.GetString("verificationCode")
	if err != nil {
		return nil, ErrTokenInvalid
	}

	issuedAt, expiresAt, err := timestamps(tok)
	if err != nil {
		return nil, err
	}

	return &VerificationClaims{
		Identity:         id,
		VerificationCode: code,
		IssuedAt:         issuedAt,
		ExpiresAt:        expiresAt,
	}, nil
}

func (s *PasetoIssuer) VerifySession(tokenStr string) (*SessionClaims, error) {
	tok, id, err := s.parse(tokenStr, kindSession)
	if err != nil {
		return nil, err
	}

	issuedAt, expiresAt, err := timestamps(tok)
	if err != nil {
		return nil, err
	}

	return &SessionClaims{Identity: id, IssuedAt: issuedAt, ExpiresAt: expiresAt}, nil
}

// parse decrypts the token and checks expiry against the configured clock
// rather than the parser's built-in wall-clock rule.
func (s *PasetoIssuer) parse(tokenStr, kind string) (*paseto.Token, Identity, error) {
	parser := paseto.NewParserWithoutExpiryCheck()

	tok, err := parser.ParseV4Local(s.symmetricKey, tokenStr, nil)
	if err != nil {
		return nil, Identity{}, ErrTokenInvalid
	}

	expiresAt, err := tok.GetExpiration()
	if err != nil {
		return nil, Identity{}, ErrTokenInvalid
	}
	if !s.cfg.Now().Before(expiresAt) {
		return nil, Identity{}, ErrTokenExpired
	}

	if k, err := tok.GetString("kind"); err != nil || k != kind {
		return nil, Identity{}, ErrTokenInvalid
	}

	fields := make(map[string]string, 4)
	for _, name := range []string{"id", "firstname", "lastname", "email"} {
		v, err := tok.GetString(name)
		if err != nil {
			return nil, Identity{}, ErrTokenInvalid
		}
		fields[name] = v
	}

	id, err := parseIdentity(fields["id"], fields["firstname"], fields["lastname"], fields["email"])
	if err != nil {
		return nil, Identity{}, err
	}
	return tok, id, nil
}

func timestamps(tok *paseto.Token) (time.Time, time.Time, error) {
	issuedAt, err := tok.GetIssuedAt()
	if err != nil {
		return time.Time{}, time.Time{}, ErrTokenInvalid
	}
	expiresAt, err := tok.GetExpiration()
	if err != nil {
		return time.Time{}, time.Time{}, ErrTokenInvalid
	}
	return issuedAt, expiresAt, nil
}
