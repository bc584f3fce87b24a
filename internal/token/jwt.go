package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type jwtClaims struct {
	Firstname        string `json:"firstname"`
	Email            string `json:"email"`
	Lastname         string `json:"lastname"`
	ID               string `json:"id"`
	VerificationCode string `json:"verificationCode,omitempty"`
	Kind             string `json:"kind"`
	jwt.RegisteredClaims
}

// JWTIssuer signs HS256 JWTs with the shared application secret.
type JWTIssuer struct {
	cfg Config
}

func NewJWTIssuer(cfg Config) (*JWTIssuer, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &JWTIssuer{cfg: cfg}, nil
}

func (s *JWTIssuer) MintVerification(id Identity, code string) (string, error) {
	c := s.claims(id, kindVerification)
	c.VerificationCode = code
	return s.sign(c, s.cfg.VerificationTTL)
}

func (s *JWTIssuer) MintSession(id Identity) (string, error) {
	return s.sign(s.claims(id, kindSession), s.cfg.SessionTTL)
}

func (s *JWTIssuer) claims(id Identity, kind string) *jwtClaims {
	return &jwtClaims{
		Firstname: id.Firstname,
		Email:     id.Email,
		Lastname:  id.Lastname,
		ID:        id.ID.String(),
		Kind:      kind,
	}
}

func (s *JWTIssuer) sign(c *jwtClaims, ttl time.Duration) (string, error) {
	now := s.cfg.Now()
	c.RegisteredClaims = jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.cfg.Secret)
}

func (s *JWTIssuer) VerifyVerification(tokenStr string) (*VerificationClaims, error) {
	c, err := s.parse(tokenStr, kindVerification)
	if err != nil {
		return nil, err
	}

	id, err := parseIdentity(c.ID, c.Firstname, c.Lastname, c.Email)
	if err != nil {
		return nil, err
	}

	return &VerificationClaims{
		Identity:         id,
		VerificationCode: c.VerificationCode,
		IssuedAt:         c.IssuedAt.Time,
		ExpiresAt:        c.ExpiresAt.Time,
	}, nil
}

func (s *JWTIssuer) VerifySession(tokenStr string) (*SessionClaims, error) {
	c, err := s.parse(tokenStr, kindSession)
	if err != nil {
		return nil, err
	}

	id, err := parseIdentity(c.ID, c.Firstname, c.Lastname, c.Email)
	if err != nil {
		return nil, err
	}

	return &SessionClaims{
		Identity:  id,
		IssuedAt:  c.IssuedAt.Time,
		ExpiresAt: c.ExpiresAt.Time,
	}, nil
}

func (s *JWTIssuer) parse(tokenStr, kind string) (*jwtClaims, error) {
	c := &jwtClaims{}
	tok, err := jwt.ParseWithClaims(tokenStr, c, func(t *jwt.Token) (any, error) {
		return s.cfg.Secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.cfg.Now),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	if !tok.Valid || c.Kind != kind || c.IssuedAt == nil {
		return nil, ErrTokenInvalid
	}
	return c, nil
}
