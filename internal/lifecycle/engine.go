// Package lifecycle decides account state transitions. The Engine performs no
// I/O: every operation takes the loaded record and the request inputs and
// returns a Decision describing the next record value and the side effects
// the caller must carry out.
package lifecycle

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/redmonkez12/otp-auth-api/internal/account"
	"github.com/redmonkez12/otp-auth-api/internal/token"
)

const (
	DefaultOTPDigits = 8
	DefaultResetTTL  = 10 * time.Hour
)

// PasswordHasher is the one-way salted hash used for account passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, encodedHash string) (bool, error)
	// NeedsUpgrade reports whether a verified hash should be replaced with a fresh one.
	NeedsUpgrade(encodedHash string) bool
}

// Policy holds the tunables of the lifecycle.
type Policy struct {
	OTPDigits int
	ResetTTL  time.Duration
}

func DefaultPolicy() Policy {
	return Policy{OTPDigits: DefaultOTPDigits, ResetTTL: DefaultResetTTL}
}

// Registration is the input of Register.
type Registration struct {
	Firstname string
	Lastname  string
	Email     string
	Password  string
}

type Engine struct {
	policy     Policy
	hasher     PasswordHasher
	now        func() time.Time
	newID      func() uuid.UUID
	newCode    func() (string, error)
	resetToken func() (string, error)
}

type Option func(*Engine)

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithIDSource(newID func() uuid.UUID) Option {
	return func(e *Engine) { e.newID = newID }
}

func WithCodeSource(newCode func() (string, error)) Option {
	return func(e *Engine) { e.newCode = newCode }
}

func WithResetTokenSource(newToken func() (string, error)) Option {
	return func(e *Engine) { e.resetToken = newToken }
}

func New(policy Policy, hasher PasswordHasher, opts ...Option) (*Engine, error) {
	if hasher == nil {
		return nil, errors.New("password hasher is required")
	}
	if policy.OTPDigits < 6 || policy.OTPDigits > 10 {
		return nil, fmt.Errorf("otp digits must be between 6 and 10, got %d", policy.OTPDigits)
	}
	if policy.ResetTTL <= 0 {
		return nil, errors.New("reset TTL must be positive")
	}

	e := &Engine{
		policy:     policy,
		hasher:     hasher,
		now:        time.Now,
		newID:      uuid.New,
		resetToken: randomResetToken,
	}
	e.newCode = func() (string, error) { return randomDigits(e.policy.OTPDigits) }

	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Now is the engine clock. Callers use it for store lookups that filter on expiry.
func (e *Engine) Now() time.Time {
	return e.now()
}

// Register creates a pending account, or reissues the code of an existing
// pending one. Verified accounts are never touched.
func (e *Engine) Register(existing *account.Account, req Registration) (Decision, error) {
	if existing != nil && existing.Verified {
		return reject(ErrAlreadyRegistered), nil
	}

	hash, err := e.hasher.Hash(req.Password)
	if err != nil {
		return Decision{}, fmt.Errorf("hash password: %w", err)
	}

	code, err := e.newCode()
	if err != nil {
		return Decision{}, err
	}

	if existing != nil {
		next := existing.Clone()
		next.Firstname = req.Firstname
		next.Lastname = req.Lastname
		next.PasswordHash = hash
		issueCode(next, code)

		return Decision{
			Outcome: OutcomeExistingPendingReissued,
			Account: next,
			Persist: PersistUpdate,
			Mint:    MintVerification,
			Emails:  []EmailIntent{verificationEmail(next, code)},
		}, nil
	}

	next := &account.Account{
		ID:           e.newID(),
		Firstname:    req.Firstname,
		Lastname:     req.Lastname,
		Email:        req.Email,
		PasswordHash: hash,
	}
	issueCode(next, code)

	return Decision{
		Outcome: OutcomeCreated,
		Account: next,
		Persist: PersistInsert,
		Mint:    MintVerification,
		Emails:  []EmailIntent{verificationEmail(next, code)},
	}, nil
}

// VerifyOTP consumes the outstanding code. The stored verification token must
// still be valid and must have been issued for this account and this code.
func (e *Engine) VerifyOTP(acct *account.Account, code string, claims *token.VerificationClaims, tokenErr error) Decision {
	if acct == nil || acct.VerificationCode == nil || code == "" ||
		subtle.ConstantTimeCompare([]byte(*acct.VerificationCode), []byte(code)) != 1 {
		return reject(ErrInvalidOrExpiredCode)
	}
	if tokenErr != nil || claims == nil ||
		claims.ID != acct.ID ||
		claims.VerificationCode != code {
		return reject(ErrInvalidOrExpiredCode)
	}

	next := acct.Clone()
	next.VerificationCode = nil
	next.VerificationToken = nil
	next.Verified = true

	return Decision{
		Outcome: OutcomeVerified,
		Account: next,
		Persist: PersistUpdate,
	}
}

// ResendOTP replaces the outstanding code. A verified account has nothing to
// resend and is left unchanged.
func (e *Engine) ResendOTP(acct *account.Account) (Decision, error) {
	if acct == nil {
		return reject(ErrNotFound), nil
	}
	if acct.Verified {
		return Decision{Outcome: OutcomeAlreadyVerified, Account: acct.Clone()}, nil
	}

	code, err := e.newCode()
	if err != nil {
		return Decision{}, err
	}

	next := acct.Clone()
	issueCode(next, code)

	return Decision{
		Outcome: OutcomeCodeResent,
		Account: next,
		Persist: PersistUpdate,
		Mint:    MintVerification,
		Emails:  []EmailIntent{verificationEmail(next, code)},
	}, nil
}

// Login checks credentials. A never-verified account is treated as abandoned:
// it is deleted and reported exactly like a missing one.
func (e *Engine) Login(acct *account.Account, password string) (Decision, error) {
	if acct == nil {
		return reject(ErrNotFound), nil
	}
	if !acct.Verified {
		return Decision{
			Outcome: OutcomeRejected,
			Account: acct.Clone(),
			Persist: PersistDelete,
			Reject:  ErrNotFound,
		}, nil
	}

	ok, err := e.hasher.Verify(password, acct.PasswordHash)
	if err != nil {
		return Decision{}, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return reject(ErrInvalidCredentials), nil
	}

	next := acct.Clone()
	persist := PersistNone
	if e.hasher.NeedsUpgrade(acct.PasswordHash) {
		hash, err := e.hasher.Hash(password)
		if err != nil {
			return Decision{}, fmt.Errorf("rehash password: %w", err)
		}
		next.PasswordHash = hash
		persist = PersistUpdate
	}

	return Decision{
		Outcome: OutcomeAuthenticated,
		Account: next,
		Persist: persist,
		Mint:    MintSession,
	}, nil
}

// RequestPasswordReset issues a new reset token, replacing any outstanding one.
func (e *Engine) RequestPasswordReset(acct *account.Account) (Decision, error) {
	if acct == nil {
		return reject(ErrNotFound), nil
	}

	tok, err := e.resetToken()
	if err != nil {
		return Decision{}, err
	}
	expires := e.now().Add(e.policy.ResetTTL)

	next := acct.Clone()
	next.ResetPasswordToken = &tok
	next.ResetPasswordExpiresIn = &expires

	return Decision{
		Outcome: OutcomeResetRequested,
		Account: next,
		Persist: PersistUpdate,
		Emails: []EmailIntent{{
			Kind:       EmailPasswordResetLink,
			To:         next.Email,
			Firstname:  next.Firstname,
			ResetToken: tok,
		}},
	}, nil
}

// CheckResetToken reports whether resetToken is the account's outstanding, unexpired token.
func (e *Engine) CheckResetToken(acct *account.Account, resetToken string) error {
	if acct == nil || resetToken == "" || !acct.HasOutstandingReset(e.now()) {
		return ErrInvalidOrExpiredToken
	}
	if subtle.ConstantTimeCompare([]byte(*acct.ResetPasswordToken), []byte(resetToken)) != 1 {
		return ErrInvalidOrExpiredToken
	}
	return nil
}

// CompletePasswordReset replaces the password and consumes the reset token in one write.
func (e *Engine) CompletePasswordReset(acct *account.Account, resetToken, newPassword string) (Decision, error) {
	if err := e.CheckResetToken(acct, resetToken); err != nil {
		return reject(err), nil
	}

	hash, err := e.hasher.Hash(newPassword)
	if err != nil {
		return Decision{}, fmt.Errorf("hash password: %w", err)
	}

	next := acct.Clone()
	next.PasswordHash = hash
	next.ResetPasswordToken = nil
	next.ResetPasswordExpiresIn = nil

	return Decision{
		Outcome: OutcomeReset,
		Account: next,
		Persist: PersistUpdate,
		Emails: []EmailIntent{{
			Kind:      EmailPasswordResetConfirmation,
			To:        next.Email,
			Firstname: next.Firstname,
		}},
	}, nil
}

// issueCode sets a fresh code and drops the token minted for the previous one.
func issueCode(a *account.Account, code string) {
	a.VerificationCode = &code
	a.VerificationToken = nil
}

func verificationEmail(a *account.Account, code string) EmailIntent {
	return EmailIntent{
		Kind:      EmailVerificationCode,
		To:        a.Email,
		Firstname: a.Firstname,
		Code:      code,
	}
}
