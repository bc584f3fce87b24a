package lifecycle

import (
	"errors"

	"github.com/redmonkez12/otp-auth-api/internal/account"
)

// Business outcomes. Anything else returned by the engine is an internal failure.
var (
	ErrAlreadyRegistered     = errors.New("email is already registered")
	ErrNotFound              = errors.New("account not found")
	ErrInvalidCredentials    = errors.New("incorrect password")
	ErrInvalidOrExpiredCode  = errors.New("invalid or expired verification code")
	ErrInvalidOrExpiredToken = errors.New("password reset token is invalid or has expired")
)

type Outcome int

const (
	OutcomeRejected Outcome = iota
	OutcomeCreated
	OutcomeExistingPendingReissued
	OutcomeVerified
	OutcomeCodeResent
	OutcomeAlreadyVerified
	OutcomeAuthenticated
	OutcomeResetRequested
	OutcomeReset
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCreated:
		return "created"
	case OutcomeExistingPendingReissued:
		return "existing_pending_reissued"
	case OutcomeVerified:
		return "verified"
	case OutcomeCodeResent:
		return "code_resent"
	case OutcomeAlreadyVerified:
		return "already_verified"
	case OutcomeAuthenticated:
		return "authenticated"
	case OutcomeResetRequested:
		return "reset_requested"
	case OutcomeReset:
		return "reset"
	default:
		return "rejected"
	}
}

// Persist tells the dispatcher what to do with Decision.Account.
type Persist int

const (
	PersistNone Persist = iota
	PersistInsert
	PersistUpdate
	PersistDelete
)

// Mint names the token the dispatcher must mint for Decision.Account.
// A verification token is written onto the record before it is persisted.
type Mint int

const (
	MintNone Mint = iota
	MintVerification
	MintSession
)

type EmailKind int

const (
	EmailVerificationCode EmailKind = iota + 1
	EmailPasswordResetLink
	EmailPasswordResetConfirmation
)

// EmailIntent is a notification to send once the record is persisted.
type EmailIntent struct {
	Kind       EmailKind
	To         string
	Firstname  string
	Code       string
	ResetToken string
}

// Decision is the full result of one lifecycle transition. Reject may be set
// together with effects: a login against an abandoned registration deletes
// the record and still fails with ErrNotFound.
type Decision struct {
	Outcome Outcome
	Account *account.Account
	Persist Persist
	Mint    Mint
	Emails  []EmailIntent
	Reject  error
}

func reject(err error) Decision {
	return Decision{Outcome: OutcomeRejected, Reject: err}
}
