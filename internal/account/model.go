package account

import (
	"time"

	"github.com/google/uuid"
)

// Account is the persisted user record. It carries no behavior beyond
// copying and projecting itself; state transitions live in the lifecycle package.
type Account struct {
	ID                     uuid.UUID
	Firstname              string
	Lastname               string
	Email                  string
	PasswordHash           string
	Verified               bool
	VerificationCode       *string
	VerificationToken      *string
	ResetPasswordToken     *string
	ResetPasswordExpiresIn *time.Time
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// PublicProfile is the only account shape serialized to clients.
type PublicProfile struct {
	ID        uuid.UUID `json:"id"`
	Firstname string    `json:"firstname"`
	Email     string    `json:"email"`
	Lastname  string    `json:"lastname"`
	Verified  bool      `json:"verified"`
}

// Clone returns a deep copy so callers can derive a new record value
// without touching the one they loaded.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	c := *a
	c.VerificationCode = cloneString(a.VerificationCode)
	c.VerificationToken = cloneString(a.VerificationToken)
	c.ResetPasswordToken = cloneString(a.ResetPasswordToken)
	if a.ResetPasswordExpiresIn != nil {
		t := *a.ResetPasswordExpiresIn
		c.ResetPasswordExpiresIn = &t
	}
	return &c
}

// Profile projects the account onto its public shape.
func (a *Account) Profile() PublicProfile {
	return PublicProfile{
		ID:        a.ID,
		Firstname: a.Firstname,
		Email:     a.Email,
		Lastname:  a.Lastname,
		Verified:  a.Verified,
	}
}

// HasOutstandingReset reports whether a reset token is pending and still valid at now.
func (a *Account) HasOutstandingReset(now time.Time) bool {
	return a.ResetPasswordToken != nil &&
		a.ResetPasswordExpiresIn != nil &&
		now.Before(*a.ResetPasswordExpiresIn)
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// StringPtr is a small helper for optional fields.
func StringPtr(s string) *string {
	return &s
}
