package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Account is the row model for the accounts table.
type Account struct {
	bun.BaseModel `bun:"table:accounts,alias:a"`

	ID                     uuid.UUID  `bun:"id,pk,type:uuid"`
	Firstname              string     `bun:"firstname,notnull"`
	Lastname               string     `bun:"lastname,notnull"`
	Email                  string     `bun:"email,notnull"`
	PasswordHash           string     `bun:"password_hash,notnull"`
	Verified               bool       `bun:"verified,notnull,default:false"`
	VerificationCode       *string    `bun:"verification_code"`
	VerificationToken      *string    `bun:"verification_token"`
	ResetPasswordToken     *string    `bun:"reset_password_token"`
	ResetPasswordExpiresIn *time.Time `bun:"reset_password_expires_in"`
	CreatedAt              time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt              time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}
