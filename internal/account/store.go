package account

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound       = errors.New("account not found")
	ErrDuplicateEmail = errors.New("email already exists")
)

// Store persists accounts. Every lookup is a point lookup by a secondary
// field; writes are atomic per account only.
type Store interface {
	FindByEmail(ctx context.Context, email string) (*Account, error)
	FindByVerificationCode(ctx context.Context, code string) (*Account, error)
	// FindByResetToken only matches tokens whose expiry is strictly after now.
	FindByResetToken(ctx context.Context, token string, now time.Time) (*Account, error)
	Insert(ctx context.Context, a *Account) error
	Update(ctx context.Context, a *Account) error
	DeleteByEmail(ctx context.Context, email string) error
	Close(ctx context.Context) error
}
