package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/redmonkez12/otp-auth-api/internal/database"
)

// BunRepository stores accounts in Postgres through Bun.
type BunRepository struct {
	db *bun.DB
}

func NewBunRepository(db *bun.DB) *BunRepository {
	return &BunRepository{db: db}
}

// FindByEmail retrieves an account by email
func (r *BunRepository) FindByEmail(ctx context.Context, email string) (*Account, error) {
	return r.findOne(ctx, "find account by email", func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("email = ?", email)
	})
}

// FindByVerificationCode retrieves the account holding an outstanding OTP
func (r *BunRepository) FindByVerificationCode(ctx context.Context, code string) (*Account, error) {
	return r.findOne(ctx, "find account by verification code", func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("verification_code = ?", code)
	})
}

// FindByResetToken retrieves the account holding an unexpired reset token
func (r *BunRepository) FindByResetToken(ctx context.Context, token string, now time.Time) (*Account, error) {
	return r.findOne(ctx, "find account by reset token", resetTokenFilter(token, now))
}

func resetTokenFilter(token string, now time.Time) func(*bun.SelectQuery) *bun.SelectQuery {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.
			Where("reset_password_token = ?", token).
			Where("reset_password_expires_in > ?", now)
	}
}

func (r *BunRepository) findOne(ctx context.Context, op string, filter func(*bun.SelectQuery) *bun.SelectQuery) (*Account, error) {
	row := new(database.Account)
	err := filter(r.db.NewSelect().Model(row)).
		OrderExpr("created_at DESC").
		Limit(1).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to %s: %w", op, err)
	}

	return mapRowToAccount(row), nil
}

// Insert creates a new account row
func (r *BunRepository) Insert(ctx context.Context, a *Account) error {
	row := mapAccountToRow(a)

	_, err := r.db.NewInsert().
		Model(row).
		Returning("*").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to insert account: %w", err)
	}

	a.CreatedAt = row.CreatedAt
	a.UpdatedAt = row.UpdatedAt
	return nil
}

// Update replaces every mutable column of the account row
func (r *BunRepository) Update(ctx context.Context, a *Account) error {
	row := mapAccountToRow(a)
	row.UpdatedAt = time.Now()

	result, err := updateQuery(r.db, row).Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	a.UpdatedAt = row.UpdatedAt
	return nil
}

// updateQuery writes every column but the key and creation time, so cleared
// optional fields become NULL.
func updateQuery(db bun.IDB, row *database.Account) *bun.UpdateQuery {
	return db.NewUpdate().
		Model(row).
		ExcludeColumn("id", "created_at").
		WherePK()
}

// DeleteByEmail removes the account registered under email
func (r *BunRepository) DeleteByEmail(ctx context.Context, email string) error {
	result, err := r.db.NewDelete().
		Model((*database.Account)(nil)).
		Where("email = ?", email).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

func (r *BunRepository) Close(_ context.Context) error {
	return r.db.Close()
}

func mapRowToAccount(row *database.Account) *Account {
	return &Account{
		ID:                     row.ID,
		Firstname:              row.Firstname,
		Lastname:               row.Lastname,
		Email:                  row.Email,
		PasswordHash:           row.PasswordHash,
		Verified:               row.Verified,
		VerificationCode:       row.VerificationCode,
		VerificationToken:      row.VerificationToken,
		ResetPasswordToken:     row.ResetPasswordToken,
		ResetPasswordExpiresIn: row.ResetPasswordExpiresIn,
		CreatedAt:              row.CreatedAt,
		UpdatedAt:              row.UpdatedAt,
	}
}

func mapAccountToRow(a *Account) *database.Account {
	return &database.Account{
		ID:                     a.ID,
		Firstname:              a.Firstname,
		Lastname:               a.Lastname,
		Email:                  a.Email,
		PasswordHash:           a.PasswordHash,
		Verified:               a.Verified,
		VerificationCode:       a.VerificationCode,
		VerificationToken:      a.VerificationToken,
		ResetPasswordToken:     a.ResetPasswordToken,
		ResetPasswordExpiresIn: a.ResetPasswordExpiresIn,
		CreatedAt:              a.CreatedAt,
		UpdatedAt:              a.UpdatedAt,
	}
}
