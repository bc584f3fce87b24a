package account

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisRepository stores each account as a hash plus one index key per
// lookup field. Reset-token index keys expire with the token.
type RedisRepository struct {
	client *redis.Client
}

func NewRedisRepository(client *redis.Client) *RedisRepository {
	return &RedisRepository{client: client}
}

// ConnectRedis parses a redis:// URL and verifies the connection.
func ConnectRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return client, nil
}

func accountKey(id string) string {
	return fmt.Sprintf("account:%s", id)
}

func emailIndexKey(email string) string {
	return fmt.Sprintf("account:email:%s", email)
}

func verificationCodeIndexKey(code string) string {
	return fmt.Sprintf("account:otp:%s", code)
}

// resetIndexKey hashes the token so raw reset tokens never appear in key names
func resetIndexKey(token string) string {
	return fmt.Sprintf("account:reset:%s", hashToken(token))
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func (r *RedisRepository) FindByEmail(ctx context.Context, email string) (*Account, error) {
	return r.findByIndex(ctx, "find account by email", emailIndexKey(email))
}

func (r *RedisRepository) FindByVerificationCode(ctx context.Context, code string) (*Account, error) {
	a, err := r.findByIndex(ctx, "find account by verification code", verificationCodeIndexKey(code))
	if err != nil {
		return nil, err
	}
	if a.VerificationCode == nil || *a.VerificationCode != code {
		return nil, ErrNotFound
	}
	return a, nil
}

func (r *RedisRepository) FindByResetToken(ctx context.Context, token string, now time.Time) (*Account, error) {
	a, err := r.findByIndex(ctx, "find account by reset token", resetIndexKey(token))
	if err != nil {
		return nil, err
	}

	// The index key may outlive a token that was since replaced.
	if a.ResetPasswordToken == nil || *a.ResetPasswordToken != token || !a.HasOutstandingReset(now) {
		return nil, ErrNotFound
	}
	return a, nil
}

func (r *RedisRepository) findByIndex(ctx context.Context, op, indexKey string) (*Account, error) {
	id, err := r.client.Get(ctx, indexKey).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to %s: %w", op, err)
	}

	a, err := loadAccount(ctx, r.client, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to %s: %w", op, err)
	}
	return a, nil
}

func (r *RedisRepository) Insert(ctx context.Context, a *Account) error {
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now

	emailKey := emailIndexKey(a.Email)
	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		exists, err := tx.Exists(ctx, emailKey).Result()
		if err != nil {
			return err
		}
		if exists > 0 {
			return ErrDuplicateEmail
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			writeAccount(ctx, pipe, a, now)
			return nil
		})
		return err
	}, emailKey)
	if err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("failed to insert account: %w", err)
	}

	return nil
}

// Update rewrites the account hash and moves any index keys whose field changed.
func (r *RedisRepository) Update(ctx context.Context, a *Account) error {
	key := accountKey(a.ID.String())
	updatedAt := time.Now().UTC()

	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		old, err := loadAccount(ctx, tx, a.ID.String())
		if err != nil {
			return err
		}

		owned, err := ownedIndexKeys(ctx, tx, old)
		if err != nil {
			return err
		}

		next := a.Clone()
		next.CreatedAt = old.CreatedAt
		next.UpdatedAt = updatedAt

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			removeIndexes(ctx, pipe, owned)
			pipe.Del(ctx, key)
			writeAccount(ctx, pipe, next, updatedAt)
			return nil
		})
		return err
	}, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to update account: %w", err)
	}

	a.UpdatedAt = updatedAt
	return nil
}

func (r *RedisRepository) DeleteByEmail(ctx context.Context, email string) error {
	emailKey := emailIndexKey(email)

	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		id, err := tx.Get(ctx, emailKey).Result()
		if err == redis.Nil {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		old, err := loadAccount(ctx, tx, id)
		if errors.Is(err, ErrNotFound) {
			// dangling index entry
			return tx.Del(ctx, emailKey).Err()
		}
		if err != nil {
			return err
		}

		owned, err := ownedIndexKeys(ctx, tx, old)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			removeIndexes(ctx, pipe, owned)
			pipe.Del(ctx, accountKey(id))
			return nil
		})
		return err
	}, emailKey)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete account: %w", err)
	}

	return nil
}

func (r *RedisRepository) Close(_ context.Context) error {
	return r.client.Close()
}

func writeAccount(ctx context.Context, pipe redis.Pipeliner, a *Account, now time.Time) {
	id := a.ID.String()
	pipe.HSet(ctx, accountKey(id), encodeAccount(a))
	pipe.Set(ctx, emailIndexKey(a.Email), id, 0)

	if a.VerificationCode != nil {
		pipe.Set(ctx, verificationCodeIndexKey(*a.VerificationCode), id, 0)
	}

	if a.ResetPasswordToken != nil && a.ResetPasswordExpiresIn != nil {
		if ttl := a.ResetPasswordExpiresIn.Sub(now); ttl > 0 {
			pipe.Set(ctx, resetIndexKey(*a.ResetPasswordToken), id, ttl)
		}
	}
}

// ownedIndexKeys returns the index keys of a that still point at a, and
// watches them for the rest of the transaction. Two pending accounts can draw
// the same code, in which case the later write owns the code index.
func ownedIndexKeys(ctx context.Context, tx *redis.Tx, a *Account) ([]string, error) {
	keys := []string{emailIndexKey(a.Email)}
	if a.VerificationCode != nil {
		keys = append(keys, verificationCodeIndexKey(*a.VerificationCode))
	}
	if a.ResetPasswordToken != nil {
		keys = append(keys, resetIndexKey(*a.ResetPasswordToken))
	}

	if err := tx.Watch(ctx, keys...).Err(); err != nil {
		return nil, err
	}
	vals, err := tx.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	id := a.ID.String()
	owned := make([]string, 0, len(keys))
	for i, v := range vals {
		if s, ok := v.(string); ok && s == id {
			owned = append(owned, keys[i])
		}
	}
	return owned, nil
}

func removeIndexes(ctx context.Context, pipe redis.Pipeliner, keys []string) {
	if len(keys) > 0 {
		pipe.Del(ctx, keys...)
	}
}

type hashReader interface {
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
}

func loadAccount(ctx context.Context, c hashReader, id string) (*Account, error) {
	data, err := c.HGetAll(ctx, accountKey(id)).Result()
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, ErrNotFound
	}
	return decodeAccount(data)
}

func encodeAccount(a *Account) map[string]any {
	fields := map[string]any{
		"id":            a.ID.String(),
		"firstname":     a.Firstname,
		"lastname":      a.Lastname,
		"email":         a.Email,
		"password_hash": a.PasswordHash,
		"verified":      strconv.FormatBool(a.Verified),
		"created_at":    a.CreatedAt.Format(time.RFC3339Nano),
		"updated_at":    a.UpdatedAt.Format(time.RFC3339Nano),
	}
	if a.VerificationCode != nil {
		fields["verification_code"] = *a.VerificationCode
	}
	if a.VerificationToken != nil {
		fields["verification_token"] = *a.VerificationToken
	}
	if a.ResetPasswordToken != nil {
		fields["reset_password_token"] = *a.ResetPasswordToken
	}
	if a.ResetPasswordExpiresIn != nil {
		fields["reset_password_expires_in"] = a.ResetPasswordExpiresIn.Format(time.RFC3339Nano)
	}
	return fields
}

func decodeAccount(data map[string]string) (*Account, error) {
	id, err := uuid.Parse(data["id"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse account id: %w", err)
	}

	verified, err := strconv.ParseBool(data["verified"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse verified flag: %w", err)
	}

	a := &Account{
		ID:           id,
		Firstname:    data["firstname"],
		Lastname:     data["lastname"],
		Email:        data["email"],
		PasswordHash: data["password_hash"],
		Verified:     verified,
	}

	if a.CreatedAt, err = time.Parse(time.RFC3339Nano, data["created_at"]); err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if a.UpdatedAt, err = time.Parse(time.RFC3339Nano, data["updated_at"]); err != nil {
		return nil, fmt.Errorf("failed to parse updated_at: %w", err)
	}

	if v, ok := data["verification_code"]; ok {
		a.VerificationCode = StringPtr(v)
	}
	if v, ok := data["verification_token"]; ok {
		a.VerificationToken = StringPtr(v)
	}
	if v, ok := data["reset_password_token"]; ok {
		a.ResetPasswordToken = StringPtr(v)
	}
	if v, ok := data["reset_password_expires_in"]; ok {
		expires, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return nil, fmt.Errorf("failed to parse reset_password_expires_in: %w", err)
		}
		a.ResetPasswordExpiresIn = &expires
	}

	return a, nil
}
