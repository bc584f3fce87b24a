package account

import (
	"database/sql"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/redmonkez12/otp-auth-api/internal/database"
)

// newOfflineDB builds queries without ever dialing; sql.Open does not connect.
func newOfflineDB(t *testing.T) *bun.DB {
	t.Helper()

	sqlDB, err := sql.Open("postgres", "postgres://localhost/offline?sslmode=disable")
	require.NoError(t, err)
	db := database.NewBunDB(sqlDB)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestBunRepository_ResetTokenFilter(t *testing.T) {
	db := newOfflineDB(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	q := resetTokenFilter("tok-123", now)(db.NewSelect().Model((*database.Account)(nil)))
	query := q.String()

	assert.Contains(t, query, `reset_password_token = 'tok-123'`)
	assert.Contains(t, query, `reset_password_expires_in > '2026-03-01 12:00:00`)
}

func TestBunRepository_UpdateQueryClearsOptionalColumns(t *testing.T) {
	db := newOfflineDB(t)

	a := pendingAccount("ada@x.com", "12345678")
	a.VerificationCode = nil
	a.VerificationToken = nil
	a.Verified = true

	query := updateQuery(db, mapAccountToRow(a)).String()

	assert.Contains(t, query, `UPDATE "accounts"`)
	assert.Contains(t, query, `"verification_code" = NULL`)
	assert.Contains(t, query, `"verification_token" = NULL`)
	assert.Contains(t, query, a.ID.String())
	assert.NotContains(t, query, `"created_at" =`)
}

func TestBunRepository_RowMapping(t *testing.T) {
	expires := time.Date(2026, 3, 1, 22, 0, 0, 0, time.UTC)
	a := pendingAccount("ada@x.com", "12345678")
	a.ResetPasswordToken = StringPtr("reset")
	a.ResetPasswordExpiresIn = &expires

	assert.Equal(t, a, mapRowToAccount(mapAccountToRow(a)))
}

func TestMongoRepository_DocumentFieldNames(t *testing.T) {
	a := pendingAccount("ada@x.com", "12345678")

	raw, err := bson.Marshal(mapAccountToDocument(a))
	require.NoError(t, err)

	var doc bson.M
	require.NoError(t, bson.Unmarshal(raw, &doc))

	assert.Equal(t, a.ID.String(), doc["_id"])
	assert.Equal(t, "hash", doc["password"])
	assert.Equal(t, "12345678", doc["verificationCode"])
	assert.Equal(t, "signed-token", doc["token"])
	assert.NotContains(t, doc, "resetPasswordToken")
	assert.NotContains(t, doc, "resetPasswordExpiresIn")
	assert.NotContains(t, doc, "passwordHash")
}

func TestMongoRepository_DocumentRoundTrip(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	expires := created.Add(10 * time.Hour)

	a := pendingAccount("ada@x.com", "12345678")
	a.ResetPasswordToken = StringPtr("reset")
	a.ResetPasswordExpiresIn = &expires
	a.CreatedAt = created
	a.UpdatedAt = created

	raw, err := bson.Marshal(mapAccountToDocument(a))
	require.NoError(t, err)

	var doc mongoAccount
	require.NoError(t, bson.Unmarshal(raw, &doc))

	got, err := mapDocumentToAccount(&doc)
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)
	assert.Equal(t, a.VerificationToken, got.VerificationToken)
	assert.Equal(t, a.ResetPasswordToken, got.ResetPasswordToken)
	require.NotNil(t, got.ResetPasswordExpiresIn)
	assert.True(t, expires.Equal(*got.ResetPasswordExpiresIn))
	assert.True(t, created.Equal(got.CreatedAt))
}

func TestMongoRepository_BadDocumentID(t *testing.T) {
	_, err := mapDocumentToAccount(&mongoAccount{ID: "not-a-uuid"})
	assert.Error(t, err)
}

func TestMongoRepository_ResetTokenFilter(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	filter := resetTokenDocumentFilter("tok-123", now)

	assert.Equal(t, "tok-123", filter["resetPasswordToken"])
	assert.Equal(t, bson.M{"$gt": now}, filter["resetPasswordExpiresIn"])
}
