package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/redmonkez12/otp-auth-api/internal/lifecycle"
)

func registerReq(email, pw string) RegisterRequest {
	return RegisterRequest{Firstname: "Ada", Lastname: "Lovelace", Email: email, Password: pw}
}

// registerAndVerify drives an account to the verified state.
func (h *harness) registerAndVerify(t *testing.T, email, pw string) {
	t.Helper()
	ctx := context.Background()

	_, err := h.service.Register(ctx, registerReq(email, pw))
	require.NoError(t, err)
	require.NoError(t, h.service.VerifyOTP(ctx, h.mailer.last(t).value))
}

func TestService_RegisterCreatesPendingAccount(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	outcome, err := h.service.Register(ctx, registerReq(" A@X.com ", "secret1"))
	require.NoError(t, err)
	assert.Equal(t, lifecycle.OutcomeCreated, outcome)

	stored := h.store.get("a@x.com")
	require.NotNil(t, stored)
	assert.False(t, stored.Verified)
	require.NotNil(t, stored.VerificationCode)
	require.NotNil(t, stored.VerificationToken, "verification token is stored with the record")

	claims, err := h.tokens.VerifyVerification(*stored.VerificationToken)
	require.NoError(t, err)
	assert.Equal(t, stored.ID, claims.ID)
	assert.Equal(t, *stored.VerificationCode, claims.VerificationCode)

	m := h.mailer.last(t)
	assert.Equal(t, lifecycle.EmailVerificationCode, m.kind)
	assert.Equal(t, "a@x.com", m.to)
	assert.Equal(t, *stored.VerificationCode, m.value)
}

func TestService_RegisterTwiceInvalidatesOldCode(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.service.Register(ctx, registerReq("a@x.com", "secret1"))
	require.NoError(t, err)
	oldCode := h.mailer.last(t).value

	outcome, err := h.service.Register(ctx, registerReq("a@x.com", "secret1"))
	require.NoError(t, err)
	assert.Equal(t, lifecycle.OutcomeExistingPendingReissued, outcome)
	newCode := h.mailer.last(t).value
	require.NotEqual(t, oldCode, newCode)

	assert.ErrorIs(t, h.service.VerifyOTP(ctx, oldCode), lifecycle.ErrInvalidOrExpiredCode)
	assert.NoError(t, h.service.VerifyOTP(ctx, newCode))
}

func TestService_RegisterVerifiedEmail(t *testing.T) {
	h := newHarness(t)
	h.registerAndVerify(t, "a@x.com", "secret1")
	sent := h.mailer.count()

	_, err := h.service.Register(context.Background(), registerReq("a@x.com", "different"))
	assert.ErrorIs(t, err, lifecycle.ErrAlreadyRegistered)
	assert.Equal(t, sent, h.mailer.count())
}

func TestService_VerifyOTP(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.service.Register(ctx, registerReq("a@x.com", "secret1"))
	require.NoError(t, err)
	code := h.mailer.last(t).value

	assert.ErrorIs(t, h.service.VerifyOTP(ctx, "00000000"), lifecycle.ErrInvalidOrExpiredCode)

	require.NoError(t, h.service.VerifyOTP(ctx, code))
	stored := h.store.get("a@x.com")
	assert.True(t, stored.Verified)
	assert.Nil(t, stored.VerificationCode)
	assert.Nil(t, stored.VerificationToken)

	assert.ErrorIs(t, h.service.VerifyOTP(ctx, code), lifecycle.ErrInvalidOrExpiredCode)
}

func TestService_VerifyOTPAfterTokenExpiry(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.service.Register(ctx, registerReq("a@x.com", "secret1"))
	require.NoError(t, err)
	code := h.mailer.last(t).value

	h.clock.advance(16 * time.Minute)

	assert.ErrorIs(t, h.service.VerifyOTP(ctx, code), lifecycle.ErrInvalidOrExpiredCode)
	assert.False(t, h.store.get("a@x.com").Verified)
}

func TestService_ResendOTP(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.service.ResendOTP(ctx, "nobody@x.com")
	assert.ErrorIs(t, err, lifecycle.ErrNotFound)

	_, err = h.service.Register(ctx, registerReq("a@x.com", "secret1"))
	require.NoError(t, err)
	first := h.mailer.last(t).value

	outcome, err := h.service.ResendOTP(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, lifecycle.OutcomeCodeResent, outcome)
	second := h.mailer.last(t).value

	assert.ErrorIs(t, h.service.VerifyOTP(ctx, first), lifecycle.ErrInvalidOrExpiredCode)
	assert.NoError(t, h.service.VerifyOTP(ctx, second))

	outcome, err = h.service.ResendOTP(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, lifecycle.OutcomeAlreadyVerified, outcome)
	assert.Nil(t, h.store.get("a@x.com").VerificationCode)
}

func TestService_Login(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.registerAndVerify(t, "a@x.com", "secret1")

	_, err := h.service.Login(ctx, "a@x.com", "wrong")
	assert.ErrorIs(t, err, lifecycle.ErrInvalidCredentials)

	_, err = h.service.Login(ctx, "nobody@x.com", "secret1")
	assert.ErrorIs(t, err, lifecycle.ErrNotFound)

	res, err := h.service.Login(ctx, "a@x.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", res.Profile.Email)
	assert.True(t, res.Profile.Verified)

	claims, err := h.tokens.VerifySession(res.Token)
	require.NoError(t, err)
	assert.Equal(t, res.Profile.ID, claims.ID)

	profile, err := h.service.Profile(ctx, claims)
	require.NoError(t, err)
	assert.Equal(t, res.Profile, *profile)
}

func TestService_LoginUpgradesLegacyHash(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.registerAndVerify(t, "a@x.com", "secret1")

	legacy, err := bcrypt.GenerateFromPassword([]byte("secret1"), bcrypt.MinCost)
	require.NoError(t, err)
	stored := h.store.get("a@x.com")
	stored.PasswordHash = string(legacy)
	require.NoError(t, h.store.Update(ctx, stored))

	_, err = h.service.Login(ctx, "a@x.com", "secret1")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(h.store.get("a@x.com").PasswordHash, "$argon2id$"))

	_, err = h.service.Login(ctx, "a@x.com", "secret1")
	assert.NoError(t, err)
}

func TestService_LoginDeletesAbandonedRegistration(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.service.Register(ctx, registerReq("a@x.com", "secret1"))
	require.NoError(t, err)

	_, err = h.service.Login(ctx, "a@x.com", "secret1")
	assert.ErrorIs(t, err, lifecycle.ErrNotFound)
	assert.Nil(t, h.store.get("a@x.com"))

	outcome, err := h.service.Register(ctx, registerReq("a@x.com", "secret1"))
	require.NoError(t, err)
	assert.Equal(t, lifecycle.OutcomeCreated, outcome)
}

func TestService_PasswordResetCycle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.registerAndVerify(t, "a@x.com", "oldpass")

	assert.ErrorIs(t, h.service.RequestPasswordReset(ctx, "nobody@x.com"), lifecycle.ErrNotFound)

	require.NoError(t, h.service.RequestPasswordReset(ctx, "a@x.com"))
	m := h.mailer.last(t)
	assert.Equal(t, lifecycle.EmailPasswordResetLink, m.kind)
	resetToken := m.value
	assert.Len(t, resetToken, 64)

	require.NoError(t, h.service.CheckResetToken(ctx, resetToken))
	assert.ErrorIs(t, h.service.CheckResetToken(ctx, "bogus"), lifecycle.ErrInvalidOrExpiredToken)

	require.NoError(t, h.service.CompletePasswordReset(ctx, resetToken, "newpass"))
	assert.Equal(t, lifecycle.EmailPasswordResetConfirmation, h.mailer.last(t).kind)

	stored := h.store.get("a@x.com")
	assert.Nil(t, stored.ResetPasswordToken)
	assert.Nil(t, stored.ResetPasswordExpiresIn)

	_, err := h.service.Login(ctx, "a@x.com", "oldpass")
	assert.ErrorIs(t, err, lifecycle.ErrInvalidCredentials)
	_, err = h.service.Login(ctx, "a@x.com", "newpass")
	assert.NoError(t, err)

	assert.ErrorIs(t, h.service.CompletePasswordReset(ctx, resetToken, "third"), lifecycle.ErrInvalidOrExpiredToken)
}

func TestService_CompletePasswordResetExpired(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.registerAndVerify(t, "a@x.com", "oldpass")

	require.NoError(t, h.service.RequestPasswordReset(ctx, "a@x.com"))
	resetToken := h.mailer.last(t).value
	before := h.store.get("a@x.com")

	h.clock.advance(10 * time.Hour)

	assert.ErrorIs(t, h.service.CompletePasswordReset(ctx, resetToken, "newpass"), lifecycle.ErrInvalidOrExpiredToken)
	assert.ErrorIs(t, h.service.CompletePasswordReset(ctx, "unknown", "newpass"), lifecycle.ErrInvalidOrExpiredToken)
	assert.Equal(t, before, h.store.get("a@x.com"))
}

func TestService_StoreFailureIsCoded(t *testing.T) {
	h := newHarness(t)
	h.store.failWith = errBackendDown

	_, err := h.service.Login(context.Background(), "a@x.com", "secret1")
	require.Error(t, err)

	oopsErr, ok := oops.AsOops(err)
	require.True(t, ok)
	assert.Equal(t, CodeStoreUnavailable, oopsErr.Code())
	assert.Equal(t, "login", oopsErr.Context()["operation"])
	assert.ErrorIs(t, err, errBackendDown)
}

func TestService_DeliveryFailureKeepsState(t *testing.T) {
	h := newHarness(t)
	h.mailer.failWith = errBackendDown

	_, err := h.service.Register(context.Background(), registerReq("a@x.com", "secret1"))
	require.Error(t, err)

	oopsErr, ok := oops.AsOops(err)
	require.True(t, ok)
	assert.Equal(t, CodeDeliveryFailed, oopsErr.Code())

	stored := h.store.get("a@x.com")
	require.NotNil(t, stored, "account is persisted even though the email failed")
	assert.NotNil(t, stored.VerificationCode)
}
