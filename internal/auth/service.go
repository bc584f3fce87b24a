package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/samber/oops"

	"github.com/redmonkez12/otp-auth-api/internal/account"
	"github.com/redmonkez12/otp-auth-api/internal/lifecycle"
	"github.com/redmonkez12/otp-auth-api/internal/logging"
	"github.com/redmonkez12/otp-auth-api/internal/token"
)

// ErrUnauthenticated is returned when a session token does not resolve to an account.
var ErrUnauthenticated = errors.New("unauthenticated")

// Error codes attached to collaborator failures.
const (
	CodeStoreUnavailable = "STORE_UNAVAILABLE"
	CodeDeliveryFailed   = "DELIVERY_FAILED"
	CodeTokenMintFailed  = "TOKEN_MINT_FAILED"
	CodeLifecycleFailed  = "LIFECYCLE_FAILED"
)

// Mailer sends the lifecycle notifications.
type Mailer interface {
	SendVerificationCode(ctx context.Context, toEmail, firstname, code string) error
	SendPasswordResetLink(ctx context.Context, toEmail, firstname, token string) error
	SendPasswordResetConfirmation(ctx context.Context, toEmail, firstname string) error
}

// Service loads accounts, asks the lifecycle engine for a decision and
// carries out its effects: mint, persist, then notify.
type Service struct {
	store  account.Store
	engine *lifecycle.Engine
	tokens token.Issuer
	mailer Mailer
	logger *logging.Logger
}

func NewService(store account.Store, engine *lifecycle.Engine, tokens token.Issuer, mailer Mailer, logger *logging.Logger) *Service {
	return &Service{
		store:  store,
		engine: engine,
		tokens: tokens,
		mailer: mailer,
		logger: logger,
	}
}

// LoginResult is a freshly minted session.
type LoginResult struct {
	Token   string
	Profile account.PublicProfile
}

func (s *Service) Register(ctx context.Context, req RegisterRequest) (lifecycle.Outcome, error) {
	const op = "register"
	email := normalizeEmail(req.Email)

	existing, err := s.findByEmail(ctx, op, email)
	if err != nil {
		return lifecycle.OutcomeRejected, err
	}

	d, err := s.engine.Register(existing, lifecycle.Registration{
		Firstname: req.Firstname,
		Lastname:  req.Lastname,
		Email:     email,
		Password:  req.Password,
	})
	if err != nil {
		return lifecycle.OutcomeRejected, lifecycleFailure(op, err)
	}

	if _, err := s.dispatch(ctx, op, d); err != nil {
		return lifecycle.OutcomeRejected, err
	}
	return d.Outcome, d.Reject
}

func (s *Service) VerifyOTP(ctx context.Context, otp string) error {
	const op = "verify_otp"

	acct, err := s.store.FindByVerificationCode(ctx, otp)
	if err != nil && !errors.Is(err, account.ErrNotFound) {
		return storeFailure(op, err)
	}

	var (
		claims   *token.VerificationClaims
		tokenErr error
	)
	if acct != nil {
		if acct.VerificationToken == nil {
			tokenErr = token.ErrTokenInvalid
		} else {
			claims, tokenErr = s.tokens.VerifyVerification(*acct.VerificationToken)
		}
	}

	d := s.engine.VerifyOTP(acct, otp, claims, tokenErr)
	if _, err := s.dispatch(ctx, op, d); err != nil {
		return err
	}
	return d.Reject
}

func (s *Service) ResendOTP(ctx context.Context, email string) (lifecycle.Outcome, error) {
	const op = "resend_otp"

	acct, err := s.findByEmail(ctx, op, normalizeEmail(email))
	if err != nil {
		return lifecycle.OutcomeRejected, err
	}

	d, err := s.engine.ResendOTP(acct)
	if err != nil {
		return lifecycle.OutcomeRejected, lifecycleFailure(op, err)
	}

	if _, err := s.dispatch(ctx, op, d); err != nil {
		return lifecycle.OutcomeRejected, err
	}
	return d.Outcome, d.Reject
}

func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	const op = "login"

	acct, err := s.findByEmail(ctx, op, normalizeEmail(email))
	if err != nil {
		return nil, err
	}

	d, err := s.engine.Login(acct, password)
	if err != nil {
		return nil, lifecycleFailure(op, err)
	}

	session, err := s.dispatch(ctx, op, d)
	if err != nil {
		return nil, err
	}
	if d.Reject != nil {
		return nil, d.Reject
	}

	return &LoginResult{Token: session, Profile: d.Account.Profile()}, nil
}

// Profile resolves the account behind a verified session token.
func (s *Service) Profile(ctx context.Context, claims *token.SessionClaims) (*account.PublicProfile, error) {
	acct, err := s.findByEmail(ctx, "profile", claims.Email)
	if err != nil {
		return nil, err
	}
	if acct == nil || acct.ID != claims.ID || !acct.Verified {
		return nil, ErrUnauthenticated
	}

	profile := acct.Profile()
	return &profile, nil
}

func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	const op = "request_password_reset"

	acct, err := s.findByEmail(ctx, op, normalizeEmail(email))
	if err != nil {
		return err
	}

	d, err := s.engine.RequestPasswordReset(acct)
	if err != nil {
		return lifecycleFailure(op, err)
	}

	if _, err := s.dispatch(ctx, op, d); err != nil {
		return err
	}
	return d.Reject
}

// CheckResetToken reports whether resetToken is outstanding and unexpired.
func (s *Service) CheckResetToken(ctx context.Context, resetToken string) error {
	acct, err := s.findByResetToken(ctx, "check_reset_token", resetToken)
	if err != nil {
		return err
	}
	return s.engine.CheckResetToken(acct, resetToken)
}

func (s *Service) CompletePasswordReset(ctx context.Context, resetToken, newPassword string) error {
	const op = "complete_password_reset"

	acct, err := s.findByResetToken(ctx, op, resetToken)
	if err != nil {
		return err
	}

	d, err := s.engine.CompletePasswordReset(acct, resetToken, newPassword)
	if err != nil {
		return lifecycleFailure(op, err)
	}

	if _, err := s.dispatch(ctx, op, d); err != nil {
		return err
	}
	return d.Reject
}

// dispatch applies a decision. It returns the minted session token, if any.
// Emails go out after the write; a failed send leaves the write in place.
func (s *Service) dispatch(ctx context.Context, op string, d lifecycle.Decision) (string, error) {
	var session string

	switch d.Mint {
	case lifecycle.MintVerification:
		tok, err := s.tokens.MintVerification(identityOf(d.Account), *d.Account.VerificationCode)
		if err != nil {
			return "", oops.Code(CodeTokenMintFailed).With("operation", op).Wrapf(err, "mint verification token")
		}
		d.Account.VerificationToken = &tok
	case lifecycle.MintSession:
		tok, err := s.tokens.MintSession(identityOf(d.Account))
		if err != nil {
			return "", oops.Code(CodeTokenMintFailed).With("operation", op).Wrapf(err, "mint session token")
		}
		session = tok
	}

	switch d.Persist {
	case lifecycle.PersistInsert:
		if err := s.store.Insert(ctx, d.Account); err != nil {
			if errors.Is(err, account.ErrDuplicateEmail) {
				return "", lifecycle.ErrAlreadyRegistered
			}
			return "", storeFailure(op, err)
		}
	case lifecycle.PersistUpdate:
		if err := s.store.Update(ctx, d.Account); err != nil {
			if errors.Is(err, account.ErrNotFound) {
				return "", lifecycle.ErrNotFound
			}
			return "", storeFailure(op, err)
		}
	case lifecycle.PersistDelete:
		if err := s.store.DeleteByEmail(ctx, d.Account.Email); err != nil && !errors.Is(err, account.ErrNotFound) {
			return "", storeFailure(op, err)
		}
		s.logger.Info("removed unverified account", "operation", op, "user_id", d.Account.ID)
	}

	for _, e := range d.Emails {
		if err := s.send(ctx, e); err != nil {
			return "", oops.Code(CodeDeliveryFailed).
				With("operation", op).
				With("user_id", d.Account.ID.String()).
				Wrapf(err, "send email")
		}
	}

	return session, nil
}

func (s *Service) send(ctx context.Context, e lifecycle.EmailIntent) error {
	switch e.Kind {
	case lifecycle.EmailVerificationCode:
		return s.mailer.SendVerificationCode(ctx, e.To, e.Firstname, e.Code)
	case lifecycle.EmailPasswordResetLink:
		return s.mailer.SendPasswordResetLink(ctx, e.To, e.Firstname, e.ResetToken)
	case lifecycle.EmailPasswordResetConfirmation:
		return s.mailer.SendPasswordResetConfirmation(ctx, e.To, e.Firstname)
	default:
		return fmt.Errorf("unknown email kind %d", e.Kind)
	}
}

// findByEmail returns nil without error when no account matches.
func (s *Service) findByEmail(ctx context.Context, op, email string) (*account.Account, error) {
	acct, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return nil, nil
		}
		return nil, storeFailure(op, err)
	}
	return acct, nil
}

func (s *Service) findByResetToken(ctx context.Context, op, resetToken string) (*account.Account, error) {
	if resetToken == "" {
		return nil, nil
	}
	acct, err := s.store.FindByResetToken(ctx, resetToken, s.engine.Now())
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return nil, nil
		}
		return nil, storeFailure(op, err)
	}
	return acct, nil
}

func identityOf(a *account.Account) token.Identity {
	return token.Identity{
		ID:        a.ID,
		Firstname: a.Firstname,
		Lastname:  a.Lastname,
		Email:     a.Email,
	}
}

func storeFailure(op string, err error) error {
	return oops.Code(CodeStoreUnavailable).With("operation", op).Wrapf(err, "account store")
}

func lifecycleFailure(op string, err error) error {
	return oops.Code(CodeLifecycleFailed).With("operation", op).Wrapf(err, "lifecycle")
}
