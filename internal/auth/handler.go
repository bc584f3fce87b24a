package auth

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/redmonkez12/otp-auth-api/internal/httputil"
	"github.com/redmonkez12/otp-auth-api/internal/lifecycle"
	"github.com/redmonkez12/otp-auth-api/internal/logging"
)

// Handler contains HTTP handlers for the account lifecycle endpoints
type Handler struct {
	service *Service
	logger  *logging.Logger
}

func NewHandler(service *Service, logger *logging.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register handles user registration
// @Summary      Register a new user
// @Description  Create an account, or reissue the code of a pending one. A verification code is emailed.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body RegisterRequest true "Registration details"
// @Success      201 {object} RegisterResponse
// @Failure      400 {object} httputil.ErrorResponse "Validation error or email already registered"
// @Failure      500 {object} httputil.ErrorResponse "Internal server error"
// @Router       /register [post]
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	var req RegisterRequest
	if !decodeRequest(w, r, logger, &req) {
		return
	}

	logger = logger.WithFields(map[string]any{"email": req.Email})

	outcome, err := h.service.Register(r.Context(), req)
	if err != nil {
		h.respondServiceError(w, r, logger, "register", err, http.StatusNotFound)
		return
	}

	logger.Info("registration accepted", "outcome", outcome.String())

	message := "Hurray! your account is created please verify your email address."
	if outcome == lifecycle.OutcomeExistingPendingReissued {
		message = "Account exists but is not verified. A new verification code has been sent."
	}

	respondJSON(w, RegisterResponse{
		Success: true,
		Email:   normalizeEmail(req.Email),
		Message: message,
	}, http.StatusCreated)
}

// VerifyOTP handles email verification with the one-time passcode
// @Summary      Verify email
// @Description  Consume the emailed verification code and activate the account
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body VerifyOTPRequest true "Verification code"
// @Success      200 {object} MessageResponse
// @Failure      400 {object} httputil.ErrorResponse "Validation error"
// @Failure      401 {object} httputil.ErrorResponse "Invalid or expired code"
// @Failure      500 {object} httputil.ErrorResponse "Internal server error"
// @Router       /verify-otp [post]
func (h *Handler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	var req VerifyOTPRequest
	if !decodeRequest(w, r, logger, &req) {
		return
	}

	if err := h.service.VerifyOTP(r.Context(), req.OTP); err != nil {
		h.respondServiceError(w, r, logger, "verify_otp", err, http.StatusUnauthorized)
		return
	}

	logger.Info("email verified")

	respondJSON(w, MessageResponse{
		Success: true,
		Message: "Hurray! your email has been verified.",
	}, http.StatusOK)
}

// ResendOTP handles resending the verification code
// @Summary      Resend verification code
// @Description  Issue a new verification code, invalidating the previous one
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body ResendOTPRequest true "Email address"
// @Success      200 {object} MessageResponse
// @Failure      400 {object} httputil.ErrorResponse "Validation error"
// @Failure      401 {object} httputil.ErrorResponse "Unknown email"
// @Failure      500 {object} httputil.ErrorResponse "Internal server error"
// @Router       /resend-otp [post]
func (h *Handler) ResendOTP(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	var req ResendOTPRequest
	if !decodeRequest(w, r, logger, &req) {
		return
	}

	logger = logger.WithFields(map[string]any{"email": req.Email})

	outcome, err := h.service.ResendOTP(r.Context(), req.Email)
	if err != nil {
		h.respondServiceError(w, r, logger, "resend_otp", err, http.StatusUnauthorized)
		return
	}

	message := "Hurray! OTP has been resent."
	if outcome == lifecycle.OutcomeAlreadyVerified {
		message = "Email is already verified."
	}
	logger.Info("resend handled", "outcome", outcome.String())

	respondJSON(w, MessageResponse{Success: true, Message: message}, http.StatusOK)
}

// Login handles user login
// @Summary      User login
// @Description  Authenticate a verified account and receive a session token
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body LoginRequest true "Login credentials"
// @Success      200 {object} LoginResponse
// @Failure      400 {object} httputil.ErrorResponse "Validation error"
// @Failure      401 {object} httputil.ErrorResponse "Incorrect password"
// @Failure      404 {object} httputil.ErrorResponse "Account not found"
// @Failure      500 {object} httputil.ErrorResponse "Internal server error"
// @Router       /login [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	var req LoginRequest
	if !decodeRequest(w, r, logger, &req) {
		return
	}

	logger = logger.WithFields(map[string]any{"email": req.Email})

	result, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.respondServiceError(w, r, logger, "login", err, http.StatusNotFound)
		return
	}

	logger.Info("user logged in", "user_id", result.Profile.ID)

	respondJSON(w, LoginResponse{
		Success: true,
		User:    result.Profile,
		Token:   "Bearer " + result.Token,
		Message: "Hurray! You are now logged in.",
	}, http.StatusOK)
}

// Authenticate returns the profile of the session's account
// @Summary      Current user profile
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} ProfileResponse
// @Failure      401 {object} httputil.ErrorResponse "Unauthenticated"
// @Failure      500 {object} httputil.ErrorResponse "Internal server error"
// @Router       /authenticate [get]
func (h *Handler) Authenticate(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	claims, ok := GetSessionFromContext(r.Context())
	if !ok {
		respondError(w, "missing authentication", httputil.CodeUnauthenticated, http.StatusUnauthorized)
		return
	}

	profile, err := h.service.Profile(r.Context(), claims)
	if err != nil {
		h.respondServiceError(w, r, logger, "profile", err, http.StatusUnauthorized)
		return
	}

	respondJSON(w, ProfileResponse{User: *profile}, http.StatusOK)
}

// RequestPasswordReset handles password reset requests
// @Summary      Request password reset
// @Description  Email a password reset link valid for a limited time
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body ResetPasswordRequest true "Email address"
// @Success      200 {object} MessageResponse
// @Failure      400 {object} httputil.ErrorResponse "Validation error"
// @Failure      404 {object} httputil.ErrorResponse "Account not found"
// @Failure      500 {object} httputil.ErrorResponse "Internal server error"
// @Router       /reset-password [put]
func (h *Handler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	var req ResetPasswordRequest
	if !decodeRequest(w, r, logger, &req) {
		return
	}

	logger = logger.WithFields(map[string]any{"email": req.Email})

	if err := h.service.RequestPasswordReset(r.Context(), req.Email); err != nil {
		h.respondServiceError(w, r, logger, "request_password_reset", err, http.StatusNotFound)
		return
	}

	logger.Info("password reset requested")

	respondJSON(w, MessageResponse{
		Success: true,
		Message: "Password reset link is sent to your email.",
	}, http.StatusOK)
}

// CheckResetToken reports whether a reset token can still be used
// @Summary      Check reset token
// @Tags         auth
// @Produce      json
// @Param        token path string true "Password reset token"
// @Success      200 {object} ResetTokenResponse
// @Failure      401 {object} httputil.ErrorResponse "Invalid or expired token"
// @Failure      500 {object} httputil.ErrorResponse "Internal server error"
// @Router       /reset-password-now/{token} [get]
func (h *Handler) CheckResetToken(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	if err := h.service.CheckResetToken(r.Context(), chi.URLParam(r, "token")); err != nil {
		h.respondServiceError(w, r, logger, "check_reset_token", err, http.StatusUnauthorized)
		return
	}

	respondJSON(w, ResetTokenResponse{Valid: true}, http.StatusOK)
}

// CompletePasswordReset handles password reset with token
// @Summary      Reset password
// @Description  Set a new password using a valid reset token
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body CompleteResetRequest true "Reset token and new password"
// @Success      200 {object} MessageResponse
// @Failure      400 {object} httputil.ErrorResponse "Validation error"
// @Failure      401 {object} httputil.ErrorResponse "Invalid or expired token"
// @Failure      500 {object} httputil.ErrorResponse "Internal server error"
// @Router       /reset-password-now [post]
func (h *Handler) CompletePasswordReset(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	var req CompleteResetRequest
	if !decodeRequest(w, r, logger, &req) {
		return
	}

	if err := h.service.CompletePasswordReset(r.Context(), req.ResetPasswordToken, req.Password); err != nil {
		h.respondServiceError(w, r, logger, "complete_password_reset", err, http.StatusUnauthorized)
		return
	}

	logger.Info("password reset completed")

	respondJSON(w, MessageResponse{
		Success: true,
		Message: "Your password has been reset. Login into your account with your new password.",
	}, http.StatusOK)
}

// decodeRequest reads and validates a JSON body, writing the 400 response itself on failure.
func decodeRequest(w http.ResponseWriter, r *http.Request, logger *logging.Logger, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		logger.Warn("invalid request body", "error", err.Error())
		respondError(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return false
	}

	if err := validateRequest(dst); err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			logger.Warn("request validation failed", "fields", verr.Fields)
			httputil.RespondValidationError(w, verr.Fields)
			return false
		}
		logger.Error("request validation failed: internal error", "error", err.Error())
		respondError(w, "an error occurred", httputil.CodeInternalError, http.StatusInternalServerError)
		return false
	}

	return true
}

// respondServiceError maps business failures to their status and collapses
// everything else into a generic 500. notFoundStatus differs per endpoint.
func (h *Handler) respondServiceError(w http.ResponseWriter, r *http.Request, logger *logging.Logger, op string, err error, notFoundStatus int) {
	switch {
	case errors.Is(err, lifecycle.ErrAlreadyRegistered):
		logger.Warn(op + " rejected: already registered")
		respondError(w, "Email is already registered. Did you forget the password? Try resetting it.", httputil.CodeAlreadyRegistered, http.StatusBadRequest)
	case errors.Is(err, lifecycle.ErrNotFound):
		logger.Warn(op + " rejected: account not found")
		respondError(w, "account not found", httputil.CodeNotFound, notFoundStatus)
	case errors.Is(err, lifecycle.ErrInvalidCredentials):
		logger.Warn(op + " rejected: incorrect password")
		respondError(w, "incorrect password", httputil.CodeInvalidCredentials, http.StatusUnauthorized)
	case errors.Is(err, lifecycle.ErrInvalidOrExpiredCode):
		logger.Warn(op + " rejected: invalid or expired code")
		respondError(w, "invalid or expired verification code", httputil.CodeInvalidOrExpiredCode, http.StatusUnauthorized)
	case errors.Is(err, lifecycle.ErrInvalidOrExpiredToken):
		logger.Warn(op + " rejected: invalid or expired reset token")
		respondError(w, "password reset token is invalid or has expired", httputil.CodeInvalidOrExpiredToken, http.StatusUnauthorized)
	case errors.Is(err, ErrUnauthenticated):
		logger.Warn(op + " rejected: unauthenticated")
		respondError(w, "unauthenticated", httputil.CodeUnauthenticated, http.StatusUnauthorized)
	default:
		logger.LogError(r.Context(), op+" failed: internal error", err)
		respondError(w, "an error occurred", httputil.CodeInternalError, http.StatusInternalServerError)
	}
}

func respondJSON(w http.ResponseWriter, data any, statusCode int) {
	httputil.RespondJSON(w, data, statusCode)
}

func respondError(w http.ResponseWriter, message string, code string, statusCode int) {
	httputil.RespondErrorWithCode(w, message, code, statusCode)
}
