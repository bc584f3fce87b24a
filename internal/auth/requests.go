package auth

import "github.com/redmonkez12/otp-auth-api/internal/account"

// RegisterRequest represents the registration request body
type RegisterRequest struct {
	Firstname string `json:"firstname" validate:"required"`
	Lastname  string `json:"lastname" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,max=15"`
}

// VerifyOTPRequest represents the email verification request
type VerifyOTPRequest struct {
	OTP string `json:"otp" validate:"required,numeric"`
}

// ResendOTPRequest represents the resend verification code request
type ResendOTPRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,max=15"`
}

// ResetPasswordRequest starts the forgot-password flow
type ResetPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// CompleteResetRequest sets a new password with a reset token
type CompleteResetRequest struct {
	ResetPasswordToken string `json:"resetPasswordToken" validate:"required"`
	Password           string `json:"password" validate:"required,max=15"`
}

// MessageResponse is the body of a successful request with nothing else to return
type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// RegisterResponse represents the registration response
type RegisterResponse struct {
	Success bool   `json:"success"`
	Email   string `json:"email"`
	Message string `json:"message"`
}

// LoginResponse carries the session token as "Bearer <token>"
type LoginResponse struct {
	Success bool                  `json:"success"`
	User    account.PublicProfile `json:"user"`
	Token   string                `json:"token"`
	Message string                `json:"message"`
}

// ProfileResponse represents the authenticated user's profile
type ProfileResponse struct {
	User account.PublicProfile `json:"user"`
}

// ResetTokenResponse reports that a reset token may still be used
type ResetTokenResponse struct {
	Valid bool `json:"valid"`
}
