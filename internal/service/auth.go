// Package service holds the front desk business logic: admin authentication,
// password reset and moderation of public submissions. Services return
// *Error values whose Kind the HTTP layer maps to status codes.
package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/oakdental/frontdesk/internal/config"
	"github.com/oakdental/frontdesk/internal/model"
	"github.com/oakdental/frontdesk/internal/notify"
	"github.com/oakdental/frontdesk/internal/store"
)

// Limiter caps how often a key may be used. It is satisfied by
// ratelimit.FixedWindowLimiter.
type Limiter interface {
	Allow(ctx context.Context, key string) bool
}

// AuthService registers admins, logs them in and runs the password reset
// flow: RequestReset mails a code, VerifyReset trades it for a reset grant
// and ResetPassword consumes the grant.
type AuthService struct {
	store   *store.Store
	tokens  *TokenVerifier
	mailer  notify.Mailer
	sms     notify.SMSSender
	cfg     config.AuthConfig
	logger  *slog.Logger
	limiter Limiter
	now     func() time.Time
	newCode func() (string, error)
}

// NewAuthService wires the auth service. limiter may be added later with
// WithLimiter; without one, reset requests are not throttled per email.
func NewAuthService(st *store.Store, tokens *TokenVerifier, mailer notify.Mailer, sms notify.SMSSender, cfg config.AuthConfig, logger *slog.Logger) *AuthService {
	return &AuthService{
		store:   st,
		tokens:  tokens,
		mailer:  mailer,
		sms:     sms,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
		newCode: generateCode,
	}
}

// WithClock replaces the clock used for code and grant expiry.
func (s *AuthService) WithClock(now func() time.Time) *AuthService {
	s.now = now
	return s
}

// WithCodeGenerator replaces the reset code generator.
func (s *AuthService) WithCodeGenerator(gen func() (string, error)) *AuthService {
	s.newCode = gen
	return s
}

// WithLimiter throttles reset code issuance per email.
func (s *AuthService) WithLimiter(l Limiter) *AuthService {
	s.limiter = l
	return s
}

// generateCode returns a uniformly random six digit code in 100000-999999.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

func generateResetToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate reset token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func hashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

func (s *AuthService) hashPassword(password string) (string, error) {
	cost := s.cfg.BcryptCost
	if cost < bcrypt.DefaultCost {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// ---------------------------------------------------------------------------
// Registration and login
// ---------------------------------------------------------------------------

// RegisterInput is the payload for creating an admin account.
type RegisterInput struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Phone    string `json:"phone,omitempty"`
}

// Register creates an admin account.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*model.Admin, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = normalizeEmail(in.Email)
	in.Phone = strings.TrimSpace(in.Phone)
	if err := check(in, "All fields are required"); err != nil {
		return nil, err
	}

	if _, err := s.store.GetAdminByEmail(ctx, in.Email); err == nil {
		return nil, conflictError("Email already registered")
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, internalError("Registration failed", err)
	}

	hash, err := s.hashPassword(in.Password)
	if err != nil {
		return nil, internalError("Registration failed", err)
	}

	admin := &model.Admin{
		Name:         in.Name,
		Email:        in.Email,
		Phone:        in.Phone,
		PasswordHash: hash,
	}
	if err := s.store.CreateAdmin(ctx, admin); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, conflictError("Email already registered")
		}
		return nil, internalError("Registration failed", err)
	}

	s.logger.Info("admin registered", "admin_id", admin.ID, "email", admin.Email)
	return admin, nil
}

// LoginResult is returned by a successful Login.
type LoginResult struct {
	Token     string `json:"token"`
	Name      string `json:"name"`
	ExpiresIn int64  `json:"expires_in"` // seconds
}

// Login checks credentials and issues a session token.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, validationError("Email and password are required")
	}

	admin, err := s.store.GetAdminByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, authError("Invalid credentials")
		}
		return nil, internalError("Login failed", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(password)); err != nil {
		return nil, authError("Invalid credentials")
	}

	token, err := s.tokens.Issue(admin, s.cfg.TokenTTL)
	if err != nil {
		return nil, internalError("Login failed", err)
	}
	return &LoginResult{
		Token:     token,
		Name:      admin.Name,
		ExpiresIn: int64(s.cfg.TokenTTL.Seconds()),
	}, nil
}

// Profile is the public view of the logged-in admin.
type Profile struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Profile returns the name and email of the admin with the given id.
func (s *AuthService) Profile(ctx context.Context, adminID int64) (*Profile, error) {
	admin, err := s.store.GetAdmin(ctx, adminID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFoundError("Admin not found")
		}
		return nil, internalError("Failed to fetch profile", err)
	}
	return &Profile{Name: admin.Name, Email: admin.Email}, nil
}

// SetPassword overwrites the password of an existing admin. It backs the
// admin passwd command and skips the reset flow.
func (s *AuthService) SetPassword(ctx context.Context, email, password string) error {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return validationError("Email and password are required")
	}
	hash, err := s.hashPassword(password)
	if err != nil {
		return internalError("Password update failed", err)
	}
	if err := s.store.UpdateAdminPassword(ctx, email, hash); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFoundError("Email not found")
		}
		return internalError("Password update failed", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Password reset
// ---------------------------------------------------------------------------

// ResetRequestResult reports how a reset code was delivered.
type ResetRequestResult struct {
	SMSSent bool `json:"sms_sent"`
}

// RequestReset issues a reset code for email. The code is always emailed; an
// SMS copy is attempted when the admin has a phone number on file.
func (s *AuthService) RequestReset(ctx context.Context, email string) (*ResetRequestResult, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, validationError("Email is required")
	}

	admin, err := s.store.GetAdminByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFoundError("Email not found")
		}
		return nil, internalError("Failed to send OTP", err)
	}

	if s.limiter != nil && !s.limiter.Allow(ctx, "otp:"+email) {
		return nil, &Error{Kind: KindRateLimited, Message: "Too many OTP requests, please try again later"}
	}

	now := s.now().UTC()
	if _, err := s.store.DeleteExpiredOTPs(ctx, now); err != nil {
		s.logger.Warn("sweep expired otps failed", "error", err)
	}

	code, err := s.newCode()
	if err != nil {
		return nil, internalError("Failed to send OTP", err)
	}
	otp := &model.OTP{
		Email:     email,
		Code:      code,
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.OTPTTL),
	}
	if err := s.store.CreateOTP(ctx, otp); err != nil {
		return nil, internalError("Failed to send OTP", err)
	}

	msg, err := notify.OTPEmail(email, code, s.cfg.OTPTTL)
	if err != nil {
		return nil, internalError("Failed to send OTP", err)
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		return nil, internalError("Failed to send OTP", err)
	}

	result := &ResetRequestResult{}
	if admin.Phone != "" {
		if err := s.sms.SendSMS(ctx, admin.Phone, notify.OTPText(code, s.cfg.OTPTTL)); err != nil {
			s.logger.Warn("otp sms not sent", "email", email, "error", err)
		} else {
			result.SMSSent = true
		}
	}
	return result, nil
}

// ResetGrant is handed to the client after a successful VerifyReset and must
// accompany the following ResetPassword call.
type ResetGrant struct {
	Token     string `json:"reset_token"`
	ExpiresIn int64  `json:"expires_in"` // seconds
}

// VerifyReset checks a reset code. On success every outstanding code for the
// email is invalidated and a single-use reset grant is returned.
func (s *AuthService) VerifyReset(ctx context.Context, email, code string) (*ResetGrant, error) {
	email = normalizeEmail(email)
	code = strings.TrimSpace(code)
	if email == "" || code == "" {
		return nil, validationError("Email and OTP are required")
	}

	otps, err := s.store.FindOTPs(ctx, email, code)
	if err != nil {
		return nil, internalError("OTP verification failed", err)
	}
	now := s.now().UTC()
	valid := false
	for _, otp := range otps {
		if now.Before(otp.ExpiresAt) {
			valid = true
			break
		}
	}
	if !valid {
		return nil, authError("Invalid or expired OTP")
	}

	// Only the caller whose delete removed the codes may get a grant; a
	// concurrent verify of the same code finds nothing left to delete.
	removed, err := s.store.DeleteOTPsByEmail(ctx, email)
	if err != nil {
		return nil, internalError("OTP verification failed", err)
	}
	if removed == 0 {
		return nil, authError("Invalid or expired OTP")
	}

	token, err := generateResetToken()
	if err != nil {
		return nil, internalError("OTP verification failed", err)
	}
	grant := &model.ResetGrant{
		Email:     email,
		TokenHash: hashToken(token),
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.ResetGrantTTL),
	}
	if err := s.store.CreateResetGrant(ctx, grant); err != nil {
		return nil, internalError("OTP verification failed", err)
	}

	return &ResetGrant{Token: token, ExpiresIn: int64(s.cfg.ResetGrantTTL.Seconds())}, nil
}

// ResetInput is the payload for completing a password reset.
type ResetInput struct {
	Email           string `json:"email" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required"`
	ConfirmPassword string `json:"confirmPassword" validate:"required"`
	ResetToken      string `json:"resetToken" validate:"required"`
}

// ResetPassword sets a new password for the email a reset grant was issued
// to. The grant is consumed even if it turns out to be expired.
func (s *AuthService) ResetPassword(ctx context.Context, in ResetInput) error {
	in.Email = normalizeEmail(in.Email)
	in.ResetToken = strings.TrimSpace(in.ResetToken)
	if err := check(in, "All fields are required"); err != nil {
		return err
	}
	if in.NewPassword != in.ConfirmPassword {
		return validationError("Passwords do not match")
	}

	if _, err := s.store.GetAdminByEmail(ctx, in.Email); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFoundError("Email not found")
		}
		return internalError("Password reset failed", err)
	}

	invalid := authError("Invalid or expired reset token")
	grant, err := s.store.GetResetGrantByHash(ctx, hashToken(in.ResetToken))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return invalid
		}
		return internalError("Password reset failed", err)
	}
	if grant.Email != in.Email {
		return invalid
	}
	if err := s.store.DeleteResetGrant(ctx, grant.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return invalid // consumed concurrently
		}
		return internalError("Password reset failed", err)
	}
	if !s.now().UTC().Before(grant.ExpiresAt) {
		return invalid
	}

	hash, err := s.hashPassword(in.NewPassword)
	if err != nil {
		return internalError("Password reset failed", err)
	}
	if err := s.store.UpdateAdminPassword(ctx, in.Email, hash); err != nil {
		return internalError("Password reset failed", err)
	}

	s.logger.Info("admin password reset", "email", in.Email)
	return nil
}

// PruneExpired removes expired reset codes and grants.
func (s *AuthService) PruneExpired(ctx context.Context) (otps, grants int64, err error) {
	now := s.now().UTC()
	if otps, err = s.store.DeleteExpiredOTPs(ctx, now); err != nil {
		return 0, 0, err
	}
	if grants, err = s.store.DeleteExpiredResetGrants(ctx, now); err != nil {
		return otps, 0, err
	}
	return otps, grants, nil
}
