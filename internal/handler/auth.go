package handler

import (
	"log/slog"
	"net/http"

	"github.com/oakdental/frontdesk/internal/server/middleware"
	"github.com/oakdental/frontdesk/internal/service"
)

// AuthHandler serves admin registration, login, profile and the password
// reset flow.
type AuthHandler struct {
	auth   *service.AuthService
	logger *slog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(auth *service.AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, logger: logger}
}

// Register creates an admin account.
// POST /api/admin/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req service.RegisterInput
	if err := readJSON(r, &req); err != nil {
		writeBodyError(w, err)
		return
	}
	if _, err := h.auth.Register(r.Context(), req); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeMessage(w, http.StatusCreated, "Registration successful")
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login authenticates an admin and returns a session token.
// POST /api/admin/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := readJSON(r, &req); err != nil {
		writeBodyError(w, err)
		return
	}
	res, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Profile returns the name and email of the logged-in admin.
// GET /api/admin/profile
func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFrom(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	p, err := h.auth.Profile(r.Context(), claims.ID)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type sendOTPRequest struct {
	Email string `json:"email"`
}

type sendOTPResponse struct {
	Message string `json:"message"`
	SMSSent bool   `json:"sms_sent"`
}

// SendOTP emails a password reset code.
// POST /api/admin/send-otp
func (h *AuthHandler) SendOTP(w http.ResponseWriter, r *http.Request) {
	var req sendOTPRequest
	if err := readJSON(r, &req); err != nil {
		writeBodyError(w, err)
		return
	}
	res, err := h.auth.RequestReset(r.Context(), req.Email)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, sendOTPResponse{Message: "OTP sent", SMSSent: res.SMSSent})
}

type verifyOTPRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

type verifyOTPResponse struct {
	Message string `json:"message"`
	*service.ResetGrant
}

// VerifyOTP checks a reset code and hands out a reset token.
// POST /api/admin/verify-otp
func (h *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyOTPRequest
	if err := readJSON(r, &req); err != nil {
		writeBodyError(w, err)
		return
	}
	grant, err := h.auth.VerifyReset(r.Context(), req.Email, req.OTP)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, verifyOTPResponse{Message: "OTP verified", ResetGrant: grant})
}

// ResetPassword sets a new password using a reset token.
// POST /api/admin/reset-password
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req service.ResetInput
	if err := readJSON(r, &req); err != nil {
		writeBodyError(w, err)
		return
	}
	if err := h.auth.ResetPassword(r.Context(), req); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeMessage(w, http.StatusOK, "Password reset successful")
}
