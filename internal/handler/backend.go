package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sumire/portal/internal/domain"
	"github.com/sumire/portal/internal/gateway"
)

// Backend is the subset of the backend gateway exposed to the browser.
type Backend interface {
	VerifyEmail(ctx context.Context, name, email string) (*gateway.Message, error)
	SendOTP(ctx context.Context, email, verificationCode string) (*gateway.Message, error)
	ResendOTP(ctx context.Context, email string) (*gateway.Message, error)
	Signup(ctx context.Context, req gateway.SignupRequest) (*gateway.SignupResponse, error)
	ForgotPassword(ctx context.Context, email string) (*gateway.Message, error)
	ConfirmPassword(ctx context.Context, email, newPassword string) (*gateway.Message, error)
	SubmitProfile(ctx context.Context, bearer, userID string, profile gateway.OnboardingProfile) (*gateway.Message, error)
	ListData(ctx context.Context, title string) ([]json.RawMessage, error)
}

// BackendHandler relays signup, password and onboarding calls to the backend.
type BackendHandler struct {
	backend Backend
}

// NewBackendHandler creates a new BackendHandler.
func NewBackendHandler(backend Backend) *BackendHandler {
	return &BackendHandler{backend: backend}
}

type verifyEmailRequest struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required,email"`
}

// VerifyEmail handles POST /api/backend/verify-email.
func (h *BackendHandler) VerifyEmail(c echo.Context) error {
	var req verifyEmailRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	msg, err := h.backend.VerifyEmail(c.Request().Context(), req.Name, req.Email)
	if err != nil {
		return err
	}
	return JSON(c, http.StatusOK, msg)
}

type backendOTPRequest struct {
	Email            string `json:"email" validate:"required,email"`
	VerificationCode string `json:"verificationCode" validate:"required"`
}

// SendOTP handles POST /api/backend/send-otp.
func (h *BackendHandler) SendOTP(c echo.Context) error {
	var req backendOTPRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	msg, err := h.backend.SendOTP(c.Request().Context(), req.Email, req.VerificationCode)
	if err != nil {
		return err
	}
	return JSON(c, http.StatusOK, msg)
}

type emailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ResendOTP handles POST /api/backend/resend.
func (h *BackendHandler) ResendOTP(c echo.Context) error {
	var req emailRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	msg, err := h.backend.ResendOTP(c.Request().Context(), req.Email)
	if err != nil {
		return err
	}
	return JSON(c, http.StatusOK, msg)
}

type signupRequest struct {
	Name         string `json:"name" validate:"required"`
	Email        string `json:"email" validate:"required,email"`
	Password     string `json:"password" validate:"required,min=8"`
	Birthday     string `json:"birthday"`
	Location     string `json:"location"`
	ProfilePhoto string `json:"profilePhoto" validate:"omitempty,url"`
}

// Signup handles POST /api/backend/signup.
func (h *BackendHandler) Signup(c echo.Context) error {
	var req signupRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	resp, err := h.backend.Signup(c.Request().Context(), gateway.SignupRequest(req))
	if err != nil {
		return err
	}
	return JSON(c, http.StatusOK, resp)
}

// ForgotPassword handles POST /api/backend/forgot.
func (h *BackendHandler) ForgotPassword(c echo.Context) error {
	var req emailRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	msg, err := h.backend.ForgotPassword(c.Request().Context(), req.Email)
	if err != nil {
		return err
	}
	return JSON(c, http.StatusOK, msg)
}

type confirmPasswordRequest struct {
	Email       string `json:"email" validate:"required,email"`
	NewPassword string `json:"newPassword" validate:"required,min=8"`
}

// ConfirmPassword handles POST /api/backend/confirm.
func (h *BackendHandler) ConfirmPassword(c echo.Context) error {
	var req confirmPasswordRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	msg, err := h.backend.ConfirmPassword(c.Request().Context(), req.Email, req.NewPassword)
	if err != nil {
		return err
	}
	return JSON(c, http.StatusOK, msg)
}

// SubmitProfile handles POST /api/backend/profile with the session's
// backend token and user id.
func (h *BackendHandler) SubmitProfile(c echo.Context) error {
	tok, _ := CurrentToken(c)
	if tok.CustomBackendToken == "" || tok.CustomBackendUserID == "" {
		return domain.ErrUnauthorized
	}

	var req gateway.OnboardingProfile
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	msg, err := h.backend.SubmitProfile(c.Request().Context(), tok.CustomBackendToken, tok.CustomBackendUserID, req)
	if err != nil {
		return err
	}
	return JSON(c, http.StatusOK, msg)
}

// ListData handles GET /api/backend/list/:title.
func (h *BackendHandler) ListData(c echo.Context) error {
	items, err := h.backend.ListData(c.Request().Context(), c.Param("title"))
	if err != nil {
		return err
	}
	return JSON(c, http.StatusOK, items)
}
