package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sumire/portal/internal/domain"
	"github.com/sumire/portal/internal/session"
)

// OTPSender issues and verifies e-mail codes.
type OTPSender interface {
	Send(ctx context.Context, email, name string) error
	Verify(ctx context.Context, email, code string) error
}

// Registrar creates credentials accounts.
type Registrar interface {
	Register(ctx context.Context, email, password string) (*domain.User, error)
}

// ProfileUpdater stores locally collected profile data.
type ProfileUpdater interface {
	UpdateDetails(ctx context.Context, email string, details domain.BasicDetails) (*domain.User, error)
	SaveOnboarding(ctx context.Context, email string, answers json.RawMessage) error
}

// AccountHandler handles OTP verification, registration and profile updates.
type AccountHandler struct {
	otp       OTPSender
	registrar Registrar
	profiles  ProfileUpdater
	sessions  *Sessions
	refresher Refresher
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(otp OTPSender, registrar Registrar, profiles ProfileUpdater, sessions *Sessions, refresher Refresher) *AccountHandler {
	return &AccountHandler{otp: otp, registrar: registrar, profiles: profiles, sessions: sessions, refresher: refresher}
}

type sendOTPRequest struct {
	Email string `json:"email" validate:"required,email"`
	Name  string `json:"name" validate:"required"`
}

// SendOTP handles POST /api/auth/send-otp.
func (h *AccountHandler) SendOTP(c echo.Context) error {
	var req sendOTPRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if err := h.otp.Send(c.Request().Context(), req.Email, req.Name); err != nil {
		return err
	}
	return JSON(c, http.StatusOK, map[string]string{"message": "OTP sent successfully."})
}

type verifyOTPRequest struct {
	Email string `json:"email" validate:"required,email"`
	OTP   string `json:"otp" validate:"required,len=6,numeric"`
}

// VerifyOTP handles POST /api/auth/verify-otp.
func (h *AccountHandler) VerifyOTP(c echo.Context) error {
	var req verifyOTPRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if err := h.otp.Verify(c.Request().Context(), req.Email, req.OTP); err != nil {
		return err
	}
	return JSON(c, http.StatusOK, map[string]string{"message": "OTP verified successfully."})
}

type registerRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Register handles POST /api/auth/register.
func (h *AccountHandler) Register(c echo.Context) error {
	var req registerRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	user, err := h.registrar.Register(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return JSON(c, http.StatusCreated, map[string]any{
		"message": "Registration successful. You can now sign in.",
		"user":    user,
	})
}

type updateDetailsRequest struct {
	Location        *string `json:"location"`
	Birthdate       *string `json:"birthdate"`
	ProfileImageURL *string `json:"profileImageUrl" validate:"omitempty,url"`
}

// UpdateDetails handles POST /api/user/update-details and re-issues the
// session so the basic-details redirect stops immediately.
func (h *AccountHandler) UpdateDetails(c echo.Context) error {
	tok, _ := CurrentToken(c)

	var req updateDetailsRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	user, err := h.profiles.UpdateDetails(c.Request().Context(), tok.Email, domain.BasicDetails{
		Location:        req.Location,
		Birthdate:       req.Birthdate,
		ProfileImageURL: req.ProfileImageURL,
	})
	if err != nil {
		return err
	}

	tok = h.refresher.Refresh(c.Request().Context(), tok)
	if err := h.sessions.Issue(c, tok); err != nil {
		return err
	}

	return JSON(c, http.StatusOK, map[string]any{
		"message": "Details updated successfully.",
		"updatedUser": map[string]*string{
			"location":        user.Location,
			"birthdate":       user.Birthdate,
			"profileImageUrl": user.ProfileImageURL,
		},
		"session": session.Project(tok),
	})
}

// SaveOnboarding handles POST /api/user/save-onboarding. The body is the
// answers object itself.
func (h *AccountHandler) SaveOnboarding(c echo.Context) error {
	tok, _ := CurrentToken(c)

	raw, err := io.ReadAll(io.LimitReader(c.Request().Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: read body: %v", domain.ErrInvalidInput, err)
	}
	if err := h.profiles.SaveOnboarding(c.Request().Context(), tok.Email, raw); err != nil {
		return err
	}
	return JSON(c, http.StatusOK, map[string]string{"message": "Onboarding answers saved successfully."})
}
