package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/sumire/portal/internal/domain"
)

const minPasswordLength = 8

// UserStore defines the user data access interface consumed by the services.
type UserStore interface {
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
	Create(ctx context.Context, user domain.User) (*domain.User, error)
	UpdateDetails(ctx context.Context, id string, details domain.BasicDetails) error
	SaveOnboarding(ctx context.Context, id string, answers json.RawMessage) error
}

// OTPStore persists verification codes keyed by e-mail.
type OTPStore interface {
	Save(ctx context.Context, otp domain.OTP, ttl time.Duration) error
	Get(ctx context.Context, email string) (*domain.OTP, error)
	Delete(ctx context.Context, email string) error
}

// CredentialService handles local email/password accounts.
type CredentialService struct {
	users UserStore
	otps  OTPStore
	cost  int
}

// NewCredentialService creates a new CredentialService.
func NewCredentialService(users UserStore, otps OTPStore) *CredentialService {
	return &CredentialService{users: users, otps: otps, cost: bcrypt.DefaultCost}
}

// Authorize validates email and password against the local store.
func (s *CredentialService) Authorize(ctx context.Context, email, password string) (*domain.User, error) {
	if email == "" || password == "" {
		return nil, domain.ErrInvalidCredentials
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("authorize %s: %w", email, err)
	}
	if user.PasswordHash == nil {
		return nil, domain.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(password)); err != nil {
		return nil, domain.ErrInvalidCredentials
	}
	return user, nil
}

// Register creates a credentials account for an e-mail that passed OTP
// verification. The verification record is consumed either way.
func (s *CredentialService) Register(ctx context.Context, email, password string) (*domain.User, error) {
	if len(password) < minPasswordLength {
		return nil, &domain.ValidationError{Field: "password", Message: "must be at least 8 characters long"}
	}

	otp, err := s.otps.Get(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrOTPNotFound) {
			return nil, domain.ErrEmailNotVerified
		}
		return nil, fmt.Errorf("load verification for %s: %w", email, err)
	}
	if !otp.Verified {
		return nil, domain.ErrEmailNotVerified
	}

	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		s.consume(ctx, email)
		return nil, fmt.Errorf("%w: user already exists with this email", domain.ErrConflict)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("check existing user %s: %w", email, err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	hashed := string(hash)

	name := otp.Name
	if name == "" {
		name = "User"
	}

	user, err := s.users.Create(ctx, domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         name,
		PasswordHash: &hashed,
	})
	if err != nil {
		return nil, fmt.Errorf("create user %s: %w", email, err)
	}

	s.consume(ctx, email)
	return user, nil
}

func (s *CredentialService) consume(ctx context.Context, email string) {
	if err := s.otps.Delete(ctx, email); err != nil {
		slog.Warn("delete verification record", "email", email, "error", err)
	}
}
