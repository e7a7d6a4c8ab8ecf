package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/sumire/portal/internal/domain"
)

// OTPConfig configures OTP issuance and verification.
type OTPConfig struct {
	TTL         time.Duration
	MaxAttempts int

	// VerifiedTTL is how long a verified e-mail stays eligible for registration.
	VerifiedTTL time.Duration
}

// OTPService issues and verifies e-mail verification codes.
type OTPService struct {
	store OTPStore
	cfg   OTPConfig
	now   func() time.Time
	code  func() (string, error)
}

// NewOTPService creates a new OTPService.
func NewOTPService(store OTPStore, cfg OTPConfig) *OTPService {
	if cfg.TTL <= 0 {
		cfg.TTL = 5 * time.Minute
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.VerifiedTTL <= 0 {
		cfg.VerifiedTTL = 30 * time.Minute
	}
	return &OTPService{store: store, cfg: cfg, now: time.Now, code: randomCode}
}

// Send issues a new code for email, replacing any pending one. Delivery is
// simulated by logging.
func (s *OTPService) Send(ctx context.Context, email, name string) error {
	code, err := s.code()
	if err != nil {
		return fmt.Errorf("generate otp: %w", err)
	}

	otp := domain.OTP{
		Email:     email,
		Name:      name,
		Code:      code,
		ExpiresAt: s.now().Add(s.cfg.TTL),
	}
	if err := s.store.Save(ctx, otp, s.cfg.TTL); err != nil {
		return fmt.Errorf("save otp for %s: %w", email, err)
	}

	slog.Info("otp issued", "email", email, "name", name, "expires_at", otp.ExpiresAt)
	slog.Debug("otp delivery (simulated email)", "email", email, "code", code)
	return nil
}

// Verify checks code for email. Each call counts as an attempt; exceeding the
// limit or hitting expiry deletes the record. A match replaces the pending
// record with a verified one.
func (s *OTPService) Verify(ctx context.Context, email, code string) error {
	otp, err := s.store.Get(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrOTPNotFound) {
			return err
		}
		return fmt.Errorf("load otp for %s: %w", email, err)
	}
	if otp.Verified {
		return domain.ErrOTPNotFound
	}

	now := s.now()
	otp.Attempts++

	if otp.Attempts > s.cfg.MaxAttempts {
		s.drop(ctx, email)
		return domain.ErrOTPAttempts
	}
	if otp.Expired(now) {
		s.drop(ctx, email)
		return domain.ErrOTPExpired
	}

	if subtle.ConstantTimeCompare([]byte(otp.Code), []byte(code)) != 1 {
		if err := s.store.Save(ctx, *otp, otp.ExpiresAt.Sub(now)); err != nil {
			return fmt.Errorf("record otp attempt for %s: %w", email, err)
		}
		return domain.ErrOTPInvalid
	}

	verified := domain.OTP{
		Email:      email,
		Name:       otp.Name,
		Verified:   true,
		VerifiedAt: now,
		ExpiresAt:  now.Add(s.cfg.VerifiedTTL),
	}
	if err := s.store.Save(ctx, verified, s.cfg.VerifiedTTL); err != nil {
		return fmt.Errorf("mark otp verified for %s: %w", email, err)
	}
	return nil
}

func (s *OTPService) drop(ctx context.Context, email string) {
	if err := s.store.Delete(ctx, email); err != nil {
		slog.Warn("delete otp", "email", email, "error", err)
	}
}

// randomCode returns a uniformly distributed 6-digit code.
func randomCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
