package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sumire/portal/internal/domain"
)

const otpKeyPrefix = "portal:otp:"

// OtpRepository stores verification codes in Redis with a TTL.
type OtpRepository struct {
	rdb redis.Cmdable
}

// NewOtpRepository creates a new OtpRepository.
func NewOtpRepository(rdb redis.Cmdable) *OtpRepository {
	return &OtpRepository{rdb: rdb}
}

func otpKey(email string) string {
	return otpKeyPrefix + strings.ToLower(email)
}

// Save replaces the record for otp.Email.
func (r *OtpRepository) Save(ctx context.Context, otp domain.OTP, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("save otp for %s: non-positive ttl %v", otp.Email, ttl)
	}
	raw, err := json.Marshal(otp)
	if err != nil {
		return fmt.Errorf("encode otp: %w", err)
	}
	if err := r.rdb.Set(ctx, otpKey(otp.Email), raw, ttl).Err(); err != nil {
		return fmt.Errorf("save otp for %s: %w", otp.Email, err)
	}
	return nil
}

// Get returns the record for email or ErrOTPNotFound.
func (r *OtpRepository) Get(ctx context.Context, email string) (*domain.OTP, error) {
	raw, err := r.rdb.Get(ctx, otpKey(email)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrOTPNotFound
		}
		return nil, fmt.Errorf("get otp for %s: %w", email, err)
	}
	var otp domain.OTP
	if err := json.Unmarshal(raw, &otp); err != nil {
		return nil, fmt.Errorf("decode otp for %s: %w", email, err)
	}
	return &otp, nil
}

// Delete removes the record for email.
func (r *OtpRepository) Delete(ctx context.Context, email string) error {
	if err := r.rdb.Del(ctx, otpKey(email)).Err(); err != nil {
		return fmt.Errorf("delete otp for %s: %w", email, err)
	}
	return nil
}
