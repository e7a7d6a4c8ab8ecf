package domain

import "time"

// OTP is a pending or verified e-mail verification code.
type OTP struct {
	Email      string    `json:"email"`
	Name       string    `json:"name"`
	Code       string    `json:"code,omitempty"`
	Attempts   int       `json:"attempts"`
	ExpiresAt  time.Time `json:"expires_at"`
	Verified   bool      `json:"verified"`
	VerifiedAt time.Time `json:"verified_at,omitempty"`
}

// Expired reports whether the code can no longer be used at now.
func (o OTP) Expired(now time.Time) bool {
	return now.After(o.ExpiresAt)
}
