package domain

import (
	"encoding/json"
	"time"
)

// AuthProvider identifies how a principal signed in.
type AuthProvider string

const (
	AuthProviderGoogle      AuthProvider = "google"
	AuthProviderLinkedIn    AuthProvider = "linkedin"
	AuthProviderCredentials AuthProvider = "credentials"
)

// Federated reports whether sign-in with p goes through the remote backend.
func (p AuthProvider) Federated() bool {
	return p == AuthProviderGoogle || p == AuthProviderLinkedIn
}

// User is the portal's local projection of a principal. The remote backend
// owns the full record; this one only tracks what the session core reads.
type User struct {
	ID                  string          `json:"id" db:"id"`
	Email               string          `json:"email" db:"email"`
	Name                string          `json:"name" db:"name"`
	PasswordHash        *string         `json:"-" db:"password_hash"`
	ProfileImageURL     *string         `json:"profile_image_url,omitempty" db:"profile_image_url"`
	Location            *string         `json:"location,omitempty" db:"location"`
	Birthdate           *string         `json:"birthdate,omitempty" db:"birthdate"`
	IsNewSocialUser     bool            `json:"is_new_social_user" db:"is_new_social_user"`
	OnboardingAnswers   json.RawMessage `json:"onboarding_answers,omitempty" db:"-"`
	OnboardingCompleted bool            `json:"onboarding_completed" db:"onboarding_completed"`
	CreatedAt           time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at" db:"updated_at"`
}

// BasicDetails holds the optional profile fields collected after sign-up.
// Nil fields are left untouched.
type BasicDetails struct {
	Location        *string
	Birthdate       *string
	ProfileImageURL *string
}
