package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sumire/portal/internal/domain"
)

const birthdateLayout = "2006-01-02"

// ProfileService updates the local profile fields collected after sign-up.
type ProfileService struct {
	users UserStore
	now   func() time.Time
}

// NewProfileService creates a new ProfileService.
func NewProfileService(users UserStore) *ProfileService {
	return &ProfileService{users: users, now: time.Now}
}

// UpdateDetails stores the basic details of the user with email and clears
// the new-social-user flag, so the next session refresh stops routing the
// user to the basic-details step.
func (s *ProfileService) UpdateDetails(ctx context.Context, email string, details domain.BasicDetails) (*domain.User, error) {
	if details.Birthdate != nil && *details.Birthdate != "" {
		born, err := time.Parse(birthdateLayout, *details.Birthdate)
		if err != nil {
			return nil, &domain.ValidationError{Field: "birthdate", Message: "must be a date in YYYY-MM-DD format"}
		}
		if born.After(s.now()) {
			return nil, &domain.ValidationError{Field: "birthdate", Message: "must not be in the future"}
		}
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("find user %s: %w", email, err)
	}
	if err := s.users.UpdateDetails(ctx, user.ID, details); err != nil {
		return nil, fmt.Errorf("update details for %s: %w", user.ID, err)
	}
	return s.users.FindByID(ctx, user.ID)
}

// SaveOnboarding stores the onboarding answers, which must be a JSON object.
func (s *ProfileService) SaveOnboarding(ctx context.Context, email string, answers json.RawMessage) error {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(answers, &obj); err != nil || obj == nil {
		return &domain.ValidationError{Field: "answers", Message: "must be a JSON object"}
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("find user %s: %w", email, err)
	}
	if err := s.users.SaveOnboarding(ctx, user.ID, answers); err != nil {
		return fmt.Errorf("save onboarding for %s: %w", user.ID, err)
	}
	return nil
}
