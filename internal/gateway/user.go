package gateway

import (
	"context"
	"encoding/json"
	"fmt"
)

// OnboardingProfile is the body of POST /auth/user/{userId}.
type OnboardingProfile struct {
	SkillSet               []string `json:"skillSet"`
	Industries             []string `json:"industries"`
	PriorStartupExperience string   `json:"priorStartupExperience,omitempty"`
	CommitmentLevel        string   `json:"commitmentLevel,omitempty"`
	EquityExpectation      string   `json:"equityExpectation,omitempty"`
	Status                 string   `json:"status,omitempty"`
	ProfilePhoto           string   `json:"profilePhoto,omitempty"`
}

type userEnvelope struct {
	Data BackendUser `json:"data"`
}

type listEnvelope struct {
	Data []json.RawMessage `json:"data"`
}

// SubmitProfile stores the onboarding answers for userID.
func (c *Client) SubmitProfile(ctx context.Context, bearer, userID string, profile OnboardingProfile) (*Message, error) {
	var out Message
	if err := c.post(ctx, "/auth/user/"+escape(userID), bearer, profile, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetUser fetches a backend user by id or e-mail.
func (c *Client) GetUser(ctx context.Context, idOrEmail string) (*BackendUser, error) {
	if idOrEmail == "" {
		return nil, fmt.Errorf("get user: empty identifier")
	}
	var out userEnvelope
	if err := c.get(ctx, "/api/user/"+escape(idOrEmail), &out); err != nil {
		return nil, err
	}
	return &out.Data, nil
}

// ListData returns a reference data list such as skills or industries.
func (c *Client) ListData(ctx context.Context, title string) ([]json.RawMessage, error) {
	var out listEnvelope
	if err := c.get(ctx, "/admin/get_list_data/"+escape(title), &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}
