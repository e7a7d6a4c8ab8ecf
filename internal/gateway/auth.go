package gateway

import (
	"context"
	"encoding/json"
)

// Message is the generic {success, message} backend reply.
type Message struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// BackendUser is the user object embedded in backend replies. The backend
// uses either "_id" or "id" depending on the endpoint.
type BackendUser struct {
	ID      string `json:"id,omitempty"`
	MongoID string `json:"_id,omitempty"`
	Email   string `json:"email,omitempty"`
	Name    string `json:"name,omitempty"`
}

// CanonicalID returns the backend-assigned identifier.
func (u BackendUser) CanonicalID() string {
	if u.MongoID != "" {
		return u.MongoID
	}
	return u.ID
}

// SignupRequest is the body of POST /auth/signup.
type SignupRequest struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	Password     string `json:"password"`
	Birthday     string `json:"birthday,omitempty"`
	Location     string `json:"location,omitempty"`
	ProfilePhoto string `json:"profilePhoto,omitempty"`
}

// SignupResponse is the reply of POST /auth/signup.
type SignupResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	User    BackendUser `json:"user"`
}

// LoginResponse is the reply of POST /auth/login.
type LoginResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Token   string      `json:"token"`
	UserID  string      `json:"userId,omitempty"`
	User    BackendUser `json:"user"`
}

// CanonicalUserID returns the backend user id from whichever field is set.
func (r LoginResponse) CanonicalUserID() string {
	if r.UserID != "" {
		return r.UserID
	}
	return r.User.CanonicalID()
}

// GoogleSignupResponse is the reply of POST /auth/app-google-signup.
type GoogleSignupResponse struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message,omitempty"`
	Token     string      `json:"token"`
	User      BackendUser `json:"user"`
	IsNewUser bool        `json:"isNewUser"`
}

// LinkedInProfile is the normalized LinkedIn identity relayed to the backend.
type LinkedInProfile struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Email          string `json:"email"`
	ProfilePicture string `json:"profilePicture,omitempty"`
}

// LinkedInSignupResponse is the reply of POST /auth/linkedin-signup.
type LinkedInSignupResponse struct {
	Token     string `json:"token"`
	UserID    string `json:"userId"`
	IsNewUser bool   `json:"isNewUser"`
}

// VerifyEmail starts signup for name/email.
func (c *Client) VerifyEmail(ctx context.Context, name, email string) (*Message, error) {
	var out Message
	in := map[string]string{"name": name, "email": email}
	if err := c.post(ctx, "/auth/verify-email", "", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SendOTP submits the verification code the user typed.
func (c *Client) SendOTP(ctx context.Context, email, verificationCode string) (*Message, error) {
	var out Message
	in := map[string]string{"email": email, "verificationCode": verificationCode}
	if err := c.post(ctx, "/auth/send-otp", "", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ResendOTP asks the backend to send a fresh code.
func (c *Client) ResendOTP(ctx context.Context, email string) (*Message, error) {
	var out Message
	if err := c.post(ctx, "/auth/resend", "", map[string]string{"email": email}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Signup creates the backend account.
func (c *Client) Signup(ctx context.Context, req SignupRequest) (*SignupResponse, error) {
	var out SignupResponse
	if err := c.post(ctx, "/auth/signup", "", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Login authenticates email/password against the backend.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	var out LoginResponse
	in := map[string]string{"email": email, "password": password}
	if err := c.post(ctx, "/auth/login", "", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GoogleSignup federates a Google id-token with the backend.
func (c *Client) GoogleSignup(ctx context.Context, idToken string) (*GoogleSignupResponse, error) {
	var out GoogleSignupResponse
	if err := c.post(ctx, "/auth/app-google-signup", "", map[string]string{"idToken": idToken}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// LinkedInSignup relays a LinkedIn profile and returns the backend body
// untouched so callers can forward it verbatim.
func (c *Client) LinkedInSignup(ctx context.Context, profile LinkedInProfile) (json.RawMessage, error) {
	raw, err := c.postRaw(ctx, "/auth/linkedin-signup", profile)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(raw), nil
}

// ForgotPassword starts a password reset.
func (c *Client) ForgotPassword(ctx context.Context, email string) (*Message, error) {
	var out Message
	if err := c.post(ctx, "/auth/forgot", "", map[string]string{"email": email}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ConfirmPassword sets a new password after reset.
func (c *Client) ConfirmPassword(ctx context.Context, email, newPassword string) (*Message, error) {
	var out Message
	in := map[string]string{"email": email, "newPassword": newPassword}
	if err := c.post(ctx, "/auth/confirm", "", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
