package domain

import "time"

// ErrorCode classifies a failed federation attempt. It is the only error
// detail that ever reaches the client.
type ErrorCode string

const (
	ErrCodeNone                          ErrorCode = ""
	ErrCodeGoogleIDTokenMissing          ErrorCode = "GoogleIdTokenMissing"
	ErrCodeGoogleBackendError            ErrorCode = "GoogleBackendError"
	ErrCodeGoogleSignInProcessingError   ErrorCode = "GoogleSignInProcessingError"
	ErrCodeLinkedInAuthCodeMissing       ErrorCode = "LinkedInAuthCodeMissing"
	ErrCodeLinkedInBackendError          ErrorCode = "LinkedInBackendError"
	ErrCodeLinkedInSignInProcessingError ErrorCode = "LinkedInSignInProcessingError"
	ErrCodeOAuthProcessingError          ErrorCode = "OAuthProcessingError"
	ErrCodeCredentialsLogin              ErrorCode = "CredentialsLogin"
)

// ProviderProfile is the identity projection a provider callback delivers
// alongside its raw credential.
type ProviderProfile struct {
	ID      string
	Email   string
	Name    string
	Picture string
}

// SignInEvent is one sign-in attempt. It is consumed once by reconciliation
// and never persisted. Which credential fields are meaningful depends on Kind.
type SignInEvent struct {
	Kind AuthProvider

	// google
	IDToken string

	// linkedin
	Code        string
	RedirectURI string

	// credentials
	Email    string
	Password string

	Profile ProviderProfile
}

// GoogleSignIn builds a google sign-in event.
func GoogleSignIn(idToken string, profile ProviderProfile) SignInEvent {
	return SignInEvent{Kind: AuthProviderGoogle, IDToken: idToken, Profile: profile}
}

// LinkedInSignIn builds a linkedin sign-in event. redirectURI must be the
// exact URI used during authorization.
func LinkedInSignIn(code, redirectURI string, profile ProviderProfile) SignInEvent {
	return SignInEvent{Kind: AuthProviderLinkedIn, Code: code, RedirectURI: redirectURI, Profile: profile}
}

// CredentialsSignIn builds a credentials sign-in event.
func CredentialsSignIn(email, password string) SignInEvent {
	return SignInEvent{Kind: AuthProviderCredentials, Email: email, Password: password}
}

// Token is the server-issued session token.
//
// A token with a non-empty Error never carries federation fields.
type Token struct {
	ID       string       `json:"jti"`
	Subject  string       `json:"sub"`
	Email    string       `json:"email"`
	Name     string       `json:"name"`
	Picture  string       `json:"picture,omitempty"`
	Provider AuthProvider `json:"provider,omitempty"`

	CustomBackendToken                string `json:"customBackendToken,omitempty"`
	CustomBackendUserID               string `json:"customBackendUserId,omitempty"`
	IsNewUser                         bool   `json:"isNewUser"`
	RequiresRedirectToAddBasicDetails bool   `json:"requiresRedirectToAddBasicDetails"`

	Error ErrorCode `json:"error,omitempty"`

	IssuedAt  time.Time `json:"iat"`
	ExpiresAt time.Time `json:"exp"`
}

// NeedsBasicDetails reports whether the principal has no completed profile.
func (t Token) NeedsBasicDetails() bool {
	return t.IsNewUser || t.RequiresRedirectToAddBasicDetails
}

// ClearFederation drops every field populated by backend federation.
func (t Token) ClearFederation() Token {
	t.CustomBackendToken = ""
	t.CustomBackendUserID = ""
	t.RequiresRedirectToAddBasicDetails = false
	t.Error = ErrCodeNone
	return t
}

// Fail marks the token as failed with code and clears federation fields.
func (t Token) Fail(code ErrorCode) Token {
	t = t.ClearFederation()
	t.IsNewUser = false
	t.Error = code
	return t
}

// SessionUser is the client-visible user projection of a session.
type SessionUser struct {
	ID                                string `json:"id"`
	Email                             string `json:"email"`
	Name                              string `json:"name"`
	Image                             string `json:"image,omitempty"`
	CustomBackendToken                string `json:"customBackendToken,omitempty"`
	CustomBackendUserID               string `json:"customBackendUserId,omitempty"`
	IsNewUser                         bool   `json:"isNewUser"`
	RequiresRedirectToAddBasicDetails bool   `json:"requiresRedirectToAddBasicDetails"`
}

// Session is the externally visible projection of a Token.
type Session struct {
	User    SessionUser `json:"user"`
	Error   ErrorCode   `json:"error,omitempty"`
	Expires time.Time   `json:"expires"`
}
