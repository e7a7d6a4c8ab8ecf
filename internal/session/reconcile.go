// Package session turns sign-in events into session tokens and decides
// where an authenticated principal goes next.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sumire/portal/internal/domain"
	"github.com/sumire/portal/internal/gateway"
	"github.com/sumire/portal/internal/linkedin"
)

// GoogleFederator exchanges a Google id-token for a backend session.
type GoogleFederator interface {
	GoogleSignup(ctx context.Context, idToken string) (*gateway.GoogleSignupResponse, error)
}

// LinkedInExchanger exchanges a LinkedIn authorization code for a backend session.
type LinkedInExchanger interface {
	SignIn(ctx context.Context, authCode, redirectURI string) (*linkedin.Result, error)
}

// Authorizer validates local email/password credentials.
type Authorizer interface {
	Authorize(ctx context.Context, email, password string) (*domain.User, error)
}

// ProfileStore is the source of truth for profile completeness.
type ProfileStore interface {
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	UpsertSocial(ctx context.Context, user domain.User) (*domain.User, error)
}

// Recorder observes sign-in outcomes. code is empty on success.
type Recorder interface {
	RecordSignIn(provider domain.AuthProvider, code domain.ErrorCode)
}

// Deps are the collaborators of a Reconciler.
type Deps struct {
	Google      GoogleFederator
	LinkedIn    LinkedInExchanger
	Credentials Authorizer
	Profiles    ProfileStore
	Recorder    Recorder

	MaxAge time.Duration
	Now    func() time.Time
}

// Reconciler is the session state machine.
type Reconciler struct {
	deps Deps
}

// NewReconciler creates a new Reconciler.
func NewReconciler(deps Deps) *Reconciler {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.MaxAge <= 0 {
		deps.MaxAge = 30 * 24 * time.Hour
	}
	return &Reconciler{deps: deps}
}

// SignIn runs one sign-in attempt against prior and returns the new token.
//
// Federation failures never produce an error: they are recorded as
// token.Error with all federation fields cleared. The only returned error is
// a rejected credentials login, in which case no token is issued.
func (r *Reconciler) SignIn(ctx context.Context, event domain.SignInEvent, prior domain.Token) (domain.Token, error) {
	tok := prior.ClearFederation()
	tok.IsNewUser = false

	now := r.deps.Now()
	tok.ID = uuid.NewString()
	tok.Provider = event.Kind
	tok.Subject = event.Profile.ID
	tok.Email = event.Profile.Email
	tok.Name = event.Profile.Name
	tok.Picture = event.Profile.Picture
	tok.IssuedAt = now
	tok.ExpiresAt = now.Add(r.deps.MaxAge)

	switch event.Kind {
	case domain.AuthProviderGoogle:
		tok = r.federateGoogle(ctx, event, tok)
	case domain.AuthProviderLinkedIn:
		tok = r.federateLinkedIn(ctx, event, tok)
	case domain.AuthProviderCredentials:
		var err error
		tok, err = r.authorizeCredentials(ctx, event, tok)
		if err != nil {
			r.record(event.Kind, domain.ErrCodeCredentialsLogin)
			return domain.Token{}, err
		}
	default:
		slog.Error("sign-in with unknown provider", "provider", event.Kind)
		tok = tok.Fail(domain.ErrCodeOAuthProcessingError)
	}

	r.record(event.Kind, tok.Error)
	return tok, nil
}

func (r *Reconciler) federateGoogle(ctx context.Context, event domain.SignInEvent, tok domain.Token) domain.Token {
	if event.IDToken == "" {
		slog.Warn("google callback without id_token", "email", event.Profile.Email)
		return tok.Fail(domain.ErrCodeGoogleIDTokenMissing)
	}
	if r.deps.Google == nil {
		return tok.Fail(domain.ErrCodeGoogleSignInProcessingError)
	}

	resp, err := r.deps.Google.GoogleSignup(ctx, event.IDToken)
	if err != nil {
		var apiErr *gateway.APIError
		if errors.As(err, &apiErr) {
			slog.Error("google backend federation rejected", "status", apiErr.StatusCode, "error", err)
			return tok.Fail(domain.ErrCodeGoogleBackendError)
		}
		slog.Error("google backend federation failed", "error", err)
		return tok.Fail(domain.ErrCodeGoogleSignInProcessingError)
	}

	userID := resp.User.CanonicalID()
	if !resp.Success || resp.Token == "" || userID == "" {
		slog.Error("google backend federation unsuccessful", "success", resp.Success, "message", resp.Message)
		return tok.Fail(domain.ErrCodeGoogleBackendError)
	}

	return r.federated(ctx, tok, resp.Token, userID, resp.IsNewUser)
}

func (r *Reconciler) federateLinkedIn(ctx context.Context, event domain.SignInEvent, tok domain.Token) domain.Token {
	if event.Code == "" {
		slog.Warn("linkedin callback without authorization code")
		return tok.Fail(domain.ErrCodeLinkedInAuthCodeMissing)
	}
	if r.deps.LinkedIn == nil {
		return tok.Fail(domain.ErrCodeLinkedInSignInProcessingError)
	}

	res, err := r.deps.LinkedIn.SignIn(ctx, event.Code, event.RedirectURI)
	if err != nil {
		var upErr *linkedin.UpstreamError
		if errors.As(err, &upErr) && upErr.Backend {
			slog.Error("linkedin federation rejected", "status", upErr.StatusCode, "error", err)
			return tok.Fail(domain.ErrCodeLinkedInBackendError)
		}
		slog.Error("linkedin federation failed", "error", err)
		return tok.Fail(domain.ErrCodeLinkedInSignInProcessingError)
	}

	tok = withProfile(tok, res.Profile)

	var resp gateway.LinkedInSignupResponse
	if err := json.Unmarshal(res.Body, &resp); err != nil {
		slog.Error("linkedin federation response malformed", "error", err)
		return tok.Fail(domain.ErrCodeLinkedInSignInProcessingError)
	}
	if resp.Token == "" || resp.UserID == "" {
		slog.Error("linkedin federation response incomplete")
		return tok.Fail(domain.ErrCodeLinkedInBackendError)
	}

	return r.federated(ctx, tok, resp.Token, resp.UserID, resp.IsNewUser)
}

// withProfile fills identity fields the callback did not supply.
func withProfile(tok domain.Token, p domain.ProviderProfile) domain.Token {
	if tok.Subject == "" {
		tok.Subject = p.ID
	}
	if tok.Email == "" {
		tok.Email = p.Email
	}
	if tok.Name == "" {
		tok.Name = p.Name
	}
	if tok.Picture == "" {
		tok.Picture = p.Picture
	}
	return tok
}

// federated applies a successful backend federation. isNewUser is the
// backend's verdict and is mirrored locally so refreshes can re-read it.
func (r *Reconciler) federated(ctx context.Context, tok domain.Token, backendToken, backendUserID string, isNewUser bool) domain.Token {
	tok.CustomBackendToken = backendToken
	tok.CustomBackendUserID = backendUserID
	tok.IsNewUser = isNewUser
	tok.RequiresRedirectToAddBasicDetails = isNewUser

	if r.deps.Profiles == nil || tok.Email == "" {
		return tok
	}

	local := domain.User{Email: tok.Email, Name: tok.Name, IsNewSocialUser: isNewUser}
	if tok.Picture != "" {
		pic := tok.Picture
		local.ProfileImageURL = &pic
	}
	user, err := r.deps.Profiles.UpsertSocial(ctx, local)
	if err != nil {
		slog.Warn("mirror federated user locally", "email", tok.Email, "error", err)
		return tok
	}
	if tok.Subject == "" {
		tok.Subject = user.ID
	}
	return tok
}

func (r *Reconciler) authorizeCredentials(ctx context.Context, event domain.SignInEvent, tok domain.Token) (domain.Token, error) {
	if r.deps.Credentials == nil {
		return domain.Token{}, domain.ErrInvalidCredentials
	}
	user, err := r.deps.Credentials.Authorize(ctx, event.Email, event.Password)
	if err != nil {
		return domain.Token{}, err
	}

	tok.Subject = user.ID
	tok.Email = user.Email
	tok.Name = user.Name
	if user.ProfileImageURL != nil {
		tok.Picture = *user.ProfileImageURL
	}
	tok.IsNewUser = user.IsNewSocialUser
	return tok, nil
}

// Refresh re-derives profile completeness for an existing token so that
// details completed elsewhere take effect without a new sign-in. An errored
// token is returned unchanged.
func (r *Reconciler) Refresh(ctx context.Context, tok domain.Token) domain.Token {
	if tok.Error != domain.ErrCodeNone || tok.Email == "" || r.deps.Profiles == nil {
		return tok
	}

	user, err := r.deps.Profiles.FindByEmail(ctx, tok.Email)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			slog.Warn("refresh session profile", "email", tok.Email, "error", err)
		}
		return tok
	}

	tok.IsNewUser = user.IsNewSocialUser
	tok.RequiresRedirectToAddBasicDetails = user.IsNewSocialUser && tok.CustomBackendUserID != ""
	if tok.Subject == "" {
		tok.Subject = user.ID
	}
	if user.ProfileImageURL != nil && *user.ProfileImageURL != "" {
		tok.Picture = *user.ProfileImageURL
	}
	return tok
}

// Project exposes the token as the client-visible session.
func Project(tok domain.Token) domain.Session {
	return domain.Session{
		User: domain.SessionUser{
			ID:                                tok.Subject,
			Email:                             tok.Email,
			Name:                              tok.Name,
			Image:                             tok.Picture,
			CustomBackendToken:                tok.CustomBackendToken,
			CustomBackendUserID:               tok.CustomBackendUserID,
			IsNewUser:                         tok.IsNewUser,
			RequiresRedirectToAddBasicDetails: tok.RequiresRedirectToAddBasicDetails,
		},
		Error:   tok.Error,
		Expires: tok.ExpiresAt,
	}
}

func (r *Reconciler) record(provider domain.AuthProvider, code domain.ErrorCode) {
	if r.deps.Recorder != nil {
		r.deps.Recorder.RecordSignIn(provider, code)
	}
}
