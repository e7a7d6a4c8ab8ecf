package session

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/sumire/portal/internal/domain"
)

// CookieName is the session cookie carrying the signed token.
const CookieName = "portal.session-token"

// ErrInvalidToken is returned for tokens that fail signature or expiry checks.
var ErrInvalidToken = errors.New("invalid session token")

type claims struct {
	jwt.RegisteredClaims

	Email    string              `json:"email,omitempty"`
	Name     string              `json:"name,omitempty"`
	Picture  string              `json:"picture,omitempty"`
	Provider domain.AuthProvider `json:"provider,omitempty"`

	CustomBackendToken                string           `json:"customBackendToken,omitempty"`
	CustomBackendUserID               string           `json:"customBackendUserId,omitempty"`
	IsNewUser                         bool             `json:"isNewUser,omitempty"`
	RequiresRedirectToAddBasicDetails bool             `json:"requiresRedirectToAddBasicDetails,omitempty"`
	Error                             domain.ErrorCode `json:"error,omitempty"`
}

// Codec signs and verifies session tokens with HS256.
type Codec struct {
	secret []byte
	now    func() time.Time
}

// NewCodec creates a new Codec.
func NewCodec(secret string) *Codec {
	return &Codec{secret: []byte(secret), now: time.Now}
}

// Encode signs tok.
func (c *Codec) Encode(tok domain.Token) (string, error) {
	cl := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        tok.ID,
			Subject:   tok.Subject,
			IssuedAt:  jwt.NewNumericDate(tok.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(tok.ExpiresAt),
		},
		Email:                             tok.Email,
		Name:                              tok.Name,
		Picture:                           tok.Picture,
		Provider:                          tok.Provider,
		CustomBackendToken:                tok.CustomBackendToken,
		CustomBackendUserID:               tok.CustomBackendUserID,
		IsNewUser:                         tok.IsNewUser,
		RequiresRedirectToAddBasicDetails: tok.RequiresRedirectToAddBasicDetails,
		Error:                             tok.Error,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, cl).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// Decode verifies raw and returns the token it carries.
func (c *Codec) Decode(raw string) (domain.Token, error) {
	var cl claims
	_, err := jwt.ParseWithClaims(raw, &cl, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return c.secret, nil
	}, jwt.WithTimeFunc(c.now), jwt.WithExpirationRequired())
	if err != nil {
		return domain.Token{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	tok := domain.Token{
		ID:                                cl.ID,
		Subject:                           cl.Subject,
		Email:                             cl.Email,
		Name:                              cl.Name,
		Picture:                           cl.Picture,
		Provider:                          cl.Provider,
		CustomBackendToken:                cl.CustomBackendToken,
		CustomBackendUserID:               cl.CustomBackendUserID,
		IsNewUser:                         cl.IsNewUser,
		RequiresRedirectToAddBasicDetails: cl.RequiresRedirectToAddBasicDetails,
		Error:                             cl.Error,
	}
	if cl.IssuedAt != nil {
		tok.IssuedAt = cl.IssuedAt.Time
	}
	if cl.ExpiresAt != nil {
		tok.ExpiresAt = cl.ExpiresAt.Time
	}
	return tok, nil
}

// SetCookie issues the session cookie for tok.
func SetCookie(w http.ResponseWriter, value string, tok domain.Token, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		Expires:  tok.ExpiresAt,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie removes the session cookie.
func ClearCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}
