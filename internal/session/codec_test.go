package session

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sumire/portal/internal/domain"
)

func TestCodec_RoundTrip(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := NewCodec("secret")
	c.now = func() time.Time { return now }

	tok := domain.Token{
		ID:                                "jti-1",
		Subject:                           "g-123",
		Email:                             "jane@x.com",
		Name:                              "Jane",
		Provider:                          domain.AuthProviderGoogle,
		CustomBackendToken:                "bt",
		CustomBackendUserID:               "u1",
		IsNewUser:                         true,
		RequiresRedirectToAddBasicDetails: true,
		IssuedAt:                          now,
		ExpiresAt:                         now.Add(time.Hour),
	}

	raw, err := c.Encode(tok)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	got, err := c.Decode(raw)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	if !got.IssuedAt.Equal(tok.IssuedAt) || !got.ExpiresAt.Equal(tok.ExpiresAt) {
		t.Errorf("times = %v/%v", got.IssuedAt, got.ExpiresAt)
	}
	got.IssuedAt, got.ExpiresAt = tok.IssuedAt, tok.ExpiresAt
	if got != tok {
		t.Errorf("Decode() = %+v, want %+v", got, tok)
	}
}

func TestCodec_Rejects(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := NewCodec("secret")
	c.now = func() time.Time { return now }

	valid := domain.Token{ID: "1", IssuedAt: now, ExpiresAt: now.Add(time.Hour)}
	expired := domain.Token{ID: "2", IssuedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Hour)}

	other := NewCodec("other")
	forged, _ := other.Encode(valid)
	stale, _ := c.Encode(expired)

	for name, raw := range map[string]string{
		"wrong secret": forged,
		"expired":      stale,
		"garbage":      "not-a-jwt",
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := c.Decode(raw); !errors.Is(err, ErrInvalidToken) {
				t.Errorf("Decode() error = %v, want ErrInvalidToken", err)
			}
		})
	}
}

func TestCookies(t *testing.T) {
	rec := httptest.NewRecorder()
	SetCookie(rec, "v", domain.Token{ExpiresAt: time.Now().Add(time.Hour)}, true)
	ClearCookie(rec, true)

	cookies := rec.Result().Cookies()
	if len(cookies) != 2 {
		t.Fatalf("got %d cookies", len(cookies))
	}
	set, cleared := cookies[0], cookies[1]
	if set.Name != CookieName || set.Value != "v" || !set.HttpOnly || !set.Secure || set.SameSite != http.SameSiteLaxMode {
		t.Errorf("set cookie = %+v", set)
	}
	if cleared.MaxAge >= 0 {
		t.Errorf("cleared MaxAge = %d", cleared.MaxAge)
	}
}
