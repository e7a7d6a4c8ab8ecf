package handler

import (
	"net/http"
	"testing"

	"github.com/sumire/portal/internal/domain"
	"github.com/sumire/portal/internal/session"
)

func TestSendOTP(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(jsonRequest(http.MethodPost, "/api/auth/send-otp", `{"email":"jane@x.com","name":"Jane"}`))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body)
	}
	if len(env.otp.sent) != 1 || env.otp.sent[0] != "jane@x.com" {
		t.Errorf("sent = %v", env.otp.sent)
	}
}

func TestVerifyOTP(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"ok", `{"email":"jane@x.com","otp":"123456"}`, nil, http.StatusOK, ""},
		{"not numeric", `{"email":"jane@x.com","otp":"12ab56"}`, nil, http.StatusBadRequest, "validation_error"},
		{"wrong length", `{"email":"jane@x.com","otp":"123"}`, nil, http.StatusBadRequest, "validation_error"},
		{"expired", `{"email":"jane@x.com","otp":"123456"}`, domain.ErrOTPExpired, http.StatusBadRequest, "otp_expired"},
		{"attempts", `{"email":"jane@x.com","otp":"123456"}`, domain.ErrOTPAttempts, http.StatusBadRequest, "otp_attempts_exceeded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.otp.err = tt.err

			rec := env.do(jsonRequest(http.MethodPost, "/api/auth/verify-otp", tt.body))

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.wantStatus, rec.Body)
			}
			apiErr := decodeEnvelope(t, rec, nil)
			if tt.wantCode == "" {
				if apiErr != nil {
					t.Errorf("unexpected error %+v", apiErr)
				}
				return
			}
			if apiErr == nil || apiErr.Code != tt.wantCode {
				t.Errorf("error = %+v, want %s", apiErr, tt.wantCode)
			}
		})
	}
}

func TestRegister(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(jsonRequest(http.MethodPost, "/api/auth/register", `{"email":"jane@x.com","password":"longenough"}`))
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body)
	}

	env.registrar.err = domain.ErrConflict
	rec = env.do(jsonRequest(http.MethodPost, "/api/auth/register", `{"email":"jane@x.com","password":"longenough"}`))
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	if apiErr := decodeEnvelope(t, rec, nil); apiErr == nil || apiErr.Message != "User already exists with this email." {
		t.Errorf("error = %+v", apiErr)
	}
}

func TestUpdateDetails_RequiresSession(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(jsonRequest(http.MethodPost, "/api/user/update-details", `{"location":"Tokyo"}`))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
	if len(env.profiles.emails) != 0 {
		t.Error("profile store must not be touched without a session")
	}
}

func TestUpdateDetails_ReissuesSession(t *testing.T) {
	env := newTestEnv(t)
	tok := activeToken()
	tok.IsNewUser = true
	tok.RequiresRedirectToAddBasicDetails = true

	refreshes := 0
	env.reconciler.refresh = func(tok domain.Token) domain.Token {
		refreshes++
		if refreshes > 1 {
			tok.IsNewUser = false
			tok.RequiresRedirectToAddBasicDetails = false
		}
		return tok
	}

	req := jsonRequest(http.MethodPost, "/api/user/update-details", `{"location":"Tokyo","birthdate":"1990-04-01"}`)
	req.AddCookie(env.sessionCookie(t, tok))
	rec := env.do(req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body)
	}
	if len(env.profiles.emails) != 1 || env.profiles.emails[0] != "jane@x.com" {
		t.Errorf("updated emails = %v, want session email", env.profiles.emails)
	}

	var data struct {
		UpdatedUser map[string]*string `json:"updatedUser"`
		Session     domain.Session     `json:"session"`
	}
	decodeEnvelope(t, rec, &data)
	if loc := data.UpdatedUser["location"]; loc == nil || *loc != "Tokyo" {
		t.Errorf("updatedUser.location = %v", loc)
	}
	if data.Session.User.RequiresRedirectToAddBasicDetails || data.Session.User.IsNewUser {
		t.Errorf("session still requires basic details: %+v", data.Session.User)
	}
	if findCookie(rec, session.CookieName) == nil {
		t.Error("session cookie not re-issued")
	}
}

func TestSaveOnboarding(t *testing.T) {
	env := newTestEnv(t)
	body := `{"skills":["go"],"commitment":"full-time"}`

	req := jsonRequest(http.MethodPost, "/api/user/save-onboarding", body)
	req.AddCookie(env.sessionCookie(t, activeToken()))
	rec := env.do(req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body)
	}
	if string(env.profiles.answers) != body {
		t.Errorf("answers = %s, want %s", env.profiles.answers, body)
	}
	if env.profiles.emails[0] != "jane@x.com" {
		t.Errorf("email = %q", env.profiles.emails[0])
	}
}

func TestSaveOnboarding_InvalidAnswers(t *testing.T) {
	env := newTestEnv(t)
	env.profiles.err = &domain.ValidationError{Field: "answers", Message: "must be a JSON object"}

	req := jsonRequest(http.MethodPost, "/api/user/save-onboarding", `[1,2]`)
	req.AddCookie(env.sessionCookie(t, activeToken()))
	rec := env.do(req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}
