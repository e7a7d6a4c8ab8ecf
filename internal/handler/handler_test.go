package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sumire/portal/internal/domain"
	"github.com/sumire/portal/internal/gateway"
	"github.com/sumire/portal/internal/resolver"
	"github.com/sumire/portal/internal/session"
)

const (
	testBaseURL     = "https://site"
	testExternalURL = "https://app.example"
)

type fakeProviders struct {
	googleEvent domain.SignInEvent
	googleErr   error
	codes       []string
}

func (f *fakeProviders) AuthURL(provider domain.AuthProvider, state string) (string, error) {
	return "https://provider.example/" + string(provider) + "?state=" + state, nil
}

func (f *fakeProviders) GoogleCallback(_ context.Context, code string) (domain.SignInEvent, error) {
	f.codes = append(f.codes, code)
	return f.googleEvent, f.googleErr
}

func (f *fakeProviders) LinkedInCallback(code string) domain.SignInEvent {
	f.codes = append(f.codes, code)
	return domain.LinkedInSignIn(code, testBaseURL+"/api/auth/callback/linkedin", domain.ProviderProfile{})
}

type fakeReconciler struct {
	tok     domain.Token
	err     error
	events  []domain.SignInEvent
	refresh func(domain.Token) domain.Token
}

func (f *fakeReconciler) SignIn(_ context.Context, event domain.SignInEvent, _ domain.Token) (domain.Token, error) {
	f.events = append(f.events, event)
	return f.tok, f.err
}

func (f *fakeReconciler) Refresh(_ context.Context, tok domain.Token) domain.Token {
	if f.refresh != nil {
		return f.refresh(tok)
	}
	return tok
}

type fakeBackend struct {
	login     *gateway.LoginResponse
	err       error
	submitted []string
}

func (f *fakeBackend) ok() (*gateway.Message, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &gateway.Message{Success: true, Message: "ok"}, nil
}

func (f *fakeBackend) Login(_ context.Context, _, _ string) (*gateway.LoginResponse, error) {
	return f.login, f.err
}

func (f *fakeBackend) VerifyEmail(context.Context, string, string) (*gateway.Message, error) {
	return f.ok()
}

func (f *fakeBackend) SendOTP(context.Context, string, string) (*gateway.Message, error) {
	return f.ok()
}

func (f *fakeBackend) ResendOTP(context.Context, string) (*gateway.Message, error) {
	return f.ok()
}

func (f *fakeBackend) Signup(_ context.Context, req gateway.SignupRequest) (*gateway.SignupResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &gateway.SignupResponse{Success: true, User: gateway.BackendUser{MongoID: "u1", Email: req.Email}}, nil
}

func (f *fakeBackend) ForgotPassword(context.Context, string) (*gateway.Message, error) {
	return f.ok()
}

func (f *fakeBackend) ConfirmPassword(context.Context, string, string) (*gateway.Message, error) {
	return f.ok()
}

func (f *fakeBackend) SubmitProfile(_ context.Context, bearer, userID string, _ gateway.OnboardingProfile) (*gateway.Message, error) {
	f.submitted = append(f.submitted, bearer+"/"+userID)
	return f.ok()
}

func (f *fakeBackend) ListData(context.Context, string) ([]json.RawMessage, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []json.RawMessage{json.RawMessage(`{"name":"Go"}`)}, nil
}

type fakeExchanger struct {
	body json.RawMessage
	err  error
}

func (f *fakeExchanger) Exchange(context.Context, string, string) (json.RawMessage, error) {
	return f.body, f.err
}

type fakeExchangeRecorder struct{ statuses []string }

func (f *fakeExchangeRecorder) RecordExchange(status string) {
	f.statuses = append(f.statuses, status)
}

type fakeOTP struct {
	sent     []string
	verified []string
	err      error
}

func (f *fakeOTP) Send(_ context.Context, email, _ string) error {
	f.sent = append(f.sent, email)
	return f.err
}

func (f *fakeOTP) Verify(_ context.Context, email, _ string) error {
	f.verified = append(f.verified, email)
	return f.err
}

type fakeRegistrar struct{ err error }

func (f *fakeRegistrar) Register(_ context.Context, email, _ string) (*domain.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.User{ID: "local-1", Email: email, Name: "User"}, nil
}

type fakeProfiles struct {
	emails  []string
	answers json.RawMessage
	err     error
}

func (f *fakeProfiles) UpdateDetails(_ context.Context, email string, details domain.BasicDetails) (*domain.User, error) {
	f.emails = append(f.emails, email)
	if f.err != nil {
		return nil, f.err
	}
	return &domain.User{Email: email, Location: details.Location, Birthdate: details.Birthdate}, nil
}

func (f *fakeProfiles) SaveOnboarding(_ context.Context, email string, answers json.RawMessage) error {
	f.emails = append(f.emails, email)
	f.answers = answers
	return f.err
}

type fakeUsers struct {
	user *gateway.BackendUser
	err  error
}

func (f *fakeUsers) GetUser(context.Context, string) (*gateway.BackendUser, error) {
	return f.user, f.err
}

type testEnv struct {
	e          *echo.Echo
	codec      *session.Codec
	providers  *fakeProviders
	reconciler *fakeReconciler
	backend    *fakeBackend
	exchanger  *fakeExchanger
	exchanges  *fakeExchangeRecorder
	otp        *fakeOTP
	registrar  *fakeRegistrar
	profiles   *fakeProfiles
	users      *fakeUsers
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		codec:      session.NewCodec("handler-test-secret"),
		providers:  &fakeProviders{},
		reconciler: &fakeReconciler{},
		backend:    &fakeBackend{},
		exchanger:  &fakeExchanger{},
		exchanges:  &fakeExchangeRecorder{},
		otp:        &fakeOTP{},
		registrar:  &fakeRegistrar{},
		profiles:   &fakeProfiles{},
		users:      &fakeUsers{user: &gateway.BackendUser{MongoID: "u1"}},
	}

	routes := session.DefaultRoutes()
	handoff := resolver.New(resolver.Config{
		BaseURL:        testBaseURL,
		ExternalAppURL: testExternalURL,
		Routes:         routes,
	}, env.users, nil)
	sessions := NewSessions(env.codec, env.reconciler, false)

	env.e = NewRouter(Handlers{
		Auth:     NewAuthHandler(env.providers, env.reconciler, sessions, env.backend, handoff, AuthConfig{BaseURL: testBaseURL, Routes: routes}),
		LinkedIn: NewLinkedInHandler(env.exchanger, env.exchanges),
		Account:  NewAccountHandler(env.otp, env.registrar, env.profiles, sessions, env.reconciler),
		Redirect: NewRedirectHandler(handoff, sessions, testBaseURL, routes),
		Backend:  NewBackendHandler(env.backend),
		Sessions: sessions,
	}, RouterConfig{
		AllowedOrigins: []string{testBaseURL},
		OTPPerMinute:   600,
	})
	return env
}

func (env *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

func (env *testEnv) sessionCookie(t *testing.T, tok domain.Token) *http.Cookie {
	t.Helper()
	raw, err := env.codec.Encode(tok)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	return &http.Cookie{Name: session.CookieName, Value: raw}
}

func activeToken() domain.Token {
	now := time.Now()
	return domain.Token{
		ID:                  "jti-1",
		Subject:             "g-1",
		Email:               "jane@x.com",
		Name:                "Jane",
		Provider:            domain.AuthProviderGoogle,
		CustomBackendToken:  "bt",
		CustomBackendUserID: "u1",
		IssuedAt:            now,
		ExpiresAt:           now.Add(time.Hour),
	}
}

func jsonRequest(method, target, body string) *http.Request {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

// findCookie returns the last Set-Cookie for name.
func findCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	var found *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			found = c
		}
	}
	return found
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder, data any) *APIError {
	t.Helper()
	var env struct {
		Data  json.RawMessage `json:"data"`
		Error *APIError       `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	if data != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, data); err != nil {
			t.Fatalf("decode data %s: %v", env.Data, err)
		}
	}
	return env.Error
}
