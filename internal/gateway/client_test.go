package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(t *testing.T, h http.HandlerFunc, retries uint) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(Options{
		BaseURL:        srv.URL,
		Timeout:        2 * time.Second,
		GetRetries:     retries,
		InitialBackoff: time.Millisecond,
	})
}

func TestGoogleSignup_Success(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/auth/app-google-signup" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["idToken"] != "id-tok" {
			t.Errorf("idToken = %q, want id-tok", body["idToken"])
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"token":"bt","user":{"_id":"u1"},"isNewUser":true}`))
	}, 0)

	resp, err := c.GoogleSignup(context.Background(), "id-tok")
	if err != nil {
		t.Fatalf("GoogleSignup() error = %v", err)
	}
	if !resp.Success || resp.Token != "bt" || resp.User.CanonicalID() != "u1" || !resp.IsNewUser {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestPost_NonSuccessStatusReturnsAPIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"bad password"}`))
	}, 0)

	_, err := c.Login(context.Background(), "a@b.com", "pw")

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("StatusCode = %d, want 401", apiErr.StatusCode)
	}
	if apiErr.Message() != "bad password" {
		t.Errorf("Message() = %q", apiErr.Message())
	}
}

func TestPost_NotRetried(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}, 3)

	if _, err := c.GoogleSignup(context.Background(), "tok"); err == nil {
		t.Fatal("expected error")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("calls = %d, want 1", got)
	}
}

func TestGet_RetriesServerErrorOnce(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		if r.URL.Path != "/api/user/jane@x.com" {
			t.Errorf("path = %q", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"data":{"_id":"u1","email":"jane@x.com"}}`))
	}, 1)

	user, err := c.GetUser(context.Background(), "jane@x.com")
	if err != nil {
		t.Fatalf("GetUser() error = %v", err)
	}
	if user.CanonicalID() != "u1" {
		t.Errorf("CanonicalID() = %q, want u1", user.CanonicalID())
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("calls = %d, want 2", got)
	}
}

func TestGet_ClientErrorIsPermanent(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}, 3)

	_, err := c.GetUser(context.Background(), "u404")

	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusNotFound {
		t.Fatalf("error = %v, want 404 APIError", err)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("calls = %d, want 1", got)
	}
}

func TestSubmitProfile_SendsBearer(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer bt" {
			t.Errorf("Authorization = %q", got)
		}
		if r.URL.Path != "/auth/user/u1" {
			t.Errorf("path = %q", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"success":true}`))
	}, 0)

	msg, err := c.SubmitProfile(context.Background(), "bt", "u1", OnboardingProfile{SkillSet: []string{"go"}})
	if err != nil {
		t.Fatalf("SubmitProfile() error = %v", err)
	}
	if !msg.Success {
		t.Error("Success = false")
	}
}

func TestLinkedInSignup_ReturnsRawBody(t *testing.T) {
	const body = `{"token":"bt","userId":"u1","isNewUser":true}`
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body))
	}, 0)

	raw, err := c.LinkedInSignup(context.Background(), LinkedInProfile{ID: "123"})
	if err != nil {
		t.Fatalf("LinkedInSignup() error = %v", err)
	}
	if string(raw) != body {
		t.Errorf("body = %s, want %s", raw, body)
	}
}

func TestGet_MalformedJSON(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{not json`))
	}, 0)

	if _, err := c.ListData(context.Background(), "skills"); err == nil {
		t.Fatal("expected decode error")
	}
}
