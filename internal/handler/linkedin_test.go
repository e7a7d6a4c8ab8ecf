package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/sumire/portal/internal/linkedin"
)

const exchangePath = "/api/auth/linkedin/exchange"

func TestLinkedInExchange_RelaysBackendBody(t *testing.T) {
	env := newTestEnv(t)
	body := `{"token":"bt","userId":"u1","isNewUser":true,"extra":{"plan":"free"}}`
	env.exchanger.body = json.RawMessage(body)

	rec := env.do(jsonRequest(http.MethodPost, exchangePath, `{"authCode":"c","redirectUri":"https://site/cb"}`))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != body {
		t.Errorf("body = %s, want verbatim %s", got, body)
	}
	if len(env.exchanges.statuses) != 1 || env.exchanges.statuses[0] != "200" {
		t.Errorf("recorded = %v, want [200]", env.exchanges.statuses)
	}
}

func TestLinkedInExchange_Failures(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		err         error
		wantStatus  int
		wantMessage string
		wantDetails string
		wantError   bool
	}{
		{
			name:        "missing redirect uri",
			body:        `{"authCode":"c"}`,
			wantStatus:  http.StatusBadRequest,
			wantMessage: "Missing authCode or redirectUri",
		},
		{
			name:        "malformed body",
			body:        `{`,
			wantStatus:  http.StatusBadRequest,
			wantMessage: "Missing authCode or redirectUri",
		},
		{
			name: "upstream status forwarded",
			body: `{"authCode":"c","redirectUri":"https://site/cb"}`,
			err: &linkedin.UpstreamError{
				StatusCode: http.StatusUnauthorized,
				Message:    "Failed to get access token from LinkedIn",
				Details:    json.RawMessage(`{"error":"invalid_grant"}`),
			},
			wantStatus:  http.StatusUnauthorized,
			wantMessage: "Failed to get access token from LinkedIn",
			wantDetails: `{"error":"invalid_grant"}`,
		},
		{
			name:        "unexpected failure",
			body:        `{"authCode":"c","redirectUri":"https://site/cb"}`,
			err:         errors.New("dial tcp: connection refused"),
			wantStatus:  http.StatusInternalServerError,
			wantMessage: "Internal server error during LinkedIn OAuth exchange.",
			wantError:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.exchanger.err = tt.err

			rec := env.do(jsonRequest(http.MethodPost, exchangePath, tt.body))

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			var got exchangeFailure
			if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if got.Message != tt.wantMessage {
				t.Errorf("message = %q, want %q", got.Message, tt.wantMessage)
			}
			if tt.wantDetails != "" && string(got.Details) != tt.wantDetails {
				t.Errorf("details = %s, want %s", got.Details, tt.wantDetails)
			}
			if tt.wantError != (got.Error != "") {
				t.Errorf("error field = %q, want present=%v", got.Error, tt.wantError)
			}
		})
	}
}
