package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/sumire/portal/internal/domain"
	"github.com/sumire/portal/internal/linkedin"
)

// CodeExchanger trades a LinkedIn authorization code for the backend's reply.
type CodeExchanger interface {
	Exchange(ctx context.Context, authCode, redirectURI string) (json.RawMessage, error)
}

// ExchangeRecorder observes exchange response statuses.
type ExchangeRecorder interface {
	RecordExchange(status string)
}

// LinkedInHandler serves the LinkedIn exchange endpoint. Its responses are
// not wrapped in the envelope: success returns the backend body verbatim and
// failures use {message, details}.
type LinkedInHandler struct {
	exchanger CodeExchanger
	recorder  ExchangeRecorder
}

// NewLinkedInHandler creates a new LinkedInHandler.
func NewLinkedInHandler(exchanger CodeExchanger, recorder ExchangeRecorder) *LinkedInHandler {
	return &LinkedInHandler{exchanger: exchanger, recorder: recorder}
}

type exchangeRequest struct {
	AuthCode    string `json:"authCode"`
	RedirectURI string `json:"redirectUri"`
}

type exchangeFailure struct {
	Message string          `json:"message"`
	Details json.RawMessage `json:"details,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Exchange handles POST /api/auth/linkedin/exchange.
func (h *LinkedInHandler) Exchange(c echo.Context) error {
	var req exchangeRequest
	if err := c.Bind(&req); err != nil || req.AuthCode == "" || req.RedirectURI == "" {
		slog.Error("linkedin exchange missing authCode or redirectUri")
		return h.reply(c, http.StatusBadRequest, exchangeFailure{Message: "Missing authCode or redirectUri"})
	}

	body, err := h.exchanger.Exchange(c.Request().Context(), req.AuthCode, req.RedirectURI)
	if err != nil {
		var upErr *linkedin.UpstreamError
		switch {
		case errors.As(err, &upErr):
			return h.reply(c, upErr.StatusCode, exchangeFailure{Message: upErr.Message, Details: upErr.Details})
		case errors.Is(err, domain.ErrInvalidInput):
			return h.reply(c, http.StatusBadRequest, exchangeFailure{Message: "Missing authCode or redirectUri"})
		default:
			slog.Error("linkedin exchange failed", "error", err)
			return h.reply(c, http.StatusInternalServerError, exchangeFailure{
				Message: "Internal server error during LinkedIn OAuth exchange.",
				Error:   err.Error(),
			})
		}
	}

	h.record(http.StatusOK)
	return c.JSONBlob(http.StatusOK, body)
}

func (h *LinkedInHandler) reply(c echo.Context, status int, body exchangeFailure) error {
	h.record(status)
	return c.JSON(status, body)
}

func (h *LinkedInHandler) record(status int) {
	if h.recorder != nil {
		h.recorder.RecordExchange(strconv.Itoa(status))
	}
}
