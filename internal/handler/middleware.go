package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"github.com/sumire/portal/internal/domain"
	"github.com/sumire/portal/internal/session"
)

const (
	contextKeyToken = "session_token"
)

// RequestLogger logs each HTTP request with structured fields.
func RequestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)
			if err != nil {
				// Let the error handler set the final status before logging.
				c.Error(err)
			}

			attrs := []any{
				"method", c.Request().Method,
				"path", c.Request().URL.Path,
				"status", c.Response().Status,
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", c.Response().Header().Get(echo.HeaderXRequestID),
			}
			if tok, ok := CurrentToken(c); ok {
				attrs = append(attrs, "session_id", tok.ID)
			}
			slog.Info("http request", attrs...)

			return nil
		}
	}
}

// Refresher re-derives a session token from the current profile state.
type Refresher interface {
	Refresh(ctx context.Context, tok domain.Token) domain.Token
}

// Sessions reads, refreshes and issues the session cookie.
type Sessions struct {
	codec     *session.Codec
	refresher Refresher
	secure    bool
}

// NewSessions creates a new Sessions.
func NewSessions(codec *session.Codec, refresher Refresher, secure bool) *Sessions {
	return &Sessions{codec: codec, refresher: refresher, secure: secure}
}

// Middleware loads the session cookie, refreshes the token and re-issues the
// cookie when the refresh changed anything. Invalid cookies are cleared.
func (s *Sessions) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cookie, err := c.Cookie(session.CookieName)
			if err != nil || cookie.Value == "" {
				return next(c)
			}

			tok, err := s.codec.Decode(cookie.Value)
			if err != nil {
				slog.Debug("discarding session cookie", "error", err)
				s.Clear(c)
				return next(c)
			}

			refreshed := s.refresher.Refresh(c.Request().Context(), tok)
			if refreshed != tok {
				if err := s.Issue(c, refreshed); err != nil {
					return err
				}
			}
			c.Set(contextKeyToken, refreshed)
			return next(c)
		}
	}
}

// Issue signs tok into the session cookie and makes it current.
func (s *Sessions) Issue(c echo.Context, tok domain.Token) error {
	raw, err := s.codec.Encode(tok)
	if err != nil {
		return err
	}
	session.SetCookie(c.Response(), raw, tok, s.secure)
	c.Set(contextKeyToken, tok)
	return nil
}

// Clear removes the session cookie.
func (s *Sessions) Clear(c echo.Context) {
	session.ClearCookie(c.Response(), s.secure)
	c.Set(contextKeyToken, nil)
}

// Secure reports whether cookies carry the Secure attribute.
func (s *Sessions) Secure() bool { return s.secure }

// CurrentToken returns the session token of the request, if any.
func CurrentToken(c echo.Context) (domain.Token, bool) {
	tok, ok := c.Get(contextKeyToken).(domain.Token)
	return tok, ok
}

// RequireSession rejects requests without a usable session.
func RequireSession() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tok, ok := CurrentToken(c)
			if !ok || tok.Email == "" || tok.Error != domain.ErrCodeNone {
				return domain.ErrUnauthorized
			}
			return next(c)
		}
	}
}

// RateLimit limits requests per client IP to perMinute.
func RateLimit(perMinute float64) echo.MiddlewareFunc {
	burst := int(perMinute)
	if burst < 1 {
		burst = 1
	}
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(perMinute / 60),
			Burst:     burst,
			ExpiresIn: 3 * time.Minute,
		}),
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			slog.Warn("rate limit exceeded", "ip", identifier, "path", c.Request().URL.Path)
			return echo.NewHTTPError(http.StatusTooManyRequests, "Too many requests. Please try again later.")
		},
	})
}
