package handler

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/sumire/portal/internal/domain"
	"github.com/sumire/portal/internal/resolver"
	"github.com/sumire/portal/internal/session"
)

// Resolver runs the post sign-in handoff.
type Resolver interface {
	Resolve(ctx context.Context, sessionID string, sessions resolver.SessionFetcher, store resolver.Storage) resolver.Decision
}

// RedirectHandler serves the navigation endpoints that run after sign-in.
type RedirectHandler struct {
	resolver Resolver
	sessions *Sessions
	baseURL  string
	routes   session.Routes
}

// NewRedirectHandler creates a new RedirectHandler.
func NewRedirectHandler(r Resolver, sessions *Sessions, baseURL string, routes session.Routes) *RedirectHandler {
	return &RedirectHandler{resolver: r, sessions: sessions, baseURL: strings.TrimRight(baseURL, "/"), routes: routes}
}

// Continue handles GET /auth/continue: basic details for new users,
// otherwise the external handoff. Repeated visits for an already handed-off
// session land on the base URL.
func (h *RedirectHandler) Continue(c echo.Context) error {
	tok, _ := CurrentToken(c)

	fetch := resolver.SessionFetcherFunc(func(context.Context) (domain.Session, error) {
		current, ok := CurrentToken(c)
		if !ok {
			return domain.Session{}, domain.ErrUnauthorized
		}
		return session.Project(current), nil
	})
	store := resolver.NewCookieStorage(c.Response(), c.Request(), h.sessions.Secure())

	d := h.resolver.Resolve(c.Request().Context(), tok.ID, fetch, store)
	switch d.Kind {
	case resolver.KindNone:
		if tok.Email == "" {
			return c.Redirect(http.StatusFound, h.baseURL+h.routes.Login)
		}
		return c.Redirect(http.StatusFound, h.baseURL)
	default:
		return c.Redirect(http.StatusFound, d.URL)
	}
}

// LegacyRedirect handles GET /auth/redirect/:userId.
func (h *RedirectHandler) LegacyRedirect(c echo.Context) error {
	userID := c.Param("userId")
	if userID == "" {
		return c.Redirect(http.StatusFound, h.baseURL+h.routes.Login)
	}
	return c.Redirect(http.StatusFound, h.baseURL+h.routes.BasicDetails+"?userId="+url.QueryEscape(userID))
}
