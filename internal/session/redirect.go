package session

import (
	"net/url"
	"strings"

	"github.com/sumire/portal/internal/domain"
)

// Routes names the in-app paths the redirect decision targets.
type Routes struct {
	Login        string
	BasicDetails string

	// Onboarding lists path prefixes of an in-progress onboarding flow.
	Onboarding []string

	// CallbackPrefix is the provider callback path prefix.
	CallbackPrefix string
}

// DefaultRoutes returns the portal's routes.
func DefaultRoutes() Routes {
	return Routes{
		Login:        "/login",
		BasicDetails: "/auth/add-basic-details",
		Onboarding: []string{
			"/auth/add-basic-details",
			"/auth/redirect",
			"/auth/skillset",
			"/auth/intrests",
			"/auth/prior-experience",
			"/auth/commitments",
			"/auth/equity-expectation",
			"/auth/founder-screen",
			"/auth/post-onboarding",
		},
		CallbackPrefix: "/api/auth/callback",
	}
}

// Redirect decides where to send the principal after authentication.
//
// Rules in priority order:
//  1. errored token: login
//  2. profile incomplete with a backend user id: basic details
//  3. target already inside onboarding: unchanged
//  4. the provider callback: base
//  5. same origin: target
//  6. anything else: base
func (r Routes) Redirect(target, baseURL string, tok domain.Token) string {
	base := strings.TrimRight(baseURL, "/")

	if tok.Error != domain.ErrCodeNone {
		return base + r.Login
	}

	if tok.NeedsBasicDetails() && tok.CustomBackendUserID != "" {
		return base + r.BasicDetails + "?userId=" + url.QueryEscape(tok.CustomBackendUserID)
	}

	baseU, err := url.Parse(base)
	if err != nil {
		return base
	}
	u, err := url.Parse(target)
	if err != nil || target == "" {
		return base
	}

	relative := isRelativePath(target)
	if !relative && !sameOrigin(u, baseU) {
		return base
	}

	if r.inOnboarding(u.Path) {
		return target
	}

	if hasPathPrefix(u.Path, r.CallbackPrefix) {
		return base
	}

	if relative {
		return baseU.ResolveReference(u).String()
	}
	return target
}

func (r Routes) inOnboarding(path string) bool {
	for _, p := range r.Onboarding {
		if hasPathPrefix(path, p) {
			return true
		}
	}
	return false
}

// hasPathPrefix matches prefix as a whole path segment sequence.
func hasPathPrefix(path, prefix string) bool {
	if prefix == "" {
		return false
	}
	prefix = strings.TrimRight(prefix, "/")
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

func isRelativePath(raw string) bool {
	return strings.HasPrefix(raw, "/") && !strings.HasPrefix(raw, "//") && !strings.HasPrefix(raw, `/\`)
}

func sameOrigin(a, b *url.URL) bool {
	return strings.EqualFold(a.Scheme, b.Scheme) && strings.EqualFold(a.Host, b.Host)
}
