// Package resolver performs the post sign-in navigation: in-app onboarding
// for new users, otherwise a one-time handoff to the companion application.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sumire/portal/internal/domain"
	"github.com/sumire/portal/internal/gateway"
	"github.com/sumire/portal/internal/session"
)

// Kind is the outcome of a resolution.
type Kind string

const (
	// KindNone means nothing to do: unauthenticated, or already processed.
	KindNone         Kind = "none"
	KindBasicDetails Kind = "basic_details"
	KindHandoff      Kind = "handoff"
	KindFailed       Kind = "failed"
)

// Notices shown to the user when resolution fails.
const (
	NoticeMissingToken  = "Your sign-in did not complete. Please sign in again."
	NoticeMissingUserID = "We could not find your account. Please sign in again."
	NoticeLookupFailed  = "We could not reach the server. Please try again."
)

var (
	errMissingToken  = errors.New("no backend token in session or storage")
	errMissingUserID = errors.New("backend returned no user id")
)

// Decision tells the caller where to navigate.
type Decision struct {
	Kind   Kind
	URL    string
	Notice string
}

// SessionFetcher returns the current session, freshly derived.
type SessionFetcher interface {
	Current(ctx context.Context) (domain.Session, error)
}

// SessionFetcherFunc adapts a function to SessionFetcher.
type SessionFetcherFunc func(ctx context.Context) (domain.Session, error)

func (f SessionFetcherFunc) Current(ctx context.Context) (domain.Session, error) { return f(ctx) }

// UserLookup resolves a backend user by id or e-mail.
type UserLookup interface {
	GetUser(ctx context.Context, idOrEmail string) (*gateway.BackendUser, error)
}

// Recorder observes resolution outcomes.
type Recorder interface {
	RecordHandoff(kind string)
}

// Config configures a Resolver.
type Config struct {
	BaseURL        string
	ExternalAppURL string
	Routes         session.Routes

	// GuardTTL bounds how long a processed session id is remembered.
	GuardTTL time.Duration
}

// Resolver is the one-shot handoff saga. It remembers which navigation it
// already issued for a session id so repeated invocations do not navigate
// twice. The guard is per decision kind: a session sent to basic details is
// still handed off once its profile is complete.
type Resolver struct {
	cfg      Config
	users    UserLookup
	recorder Recorder
	now      func() time.Time

	mu        sync.Mutex
	processed map[guardKey]time.Time
}

// New creates a new Resolver.
func New(cfg Config, users UserLookup, recorder Recorder) *Resolver {
	if cfg.GuardTTL <= 0 {
		cfg.GuardTTL = 24 * time.Hour
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	cfg.ExternalAppURL = strings.TrimRight(cfg.ExternalAppURL, "/")
	return &Resolver{
		cfg:       cfg,
		users:     users,
		recorder:  recorder,
		now:       time.Now,
		processed: make(map[guardKey]time.Time),
	}
}

// HandoffURL is the companion application's callback for userID and token.
func (r *Resolver) HandoffURL(userID, token string) string {
	return r.cfg.ExternalAppURL + "/auth/callback?userId=" + url.QueryEscape(userID) + "&token=" + url.QueryEscape(token)
}

// Resolve runs the saga for sessionID. Failures are logged and turned into a
// KindFailed decision with a notice; they leave the guard unset.
func (r *Resolver) Resolve(ctx context.Context, sessionID string, sessions SessionFetcher, store Storage) Decision {
	if r.seen(sessionID, KindHandoff) {
		return r.done(Decision{Kind: KindNone})
	}

	sess, err := sessions.Current(ctx)
	if err != nil || sess.User.Email == "" {
		return r.done(Decision{Kind: KindNone})
	}
	if sess.Error != domain.ErrCodeNone {
		return r.done(Decision{Kind: KindFailed, URL: r.cfg.BaseURL + r.cfg.Routes.Login, Notice: NoticeMissingToken})
	}

	if sess.User.CustomBackendToken != "" {
		store.SetToken(sess.User.CustomBackendToken)
	}

	if sess.User.IsNewUser || sess.User.RequiresRedirectToAddBasicDetails {
		target := r.cfg.BaseURL + r.cfg.Routes.BasicDetails
		if id := sess.User.CustomBackendUserID; id != "" {
			target += "?userId=" + url.QueryEscape(id)
		}
		if r.seen(sessionID, KindBasicDetails) {
			return r.done(Decision{Kind: KindNone})
		}
		r.mark(sessionID, KindBasicDetails)
		return r.done(Decision{Kind: KindBasicDetails, URL: target})
	}

	token := store.Token()
	if token == "" {
		return r.fail(sess, errMissingToken, NoticeMissingToken)
	}

	user, err := r.users.GetUser(ctx, sess.User.Email)
	if err != nil {
		var apiErr *gateway.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return r.fail(sess, err, NoticeMissingUserID)
		}
		return r.fail(sess, err, NoticeLookupFailed)
	}
	userID := user.CanonicalID()
	if userID == "" {
		return r.fail(sess, errMissingUserID, NoticeMissingUserID)
	}

	store.Clear()
	r.mark(sessionID, KindHandoff)
	slog.Info("handing off to external app", "user_id", userID)
	return r.done(Decision{Kind: KindHandoff, URL: r.HandoffURL(userID, token)})
}

func (r *Resolver) fail(sess domain.Session, err error, notice string) Decision {
	slog.Error("resolve external handoff", "email", sess.User.Email, "error", fmt.Errorf("handoff: %w", err))
	return r.done(Decision{
		Kind:   KindFailed,
		URL:    r.cfg.BaseURL + r.cfg.Routes.Login + "?notice=" + url.QueryEscape(notice),
		Notice: notice,
	})
}

func (r *Resolver) done(d Decision) Decision {
	if r.recorder != nil {
		r.recorder.RecordHandoff(string(d.Kind))
	}
	return d
}

type guardKey struct {
	session string
	kind    Kind
}

func (r *Resolver) seen(id string, kind Kind) bool {
	if id == "" {
		return false
	}
	key := guardKey{session: id, kind: kind}
	r.mu.Lock()
	defer r.mu.Unlock()
	at, ok := r.processed[key]
	if ok && r.now().Sub(at) > r.cfg.GuardTTL {
		delete(r.processed, key)
		return false
	}
	return ok
}

func (r *Resolver) mark(id string, kind Kind) {
	if id == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	for k, at := range r.processed {
		if now.Sub(at) > r.cfg.GuardTTL {
			delete(r.processed, k)
		}
	}
	r.processed[guardKey{session: id, kind: kind}] = now
}
