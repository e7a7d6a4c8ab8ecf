package resolver

import (
	"net/http"
	"sync"
)

// BackendTokenCookie holds the backend bearer token for browser-side gateway calls.
const BackendTokenCookie = "portal.backend-token"

// Storage is durable client storage for the backend bearer token.
type Storage interface {
	Token() string
	SetToken(token string)
	Clear()
}

// MemoryStorage is an in-process Storage.
type MemoryStorage struct {
	mu    sync.Mutex
	token string
}

func (s *MemoryStorage) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

func (s *MemoryStorage) SetToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

func (s *MemoryStorage) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
}

// CookieStorage keeps the token in a browser cookie. The cookie is readable
// by page scripts so the browser can use it as a bearer credential.
type CookieStorage struct {
	w      http.ResponseWriter
	secure bool
	token  string
}

// NewCookieStorage loads the current token from r and writes updates to w.
func NewCookieStorage(w http.ResponseWriter, r *http.Request, secure bool) *CookieStorage {
	s := &CookieStorage{w: w, secure: secure}
	if c, err := r.Cookie(BackendTokenCookie); err == nil {
		s.token = c.Value
	}
	return s
}

func (s *CookieStorage) Token() string { return s.token }

func (s *CookieStorage) SetToken(token string) {
	s.token = token
	http.SetCookie(s.w, &http.Cookie{
		Name:     BackendTokenCookie,
		Value:    token,
		Path:     "/",
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *CookieStorage) Clear() {
	s.token = ""
	http.SetCookie(s.w, &http.Cookie{
		Name:     BackendTokenCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
