package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/sumire/portal/internal/domain"
)

type memUsers struct {
	mu    sync.Mutex
	byID  map[string]*domain.User
	order []string
}

func newMemUsers() *memUsers {
	return &memUsers{byID: map[string]*domain.User{}}
}

func (m *memUsers) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range m.order {
		if u := m.byID[id]; u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memUsers) FindByID(_ context.Context, id string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) Create(_ context.Context, user domain.User) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.Email == user.Email {
			return nil, domain.ErrConflict
		}
	}
	m.byID[user.ID] = &user
	m.order = append(m.order, user.ID)
	cp := user
	return &cp, nil
}

func (m *memUsers) UpdateDetails(_ context.Context, id string, d domain.BasicDetails) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	if d.Location != nil {
		u.Location = d.Location
	}
	if d.Birthdate != nil {
		u.Birthdate = d.Birthdate
	}
	if d.ProfileImageURL != nil {
		u.ProfileImageURL = d.ProfileImageURL
	}
	u.IsNewSocialUser = false
	return nil
}

func (m *memUsers) SaveOnboarding(_ context.Context, id string, answers json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	u.OnboardingAnswers = answers
	u.OnboardingCompleted = true
	return nil
}

type memOTPs struct {
	mu   sync.Mutex
	data map[string]domain.OTP
	ttls map[string]time.Duration
}

func newMemOTPs() *memOTPs {
	return &memOTPs{data: map[string]domain.OTP{}, ttls: map[string]time.Duration{}}
}

func (m *memOTPs) Save(_ context.Context, otp domain.OTP, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[otp.Email] = otp
	m.ttls[otp.Email] = ttl
	return nil
}

func (m *memOTPs) Get(_ context.Context, email string) (*domain.OTP, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.data[email]
	if !ok {
		return nil, domain.ErrOTPNotFound
	}
	return &o, nil
}

func (m *memOTPs) Delete(_ context.Context, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, email)
	delete(m.ttls, email)
	return nil
}

func strPtr(s string) *string { return &s }
