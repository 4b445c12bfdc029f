// Package account keeps a mocked username/password table for the login and
// signup screens. No tokens or sessions are issued.
package account

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrMissingFields      = errors.New("username and password are required")
	ErrPasswordMismatch   = errors.New("passwords do not match")
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid username or password")
)

// Credential is a plain-text seed entry.
type Credential struct {
	Username string
	Password string
}

// DemoUsers are the accounts available on a fresh start.
var DemoUsers = []Credential{
	{Username: "user1@gmail.com", Password: "password1"},
	{Username: "user2@gmail.com", Password: "password2"},
	{Username: "admin@vinbrain.net", Password: "adminpass"},
}

// Service is an in-memory credential table.
type Service struct {
	mu    sync.RWMutex
	users map[string][]byte
	cost  int
}

// Option customises a Service.
type Option func(*Service)

// WithCost sets the bcrypt cost used for new hashes.
func WithCost(cost int) Option {
	return func(s *Service) { s.cost = cost }
}

// NewService hashes seed into a fresh table.
func NewService(seed []Credential, opts ...Option) (*Service, error) {
	s := &Service{
		users: make(map[string][]byte, len(seed)),
		cost:  bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(s)
	}

	for _, c := range seed {
		hash, err := bcrypt.GenerateFromPassword([]byte(c.Password), s.cost)
		if err != nil {
			return nil, fmt.Errorf("hash seed user %s: %w", c.Username, err)
		}
		s.users[normalize(c.Username)] = hash
	}
	return s, nil
}

// Login checks username and password against the table.
func (s *Service) Login(username, password string) error {
	username = normalize(username)
	if username == "" || password == "" {
		return ErrMissingFields
	}

	s.mu.RLock()
	hash, ok := s.users[username]
	s.mu.RUnlock()
	if !ok {
		return ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// SignUp adds a new user. confirm must equal password.
func (s *Service) SignUp(username, password, confirm string) error {
	username = normalize(username)
	if username == "" || password == "" {
		return ErrMissingFields
	}
	if password != confirm {
		return ErrPasswordMismatch
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[username]; exists {
		return ErrUserExists
	}
	s.users[username] = hash
	return nil
}

func normalize(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}
