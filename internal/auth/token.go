package auth

import "sync"

// TokenStore holds the access credential attached to every room request.
type TokenStore struct {
	mu    sync.RWMutex
	token string
}

func NewTokenStore(token string) *TokenStore {
	return &TokenStore{token: token}
}

func (s *TokenStore) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.token
}

func (s *TokenStore) Set(token string) {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
}

func (s *TokenStore) Clear() {
	s.Set("")
}

func (s *TokenStore) IsAuthenticated() bool {
	return s.AccessToken() != ""
}
