// Package session persists who is currently using the client.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"go.uber.org/zap"

	"summarai/internal/logging"
	"summarai/internal/storage"
)

const (
	userKey     = "summarai_user"
	tokenKey    = "summarai_token"
	darkModeKey = "dark_mode"
)

// Identity is the authenticated user. It carries no credentials.
type Identity struct {
	Email    string `json:"email"`
	Username string `json:"username"`
}

// IdentityFromEmail builds an identity whose username is the local part of email.
func IdentityFromEmail(email string) Identity {
	username, _, _ := strings.Cut(email, "@")
	return Identity{Email: email, Username: username}
}

// Store keeps the identity, bearer token and display preference.
type Store struct {
	kv     storage.Store
	logger *zap.Logger
}

// NewStore creates a session store over kv.
func NewStore(kv storage.Store, logger *zap.Logger) *Store {
	return &Store{kv: kv, logger: logging.OrNop(logger)}
}

// SetIdentity persists identity so it survives restarts.
func (s *Store) SetIdentity(ctx context.Context, identity Identity) {
	data, err := json.Marshal(identity)
	if err != nil {
		s.logger.Error("failed to encode identity", zap.Error(err))
		return
	}
	if err := s.kv.Set(ctx, userKey, string(data)); err != nil {
		s.logger.Warn("failed to save identity", zap.Error(err))
	}
}

// SetToken stores the bearer token. It is never read back.
func (s *Store) SetToken(ctx context.Context, token string) {
	if err := s.kv.Set(ctx, tokenKey, token); err != nil {
		s.logger.Warn("failed to save token", zap.Error(err))
	}
}

// Load returns the last persisted identity, if any.
func (s *Store) Load(ctx context.Context) (Identity, bool) {
	raw, err := s.kv.Get(ctx, userKey)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.logger.Warn("failed to read identity", zap.Error(err))
		}
		return Identity{}, false
	}

	var identity Identity
	if err := json.Unmarshal([]byte(raw), &identity); err != nil {
		s.logger.Warn("discarding unreadable identity", zap.Error(err))
		return Identity{}, false
	}
	return identity, true
}

// Clear forgets the identity and token.
func (s *Store) Clear(ctx context.Context) {
	for _, key := range []string{userKey, tokenKey} {
		if err := s.kv.Remove(ctx, key); err != nil {
			s.logger.Warn("failed to clear session key", zap.String("key", key), zap.Error(err))
		}
	}
}

// DarkMode reports the saved theme preference.
func (s *Store) DarkMode(ctx context.Context) bool {
	raw, err := s.kv.Get(ctx, darkModeKey)
	return err == nil && raw == "true"
}

// SetDarkMode saves the theme preference.
func (s *Store) SetDarkMode(ctx context.Context, dark bool) {
	value := "false"
	if dark {
		value = "true"
	}
	if err := s.kv.Set(ctx, darkModeKey, value); err != nil {
		s.logger.Warn("failed to save theme", zap.Error(err))
	}
}
