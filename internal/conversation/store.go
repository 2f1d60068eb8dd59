// Package conversation persists the transcript of each history item.
package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"go.uber.org/zap"

	"summarai/internal/logging"
	"summarai/internal/storage"
)

const keyPrefix = "conv_"

// Role identifies the author of a turn.
type Role string

const (
	RoleUser Role = "user"
	RoleAI   Role = "ai"
)

// Turn is a single message in a transcript.
type Turn struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// Empty-state messages shown instead of a stored transcript.
const (
	NewConversationText = "This is a new conversation. Paste a YouTube link or upload a file to summarize."
	NoSelectionText     = "Start by processing a YouTube link or uploading a document."
)

// UserTurn and AITurn are shorthands for building turns.
func UserTurn(text string) Turn { return Turn{Role: RoleUser, Text: text} }
func AITurn(text string) Turn   { return Turn{Role: RoleAI, Text: text} }

// Store reads and writes transcripts keyed by item id.
type Store struct {
	kv     storage.Store
	logger *zap.Logger

	// serializes read-modify-write cycles
	mu sync.Mutex
}

// NewStore creates a conversation store over kv.
func NewStore(kv storage.Store, logger *zap.Logger) *Store {
	return &Store{kv: kv, logger: logging.OrNop(logger)}
}

// Load returns the transcript for id. With no stored transcript it returns
// a single greeting turn; with an empty id, a different one prompting the
// user to pick or create an item.
func (s *Store) Load(ctx context.Context, id string) []Turn {
	if id == "" {
		return []Turn{AITurn(NoSelectionText)}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	turns, found, err := s.read(ctx, id)
	if err != nil {
		return []Turn{AITurn(NoSelectionText)}
	}
	if !found {
		return []Turn{AITurn(NewConversationText)}
	}
	return turns
}

// Stored returns only what has been persisted for id, without defaults.
func (s *Store) Stored(ctx context.Context, id string) []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()

	turns, _, _ := s.read(ctx, id)
	if turns == nil {
		return []Turn{}
	}
	return turns
}

// Append adds turns to the end of id's transcript in one write.
func (s *Store) Append(ctx context.Context, id string, turns ...Turn) {
	if len(turns) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, _, _ := s.read(ctx, id)
	next := make([]Turn, 0, len(prev)+len(turns))
	next = append(next, prev...)
	next = append(next, turns...)
	s.write(ctx, id, next)
}

// Replace overwrites id's transcript.
func (s *Store) Replace(ctx context.Context, id string, turns []Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.write(ctx, id, turns)
}

// Delete removes id's transcript.
func (s *Store) Delete(ctx context.Context, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.kv.Remove(ctx, key(id)); err != nil {
		s.logger.Warn("failed to delete conversation", zap.String("id", id), zap.Error(err))
	}
}

// DeleteAll removes every stored transcript.
func (s *Store) DeleteAll(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys, err := s.kv.Keys(ctx, keyPrefix)
	if err != nil {
		s.logger.Warn("failed to list conversations", zap.Error(err))
		return
	}
	for _, k := range keys {
		if err := s.kv.Remove(ctx, k); err != nil {
			s.logger.Warn("failed to delete conversation", zap.String("key", k), zap.Error(err))
		}
	}
}

// read must be called with mu held.
func (s *Store) read(ctx context.Context, id string) ([]Turn, bool, error) {
	raw, err := s.kv.Get(ctx, key(id))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		s.logger.Warn("failed to read conversation", zap.String("id", id), zap.Error(err))
		return nil, false, err
	}

	var turns []Turn
	if err := json.Unmarshal([]byte(raw), &turns); err != nil {
		s.logger.Warn("unreadable conversation", zap.String("id", id), zap.Error(err))
		return nil, false, err
	}
	if turns == nil {
		turns = []Turn{}
	}
	return turns, true, nil
}

// write must be called with mu held.
func (s *Store) write(ctx context.Context, id string, turns []Turn) {
	if turns == nil {
		turns = []Turn{}
	}
	data, err := json.Marshal(turns)
	if err != nil {
		s.logger.Error("failed to encode conversation", zap.String("id", id), zap.Error(err))
		return
	}
	if err := s.kv.Set(ctx, key(id), string(data)); err != nil {
		s.logger.Warn("failed to save conversation", zap.String("id", id), zap.Error(err))
	}
}

func key(id string) string {
	return keyPrefix + id
}
