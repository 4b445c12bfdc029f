package chat

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zhouzirui/moodchat/backend/internal/model/chat"
	"github.com/zhouzirui/moodchat/backend/internal/model/emotion"
)

// session is one user's state. Its fields are guarded by mu.
type session struct {
	mu      sync.Mutex
	counts  emotion.Counts
	turns   []chat.Turn
	removed bool
}

// MemoryStore keeps sessions in process memory. The map lock is held only to
// find, create or drop a session; mutations take the per-user lock alone, so
// different users never wait on each other.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*session

	now   func() time.Time
	newID func() string
}

var _ Store = (*MemoryStore)(nil)

// Option customises a MemoryStore.
type Option func(*MemoryStore)

// WithClock replaces time.Now for turn timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *MemoryStore) { s.now = now }
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{
		sessions: make(map[string]*session),
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) RecordEmotions(_ context.Context, user string, v emotion.Vector) error {
	s.update(user, func(sess *session) {
		sess.counts.Add(v)
	})
	return nil
}

func (s *MemoryStore) AppendTurns(_ context.Context, user, userText, botText string, now time.Time) error {
	userID, botID := s.newID(), s.newID()

	s.update(user, func(sess *session) {
		// One stamp for the pair keeps it adjacent after sorting.
		at := s.now()
		if at.Before(now) {
			at = now
		}

		sess.turns = append(sess.turns,
			chat.Turn{ID: userID, Role: chat.RoleUser, Text: userText, CreatedAt: at},
			chat.Turn{ID: botID, Role: chat.RoleBot, Text: botText, CreatedAt: at},
		)
	})
	return nil
}

func (s *MemoryStore) History(_ context.Context, user string) ([]chat.Turn, error) {
	turns := make([]chat.Turn, 0)

	sess := s.lookup(user)
	if sess == nil {
		return turns, nil
	}

	sess.mu.Lock()
	if !sess.removed {
		turns = append(turns, sess.turns...)
	}
	sess.mu.Unlock()

	chat.SortByCreatedAt(turns)
	return turns, nil
}

func (s *MemoryStore) EmotionCounts(_ context.Context, user string) (emotion.Counts, error) {
	sess := s.lookup(user)
	if sess == nil {
		return emotion.Counts{}, nil
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.removed {
		return emotion.Counts{}, nil
	}
	return sess.counts, nil
}

func (s *MemoryStore) DeleteUser(_ context.Context, user string) error {
	s.mu.Lock()
	sess, ok := s.sessions[user]
	delete(s.sessions, user)
	s.mu.Unlock()

	if !ok {
		return nil
	}

	// Writers still holding this pointer see removed and retry on a fresh session.
	sess.mu.Lock()
	sess.removed = true
	sess.counts = emotion.Counts{}
	sess.turns = nil
	sess.mu.Unlock()
	return nil
}

// Len reports how many users currently have state.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *MemoryStore) lookup(user string) *session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[user]
}

func (s *MemoryStore) getOrCreate(user string) *session {
	if sess := s.lookup(user); sess != nil {
		return sess
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[user]; ok {
		return sess
	}
	sess := &session{}
	s.sessions[user] = sess
	return sess
}

// update runs fn while holding the user's lock, creating the session if needed.
func (s *MemoryStore) update(user string, fn func(*session)) {
	for {
		sess := s.getOrCreate(user)
		sess.mu.Lock()
		if sess.removed {
			sess.mu.Unlock()
			continue
		}
		fn(sess)
		sess.mu.Unlock()
		return
	}
}
