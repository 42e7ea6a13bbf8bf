package storage

import (
	"log/slog"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/lehigh-university-libraries/flipbook/internal/session"
)

const (
	// DefaultTTL is how long an untouched session is kept
	DefaultTTL = 30 * time.Minute
	// DefaultCleanupInterval is how often expired sessions are collected
	DefaultCleanupInterval = 5 * time.Minute
)

// SessionStore holds live viewer sessions. Sessions expire after the TTL
// without access; expiry and deletion close the session.
type SessionStore struct {
	sessions *cache.Cache
	ttl      time.Duration
}

func New(ttl, cleanupInterval time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if cleanupInterval <= 0 {
		cleanupInterval = DefaultCleanupInterval
	}
	c := cache.New(ttl, cleanupInterval)
	c.OnEvicted(func(id string, v interface{}) {
		s, ok := v.(*session.Session)
		if !ok || s == nil {
			return
		}
		slog.Debug("Session evicted", "session", id)
		s.Close()
	})
	return &SessionStore{sessions: c, ttl: ttl}
}

// Get returns the session and extends its lifetime
func (s *SessionStore) Get(sessionID string) (*session.Session, bool) {
	v, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, false
	}
	sess, _ := v.(*session.Session)
	if sess == nil {
		return nil, false
	}
	s.sessions.Set(sessionID, sess, cache.DefaultExpiration)
	return sess, true
}

func (s *SessionStore) Set(sessionID string, sess *session.Session) {
	s.sessions.Set(sessionID, sess, cache.DefaultExpiration)
}

func (s *SessionStore) GetAll() map[string]*session.Session {
	items := s.sessions.Items()
	result := make(map[string]*session.Session, len(items))
	for k, item := range items {
		if sess, ok := item.Object.(*session.Session); ok {
			result[k] = sess
		}
	}
	return result
}

// Delete removes the session and closes it
func (s *SessionStore) Delete(sessionID string) {
	s.sessions.Delete(sessionID)
}

// Take removes the session without closing it so the caller can collect
// its closing effects
func (s *SessionStore) Take(sessionID string) (*session.Session, bool) {
	v, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, false
	}
	sess, _ := v.(*session.Session)
	if sess == nil {
		return nil, false
	}
	// Replacing the value before deleting keeps eviction from closing it
	s.sessions.Set(sessionID, (*session.Session)(nil), cache.DefaultExpiration)
	s.sessions.Delete(sessionID)
	return sess, true
}

// Len is the number of sessions, including expired ones not yet collected
func (s *SessionStore) Len() int {
	return s.sessions.ItemCount()
}

// DeleteExpired closes and drops every expired session now
func (s *SessionStore) DeleteExpired() {
	s.sessions.DeleteExpired()
}

// Flush closes every session
func (s *SessionStore) Flush() {
	for id := range s.sessions.Items() {
		s.sessions.Delete(id)
	}
}

// TTL is the idle lifetime of a session
func (s *SessionStore) TTL() time.Duration {
	return s.ttl
}
