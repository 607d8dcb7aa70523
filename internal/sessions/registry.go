// Package sessions tracks the conversational agent sessions created by uploads
// and example replays.
package sessions

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
)

var (
	// ErrNotInitialized is returned when no session has been created yet.
	ErrNotInitialized = errors.New("session not initialized")
	// ErrUnknownSession is returned for ids that were never issued or were replaced.
	ErrUnknownSession = errors.New("unknown session")
)

// Invoker runs one agent turn over a full message history.
type Invoker interface {
	Invoke(ctx context.Context, msgs []*schema.Message) (*schema.Message, error)
}

// Session is one conversational agent bound to an identifier.
type Session struct {
	ID        string
	Objective string
	CreatedAt time.Time
	Agent     Invoker
}

// NewID returns a fresh session identifier.
func NewID() string {
	return uuid.New().String()
}

// Registry holds the current session. Registering a new session replaces
// and forgets the previous one.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	current  string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Replace makes s the current session and returns the session it evicted, if any.
func (r *Registry) Replace(s *Session) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	var evicted *Session
	if r.current != "" {
		evicted = r.sessions[r.current]
		delete(r.sessions, r.current)
	}
	r.sessions[s.ID] = s
	r.current = s.ID
	return evicted
}

// Current returns the current session.
func (r *Registry) Current() (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.current == "" {
		return nil, ErrNotInitialized
	}
	return r.sessions[r.current], nil
}

// Get returns the session with id. An empty id means the current session.
func (r *Registry) Get(id string) (*Session, error) {
	if id == "" {
		return r.Current()
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.current == "" {
		return nil, ErrNotInitialized
	}
	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrUnknownSession
	}
	return s, nil
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
