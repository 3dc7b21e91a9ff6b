package service

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/vanshika/tunetraits/internal/domain"
)

// Stage names one collection step of a session.
type Stage string

const (
	StageDemographics Stage = "demographics"
	StageSurvey       Stage = "survey"
	StageStreaming    Stage = "streaming"
)

// ErrSessionNotFound is returned for unknown or expired sessions.
var ErrSessionNotFound = errors.New("session not found")

// Session is the per-respondent context carried through the collection flow.
// It is safe for concurrent use.
type Session struct {
	id domain.Identity

	mu         sync.Mutex
	completed  map[Stage]time.Time
	credential *domain.StreamingCredential
	lastSeen   time.Time
}

// NewSession starts a session for id.
func NewSession(id domain.Identity, now time.Time) *Session {
	return &Session{id: id, completed: map[Stage]time.Time{}, lastSeen: now}
}

// Identity returns the anonymous identity every section is stored under.
func (s *Session) Identity() domain.Identity {
	return s.id
}

// MarkCompleted records that stage succeeded at least once.
func (s *Session) MarkCompleted(stage Stage, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completed[stage] = at
}

// Completed reports whether stage has succeeded in this session.
func (s *Session) Completed(stage Stage) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.completed[stage]
	return ok
}

// CompletedStages lists completed stages in name order.
func (s *Session) CompletedStages() []Stage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Stage, 0, len(s.completed))
	for stage := range s.completed {
		out = append(out, stage)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// SetCredential caches the streaming credential for later collections.
func (s *Session) SetCredential(cred domain.StreamingCredential) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.credential = &cred
}

// Credential returns the cached streaming credential, if any.
func (s *Session) Credential() (domain.StreamingCredential, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.credential == nil {
		return domain.StreamingCredential{}, false
	}
	return *s.credential, true
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastSeen)
}

// Sessions tracks live sessions. Sessions idle for longer than the TTL are
// dropped. When resumable, an identity the registry does not know is adopted
// as a fresh session, so a client holding its identity can keep writing to the
// same record after a restart.
type Sessions struct {
	mu        sync.Mutex
	sessions  map[domain.Identity]*Session
	ttl       time.Duration
	resumable bool
	nowFn     func() time.Time
}

// NewSessions creates a registry. A ttl <= 0 disables expiry.
func NewSessions(ttl time.Duration, resumable bool) *Sessions {
	return &Sessions{
		sessions:  map[domain.Identity]*Session{},
		ttl:       ttl,
		resumable: resumable,
		nowFn:     time.Now,
	}
}

// WithClock overrides the time provider (used primarily in tests).
func (r *Sessions) WithClock(nowFn func() time.Time) *Sessions {
	if nowFn != nil {
		r.nowFn = nowFn
	}
	return r
}

// Create starts a session under a freshly generated identity.
func (r *Sessions) Create() *Session {
	now := r.nowFn()
	s := NewSession(domain.NewIdentity(), now)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.id] = s
	return s
}

// Resolve returns the live session for id, adopting an unknown id when the
// registry is resumable.
func (r *Sessions) Resolve(id domain.Identity) (*Session, error) {
	return r.get(id, r.resumable)
}

// Lookup returns the live session for id. Unlike Resolve it never creates one.
func (r *Sessions) Lookup(id domain.Identity) (*Session, error) {
	return r.get(id, false)
}

func (r *Sessions) get(id domain.Identity, adopt bool) (*Session, error) {
	now := r.nowFn()

	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if ok && r.expired(s, now) {
		delete(r.sessions, id)
		ok = false
	}
	if !ok {
		if !adopt {
			return nil, ErrSessionNotFound
		}
		s = NewSession(id, now)
		r.sessions[id] = s
	}
	s.touch(now)
	return s, nil
}

// Sweep drops expired sessions and returns how many were removed.
func (r *Sessions) Sweep() int {
	now := r.nowFn()

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, s := range r.sessions {
		if r.expired(s, now) {
			delete(r.sessions, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked sessions.
func (r *Sessions) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (r *Sessions) expired(s *Session, now time.Time) bool {
	return r.ttl > 0 && s.idleSince(now) > r.ttl
}
