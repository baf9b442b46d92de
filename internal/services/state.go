package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/coah80/yoinkgram/internal/config"
)

type PendingKind int

const (
	// AwaitLink follows /download: the next message should be a link.
	AwaitLink PendingKind = iota + 1
	// AwaitFormat follows a YouTube link: the next message picks a choice.
	AwaitFormat
)

func (k PendingKind) String() string {
	switch k {
	case AwaitLink:
		return "await-link"
	case AwaitFormat:
		return "await-format"
	default:
		return "none"
	}
}

type FormatChoice struct {
	Label          string
	FormatSelector string
	ExtractAudio   bool
}

type Pending struct {
	Kind      PendingKind
	URL       string
	Choices   map[string]FormatChoice
	ExpiresAt time.Time
}

// Choose looks text up by key ("1") or by label ("audio").
func (p Pending) Choose(text string) (FormatChoice, bool) {
	text = strings.TrimSpace(text)
	if c, ok := p.Choices[text]; ok {
		return c, true
	}
	for _, c := range p.Choices {
		if strings.EqualFold(c.Label, text) {
			return c, true
		}
	}
	return FormatChoice{}, false
}

// YouTubeChoices is the menu offered after a YouTube link.
func YouTubeChoices() map[string]FormatChoice {
	return map[string]FormatChoice{
		"1": {Label: "video", FormatSelector: config.VideoFormatSelector},
		"2": {Label: "audio", ExtractAudio: true},
	}
}

// SessionStore holds at most one pending request per user. Entries expire
// after the TTL and are lost on restart.
type SessionStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[int64]Pending
	now     func() time.Time
	log     *zap.Logger
}

func NewSessionStore(ttl time.Duration, log *zap.Logger) *SessionStore {
	return &SessionStore{
		ttl:     ttl,
		entries: make(map[int64]Pending),
		now:     time.Now,
		log:     log.Named("sessions"),
	}
}

// Set replaces any pending entry for userID.
func (s *SessionStore) Set(userID int64, p Pending) {
	s.mu.Lock()
	p.ExpiresAt = s.now().Add(s.ttl)
	s.entries[userID] = p
	s.mu.Unlock()
}

func (s *SessionStore) Get(userID int64) (Pending, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookup(userID)
}

// Take returns the pending entry for userID and removes it.
func (s *SessionStore) Take(userID int64) (Pending, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.lookup(userID)
	delete(s.entries, userID)
	return p, ok
}

func (s *SessionStore) Delete(userID int64) {
	s.mu.Lock()
	delete(s.entries, userID)
	s.mu.Unlock()
}

func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *SessionStore) lookup(userID int64) (Pending, bool) {
	p, ok := s.entries[userID]
	if !ok {
		return Pending{}, false
	}
	if !s.now().Before(p.ExpiresAt) {
		delete(s.entries, userID)
		return Pending{}, false
	}
	return p, true
}

// Sweep drops expired entries and returns how many were removed.
func (s *SessionStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	removed := 0
	for id, p := range s.entries {
		if !now.Before(p.ExpiresAt) {
			delete(s.entries, id)
			removed++
		}
	}
	return removed
}

// Run sweeps periodically until ctx is done.
func (s *SessionStore) Run(ctx context.Context) {
	interval := s.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				s.log.Debug("Expired pending requests", zap.Int("count", n))
			}
		}
	}
}
