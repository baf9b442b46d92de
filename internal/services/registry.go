package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

const resetDateLayout = "2006-01-02"

type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username,omitempty"`
	FirstName string    `json:"firstName,omitempty"`
	LastName  string    `json:"lastName,omitempty"`
	FirstSeen time.Time `json:"firstSeen"`
}

// DisplayName prefers @username, then the full name, then the id.
func (u User) DisplayName() string {
	if u.Username != "" {
		return "@" + u.Username
	}
	name := u.FirstName
	if u.LastName != "" {
		if name != "" {
			name += " "
		}
		name += u.LastName
	}
	if name != "" {
		return name
	}
	return fmt.Sprintf("%d", u.ID)
}

type Names struct {
	Username  string
	FirstName string
	LastName  string
}

type Classification int

const (
	Returning Classification = iota
	Newcomer
	Privileged
)

func (c Classification) String() string {
	switch c {
	case Newcomer:
		return "newcomer"
	case Privileged:
		return "privileged"
	default:
		return "returning"
	}
}

type Stats struct {
	TotalUsers     int    `json:"totalUsers"`
	NewUsersToday  int    `json:"newUsersToday"`
	TotalDownloads int    `json:"totalDownloads"`
	LastResetDate  string `json:"lastResetDate"`
}

type registryFile struct {
	Users          []User `json:"users"`
	NewUsersToday  int    `json:"newUsersToday"`
	LastResetDate  string `json:"lastResetDate"`
	TotalDownloads int    `json:"totalDownloads"`
}

// Registry is the persisted list of everyone who has talked to the bot.
// The whole file is rewritten on every mutation.
type Registry struct {
	mu      sync.Mutex
	path    string
	adminID int64
	data    registryFile
	index   map[int64]int
	now     func() time.Time
	log     *zap.Logger
}

type RegistryOption func(*Registry)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) RegistryOption {
	return func(r *Registry) { r.now = now }
}

// OpenRegistry loads path. A missing file is an empty registry; a file
// that does not parse is an error so it is never overwritten.
func OpenRegistry(path string, adminID int64, log *zap.Logger, opts ...RegistryOption) (*Registry, error) {
	r := &Registry{
		path:    path,
		adminID: adminID,
		index:   make(map[int64]int),
		now:     time.Now,
		log:     log.Named("registry"),
	}
	for _, opt := range opts {
		opt(r)
	}

	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		r.data.LastResetDate = r.today()
	case err != nil:
		return nil, fmt.Errorf("read users file: %w", err)
	default:
		if err := json.Unmarshal(raw, &r.data); err != nil {
			return nil, fmt.Errorf("parse users file %s: %w", path, err)
		}
	}
	for i, u := range r.data.Users {
		r.index[u.ID] = i
	}
	r.log.Info("User registry loaded",
		zap.String("path", path),
		zap.Int("users", len(r.data.Users)),
		zap.Int("downloads", r.data.TotalDownloads))
	return r, nil
}

func (r *Registry) today() string {
	return r.now().Format(resetDateLayout)
}

// resetIfNewDay must run before the daily counter is read or incremented.
func (r *Registry) resetIfNewDay() bool {
	today := r.today()
	if r.data.LastResetDate == today {
		return false
	}
	r.data.NewUsersToday = 0
	r.data.LastResetDate = today
	return true
}

// RecordInteraction adds id on first contact and refreshes its names
// otherwise. Empty names never overwrite known ones. The configured admin
// is always Privileged.
func (r *Registry) RecordInteraction(id int64, names Names) (Classification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.resetIfNewDay()

	class := Returning
	if i, ok := r.index[id]; ok {
		u := &r.data.Users[i]
		if names.Username != "" {
			u.Username = names.Username
		}
		if names.FirstName != "" {
			u.FirstName = names.FirstName
		}
		if names.LastName != "" {
			u.LastName = names.LastName
		}
	} else {
		r.data.Users = append(r.data.Users, User{
			ID:        id,
			Username:  names.Username,
			FirstName: names.FirstName,
			LastName:  names.LastName,
			FirstSeen: r.now().UTC(),
		})
		r.index[id] = len(r.data.Users) - 1
		r.data.NewUsersToday++
		class = Newcomer
	}
	if r.adminID != 0 && id == r.adminID {
		class = Privileged
	}
	return class, r.save()
}

func (r *Registry) IncrementDownloads() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data.TotalDownloads++
	return r.save()
}

// Stats reports the counters as of now. A stale daily counter reads as
// zero without touching the file.
func (r *Registry) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := Stats{
		TotalUsers:     len(r.data.Users),
		NewUsersToday:  r.data.NewUsersToday,
		TotalDownloads: r.data.TotalDownloads,
		LastResetDate:  r.data.LastResetDate,
	}
	if today := r.today(); s.LastResetDate != today {
		s.NewUsersToday = 0
		s.LastResetDate = today
	}
	return s
}

// RecentUsers returns up to n users, most recently added first.
func (r *Registry) RecentUsers(n int) []User {
	r.mu.Lock()
	defer r.mu.Unlock()
	n = max(0, min(n, len(r.data.Users)))
	out := make([]User, 0, n)
	for i := len(r.data.Users) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, r.data.Users[i])
	}
	return out
}

func (r *Registry) save() error {
	data, err := json.MarshalIndent(r.data, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(r.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create users dir: %w", err)
		}
	}
	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write users file: %w", err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("replace users file: %w", err)
	}
	return nil
}
