package gameserver

import (
	"context"
	"log/slog"
	"maps"
	"strings"
	"sync"
	"time"

	"github.com/udisondev/coopsim/internal/model"
)

// ProfileStore loads and saves player profiles.
// Load returns nil, nil when the player has no profile yet.
// *db.ProfileRepository implements it.
type ProfileStore interface {
	Load(ctx context.Context, username string) (*model.Profile, error)
	Save(ctx context.Context, p model.Profile) error
}

// MemoryProfileStore keeps profiles in process memory. Used when the
// database is disabled and in tests.
type MemoryProfileStore struct {
	mu       sync.RWMutex
	profiles map[string]model.Profile
}

// NewMemoryProfileStore creates an empty store.
func NewMemoryProfileStore() *MemoryProfileStore {
	return &MemoryProfileStore{profiles: make(map[string]model.Profile)}
}

// Load returns a copy of the stored profile.
func (s *MemoryProfileStore) Load(_ context.Context, username string) (*model.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[strings.ToLower(username)]
	if !ok {
		return nil, nil
	}
	p.Items = maps.Clone(p.Items)
	p.Equipment = maps.Clone(p.Equipment)
	return &p, nil
}

// Save stores p unless a newer profile is already stored.
func (s *MemoryProfileStore) Save(_ context.Context, p model.Profile) error {
	key := strings.ToLower(p.Username)
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.profiles[key]; ok && cur.UpdatedAt.After(p.UpdatedAt) {
		return nil
	}
	p.Items = maps.Clone(p.Items)
	p.Equipment = maps.Clone(p.Equipment)
	s.profiles[key] = p
	return nil
}

// Len returns the number of stored profiles.
func (s *MemoryProfileStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.profiles)
}

const (
	defaultSaveQueueSize = 1024
	saveTimeout          = 3 * time.Second
)

// ProfileSaver writes profiles off the tick path. Enqueue never blocks;
// Run drains the queue into the store.
type ProfileSaver struct {
	store ProfileStore
	ch    chan model.Profile
}

// NewProfileSaver creates a saver with room for queueSize pending profiles.
func NewProfileSaver(store ProfileStore, queueSize int) *ProfileSaver {
	if queueSize <= 0 {
		queueSize = defaultSaveQueueSize
	}
	return &ProfileSaver{store: store, ch: make(chan model.Profile, queueSize)}
}

// Enqueue schedules p for saving. Returns false if the queue is full.
func (s *ProfileSaver) Enqueue(p model.Profile) bool {
	select {
	case s.ch <- p:
		return true
	default:
		slog.Warn("profile save queue full, dropping profile", "username", p.Username)
		return false
	}
}

// Run saves queued profiles until ctx is cancelled, then flushes what is
// still queued.
func (s *ProfileSaver) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			s.flush()
			return nil
		case p := <-s.ch:
			s.save(ctx, p)
		}
	}
}

// SaveAll saves profiles synchronously. Used on shutdown.
func (s *ProfileSaver) SaveAll(ctx context.Context, profiles []model.Profile) int {
	saved := 0
	for _, p := range profiles {
		if s.save(ctx, p) {
			saved++
		}
	}
	return saved
}

func (s *ProfileSaver) flush() {
	for {
		select {
		case p := <-s.ch:
			s.save(context.Background(), p)
		default:
			return
		}
	}
}

func (s *ProfileSaver) save(ctx context.Context, p model.Profile) bool {
	saveCtx, cancel := context.WithTimeout(ctx, saveTimeout)
	defer cancel()
	if err := s.store.Save(saveCtx, p); err != nil {
		slog.Error("save profile", "username", p.Username, "error", err)
		return false
	}
	slog.Debug("profile saved", "username", p.Username, "instance", p.Instance)
	return true
}
