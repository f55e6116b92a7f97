package repositories

import (
	"context"
	"sync"
	"time"
)

// MemoryPresenceStore keeps presence in process-local maps. Suitable for a
// single-instance deployment or tests; state is lost on restart and invisible
// to other instances.
type MemoryPresenceStore struct {
	mu          sync.RWMutex
	connections map[string]map[string]struct{}
	lastSeen    map[string]time.Time
}

func NewMemoryPresenceStore() *MemoryPresenceStore {
	return &MemoryPresenceStore{
		connections: make(map[string]map[string]struct{}),
		lastSeen:    make(map[string]time.Time),
	}
}

func (s *MemoryPresenceStore) AddConnection(ctx context.Context, userID, connectionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.connections[userID]
	if !ok {
		set = make(map[string]struct{})
		s.connections[userID] = set
	}
	wasOffline := len(set) == 0
	set[connectionID] = struct{}{}
	s.lastSeen[userID] = time.Now()

	return wasOffline, nil
}

func (s *MemoryPresenceStore) RemoveConnection(ctx context.Context, userID, connectionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.connections[userID]
	if !ok {
		return false, nil
	}
	if _, ok := set[connectionID]; !ok {
		return false, nil
	}

	delete(set, connectionID)
	if len(set) == 0 {
		delete(s.connections, userID)
		return true, nil
	}
	return false, nil
}

func (s *MemoryPresenceStore) IsOnline(ctx context.Context, userID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	set, ok := s.connections[userID]
	return ok && len(set) > 0, nil
}

func (s *MemoryPresenceStore) ListOnline(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]string, 0, len(s.connections))
	for userID := range s.connections {
		users = append(users, userID)
	}
	return users, nil
}

func (s *MemoryPresenceStore) CountOnline(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.connections), nil
}

func (s *MemoryPresenceStore) ConnectionsFor(ctx context.Context, userID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	set := s.connections[userID]
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *MemoryPresenceStore) TouchLastSeen(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastSeen[userID] = time.Now()
	return nil
}

func (s *MemoryPresenceStore) LastSeenAt(ctx context.Context, userID string) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.lastSeen[userID], nil
}

func (s *MemoryPresenceStore) PurgeInactive(ctx context.Context, maxIdle time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-maxIdle)
	removed := 0
	for userID := range s.connections {
		seen, ok := s.lastSeen[userID]
		if ok && seen.Before(cutoff) {
			delete(s.connections, userID)
			delete(s.lastSeen, userID)
			removed++
		}
	}
	return removed, nil
}

func (s *MemoryPresenceStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.connections = make(map[string]map[string]struct{})
	s.lastSeen = make(map[string]time.Time)
	return nil
}
