package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"sketchvault/core"
)

// memStore keeps drawing metadata in instance-scoped maps, keyed first by
// user, then by drawing ID. Used for tests and as the zero-setup default.
type memStore struct {
	mu       sync.RWMutex
	drawings map[string]map[string]*core.Drawing
}

// NewStore creates a new in-memory metadata store.
func NewStore() *memStore {
	return &memStore{
		drawings: make(map[string]map[string]*core.Drawing),
	}
}

func (s *memStore) List(ctx context.Context, userID string) ([]*core.Drawing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	userDrawings, ok := s.drawings[userID]
	if !ok {
		return []*core.Drawing{}, nil
	}

	drawings := make([]*core.Drawing, 0, len(userDrawings))
	for _, d := range userDrawings {
		copied := *d
		drawings = append(drawings, &copied)
	}
	return drawings, nil
}

func (s *memStore) Get(ctx context.Context, userID, id string) (*core.Drawing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if d, ok := s.drawings[userID][id]; ok {
		copied := *d
		return &copied, nil
	}
	return nil, fmt.Errorf("drawing %s not found", id)
}

func (s *memStore) Owner(ctx context.Context, id string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for userID, userDrawings := range s.drawings {
		if _, ok := userDrawings[id]; ok {
			return userID, nil
		}
	}
	return "", nil
}

func (s *memStore) Save(ctx context.Context, drawing *core.Drawing) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	userDrawings, ok := s.drawings[drawing.UserID]
	if !ok {
		userDrawings = make(map[string]*core.Drawing)
		s.drawings[drawing.UserID] = userDrawings
	}

	now := time.Now()
	if existing, ok := userDrawings[drawing.ID]; ok {
		drawing.CreatedAt = existing.CreatedAt
	} else {
		drawing.CreatedAt = now
	}
	drawing.UpdatedAt = now

	copied := *drawing
	userDrawings[drawing.ID] = &copied
	return nil
}

func (s *memStore) Delete(ctx context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.drawings[userID], id)
	return nil
}
