package storage

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/thisisjab/eventsearch/entity"
	"github.com/thisisjab/eventsearch/fault"
)

type MemoryStorageConfig struct {
	Projects []entity.Project `yaml:"projects"`
	Events   []entity.Event   `yaml:"events"`
}

// MemoryStorage serves projects and events from memory. It backs the CLI,
// tests and small deployments.
type MemoryStorage struct {
	mu       sync.RWMutex
	projects map[int64]entity.Project
	events   map[uuid.UUID]entity.Event
}

func NewMemoryStorage(cfg MemoryStorageConfig) (*MemoryStorage, error) {
	s := &MemoryStorage{
		projects: make(map[int64]entity.Project, len(cfg.Projects)),
		events:   make(map[uuid.UUID]entity.Event, len(cfg.Events)),
	}

	slugs := make(map[string]bool, len(cfg.Projects))
	for _, p := range cfg.Projects {
		if slugs[p.Slug] {
			return nil, fmt.Errorf("duplicate project slug: %s", p.Slug)
		}
		slugs[p.Slug] = true
		s.projects[p.ID] = p
	}

	for _, e := range cfg.Events {
		if _, ok := s.projects[e.ProjectID]; !ok {
			return nil, fmt.Errorf("event %s belongs to unknown project %d", e.ID, e.ProjectID)
		}
		s.events[e.ID] = e
	}

	return s, nil
}

func (s *MemoryStorage) Connect(ctx context.Context) error {
	return nil
}

func (s *MemoryStorage) Close(ctx context.Context) error {
	return nil
}

// AddEvent stores or replaces an event.
func (s *MemoryStorage) AddEvent(e entity.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events[e.ID] = e
}

func (s *MemoryStorage) FindProjects(ctx context.Context, ids []int64) ([]entity.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var projects []entity.Project
	for _, id := range ids {
		if p, ok := s.projects[id]; ok {
			projects = append(projects, p)
		}
	}

	slices.SortFunc(projects, func(a, b entity.Project) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return slices.CompactFunc(projects, func(a, b entity.Project) bool { return a.ID == b.ID }), nil
}

func (s *MemoryStorage) GetEventByID(ctx context.Context, projectID int64, eventID uuid.UUID, columns []string) (entity.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.events[eventID]
	if !ok || e.ProjectID != projectID {
		return entity.Event{}, fault.New(fault.NotFoundCode, fmt.Sprintf("event %s not found", eventID))
	}

	data := make(map[string]any, len(columns))
	for _, column := range columns {
		if v, ok := e.Data[column]; ok {
			data[column] = v
		}
	}

	return entity.Event{ID: e.ID, ProjectID: e.ProjectID, Data: data}, nil
}
