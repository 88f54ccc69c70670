package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/darmiel/lastword/internal/core"
)

func init() {
	Register("memory", func(*DriverConfig) (Driver, error) {
		return NewMemoryStore(), nil
	})
}

var _ Driver = (*MemoryStore)(nil)

// MemoryStore keeps instances in process memory. Everything is lost on restart.
type MemoryStore struct {
	mu        sync.RWMutex
	instances map[string]*core.Instance
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		instances: make(map[string]*core.Instance),
	}
}

func (s *MemoryStore) Name() string { return "memory" }

func (s *MemoryStore) Init(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) Create(_ context.Context, inst *core.Instance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.instances[inst.ID]; ok {
		return fmt.Errorf("instance '%s' already exists", inst.ID)
	}
	s.instances[inst.ID] = inst.Clone()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*core.Instance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inst, ok := s.instances[id]
	if !ok {
		return nil, core.ErrInstanceNotFound
	}
	return inst.Clone(), nil
}

func (s *MemoryStore) CompareAndSwap(_ context.Context, inst *core.Instance, expected int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.instances[inst.ID]
	if !ok {
		return core.ErrInstanceNotFound
	}
	if stored.Version != expected {
		return core.ErrConflict
	}
	inst.Version = expected + 1
	inst.CreatedAt = stored.CreatedAt
	s.instances[inst.ID] = inst.Clone()
	return nil
}

func (s *MemoryStore) ListDue(_ context.Context, now time.Time, limit int) ([]*core.Instance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	due := make([]*core.Instance, 0)
	for _, inst := range s.instances {
		if inst.Due(now) {
			due = append(due, inst.Clone())
		}
	}
	sort.Slice(due, func(i, j int) bool {
		return due[i].ResumeAt.Before(due[j].ResumeAt)
	})
	return truncate(due, limit), nil
}

func (s *MemoryStore) List(_ context.Context, filter core.InstanceFilter) ([]*core.Instance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]*core.Instance, 0)
	for _, inst := range s.instances {
		if matches(inst, filter) {
			list = append(list, inst.Clone())
		}
	}
	sortNewestFirst(list)
	return truncate(list, filter.Limit), nil
}

func (s *MemoryStore) FindActive(_ context.Context, identity string) (*core.Instance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var found *core.Instance
	for _, inst := range s.instances {
		if inst.Identity != identity || inst.State.IsTerminal() {
			continue
		}
		if found == nil || inst.CreatedAt.After(found.CreatedAt) {
			found = inst
		}
	}
	if found == nil {
		return nil, core.ErrInstanceNotFound
	}
	return found.Clone(), nil
}

func matches(inst *core.Instance, filter core.InstanceFilter) bool {
	if filter.Identity != "" && inst.Identity != filter.Identity {
		return false
	}
	if len(filter.States) == 0 {
		return true
	}
	for _, st := range filter.States {
		if inst.State == st {
			return true
		}
	}
	return false
}

func sortNewestFirst(list []*core.Instance) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].ID > list[j].ID
		}
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
}

func truncate(list []*core.Instance, limit int) []*core.Instance {
	if limit > 0 && len(list) > limit {
		return list[:limit]
	}
	return list
}
