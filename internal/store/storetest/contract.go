// Package storetest holds behavior checks every store driver must pass.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/darmiel/lastword/internal/core"
)

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func instance(id, identity string, state core.State, resumeAt time.Time, created time.Duration) *core.Instance {
	return &core.Instance{
		ID:        id,
		Identity:  identity,
		State:     state,
		ResumeAt:  resumeAt,
		Version:   1,
		CreatedAt: base.Add(created),
		UpdatedAt: base.Add(created),
	}
}

// Run exercises s against the InstanceStore contract. s must be empty.
func Run(t *testing.T, s core.InstanceStore) {
	t.Helper()
	ctx := context.Background()

	t.Run("get missing", func(t *testing.T) {
		if _, err := s.Get(ctx, "missing"); !errors.Is(err, core.ErrInstanceNotFound) {
			t.Fatalf("expected ErrInstanceNotFound, got %v", err)
		}
	})

	t.Run("create and get", func(t *testing.T) {
		in := instance("a", "alice@example.com", core.StateCreated, base, 0)
		if err := s.Create(ctx, in); err != nil {
			t.Fatalf("create: %v", err)
		}
		got, err := s.Get(ctx, "a")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.Identity != in.Identity || got.State != core.StateCreated || got.Version != 1 {
			t.Errorf("unexpected instance: %+v", got)
		}
		if !got.ResumeAt.Equal(base) {
			t.Errorf("expected resume_at %v, got %v", base, got.ResumeAt)
		}
	})

	t.Run("compare and swap", func(t *testing.T) {
		got, err := s.Get(ctx, "a")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		got.State = core.StateNotifying
		if err := s.CompareAndSwap(ctx, got, 1); err != nil {
			t.Fatalf("cas: %v", err)
		}
		if got.Version != 2 {
			t.Errorf("expected version 2 after swap, got %d", got.Version)
		}

		stale := got.Clone()
		stale.State = core.StateCancelled
		if err := s.CompareAndSwap(ctx, stale, 1); !errors.Is(err, core.ErrConflict) {
			t.Fatalf("expected ErrConflict for stale version, got %v", err)
		}

		after, _ := s.Get(ctx, "a")
		if after.State != core.StateNotifying || after.Version != 2 {
			t.Errorf("stale swap must not be applied, got %s v%d", after.State, after.Version)
		}

		ghost := instance("ghost", "x@example.com", core.StateCreated, base, 0)
		if err := s.CompareAndSwap(ctx, ghost, 1); !errors.Is(err, core.ErrInstanceNotFound) {
			t.Errorf("expected ErrInstanceNotFound for unknown instance, got %v", err)
		}
	})

	t.Run("list due", func(t *testing.T) {
		for _, in := range []*core.Instance{
			instance("b", "bob@example.com", core.StateSleeping, base.Add(2*time.Hour), time.Minute),
			instance("c", "carol@example.com", core.StateReleasing, base.Add(-time.Hour), 2*time.Minute),
			instance("d", "dave@example.com", core.StateCompleted, time.Time{}, 3*time.Minute),
		} {
			if err := s.Create(ctx, in); err != nil {
				t.Fatalf("create %s: %v", in.ID, err)
			}
		}

		due, err := s.ListDue(ctx, base.Add(time.Minute), 10)
		if err != nil {
			t.Fatalf("list due: %v", err)
		}
		ids := idsOf(due)
		if len(ids) != 2 || ids[0] != "c" || ids[1] != "a" {
			t.Errorf("expected due [c a], got %v", ids)
		}

		limited, _ := s.ListDue(ctx, base.Add(3*time.Hour), 1)
		if len(limited) != 1 || limited[0].ID != "c" {
			t.Errorf("expected limit to keep the oldest due instance, got %v", idsOf(limited))
		}
	})

	t.Run("list with filter", func(t *testing.T) {
		all, err := s.List(ctx, core.InstanceFilter{})
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if ids := idsOf(all); len(ids) != 4 || ids[0] != "d" {
			t.Errorf("expected newest first, got %v", ids)
		}

		terminal, _ := s.List(ctx, core.InstanceFilter{States: []core.State{core.StateCompleted}})
		if ids := idsOf(terminal); len(ids) != 1 || ids[0] != "d" {
			t.Errorf("expected [d], got %v", ids)
		}

		bob, _ := s.List(ctx, core.InstanceFilter{Identity: "bob@example.com"})
		if ids := idsOf(bob); len(ids) != 1 || ids[0] != "b" {
			t.Errorf("expected [b], got %v", ids)
		}
	})

	t.Run("find active", func(t *testing.T) {
		got, err := s.FindActive(ctx, "bob@example.com")
		if err != nil || got.ID != "b" {
			t.Fatalf("expected active instance b, got %v, %v", got, err)
		}
		if _, err := s.FindActive(ctx, "dave@example.com"); !errors.Is(err, core.ErrInstanceNotFound) {
			t.Errorf("terminal instance must not be active, got %v", err)
		}
	})
}

func idsOf(list []*core.Instance) []string {
	ids := make([]string, 0, len(list))
	for _, inst := range list {
		ids = append(ids, inst.ID)
	}
	return ids
}
