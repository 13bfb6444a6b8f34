package ordering

import (
	"context"
	"errors"
	"testing"
)

type fakeCollectionStore struct {
	items    []Item
	reorders int
	listErr  error
	applyErr error

	applied []PositionUpdate
	bumps   int
}

func (f *fakeCollectionStore) ListSiblings(ctx context.Context, userID, parentID string) ([]Item, int, error) {
	if f.listErr != nil {
		return nil, 0, f.listErr
	}
	out := make([]Item, len(f.items))
	copy(out, f.items)
	return out, f.reorders, nil
}

func (f *fakeCollectionStore) ApplyPositions(ctx context.Context, userID, parentID string, updates []PositionUpdate) error {
	if f.applyErr != nil {
		return f.applyErr
	}
	f.applied = updates
	f.reorders = 0
	byID := make(map[string]float64, len(updates))
	for _, u := range updates {
		byID[u.ID] = u.Position
	}
	for i := range f.items {
		f.items[i].Position = byID[f.items[i].ID]
	}
	return nil
}

func (f *fakeCollectionStore) BumpReorderCount(ctx context.Context, userID, parentID string, n int) error {
	f.bumps += n
	f.reorders += n
	return nil
}

func TestResolveCollisionReassignsByRecency(t *testing.T) {
	store := &fakeCollectionStore{items: []Item{
		{ID: "A", Position: 1000, UpdatedAt: 10},
		{ID: "B", Position: 2000, UpdatedAt: 30},
		{ID: "C", Position: 1500, UpdatedAt: 20},
		{ID: "D", Position: 1500, UpdatedAt: 40},
	}}
	r := NewResolver(store, TaskStep, nil)

	if err := r.Resolve(context.Background(), "user", "col-1"); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	// Most recently modified wins the lowest slot.
	want := []PositionUpdate{
		{ID: "D", Position: 1000},
		{ID: "B", Position: 2000},
		{ID: "C", Position: 3000},
		{ID: "A", Position: 4000},
	}
	if len(store.applied) != len(want) {
		t.Fatalf("expected %d updates, got %d", len(want), len(store.applied))
	}
	for i, u := range store.applied {
		if u != want[i] {
			t.Fatalf("update %d: expected %+v, got %+v", i, want[i], u)
		}
	}
	if store.bumps != 0 {
		t.Fatalf("expected no counter bump after rewrite, got %d", store.bumps)
	}
}

func TestResolveNoCollisionBumpsCounter(t *testing.T) {
	store := &fakeCollectionStore{
		items: []Item{
			{ID: "A", Position: 1000, UpdatedAt: 1},
			{ID: "B", Position: 1500, UpdatedAt: 2},
		},
		reorders: 3,
	}
	r := NewResolver(store, TaskStep, nil)

	if err := r.Resolve(context.Background(), "user", "col-1"); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if store.applied != nil {
		t.Fatalf("expected no rewrite, got %v", store.applied)
	}
	if store.bumps != 1 {
		t.Fatalf("expected a single counter bump, got %d", store.bumps)
	}
}

func TestResolveCounterThresholdForcesRewrite(t *testing.T) {
	store := &fakeCollectionStore{
		items: []Item{
			{ID: "A", Position: 1000.25, UpdatedAt: 2},
			{ID: "B", Position: 1000.5, UpdatedAt: 1},
		},
		reorders: MaxReorders,
	}
	r := NewResolver(store, TaskStep, nil)

	if err := r.Resolve(context.Background(), "user", "col-1"); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if store.applied == nil {
		t.Fatal("expected a rewrite once the reorder counter hits the threshold")
	}
	if store.reorders != 0 {
		t.Fatalf("expected counter reset, got %d", store.reorders)
	}
	if store.items[0].Position != 1000 || store.items[1].Position != 2000 {
		t.Fatalf("expected renormalized positions, got %+v", store.items)
	}
}

func TestResolveIdempotent(t *testing.T) {
	store := &fakeCollectionStore{items: []Item{
		{ID: "A", Position: 500, UpdatedAt: 20},
		{ID: "B", Position: 500, UpdatedAt: 10},
		{ID: "C", Position: 2000, UpdatedAt: 30},
	}}
	r := NewResolver(store, TaskStep, nil)

	if err := r.Resolve(context.Background(), "user", "col-1"); err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	first := store.applied
	store.applied = nil

	if err := r.Resolve(context.Background(), "user", "col-1"); err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if store.applied != nil {
		t.Fatalf("expected second resolve to be a no-op, got %v", store.applied)
	}
	if store.bumps != 1 {
		t.Fatalf("expected second resolve to only bump the counter, got %d bumps", store.bumps)
	}

	positions := make(map[float64]bool)
	for _, u := range first {
		if positions[u.Position] {
			t.Fatalf("duplicate position %v after resolve", u.Position)
		}
		positions[u.Position] = true
	}
}

func TestResolvePreservesMembership(t *testing.T) {
	store := &fakeCollectionStore{items: []Item{
		{ID: "A", Position: 1, UpdatedAt: 1},
		{ID: "B", Position: 1, UpdatedAt: 2},
		{ID: "C", Position: 1, UpdatedAt: 3},
	}}
	r := NewResolver(store, CategoryStep, nil)

	if err := r.Resolve(context.Background(), "user", "project-1"); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	ids := make(map[string]bool)
	for _, u := range store.applied {
		ids[u.ID] = true
	}
	for _, want := range []string{"A", "B", "C"} {
		if !ids[want] {
			t.Fatalf("entity %s missing from rewrite", want)
		}
	}
	if len(ids) != 3 {
		t.Fatalf("expected exactly 3 entities, got %d", len(ids))
	}
}

func TestResolveTieBreaksDeterministically(t *testing.T) {
	store := &fakeCollectionStore{items: []Item{
		{ID: "B", Position: 100, UpdatedAt: 5},
		{ID: "A", Position: 100, UpdatedAt: 5},
	}}
	r := NewResolver(store, TaskStep, nil)

	if err := r.Resolve(context.Background(), "user", "col-1"); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if store.applied[0].ID != "A" || store.applied[1].ID != "B" {
		t.Fatalf("expected id tie-break A then B, got %+v", store.applied)
	}
}

func TestResolveEmptyCollectionNoWrites(t *testing.T) {
	store := &fakeCollectionStore{}
	r := NewResolver(store, TaskStep, nil)

	if err := r.Resolve(context.Background(), "user", "col-1"); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if store.applied != nil || store.bumps != 0 {
		t.Fatal("expected no writes for an empty collection")
	}
}

func TestResolveBatchFailureLeavesStateUntouched(t *testing.T) {
	boom := errors.New("table transaction failed")
	store := &fakeCollectionStore{
		items: []Item{
			{ID: "A", Position: 500, UpdatedAt: 2},
			{ID: "B", Position: 500, UpdatedAt: 1},
		},
		applyErr: boom,
	}
	r := NewResolver(store, TaskStep, nil)

	err := r.Resolve(context.Background(), "user", "col-1")
	if !errors.Is(err, boom) {
		t.Fatalf("expected batch error, got %v", err)
	}
	if store.items[0].Position != 500 || store.items[1].Position != 500 {
		t.Fatalf("expected stale positions to remain, got %+v", store.items)
	}
}

func TestResolveListFailurePropagates(t *testing.T) {
	boom := errors.New("list failed")
	store := &fakeCollectionStore{listErr: boom}
	r := NewResolver(store, TaskStep, nil)

	if err := r.Resolve(context.Background(), "user", "col-1"); !errors.Is(err, boom) {
		t.Fatalf("expected list error, got %v", err)
	}
}
