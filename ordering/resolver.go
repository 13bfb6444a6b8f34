package ordering

import (
	"context"
	"sort"

	log "github.com/sirupsen/logrus"
)

// PositionUpdate is one row of a collection-wide position rewrite.
type PositionUpdate struct {
	ID       string
	Position float64
}

// CollectionStore is the persistence port the resolver repairs collections
// through. ApplyPositions must apply the whole batch atomically and reset the
// collection's reorder counter; a partial rewrite would leave the collection
// worse than the collision it replaces.
type CollectionStore interface {
	// ListSiblings returns every member of the collection together with the
	// collection's current reorder counter.
	ListSiblings(ctx context.Context, userID, parentID string) ([]Item, int, error)
	// ApplyPositions rewrites the positions of every listed member and
	// resets the reorder counter, all-or-nothing.
	ApplyPositions(ctx context.Context, userID, parentID string, updates []PositionUpdate) error
	// BumpReorderCount adds n to the collection's reorder counter.
	BumpReorderCount(ctx context.Context, userID, parentID string, n int) error
}

// Resolver repairs a sibling collection after a position write: it reassigns
// evenly spaced positions whenever two members collide or the collection has
// absorbed enough single-row writes to threaten float precision. It is
// best-effort and idempotent; callers run it detached from the request that
// triggered the move and only log its failures.
type Resolver struct {
	store       CollectionStore
	step        float64
	maxReorders int
	logger      *log.Logger
}

// NewResolver creates a resolver writing positions spaced by step.
func NewResolver(store CollectionStore, step float64, logger *log.Logger) *Resolver {
	if store == nil {
		panic("ordering.NewResolver: store is nil")
	}
	if step <= 0 {
		panic("ordering.NewResolver: step must be positive")
	}
	return &Resolver{store: store, step: step, maxReorders: MaxReorders, logger: logger}
}

// Resolve inspects the collection identified by parentID and renormalizes it
// when needed. The collection's membership is never changed, only positions.
func (r *Resolver) Resolve(ctx context.Context, userID, parentID string) error {
	items, reorders, err := r.store.ListSiblings(ctx, userID, parentID)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}

	// Most-recently-modified first: when positions collide the entity moved
	// last keeps the slot it was aimed at and older entities are pushed
	// outward. Equal timestamps fall back to the id so the order is stable.
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].UpdatedAt != items[j].UpdatedAt {
			return items[i].UpdatedAt > items[j].UpdatedAt
		}
		return items[i].ID < items[j].ID
	})

	if !hasCollision(items) && reorders < r.maxReorders {
		return r.store.BumpReorderCount(ctx, userID, parentID, 1)
	}

	updates := make([]PositionUpdate, len(items))
	for rank, it := range items {
		updates[rank] = PositionUpdate{ID: it.ID, Position: float64(rank+1) * r.step}
	}
	if err := r.store.ApplyPositions(ctx, userID, parentID, updates); err != nil {
		return err
	}
	if r.logger != nil {
		r.logger.WithFields(log.Fields{
			"parent":   parentID,
			"members":  len(items),
			"reorders": reorders,
		}).Debug("collection positions renormalized")
	}
	return nil
}

func hasCollision(items []Item) bool {
	seen := make(map[float64]struct{}, len(items))
	for _, it := range items {
		if _, dup := seen[it.Position]; dup {
			return true
		}
		seen[it.Position] = struct{}{}
	}
	return false
}
