// Package ordering implements fractional position assignment for ordered
// sibling collections (tasks within a category, categories within a project).
// A move writes a single row in the common case; collisions and precision
// drift are repaired afterwards by the Resolver.
package ordering

import "errors"

const (
	// TaskStep spaces task positions within a category.
	TaskStep = 1000.0
	// CategoryStep spaces category positions within a project.
	CategoryStep = 10.0

	// MaxReorders is the number of single-row position writes a collection
	// tolerates before positions are renormalized even without a collision.
	// Midpoint insertion halves the gap between neighbors on every pass, so
	// an unbounded run of interior moves would eventually exhaust float64
	// precision.
	MaxReorders = 20
)

// ErrInvalidIndex reports a target index outside the destination collection.
var ErrInvalidIndex = errors.New("invalid position index")

// Item is the ordering view of a task or category row.
type Item struct {
	ID        string
	ParentID  string
	Position  float64
	UpdatedAt int64
}

// AppendPosition returns the position for an entity appended to the end of a
// collection that currently holds siblingCount members.
func AppendPosition(siblingCount int, step float64) float64 {
	return float64(siblingCount+1) * step
}

// Allocate computes the position the moving item must be written with so that
// sorting the destination collection by position places it at targetIndex.
//
// siblings is the destination collection exactly as stored, sorted ascending
// by position. For a move within the same collection the moving item is still
// a member and occupies its old slot; for a cross-collection move it is not a
// member. targetIndex may equal len(siblings) (or be the -1 append sentinel)
// to append at the end. Only the moving item's row is affected; no sibling
// position changes.
func Allocate(siblings []Item, targetIndex int, moving Item, sourceParent, destParent string, step float64) (float64, error) {
	if targetIndex == -1 {
		targetIndex = len(siblings)
	}
	if targetIndex < 0 {
		return 0, ErrInvalidIndex
	}

	// Append: the target slot is at or past the end, including the empty
	// collection. (count+1)*step always clears the current maximum.
	if targetIndex >= len(siblings) {
		return AppendPosition(len(siblings), step), nil
	}

	target := siblings[targetIndex]

	// Top insert halves the distance to zero so further top inserts keep
	// room below.
	if targetIndex == 0 {
		return target.Position / 2, nil
	}

	// An item arriving from another collection always lands between the
	// target slot and the neighbor above it. The indices of the destination
	// list are not shifted by the removal of the mover here, so the "above"
	// neighbor is the correct bound even for the second-to-last slot.
	if sourceParent != destParent {
		return (target.Position + siblings[targetIndex-1].Position) / 2, nil
	}

	// Bottom of the same collection: proportional headroom above the last
	// element rather than a fixed increment.
	if targetIndex == len(siblings)-1 {
		return (target.Position*2 + step) / 2, nil
	}

	// Interior reorder within the same collection. The mover still occupies
	// its old slot in siblings, and vacating it shifts every index past it,
	// so the bounding neighbor depends on the direction of travel.
	if moving.Position < target.Position {
		// Moving down: land between the target and the neighbor below.
		return (target.Position + siblings[targetIndex+1].Position) / 2, nil
	}
	// Moving up: land between the target and the neighbor above.
	return (target.Position + siblings[targetIndex-1].Position) / 2, nil
}
