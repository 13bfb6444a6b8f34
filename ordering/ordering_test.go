package ordering

import (
	"errors"
	"sort"
	"testing"
)

func column(positions ...float64) []Item {
	items := make([]Item, len(positions))
	for i, p := range positions {
		items[i] = Item{ID: string(rune('A' + i)), ParentID: "col-1", Position: p}
	}
	return items
}

func TestAllocateBranches(t *testing.T) {
	cases := []struct {
		name         string
		siblings     []Item
		targetIndex  int
		moving       Item
		sourceParent string
		destParent   string
		want         float64
	}{
		{
			name:        "empty collection",
			siblings:    nil,
			targetIndex: 0,
			moving:      Item{ID: "X"},
			destParent:  "col-1",
			want:        1000,
		},
		{
			name:         "append past end",
			siblings:     column(1000, 2000, 3000),
			targetIndex:  3,
			moving:       Item{ID: "X"},
			sourceParent: "col-1",
			destParent:   "col-1",
			want:         4000,
		},
		{
			name:         "append sentinel",
			siblings:     column(1000, 2000),
			targetIndex:  -1,
			moving:       Item{ID: "X"},
			sourceParent: "col-1",
			destParent:   "col-1",
			want:         3000,
		},
		{
			name:         "move to top halves first position",
			siblings:     column(1000),
			targetIndex:  0,
			moving:       Item{ID: "X", Position: 1000},
			sourceParent: "col-1",
			destParent:   "col-1",
			want:         500,
		},
		{
			name:         "cross-parent interior uses neighbor above",
			siblings:     column(1000, 2000, 3000),
			targetIndex:  1,
			moving:       Item{ID: "X", Position: 7000},
			sourceParent: "col-2",
			destParent:   "col-1",
			want:         1500,
		},
		{
			name:         "cross-parent into second-to-last slot",
			siblings:     column(1000, 2000, 3000, 4000),
			targetIndex:  2,
			moving:       Item{ID: "X", Position: 500},
			sourceParent: "col-2",
			destParent:   "col-1",
			want:         2500,
		},
		{
			name:         "same-parent bottom keeps headroom",
			siblings:     column(1000, 2000, 3000),
			targetIndex:  2,
			moving:       Item{ID: "A", Position: 1000},
			sourceParent: "col-1",
			destParent:   "col-1",
			want:         3500,
		},
		{
			name:         "same-parent interior moving down",
			siblings:     column(1000, 2000, 3000, 4000),
			targetIndex:  1,
			moving:       Item{ID: "A", Position: 1000},
			sourceParent: "col-1",
			destParent:   "col-1",
			want:         2500,
		},
		{
			name:         "same-parent interior moving up",
			siblings:     column(1000, 2000, 3000, 4000),
			targetIndex:  1,
			moving:       Item{ID: "D", Position: 4000},
			sourceParent: "col-1",
			destParent:   "col-1",
			want:         1500,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Allocate(tc.siblings, tc.targetIndex, tc.moving, tc.sourceParent, tc.destParent, TaskStep)
			if err != nil {
				t.Fatalf("allocate: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected position %v, got %v", tc.want, got)
			}
		})
	}
}

func TestAllocateInvalidIndex(t *testing.T) {
	_, err := Allocate(column(1000, 2000), -2, Item{ID: "X"}, "col-1", "col-1", TaskStep)
	if !errors.Is(err, ErrInvalidIndex) {
		t.Fatalf("expected ErrInvalidIndex, got %v", err)
	}
}

// Moving any member of a collection to any index must land it exactly there
// once the collection is re-sorted by position.
func TestAllocateSameParentOrderPreserved(t *testing.T) {
	base := column(1000, 2000, 3000, 4000, 5000)

	for from := range base {
		for to := range base {
			if from == to {
				continue
			}
			moving := base[from]
			pos, err := Allocate(base, to, moving, "col-1", "col-1", TaskStep)
			if err != nil {
				t.Fatalf("move %s from %d to %d: %v", moving.ID, from, to, err)
			}

			after := make([]Item, 0, len(base))
			for _, it := range base {
				if it.ID == moving.ID {
					continue
				}
				after = append(after, it)
			}
			after = append(after, Item{ID: moving.ID, Position: pos})
			sort.Slice(after, func(i, j int) bool { return after[i].Position < after[j].Position })

			got := -1
			for i, it := range after {
				if it.ID == moving.ID {
					got = i
				}
			}
			if got != to {
				t.Fatalf("move %s from %d to %d: landed at %d (position %v)", moving.ID, from, to, got, pos)
			}
		}
	}
}

// A cross-collection insert must land the incoming item at the requested
// index, including the append slot.
func TestAllocateCrossParentOrderPreserved(t *testing.T) {
	dest := column(1000, 2000, 3000, 4000)
	moving := Item{ID: "X", ParentID: "col-2", Position: 7000}

	for to := 0; to <= len(dest); to++ {
		pos, err := Allocate(dest, to, moving, "col-2", "col-1", TaskStep)
		if err != nil {
			t.Fatalf("insert at %d: %v", to, err)
		}

		after := append([]Item{}, dest...)
		after = append(after, Item{ID: moving.ID, Position: pos})
		sort.Slice(after, func(i, j int) bool { return after[i].Position < after[j].Position })

		got := -1
		for i, it := range after {
			if it.ID == moving.ID {
				got = i
			}
		}
		if got != to {
			t.Fatalf("insert at %d: landed at %d (position %v)", to, got, pos)
		}
	}
}

func TestAllocateAppendClearsMaximum(t *testing.T) {
	cases := [][]Item{
		nil,
		column(1000),
		column(1000, 2000, 3000),
	}
	for _, siblings := range cases {
		pos, err := Allocate(siblings, len(siblings), Item{ID: "X"}, "col-2", "col-1", TaskStep)
		if err != nil {
			t.Fatalf("append to %d siblings: %v", len(siblings), err)
		}
		if len(siblings) == 0 {
			if pos != TaskStep {
				t.Fatalf("expected first position %v, got %v", TaskStep, pos)
			}
			continue
		}
		if max := siblings[len(siblings)-1].Position; pos <= max {
			t.Fatalf("append position %v does not clear maximum %v", pos, max)
		}
	}
}

func TestAllocateTopInsertHalving(t *testing.T) {
	siblings := column(1000, 2000)
	for i := 0; i < 10; i++ {
		pos, err := Allocate(siblings, 0, Item{ID: "X"}, "col-2", "col-1", TaskStep)
		if err != nil {
			t.Fatalf("top insert %d: %v", i, err)
		}
		first := siblings[0].Position
		if pos != first/2 {
			t.Fatalf("expected %v, got %v", first/2, pos)
		}
		if pos <= 0 || pos >= first {
			t.Fatalf("top insert %d escaped (0, %v): %v", i, first, pos)
		}
		siblings = append([]Item{{ID: "X", Position: pos}}, siblings...)
	}
}

func TestAllocateCategoryStep(t *testing.T) {
	pos, err := Allocate(nil, 0, Item{ID: "X"}, "", "project-1", CategoryStep)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if pos != 10 {
		t.Fatalf("expected first category position 10, got %v", pos)
	}
}

func TestAppendPosition(t *testing.T) {
	if got := AppendPosition(0, TaskStep); got != 1000 {
		t.Fatalf("expected 1000, got %v", got)
	}
	if got := AppendPosition(4, CategoryStep); got != 50 {
		t.Fatalf("expected 50, got %v", got)
	}
}
