package storage

import (
	"context"
	"encoding/json"

	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"

	"slate-api/ordering"
)

// TaskCollections adapts Storage to the resolver's view of task collections:
// the siblings of a category and the reorder counter kept on the category row.
type TaskCollections struct {
	st *Storage
}

// NewTaskCollections wraps st for task-position resolution.
func NewTaskCollections(st *Storage) *TaskCollections {
	return &TaskCollections{st: st}
}

func (c *TaskCollections) ListSiblings(ctx context.Context, userID, categoryID string) ([]ordering.Item, int, error) {
	cat, err := c.st.GetCategory(ctx, userID, categoryID)
	if err != nil {
		return nil, 0, err
	}
	tasks, err := c.st.ListTasks(ctx, userID, categoryID)
	if err != nil {
		return nil, 0, err
	}
	items := make([]ordering.Item, len(tasks))
	for i, t := range tasks {
		items[i] = ordering.Item{ID: t.ID, ParentID: t.CategoryID, Position: t.Position, UpdatedAt: t.UpdatedAt}
	}
	return items, cat.ReorderCount, nil
}

func (c *TaskCollections) ApplyPositions(ctx context.Context, userID, categoryID string, updates []ordering.PositionUpdate) error {
	return c.st.applyPositions(ctx, userID, categoryID, updates)
}

func (c *TaskCollections) BumpReorderCount(ctx context.Context, userID, categoryID string, n int) error {
	cat, err := c.st.GetCategory(ctx, userID, categoryID)
	if err != nil {
		return err
	}
	return c.st.setReorderCount(ctx, userID, categoryID, int32(cat.ReorderCount+n))
}

// CategoryCollections adapts Storage to the resolver's view of category
// collections: the categories of a project and the counter on the project row.
type CategoryCollections struct {
	st *Storage
}

// NewCategoryCollections wraps st for category-position resolution.
func NewCategoryCollections(st *Storage) *CategoryCollections {
	return &CategoryCollections{st: st}
}

func (c *CategoryCollections) ListSiblings(ctx context.Context, userID, projectID string) ([]ordering.Item, int, error) {
	proj, err := c.st.GetProject(ctx, userID, projectID)
	if err != nil {
		return nil, 0, err
	}
	cats, err := c.st.ListCategories(ctx, userID, projectID)
	if err != nil {
		return nil, 0, err
	}
	items := make([]ordering.Item, len(cats))
	for i, cat := range cats {
		items[i] = ordering.Item{ID: cat.ID, ParentID: cat.ProjectID, Position: cat.Position, UpdatedAt: cat.UpdatedAt}
	}
	return items, proj.ReorderCount, nil
}

func (c *CategoryCollections) ApplyPositions(ctx context.Context, userID, projectID string, updates []ordering.PositionUpdate) error {
	return c.st.applyPositions(ctx, userID, projectID, updates)
}

func (c *CategoryCollections) BumpReorderCount(ctx context.Context, userID, projectID string, n int) error {
	proj, err := c.st.GetProject(ctx, userID, projectID)
	if err != nil {
		return err
	}
	return c.st.setReorderCount(ctx, userID, projectID, int32(proj.ReorderCount+n))
}

// applyPositions rewrites the position of every listed child and resets the
// parent's reorder counter in one table transaction. The parent and all of
// its children live in the user's partition, so the table service applies the
// whole batch or none of it.
func (s *Storage) applyPositions(ctx context.Context, userID, parentID string, updates []ordering.PositionUpdate) error {
	actions := make([]aztables.TransactionAction, 0, len(updates)+1)
	for i := range updates {
		payload, err := json.Marshal(boardUpdate{
			Entity:   aztables.Entity{PartitionKey: userID, RowKey: updates[i].ID},
			Position: &updates[i].Position,
		})
		if err != nil {
			return err
		}
		actions = append(actions, aztables.TransactionAction{
			ActionType: aztables.TransactionTypeUpdateMerge,
			Entity:     payload,
		})
	}
	zero := int32(0)
	payload, err := json.Marshal(boardUpdate{
		Entity:       aztables.Entity{PartitionKey: userID, RowKey: parentID},
		ReorderCount: &zero,
	})
	if err != nil {
		return err
	}
	actions = append(actions, aztables.TransactionAction{
		ActionType: aztables.TransactionTypeUpdateMerge,
		Entity:     payload,
	})
	_, err = s.boardTable.SubmitTransaction(ctx, actions, nil)
	return err
}

func (s *Storage) setReorderCount(ctx context.Context, userID, parentID string, count int32) error {
	return s.mergeEntity(ctx, boardUpdate{
		Entity:       aztables.Entity{PartitionKey: userID, RowKey: parentID},
		ReorderCount: &count,
	})
}
