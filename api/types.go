package api

import (
	"context"

	"slate-api/domain"
	"slate-api/storage"
)

// Storage abstracts persistence for handlers.
type Storage interface {
	FetchBoard(ctx context.Context, userID string) (domain.Board, error)
	FetchSettings(ctx context.Context, userID string) (domain.Settings, error)
	UpsertSettings(ctx context.Context, userID string, settings domain.Settings) error

	GetTask(ctx context.Context, userID, taskID string) (domain.Task, error)
	ListTasks(ctx context.Context, userID, categoryID string) ([]domain.Task, error)
	InsertTask(ctx context.Context, userID string, t domain.Task) error
	UpdateTask(ctx context.Context, userID, taskID string, upd storage.TaskUpdate, updatedAt int64) error
	UpdateTaskPosition(ctx context.Context, userID, taskID, categoryID string, position float64, updatedAt int64) error
	DeleteTask(ctx context.Context, userID, taskID string) error

	GetCategory(ctx context.Context, userID, categoryID string) (domain.Category, error)
	ListCategories(ctx context.Context, userID, projectID string) ([]domain.Category, error)
	InsertCategory(ctx context.Context, userID string, c domain.Category) error
	UpdateCategoryTitle(ctx context.Context, userID, categoryID, title string, updatedAt int64) error
	UpdateCategoryPosition(ctx context.Context, userID, categoryID string, position float64, updatedAt int64) error
	DeleteCategory(ctx context.Context, userID, categoryID string) error

	GetProject(ctx context.Context, userID, projectID string) (domain.Project, error)
	ListProjects(ctx context.Context, userID string) ([]domain.Project, error)
	InsertProject(ctx context.Context, userID string, p domain.Project) error
	UpdateProjectTitle(ctx context.Context, userID, projectID, title string, updatedAt int64) error
	DeleteProject(ctx context.Context, userID, projectID string) error

	PublishEvents(ctx context.Context, userID string, events []domain.BoardEvent) error
}

// Authenticator is implemented by types able to extract user IDs from headers.
type Authenticator interface {
	UserIDFromAuthHeader(string) (string, error)
}

// Deduper prevents reprocessing of replayed move requests.
type Deduper interface {
	// Add records the idempotency key and returns true if it was newly added.
	Add(ctx context.Context, userID, key string) (bool, error)
	// Remove deletes a previously added key, used when the write fails.
	Remove(ctx context.Context, userID, key string) error
}

// Resolver repairs one sibling collection; implemented by ordering.Resolver.
type Resolver interface {
	Resolve(ctx context.Context, userID, parentID string) error
}

// BoardInvalidator drops a user's cached board view after the background
// resolver rewrites positions behind the cache's back.
type BoardInvalidator interface {
	InvalidateBoard(ctx context.Context, userID string)
}

// Resolvers carries the per-collection-kind resolvers the move handlers
// schedule after a successful position write.
type Resolvers struct {
	Tasks      Resolver
	Categories Resolver
	Cache      BoardInvalidator // optional
}
