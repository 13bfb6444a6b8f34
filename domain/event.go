package domain

import "github.com/bytedance/sonic"

// BoardEvent is the change notification published to the events queue after a
// successful write. Downstream consumers fan it out to connected clients.
type BoardEvent struct {
	ID         string                 `json:"id"`
	EntityType string                 `json:"entityType"`
	EntityID   string                 `json:"entityId"`
	Type       string                 `json:"type"`
	Data       sonic.NoCopyRawMessage `json:"data,omitempty"`
	Timestamp  int64                  `json:"timestamp"`
}

// EventEnvelope wraps an event with the user it belongs to.
type EventEnvelope struct {
	UserID string     `json:"userId"`
	Event  BoardEvent `json:"event"`
}

// Event types published by the API.
const (
	EventTaskCreated     = "task-created"
	EventTaskUpdated     = "task-updated"
	EventTaskMoved       = "task-moved"
	EventTaskCompleted   = "task-completed"
	EventTaskDeleted     = "task-deleted"
	EventCategoryCreated = "category-created"
	EventCategoryUpdated = "category-updated"
	EventCategoryMoved   = "category-moved"
	EventCategoryDeleted = "category-deleted"
	EventProjectCreated  = "project-created"
	EventProjectUpdated  = "project-updated"
	EventProjectDeleted  = "project-deleted"
)
