package api

const requestBodyMaxSize = 64 * 1024 // 64 KiB

type moveTaskRequest struct {
	CategoryID     string `json:"categoryId,omitempty"`
	TargetIndex    int    `json:"targetIndex"`
	IdempotencyKey string `json:"idempotencyKey,omitempty"`
}

type moveCategoryRequest struct {
	TargetIndex    int    `json:"targetIndex"`
	IdempotencyKey string `json:"idempotencyKey,omitempty"`
}

type moveResponse struct {
	Status string `json:"status"`
}

type createTaskRequest struct {
	Title      string `json:"title"`
	Notes      string `json:"notes,omitempty"`
	CategoryID string `json:"categoryId"`
}

type updateTaskRequest struct {
	Title *string `json:"title,omitempty"`
	Notes *string `json:"notes,omitempty"`
	Done  *bool   `json:"done,omitempty"`
}

type createCategoryRequest struct {
	Title     string `json:"title"`
	ProjectID string `json:"projectId"`
}

type renameRequest struct {
	Title string `json:"title"`
}

type createProjectRequest struct {
	Title string `json:"title"`
}

type createdResponse struct {
	ID string `json:"id"`
}

const (
	statusOK        = "ok"
	statusDuplicate = "duplicate"

	msgInvalidPosition = "invalid position"
	msgNotFound        = "not found"
	msgSomethingWrong  = "something went wrong, please try again"
)
