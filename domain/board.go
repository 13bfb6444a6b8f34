package domain

// Task represents a single board item. Position orders tasks within their
// category; it carries no meaning across categories.
type Task struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Notes      string  `json:"notes,omitempty"`
	CategoryID string  `json:"categoryId"`
	ProjectID  string  `json:"projectId"`
	Position   float64 `json:"position"`
	Done       bool    `json:"done,omitempty"`
	UpdatedAt  int64   `json:"updatedAt"`
}

// Category is a board column within a project. ReorderCount tracks how many
// single-row position writes its task collection has absorbed since the last
// renormalization.
type Category struct {
	ID           string  `json:"id"`
	ProjectID    string  `json:"projectId"`
	Title        string  `json:"title"`
	Position     float64 `json:"position"`
	ReorderCount int     `json:"-"`
	UpdatedAt    int64   `json:"updatedAt"`
}

// Project groups categories for a user. ReorderCount tracks the reorder
// counter of its category collection.
type Project struct {
	ID           string  `json:"id"`
	Title        string  `json:"title"`
	Position     float64 `json:"position"`
	ReorderCount int     `json:"-"`
	UpdatedAt    int64   `json:"updatedAt"`
}

// Board is the full view returned to clients: every project with its
// categories and tasks, each level sorted ascending by position.
type Board struct {
	Projects   []Project  `json:"projects"`
	Categories []Category `json:"categories"`
	Tasks      []Task     `json:"tasks"`
}
