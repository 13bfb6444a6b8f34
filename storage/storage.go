package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"

	"slate-api/domain"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("entity not found")

// Entity kinds stored in the board table.
const (
	kindTask     = "task"
	kindCategory = "category"
	kindProject  = "project"
)

// Storage provides access to underlying persistence mechanisms. All board
// entities of a user share one table partition so that collection-wide
// position rewrites can run as a single atomic table transaction.
type Storage struct {
	boardTable    *aztables.Client
	settingsTable *aztables.Client
	eventQueue    *azqueue.QueueClient
}

// New creates a Storage instance from the given connection string.
func New(connStr, boardTable, settingsTable, eventQueue string) (*Storage, error) {
	tablesClientOptions := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Minute * 3,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 15,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &tablesClientOptions)
	if err != nil {
		return nil, err
	}
	bt := svc.NewClient(boardTable)
	st := svc.NewClient(settingsTable)
	queueClientOptions := azqueue.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    5,
				TryTimeout:    time.Minute * 5,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 60,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	eq, err := azqueue.NewQueueClientFromConnectionString(connStr, eventQueue, &queueClientOptions)
	if err != nil {
		return nil, err
	}
	return &Storage{boardTable: bt, settingsTable: st, eventQueue: eq}, nil
}

type boardEntity struct {
	aztables.Entity
	Kind          string  `json:"Kind"`
	Title         string  `json:"Title"`
	Notes         string  `json:"Notes"`
	CategoryID    string  `json:"CategoryId"`
	ProjectID     string  `json:"ProjectId"`
	Position      float64 `json:"Position"`
	Done          bool    `json:"Done"`
	ReorderCount  int32   `json:"ReorderCount"`
	UpdatedAt     int64   `json:"UpdatedAt,string"`
	UpdatedAtType string  `json:"UpdatedAt@odata.type"`
}

// boardUpdate carries a partial merge of a board entity. Nil fields are left
// untouched by the table service.
type boardUpdate struct {
	aztables.Entity
	Title         *string  `json:"Title,omitempty"`
	Notes         *string  `json:"Notes,omitempty"`
	CategoryID    *string  `json:"CategoryId,omitempty"`
	Position      *float64 `json:"Position,omitempty"`
	Done          *bool    `json:"Done,omitempty"`
	ReorderCount  *int32   `json:"ReorderCount,omitempty"`
	UpdatedAt     *int64   `json:"UpdatedAt,omitempty,string"`
	UpdatedAtType *string  `json:"UpdatedAt@odata.type,omitempty"`
}

const edmInt64 = "Edm.Int64"

func taskToEntity(userID string, t domain.Task) boardEntity {
	return boardEntity{
		Entity:        aztables.Entity{PartitionKey: userID, RowKey: t.ID},
		Kind:          kindTask,
		Title:         t.Title,
		Notes:         t.Notes,
		CategoryID:    t.CategoryID,
		ProjectID:     t.ProjectID,
		Position:      t.Position,
		Done:          t.Done,
		UpdatedAt:     t.UpdatedAt,
		UpdatedAtType: edmInt64,
	}
}

func categoryToEntity(userID string, c domain.Category) boardEntity {
	return boardEntity{
		Entity:        aztables.Entity{PartitionKey: userID, RowKey: c.ID},
		Kind:          kindCategory,
		Title:         c.Title,
		ProjectID:     c.ProjectID,
		Position:      c.Position,
		ReorderCount:  int32(c.ReorderCount),
		UpdatedAt:     c.UpdatedAt,
		UpdatedAtType: edmInt64,
	}
}

func projectToEntity(userID string, p domain.Project) boardEntity {
	return boardEntity{
		Entity:        aztables.Entity{PartitionKey: userID, RowKey: p.ID},
		Kind:          kindProject,
		Title:         p.Title,
		Position:      p.Position,
		ReorderCount:  int32(p.ReorderCount),
		UpdatedAt:     p.UpdatedAt,
		UpdatedAtType: edmInt64,
	}
}

func (e boardEntity) task() domain.Task {
	return domain.Task{
		ID:         e.RowKey,
		Title:      e.Title,
		Notes:      e.Notes,
		CategoryID: e.CategoryID,
		ProjectID:  e.ProjectID,
		Position:   e.Position,
		Done:       e.Done,
		UpdatedAt:  e.UpdatedAt,
	}
}

func (e boardEntity) category() domain.Category {
	return domain.Category{
		ID:           e.RowKey,
		ProjectID:    e.ProjectID,
		Title:        e.Title,
		Position:     e.Position,
		ReorderCount: int(e.ReorderCount),
		UpdatedAt:    e.UpdatedAt,
	}
}

func (e boardEntity) project() domain.Project {
	return domain.Project{
		ID:           e.RowKey,
		Title:        e.Title,
		Position:     e.Position,
		ReorderCount: int(e.ReorderCount),
		UpdatedAt:    e.UpdatedAt,
	}
}

// FetchBoard retrieves every project, category and task of the user, each
// level sorted ascending by position.
func (s *Storage) FetchBoard(ctx context.Context, userID string) (domain.Board, error) {
	filter := "PartitionKey eq '" + userID + "'"
	pager := s.boardTable.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	board := domain.Board{Projects: []domain.Project{}, Categories: []domain.Category{}, Tasks: []domain.Task{}}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return domain.Board{}, err
		}
		for _, raw := range resp.Entities {
			var ent boardEntity
			if err := json.Unmarshal(raw, &ent); err != nil {
				return domain.Board{}, err
			}
			switch ent.Kind {
			case kindTask:
				board.Tasks = append(board.Tasks, ent.task())
			case kindCategory:
				board.Categories = append(board.Categories, ent.category())
			case kindProject:
				board.Projects = append(board.Projects, ent.project())
			}
		}
	}
	sort.Slice(board.Tasks, func(i, j int) bool { return board.Tasks[i].Position < board.Tasks[j].Position })
	sort.Slice(board.Categories, func(i, j int) bool {
		return board.Categories[i].Position < board.Categories[j].Position
	})
	sort.Slice(board.Projects, func(i, j int) bool { return board.Projects[i].Position < board.Projects[j].Position })
	return board, nil
}

func (s *Storage) listByFilter(ctx context.Context, filter string) ([]boardEntity, error) {
	pager := s.boardTable.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	var ents []boardEntity
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, raw := range resp.Entities {
			var ent boardEntity
			if err := json.Unmarshal(raw, &ent); err != nil {
				return nil, err
			}
			ents = append(ents, ent)
		}
	}
	return ents, nil
}

// ListTasks returns the tasks of one category sorted ascending by position.
func (s *Storage) ListTasks(ctx context.Context, userID, categoryID string) ([]domain.Task, error) {
	filter := fmt.Sprintf("PartitionKey eq '%s' and Kind eq '%s' and CategoryId eq '%s'", userID, kindTask, categoryID)
	ents, err := s.listByFilter(ctx, filter)
	if err != nil {
		return nil, err
	}
	tasks := make([]domain.Task, 0, len(ents))
	for _, ent := range ents {
		tasks = append(tasks, ent.task())
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].Position < tasks[j].Position })
	return tasks, nil
}

// ListCategories returns the categories of one project sorted ascending by position.
func (s *Storage) ListCategories(ctx context.Context, userID, projectID string) ([]domain.Category, error) {
	filter := fmt.Sprintf("PartitionKey eq '%s' and Kind eq '%s' and ProjectId eq '%s'", userID, kindCategory, projectID)
	ents, err := s.listByFilter(ctx, filter)
	if err != nil {
		return nil, err
	}
	cats := make([]domain.Category, 0, len(ents))
	for _, ent := range ents {
		cats = append(cats, ent.category())
	}
	sort.Slice(cats, func(i, j int) bool { return cats[i].Position < cats[j].Position })
	return cats, nil
}

// ListProjects returns all of the user's projects sorted ascending by position.
func (s *Storage) ListProjects(ctx context.Context, userID string) ([]domain.Project, error) {
	filter := fmt.Sprintf("PartitionKey eq '%s' and Kind eq '%s'", userID, kindProject)
	ents, err := s.listByFilter(ctx, filter)
	if err != nil {
		return nil, err
	}
	projects := make([]domain.Project, 0, len(ents))
	for _, ent := range ents {
		projects = append(projects, ent.project())
	}
	sort.Slice(projects, func(i, j int) bool { return projects[i].Position < projects[j].Position })
	return projects, nil
}

func (s *Storage) getEntity(ctx context.Context, userID, id, kind string) (*boardEntity, error) {
	resp, err := s.boardTable.GetEntity(ctx, userID, id, nil)
	if err != nil {
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) && respErr.StatusCode == 404 {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var ent boardEntity
	if err := json.Unmarshal(resp.Value, &ent); err != nil {
		return nil, err
	}
	if ent.Kind != kind {
		return nil, ErrNotFound
	}
	return &ent, nil
}

// GetTask retrieves a single task.
func (s *Storage) GetTask(ctx context.Context, userID, taskID string) (domain.Task, error) {
	ent, err := s.getEntity(ctx, userID, taskID, kindTask)
	if err != nil {
		return domain.Task{}, err
	}
	return ent.task(), nil
}

// GetCategory retrieves a single category.
func (s *Storage) GetCategory(ctx context.Context, userID, categoryID string) (domain.Category, error) {
	ent, err := s.getEntity(ctx, userID, categoryID, kindCategory)
	if err != nil {
		return domain.Category{}, err
	}
	return ent.category(), nil
}

// GetProject retrieves a single project.
func (s *Storage) GetProject(ctx context.Context, userID, projectID string) (domain.Project, error) {
	ent, err := s.getEntity(ctx, userID, projectID, kindProject)
	if err != nil {
		return domain.Project{}, err
	}
	return ent.project(), nil
}

func (s *Storage) insertEntity(ctx context.Context, ent boardEntity) error {
	payload, err := json.Marshal(ent)
	if err != nil {
		return err
	}
	_, err = s.boardTable.AddEntity(ctx, payload, nil)
	return err
}

func (s *Storage) mergeEntity(ctx context.Context, upd boardUpdate) error {
	payload, err := json.Marshal(upd)
	if err != nil {
		return err
	}
	et := azcore.ETagAny
	_, err = s.boardTable.UpdateEntity(ctx, payload, &aztables.UpdateEntityOptions{IfMatch: &et, UpdateMode: aztables.UpdateModeMerge})
	if err != nil {
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) && respErr.StatusCode == 404 {
			return ErrNotFound
		}
	}
	return err
}

func (s *Storage) deleteEntity(ctx context.Context, userID, id string) error {
	_, err := s.boardTable.DeleteEntity(ctx, userID, id, nil)
	if err != nil {
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) && respErr.StatusCode == 404 {
			return ErrNotFound
		}
	}
	return err
}

// InsertTask creates a new task row.
func (s *Storage) InsertTask(ctx context.Context, userID string, t domain.Task) error {
	return s.insertEntity(ctx, taskToEntity(userID, t))
}

// TaskUpdate carries the mutable task fields of a PATCH request.
type TaskUpdate struct {
	Title *string
	Notes *string
	Done  *bool
}

// UpdateTask merges the provided fields into an existing task row.
func (s *Storage) UpdateTask(ctx context.Context, userID, taskID string, upd TaskUpdate, updatedAt int64) error {
	t := edmInt64
	return s.mergeEntity(ctx, boardUpdate{
		Entity:        aztables.Entity{PartitionKey: userID, RowKey: taskID},
		Title:         upd.Title,
		Notes:         upd.Notes,
		Done:          upd.Done,
		UpdatedAt:     &updatedAt,
		UpdatedAtType: &t,
	})
}

// UpdateTaskPosition performs the single-row write of a task move: the new
// position, the (possibly changed) owning category and the update stamp.
func (s *Storage) UpdateTaskPosition(ctx context.Context, userID, taskID, categoryID string, position float64, updatedAt int64) error {
	t := edmInt64
	return s.mergeEntity(ctx, boardUpdate{
		Entity:        aztables.Entity{PartitionKey: userID, RowKey: taskID},
		CategoryID:    &categoryID,
		Position:      &position,
		UpdatedAt:     &updatedAt,
		UpdatedAtType: &t,
	})
}

// DeleteTask removes a task row. Sibling positions are left untouched; gaps
// are harmless.
func (s *Storage) DeleteTask(ctx context.Context, userID, taskID string) error {
	return s.deleteEntity(ctx, userID, taskID)
}

// InsertCategory creates a new category row.
func (s *Storage) InsertCategory(ctx context.Context, userID string, c domain.Category) error {
	return s.insertEntity(ctx, categoryToEntity(userID, c))
}

// UpdateCategoryTitle renames a category.
func (s *Storage) UpdateCategoryTitle(ctx context.Context, userID, categoryID, title string, updatedAt int64) error {
	t := edmInt64
	return s.mergeEntity(ctx, boardUpdate{
		Entity:        aztables.Entity{PartitionKey: userID, RowKey: categoryID},
		Title:         &title,
		UpdatedAt:     &updatedAt,
		UpdatedAtType: &t,
	})
}

// UpdateCategoryPosition performs the single-row write of a category move.
func (s *Storage) UpdateCategoryPosition(ctx context.Context, userID, categoryID string, position float64, updatedAt int64) error {
	t := edmInt64
	return s.mergeEntity(ctx, boardUpdate{
		Entity:        aztables.Entity{PartitionKey: userID, RowKey: categoryID},
		Position:      &position,
		UpdatedAt:     &updatedAt,
		UpdatedAtType: &t,
	})
}

// DeleteCategory removes a category row.
func (s *Storage) DeleteCategory(ctx context.Context, userID, categoryID string) error {
	return s.deleteEntity(ctx, userID, categoryID)
}

// InsertProject creates a new project row.
func (s *Storage) InsertProject(ctx context.Context, userID string, p domain.Project) error {
	return s.insertEntity(ctx, projectToEntity(userID, p))
}

// UpdateProjectTitle renames a project.
func (s *Storage) UpdateProjectTitle(ctx context.Context, userID, projectID, title string, updatedAt int64) error {
	t := edmInt64
	return s.mergeEntity(ctx, boardUpdate{
		Entity:        aztables.Entity{PartitionKey: userID, RowKey: projectID},
		Title:         &title,
		UpdatedAt:     &updatedAt,
		UpdatedAtType: &t,
	})
}

// DeleteProject removes a project row.
func (s *Storage) DeleteProject(ctx context.Context, userID, projectID string) error {
	return s.deleteEntity(ctx, userID, projectID)
}

type settingsEntity struct {
	aztables.Entity
	TasksPerCategory int32 `json:"TasksPerCategory"`
	ShowDoneTasks    bool  `json:"ShowDoneTasks"`
}

// FetchSettings retrieves user settings. Missing settings decode to zero
// values rather than an error.
func (s *Storage) FetchSettings(ctx context.Context, userID string) (domain.Settings, error) {
	resp, err := s.settingsTable.GetEntity(ctx, userID, userID, nil)
	if err != nil {
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) && respErr.StatusCode == 404 {
			return domain.Settings{}, nil
		}
		return domain.Settings{}, err
	}
	var ent settingsEntity
	if err := json.Unmarshal(resp.Value, &ent); err != nil {
		return domain.Settings{}, err
	}
	return domain.Settings{TasksPerCategory: int(ent.TasksPerCategory), ShowDoneTasks: ent.ShowDoneTasks}, nil
}

// UpsertSettings stores user settings.
func (s *Storage) UpsertSettings(ctx context.Context, userID string, settings domain.Settings) error {
	payload, err := json.Marshal(settingsEntity{
		Entity:           aztables.Entity{PartitionKey: userID, RowKey: userID},
		TasksPerCategory: int32(settings.TasksPerCategory),
		ShowDoneTasks:    settings.ShowDoneTasks,
	})
	if err != nil {
		return err
	}
	_, err = s.settingsTable.UpsertEntity(ctx, payload, nil)
	return err
}
