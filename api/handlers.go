package api

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"slate-api/domain"
	"slate-api/ordering"
	"slate-api/storage"
)

// Register wires up all API routes on the provided Echo instance and starts
// the background resolver pool.
func Register(e *echo.Echo, store Storage, auth Authenticator, deduper Deduper, resolvers Resolvers, logger *log.Logger) {
	initResolverPool(resolvers, logger)

	e.Use(GzipRequestMiddleware())
	e.Use(echoprometheus.NewMiddleware("slate_api"))
	e.GET("/metrics", echoprometheus.NewHandler())
	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	e.GET("/api/board", getBoard(store, auth))
	e.GET("/api/settings", getSettings(store, auth))
	e.PUT("/api/settings", putSettings(store, auth))

	e.POST("/api/projects", createProject(store, auth, logger))
	e.PATCH("/api/projects/:id", renameProject(store, auth, logger))
	e.DELETE("/api/projects/:id", deleteProject(store, auth, logger))

	e.POST("/api/categories", createCategory(store, auth, logger))
	e.PATCH("/api/categories/:id", renameCategory(store, auth, logger))
	e.DELETE("/api/categories/:id", deleteCategory(store, auth, logger))
	e.POST("/api/categories/:id/move", moveCategory(store, auth, deduper, logger))

	e.POST("/api/tasks", createTask(store, auth, logger))
	e.POST("/api/tasks/:id/complete", completeTask(store, auth, logger))
	e.PATCH("/api/tasks/:id", updateTask(store, auth, logger))
	e.DELETE("/api/tasks/:id", deleteTask(store, auth, logger))
	e.POST("/api/tasks/:id/move", moveTask(store, auth, deduper, logger))
}

func authenticate(c echo.Context, auth Authenticator) (string, bool) {
	userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
	if err != nil {
		_ = c.String(http.StatusUnauthorized, err.Error())
		return "", false
	}
	return userID, true
}

func getBoard(store Storage, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, ok := authenticate(c, auth)
		if !ok {
			return nil
		}
		board, err := store.FetchBoard(c.Request().Context(), userID)
		if err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, msgSomethingWrong)
		}
		return c.JSON(http.StatusOK, board)
	}
}

func getSettings(store Storage, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, ok := authenticate(c, auth)
		if !ok {
			return nil
		}
		settings, err := store.FetchSettings(c.Request().Context(), userID)
		if err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, msgSomethingWrong)
		}
		return c.JSON(http.StatusOK, settings)
	}
}

func putSettings(store Storage, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, ok := authenticate(c, auth)
		if !ok {
			return nil
		}
		var settings domain.Settings
		if err := decodeBody(c.Request().Body, &settings); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		if settings.TasksPerCategory < 0 {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		if err := store.UpsertSettings(c.Request().Context(), userID, settings); err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, msgSomethingWrong)
		}
		return c.JSON(http.StatusOK, settings)
	}
}

// createTask appends a new task to the bottom of its category.
func createTask(store Storage, auth Authenticator, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, ok := authenticate(c, auth)
		if !ok {
			return nil
		}
		var req createTaskRequest
		if err := decodeBody(c.Request().Body, &req); err != nil || req.Title == "" || req.CategoryID == "" {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		ctx := c.Request().Context()

		category, err := store.GetCategory(ctx, userID, req.CategoryID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return c.String(http.StatusNotFound, msgNotFound)
			}
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, msgSomethingWrong)
		}

		siblings, err := store.ListTasks(ctx, userID, req.CategoryID)
		if err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, msgSomethingWrong)
		}

		task := domain.Task{
			ID:         uuid.NewString(),
			Title:      req.Title,
			Notes:      req.Notes,
			CategoryID: req.CategoryID,
			ProjectID:  category.ProjectID,
			Position:   ordering.AppendPosition(len(siblings), ordering.TaskStep),
			UpdatedAt:  nextTimestamp(),
		}
		if err := store.InsertTask(ctx, userID, task); err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, msgSomethingWrong)
		}

		publishEvent(store, logger, userID, domain.EventTaskCreated, "task", task.ID, req.CategoryID)
		return c.JSON(http.StatusCreated, createdResponse{ID: task.ID})
	}
}

func updateTask(store Storage, auth Authenticator, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, ok := authenticate(c, auth)
		if !ok {
			return nil
		}
		var req updateTaskRequest
		if err := decodeBody(c.Request().Body, &req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		if req.Title == nil && req.Notes == nil && req.Done == nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		taskID := c.Param("id")
		ctx := c.Request().Context()

		upd := storage.TaskUpdate{Title: req.Title, Notes: req.Notes, Done: req.Done}
		if err := store.UpdateTask(ctx, userID, taskID, upd, nextTimestamp()); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return c.String(http.StatusNotFound, msgNotFound)
			}
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, msgSomethingWrong)
		}

		eventType := domain.EventTaskUpdated
		if req.Done != nil && *req.Done {
			eventType = domain.EventTaskCompleted
		}
		publishEvent(store, logger, userID, eventType, "task", taskID, "")
		return c.NoContent(http.StatusNoContent)
	}
}

func completeTask(store Storage, auth Authenticator, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, ok := authenticate(c, auth)
		if !ok {
			return nil
		}
		taskID := c.Param("id")
		done := true
		upd := storage.TaskUpdate{Done: &done}
		if err := store.UpdateTask(c.Request().Context(), userID, taskID, upd, nextTimestamp()); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return c.String(http.StatusNotFound, msgNotFound)
			}
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, msgSomethingWrong)
		}
		publishEvent(store, logger, userID, domain.EventTaskCompleted, "task", taskID, "")
		return c.NoContent(http.StatusNoContent)
	}
}

func deleteTask(store Storage, auth Authenticator, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, ok := authenticate(c, auth)
		if !ok {
			return nil
		}
		taskID := c.Param("id")
		if err := store.DeleteTask(c.Request().Context(), userID, taskID); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return c.String(http.StatusNotFound, msgNotFound)
			}
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, msgSomethingWrong)
		}
		publishEvent(store, logger, userID, domain.EventTaskDeleted, "task", taskID, "")
		return c.NoContent(http.StatusNoContent)
	}
}

// createCategory appends a new category to the end of its project.
func createCategory(store Storage, auth Authenticator, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, ok := authenticate(c, auth)
		if !ok {
			return nil
		}
		var req createCategoryRequest
		if err := decodeBody(c.Request().Body, &req); err != nil || req.Title == "" || req.ProjectID == "" {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		ctx := c.Request().Context()

		if _, err := store.GetProject(ctx, userID, req.ProjectID); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return c.String(http.StatusNotFound, msgNotFound)
			}
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, msgSomethingWrong)
		}

		siblings, err := store.ListCategories(ctx, userID, req.ProjectID)
		if err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, msgSomethingWrong)
		}

		category := domain.Category{
			ID:        uuid.NewString(),
			Title:     req.Title,
			ProjectID: req.ProjectID,
			Position:  ordering.AppendPosition(len(siblings), ordering.CategoryStep),
			UpdatedAt: nextTimestamp(),
		}
		if err := store.InsertCategory(ctx, userID, category); err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, msgSomethingWrong)
		}

		publishEvent(store, logger, userID, domain.EventCategoryCreated, "category", category.ID, req.ProjectID)
		return c.JSON(http.StatusCreated, createdResponse{ID: category.ID})
	}
}

func renameCategory(store Storage, auth Authenticator, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, ok := authenticate(c, auth)
		if !ok {
			return nil
		}
		var req renameRequest
		if err := decodeBody(c.Request().Body, &req); err != nil || req.Title == "" {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		categoryID := c.Param("id")
		if err := store.UpdateCategoryTitle(c.Request().Context(), userID, categoryID, req.Title, nextTimestamp()); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return c.String(http.StatusNotFound, msgNotFound)
			}
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, msgSomethingWrong)
		}
		publishEvent(store, logger, userID, domain.EventCategoryUpdated, "category", categoryID, "")
		return c.NoContent(http.StatusNoContent)
	}
}

// deleteCategory removes a category together with the tasks it contains.
func deleteCategory(store Storage, auth Authenticator, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, ok := authenticate(c, auth)
		if !ok {
			return nil
		}
		categoryID := c.Param("id")
		ctx := c.Request().Context()

		tasks, err := store.ListTasks(ctx, userID, categoryID)
		if err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, msgSomethingWrong)
		}
		for _, t := range tasks {
			if err := store.DeleteTask(ctx, userID, t.ID); err != nil && !errors.Is(err, storage.ErrNotFound) {
				c.Logger().Error(err)
				return c.String(http.StatusInternalServerError, msgSomethingWrong)
			}
		}
		if err := store.DeleteCategory(ctx, userID, categoryID); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return c.String(http.StatusNotFound, msgNotFound)
			}
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, msgSomethingWrong)
		}
		publishEvent(store, logger, userID, domain.EventCategoryDeleted, "category", categoryID, "")
		return c.NoContent(http.StatusNoContent)
	}
}

// createProject appends a new project to the end of the user's board.
func createProject(store Storage, auth Authenticator, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, ok := authenticate(c, auth)
		if !ok {
			return nil
		}
		var req createProjectRequest
		if err := decodeBody(c.Request().Body, &req); err != nil || req.Title == "" {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		ctx := c.Request().Context()

		siblings, err := store.ListProjects(ctx, userID)
		if err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, msgSomethingWrong)
		}

		project := domain.Project{
			ID:        uuid.NewString(),
			Title:     req.Title,
			Position:  ordering.AppendPosition(len(siblings), ordering.CategoryStep),
			UpdatedAt: nextTimestamp(),
		}
		if err := store.InsertProject(ctx, userID, project); err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, msgSomethingWrong)
		}

		publishEvent(store, logger, userID, domain.EventProjectCreated, "project", project.ID, "")
		return c.JSON(http.StatusCreated, createdResponse{ID: project.ID})
	}
}

func renameProject(store Storage, auth Authenticator, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, ok := authenticate(c, auth)
		if !ok {
			return nil
		}
		var req renameRequest
		if err := decodeBody(c.Request().Body, &req); err != nil || req.Title == "" {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		projectID := c.Param("id")
		if err := store.UpdateProjectTitle(c.Request().Context(), userID, projectID, req.Title, nextTimestamp()); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return c.String(http.StatusNotFound, msgNotFound)
			}
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, msgSomethingWrong)
		}
		publishEvent(store, logger, userID, domain.EventProjectUpdated, "project", projectID, "")
		return c.NoContent(http.StatusNoContent)
	}
}

// deleteProject removes a project and everything under it.
func deleteProject(store Storage, auth Authenticator, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, ok := authenticate(c, auth)
		if !ok {
			return nil
		}
		projectID := c.Param("id")
		ctx := c.Request().Context()

		categories, err := store.ListCategories(ctx, userID, projectID)
		if err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, msgSomethingWrong)
		}
		for _, cat := range categories {
			tasks, err := store.ListTasks(ctx, userID, cat.ID)
			if err != nil {
				c.Logger().Error(err)
				return c.String(http.StatusInternalServerError, msgSomethingWrong)
			}
			for _, t := range tasks {
				if err := store.DeleteTask(ctx, userID, t.ID); err != nil && !errors.Is(err, storage.ErrNotFound) {
					c.Logger().Error(err)
					return c.String(http.StatusInternalServerError, msgSomethingWrong)
				}
			}
			if err := store.DeleteCategory(ctx, userID, cat.ID); err != nil && !errors.Is(err, storage.ErrNotFound) {
				c.Logger().Error(err)
				return c.String(http.StatusInternalServerError, msgSomethingWrong)
			}
		}
		if err := store.DeleteProject(ctx, userID, projectID); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return c.String(http.StatusNotFound, msgNotFound)
			}
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, msgSomethingWrong)
		}
		publishEvent(store, logger, userID, domain.EventProjectDeleted, "project", projectID, "")
		return c.NoContent(http.StatusNoContent)
	}
}
