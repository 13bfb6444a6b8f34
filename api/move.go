package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"slate-api/domain"
	"slate-api/ordering"
	"slate-api/storage"
)

// moveTask relocates a task to targetIndex inside its own or another
// category. Only the moved row is written; collection repair runs detached in
// the resolver pool.
func moveTask(store Storage, auth Authenticator, deduper Deduper, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		ctx := c.Request().Context()
		metrics, spanCtx := newMoveRequestMetrics(ctx, "/api/tasks/:id/move", logger)
		if spanCtx != nil {
			c.SetRequest(c.Request().WithContext(spanCtx))
			ctx = spanCtx
		}
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		authStart := time.Now()
		userID, authErr := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		metrics.ObserveAuth(time.Since(authStart))
		if authErr != nil {
			metrics.SetErrorStage("auth")
			err = c.String(http.StatusUnauthorized, authErr.Error())
			return err
		}

		var req moveTaskRequest
		if decodeErr := decodeBody(c.Request().Body, &req); decodeErr != nil {
			metrics.SetErrorStage("decode")
			err = c.String(http.StatusBadRequest, "invalid body")
			return err
		}
		taskID := c.Param("id")

		duplicate, dedupeErr := markProcessed(ctx, deduper, userID, req.IdempotencyKey)
		if dedupeErr != nil {
			metrics.SetErrorStage("dedupe")
			err = c.String(http.StatusInternalServerError, msgSomethingWrong)
			return err
		}
		if duplicate {
			err = c.JSON(http.StatusOK, moveResponse{Status: statusDuplicate})
			return err
		}
		rollbackDedupe := func() {
			if deduper == nil || req.IdempotencyKey == "" {
				return
			}
			if rerr := deduper.Remove(ctx, userID, req.IdempotencyKey); rerr != nil {
				logger.WithFields(log.Fields{"user": userID, "key": req.IdempotencyKey}).
					Errorf("dedupe rollback failed: %v", rerr)
			}
		}

		task, getErr := store.GetTask(ctx, userID, taskID)
		if getErr != nil {
			rollbackDedupe()
			if errors.Is(getErr, storage.ErrNotFound) {
				metrics.SetErrorStage("task_not_found")
				err = c.String(http.StatusNotFound, msgNotFound)
				return err
			}
			metrics.SetErrorStage("storage")
			c.Logger().Error(getErr)
			err = c.String(http.StatusInternalServerError, msgSomethingWrong)
			return err
		}

		destCategoryID := req.CategoryID
		if destCategoryID == "" {
			destCategoryID = task.CategoryID
		}
		if _, catErr := store.GetCategory(ctx, userID, destCategoryID); catErr != nil {
			rollbackDedupe()
			if errors.Is(catErr, storage.ErrNotFound) {
				metrics.SetErrorStage("category_not_found")
				err = c.String(http.StatusNotFound, msgNotFound)
				return err
			}
			metrics.SetErrorStage("storage")
			c.Logger().Error(catErr)
			err = c.String(http.StatusInternalServerError, msgSomethingWrong)
			return err
		}

		fetchStart := time.Now()
		siblings, listErr := store.ListTasks(ctx, userID, destCategoryID)
		metrics.ObserveFetch(time.Since(fetchStart))
		if listErr != nil {
			rollbackDedupe()
			metrics.SetErrorStage("storage")
			c.Logger().Error(listErr)
			err = c.String(http.StatusInternalServerError, msgSomethingWrong)
			return err
		}

		items := make([]ordering.Item, len(siblings))
		for i, t := range siblings {
			items[i] = ordering.Item{ID: t.ID, ParentID: t.CategoryID, Position: t.Position, UpdatedAt: t.UpdatedAt}
		}
		moving := ordering.Item{ID: task.ID, ParentID: task.CategoryID, Position: task.Position, UpdatedAt: task.UpdatedAt}

		position, allocErr := ordering.Allocate(items, req.TargetIndex, moving, task.CategoryID, destCategoryID, ordering.TaskStep)
		if allocErr != nil {
			rollbackDedupe()
			metrics.SetErrorStage("invalid_index")
			err = c.String(http.StatusBadRequest, msgInvalidPosition)
			return err
		}
		metrics.SetCrossParent(task.CategoryID != destCategoryID)

		writeStart := time.Now()
		writeErr := store.UpdateTaskPosition(ctx, userID, taskID, destCategoryID, position, nextTimestamp())
		metrics.ObserveWrite(time.Since(writeStart))
		if writeErr != nil {
			rollbackDedupe()
			metrics.SetErrorStage("write")
			c.Logger().Error(writeErr)
			err = c.String(http.StatusInternalServerError, msgSomethingWrong)
			return err
		}

		// The move already succeeded for the caller; repair and fan-out are
		// best-effort from here on.
		scheduled := scheduleResolve(resolveJob{userID: userID, parentID: destCategoryID, kind: resolveTasks})
		if task.CategoryID != destCategoryID {
			scheduled = scheduleResolve(resolveJob{userID: userID, parentID: task.CategoryID, kind: resolveTasks}) && scheduled
		}
		metrics.SetResolveScheduled(scheduled)

		publishEvent(store, logger, userID, domain.EventTaskMoved, "task", taskID, destCategoryID)

		err = c.JSON(http.StatusOK, moveResponse{Status: statusOK})
		return err
	}
}

// moveCategory reorders a category within its project. Categories do not move
// across projects.
func moveCategory(store Storage, auth Authenticator, deduper Deduper, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		ctx := c.Request().Context()
		metrics, spanCtx := newMoveRequestMetrics(ctx, "/api/categories/:id/move", logger)
		if spanCtx != nil {
			c.SetRequest(c.Request().WithContext(spanCtx))
			ctx = spanCtx
		}
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		authStart := time.Now()
		userID, authErr := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		metrics.ObserveAuth(time.Since(authStart))
		if authErr != nil {
			metrics.SetErrorStage("auth")
			err = c.String(http.StatusUnauthorized, authErr.Error())
			return err
		}

		var req moveCategoryRequest
		if decodeErr := decodeBody(c.Request().Body, &req); decodeErr != nil {
			metrics.SetErrorStage("decode")
			err = c.String(http.StatusBadRequest, "invalid body")
			return err
		}
		categoryID := c.Param("id")

		duplicate, dedupeErr := markProcessed(ctx, deduper, userID, req.IdempotencyKey)
		if dedupeErr != nil {
			metrics.SetErrorStage("dedupe")
			err = c.String(http.StatusInternalServerError, msgSomethingWrong)
			return err
		}
		if duplicate {
			err = c.JSON(http.StatusOK, moveResponse{Status: statusDuplicate})
			return err
		}
		rollbackDedupe := func() {
			if deduper == nil || req.IdempotencyKey == "" {
				return
			}
			if rerr := deduper.Remove(ctx, userID, req.IdempotencyKey); rerr != nil {
				logger.WithFields(log.Fields{"user": userID, "key": req.IdempotencyKey}).
					Errorf("dedupe rollback failed: %v", rerr)
			}
		}

		category, getErr := store.GetCategory(ctx, userID, categoryID)
		if getErr != nil {
			rollbackDedupe()
			if errors.Is(getErr, storage.ErrNotFound) {
				metrics.SetErrorStage("category_not_found")
				err = c.String(http.StatusNotFound, msgNotFound)
				return err
			}
			metrics.SetErrorStage("storage")
			c.Logger().Error(getErr)
			err = c.String(http.StatusInternalServerError, msgSomethingWrong)
			return err
		}

		fetchStart := time.Now()
		siblings, listErr := store.ListCategories(ctx, userID, category.ProjectID)
		metrics.ObserveFetch(time.Since(fetchStart))
		if listErr != nil {
			rollbackDedupe()
			metrics.SetErrorStage("storage")
			c.Logger().Error(listErr)
			err = c.String(http.StatusInternalServerError, msgSomethingWrong)
			return err
		}

		items := make([]ordering.Item, len(siblings))
		for i, cat := range siblings {
			items[i] = ordering.Item{ID: cat.ID, ParentID: cat.ProjectID, Position: cat.Position, UpdatedAt: cat.UpdatedAt}
		}
		moving := ordering.Item{ID: category.ID, ParentID: category.ProjectID, Position: category.Position, UpdatedAt: category.UpdatedAt}

		position, allocErr := ordering.Allocate(items, req.TargetIndex, moving, category.ProjectID, category.ProjectID, ordering.CategoryStep)
		if allocErr != nil {
			rollbackDedupe()
			metrics.SetErrorStage("invalid_index")
			err = c.String(http.StatusBadRequest, msgInvalidPosition)
			return err
		}

		writeStart := time.Now()
		writeErr := store.UpdateCategoryPosition(ctx, userID, categoryID, position, nextTimestamp())
		metrics.ObserveWrite(time.Since(writeStart))
		if writeErr != nil {
			rollbackDedupe()
			metrics.SetErrorStage("write")
			c.Logger().Error(writeErr)
			err = c.String(http.StatusInternalServerError, msgSomethingWrong)
			return err
		}

		metrics.SetResolveScheduled(scheduleResolve(resolveJob{
			userID:   userID,
			parentID: category.ProjectID,
			kind:     resolveCategories,
		}))

		publishEvent(store, logger, userID, domain.EventCategoryMoved, "category", categoryID, category.ProjectID)

		err = c.JSON(http.StatusOK, moveResponse{Status: statusOK})
		return err
	}
}

// markProcessed records the idempotency key when one was supplied. It reports
// whether this request is a replay.
func markProcessed(ctx context.Context, deduper Deduper, userID, key string) (bool, error) {
	if deduper == nil || key == "" {
		return false, nil
	}
	added, err := deduper.Add(ctx, userID, key)
	if err != nil {
		return false, err
	}
	return !added, nil
}

func decodeBody(body io.Reader, dst any) error {
	dec := sonic.ConfigStd.NewDecoder(io.LimitReader(body, requestBodyMaxSize))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

const publishTimeout = 5 * time.Second

// publishEvent enqueues a change event for downstream fan-out. Failures
// are logged only; the caller already received its response.
func publishEvent(store Storage, logger *log.Logger, userID, eventType, entityType, entityID, parentID string) {
	var data sonic.NoCopyRawMessage
	if parentID != "" {
		encoded, err := sonic.Marshal(map[string]string{"parentId": parentID})
		if err != nil {
			return
		}
		data = encoded
	}
	ev := domain.BoardEvent{
		ID:         entityID + ":" + eventType,
		EntityType: entityType,
		EntityID:   entityID,
		Type:       eventType,
		Data:       data,
		Timestamp:  nextTimestamp(),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := store.PublishEvents(ctx, userID, []domain.BoardEvent{ev}); err != nil && logger != nil {
			logger.WithFields(log.Fields{"user": userID, "entity": entityID}).Errorf("event publish failed: %v", err)
		}
	}()
}
