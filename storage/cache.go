package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"slate-api/domain"
)

type backend interface {
	FetchBoard(ctx context.Context, userID string) (domain.Board, error)
	FetchSettings(ctx context.Context, userID string) (domain.Settings, error)
	InsertTask(ctx context.Context, userID string, t domain.Task) error
	UpdateTask(ctx context.Context, userID, taskID string, upd TaskUpdate, updatedAt int64) error
	UpdateTaskPosition(ctx context.Context, userID, taskID, categoryID string, position float64, updatedAt int64) error
	DeleteTask(ctx context.Context, userID, taskID string) error
	InsertCategory(ctx context.Context, userID string, c domain.Category) error
	UpdateCategoryTitle(ctx context.Context, userID, categoryID, title string, updatedAt int64) error
	UpdateCategoryPosition(ctx context.Context, userID, categoryID string, position float64, updatedAt int64) error
	DeleteCategory(ctx context.Context, userID, categoryID string) error
	InsertProject(ctx context.Context, userID string, p domain.Project) error
	UpdateProjectTitle(ctx context.Context, userID, projectID, title string, updatedAt int64) error
	DeleteProject(ctx context.Context, userID, projectID string) error
	UpsertSettings(ctx context.Context, userID string, settings domain.Settings) error
}

// Cache wraps a Storage instance with Redis-backed caching for board and
// settings reads. Every write evicts the user's cached state; redis failures
// fall back to the backing storage without failing the request.
type Cache struct {
	*Storage
	base  backend
	redis *redis.Client
	ttl   time.Duration
}

// NewCache creates a caching Storage wrapper using the provided Redis client and TTL.
func NewCache(base backend, client *redis.Client, ttl time.Duration) *Cache {
	if base == nil {
		panic("storage.NewCache: base storage is nil")
	}
	if ttl < 0 {
		ttl = 0
	}

	c := &Cache{
		base:  base,
		redis: client,
		ttl:   ttl,
	}
	if s, ok := base.(*Storage); ok {
		c.Storage = s
	}
	return c
}

func (c *Cache) FetchBoard(ctx context.Context, userID string) (domain.Board, error) {
	if board, ok := c.loadBoardFromCache(ctx, userID); ok {
		return board, nil
	}

	board, err := c.base.FetchBoard(ctx, userID)
	if err != nil {
		return domain.Board{}, err
	}

	c.storeBoard(ctx, userID, board)
	return board, nil
}

func (c *Cache) FetchSettings(ctx context.Context, userID string) (domain.Settings, error) {
	if settings, ok := c.loadSettingsFromCache(ctx, userID); ok {
		return settings, nil
	}

	settings, err := c.base.FetchSettings(ctx, userID)
	if err != nil {
		return domain.Settings{}, err
	}

	c.storeSettings(ctx, userID, settings)
	return settings, nil
}

// InvalidateBoard drops the user's cached board. The background resolver
// calls this after renormalizing positions behind the cache's back.
func (c *Cache) InvalidateBoard(ctx context.Context, userID string) {
	if c.redis == nil {
		return
	}
	_ = c.redis.Del(ctx, boardCacheKey(userID)).Err()
}

func (c *Cache) InsertTask(ctx context.Context, userID string, t domain.Task) error {
	return c.evictAfter(ctx, userID, c.base.InsertTask(ctx, userID, t))
}

func (c *Cache) UpdateTask(ctx context.Context, userID, taskID string, upd TaskUpdate, updatedAt int64) error {
	return c.evictAfter(ctx, userID, c.base.UpdateTask(ctx, userID, taskID, upd, updatedAt))
}

func (c *Cache) UpdateTaskPosition(ctx context.Context, userID, taskID, categoryID string, position float64, updatedAt int64) error {
	return c.evictAfter(ctx, userID, c.base.UpdateTaskPosition(ctx, userID, taskID, categoryID, position, updatedAt))
}

func (c *Cache) DeleteTask(ctx context.Context, userID, taskID string) error {
	return c.evictAfter(ctx, userID, c.base.DeleteTask(ctx, userID, taskID))
}

func (c *Cache) InsertCategory(ctx context.Context, userID string, cat domain.Category) error {
	return c.evictAfter(ctx, userID, c.base.InsertCategory(ctx, userID, cat))
}

func (c *Cache) UpdateCategoryTitle(ctx context.Context, userID, categoryID, title string, updatedAt int64) error {
	return c.evictAfter(ctx, userID, c.base.UpdateCategoryTitle(ctx, userID, categoryID, title, updatedAt))
}

func (c *Cache) UpdateCategoryPosition(ctx context.Context, userID, categoryID string, position float64, updatedAt int64) error {
	return c.evictAfter(ctx, userID, c.base.UpdateCategoryPosition(ctx, userID, categoryID, position, updatedAt))
}

func (c *Cache) DeleteCategory(ctx context.Context, userID, categoryID string) error {
	return c.evictAfter(ctx, userID, c.base.DeleteCategory(ctx, userID, categoryID))
}

func (c *Cache) InsertProject(ctx context.Context, userID string, p domain.Project) error {
	return c.evictAfter(ctx, userID, c.base.InsertProject(ctx, userID, p))
}

func (c *Cache) UpdateProjectTitle(ctx context.Context, userID, projectID, title string, updatedAt int64) error {
	return c.evictAfter(ctx, userID, c.base.UpdateProjectTitle(ctx, userID, projectID, title, updatedAt))
}

func (c *Cache) DeleteProject(ctx context.Context, userID, projectID string) error {
	return c.evictAfter(ctx, userID, c.base.DeleteProject(ctx, userID, projectID))
}

func (c *Cache) UpsertSettings(ctx context.Context, userID string, settings domain.Settings) error {
	return c.evictAfter(ctx, userID, c.base.UpsertSettings(ctx, userID, settings))
}

func (c *Cache) evictAfter(ctx context.Context, userID string, err error) error {
	if err != nil {
		return err
	}
	c.evict(ctx, userID)
	return nil
}

func (c *Cache) loadBoardFromCache(ctx context.Context, userID string) (domain.Board, bool) {
	if c.redis == nil {
		return domain.Board{}, false
	}
	data, err := c.redis.Get(ctx, boardCacheKey(userID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			// On redis errors fall back to the backing storage without failing.
			_ = c.redis.Del(ctx, boardCacheKey(userID)).Err()
		}
		return domain.Board{}, false
	}
	var board domain.Board
	if err := json.Unmarshal(data, &board); err != nil {
		_ = c.redis.Del(ctx, boardCacheKey(userID)).Err()
		return domain.Board{}, false
	}
	return board, true
}

func (c *Cache) loadSettingsFromCache(ctx context.Context, userID string) (domain.Settings, bool) {
	if c.redis == nil {
		return domain.Settings{}, false
	}
	data, err := c.redis.Get(ctx, settingsCacheKey(userID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			_ = c.redis.Del(ctx, settingsCacheKey(userID)).Err()
		}
		return domain.Settings{}, false
	}
	var settings domain.Settings
	if err := json.Unmarshal(data, &settings); err != nil {
		_ = c.redis.Del(ctx, settingsCacheKey(userID)).Err()
		return domain.Settings{}, false
	}
	return settings, true
}

func (c *Cache) storeBoard(ctx context.Context, userID string, board domain.Board) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := json.Marshal(board)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, boardCacheKey(userID), data, c.ttl).Err()
}

func (c *Cache) storeSettings(ctx context.Context, userID string, settings domain.Settings) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := json.Marshal(settings)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, settingsCacheKey(userID), data, c.ttl).Err()
}

func (c *Cache) evict(ctx context.Context, userID string) {
	if c.redis == nil {
		return
	}
	_, _ = c.redis.Del(ctx, boardCacheKey(userID), settingsCacheKey(userID)).Result()
}

func boardCacheKey(userID string) string {
	return "board:" + userID
}

func settingsCacheKey(userID string) string {
	return "settings:" + userID
}
