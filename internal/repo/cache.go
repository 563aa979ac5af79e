package repo

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/kanban-board/internal/model"
)

// CachedBoards wraps a BoardRepository with a Redis read cache for ListBoard.
// Each user has one hash holding a field per filter; any write by that user
// drops the whole hash. Redis failures fall back to the wrapped repository.
type CachedBoards struct {
	BoardRepository
	redis  *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewCachedBoards(base BoardRepository, client *redis.Client, ttl time.Duration, logger *zap.Logger) *CachedBoards {
	if ttl < 0 {
		ttl = 0
	}
	return &CachedBoards{BoardRepository: base, redis: client, ttl: ttl, logger: logger}
}

func (c *CachedBoards) ListBoard(ctx context.Context, userID string, filter model.BoardFilter) ([]model.Column, error) {
	if cols, ok := c.load(ctx, userID, filter); ok {
		return cols, nil
	}
	cols, err := c.BoardRepository.ListBoard(ctx, userID, filter)
	if err != nil {
		return nil, err
	}
	c.store(ctx, userID, filter, cols)
	return cols, nil
}

func (c *CachedBoards) CreateColumn(ctx context.Context, userID string, in model.NewColumn) (model.Column, error) {
	col, err := c.BoardRepository.CreateColumn(ctx, userID, in)
	c.evict(ctx, userID)
	return col, err
}

func (c *CachedBoards) UpdateColumn(ctx context.Context, userID, id string, patch model.ColumnPatch) (model.Column, error) {
	col, err := c.BoardRepository.UpdateColumn(ctx, userID, id, patch)
	c.evict(ctx, userID)
	return col, err
}

func (c *CachedBoards) DeleteColumn(ctx context.Context, userID, id string) error {
	err := c.BoardRepository.DeleteColumn(ctx, userID, id)
	c.evict(ctx, userID)
	return err
}

func (c *CachedBoards) CreateTask(ctx context.Context, userID string, in model.NewTask) (model.Task, error) {
	t, err := c.BoardRepository.CreateTask(ctx, userID, in)
	c.evict(ctx, userID)
	return t, err
}

func (c *CachedBoards) UpdateTask(ctx context.Context, userID, id string, patch model.TaskPatch) (model.Task, error) {
	t, err := c.BoardRepository.UpdateTask(ctx, userID, id, patch)
	c.evict(ctx, userID)
	return t, err
}

func (c *CachedBoards) DeleteTask(ctx context.Context, userID, id string) error {
	err := c.BoardRepository.DeleteTask(ctx, userID, id)
	c.evict(ctx, userID)
	return err
}

func (c *CachedBoards) load(ctx context.Context, userID string, filter model.BoardFilter) ([]model.Column, bool) {
	if c.redis == nil || c.ttl == 0 {
		return nil, false
	}
	data, err := c.redis.HGet(ctx, boardCacheKey(userID), filterField(filter)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("board cache read failed", zap.String("user", userID), zap.Error(err))
			_ = c.redis.Del(ctx, boardCacheKey(userID)).Err()
		}
		return nil, false
	}
	var cols []model.Column
	if err := json.Unmarshal(data, &cols); err != nil {
		_ = c.redis.Del(ctx, boardCacheKey(userID)).Err()
		return nil, false
	}
	return cols, true
}

func (c *CachedBoards) store(ctx context.Context, userID string, filter model.BoardFilter, cols []model.Column) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := json.Marshal(cols)
	if err != nil {
		return
	}
	key := boardCacheKey(userID)
	_, err = c.redis.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, key, filterField(filter), data)
		p.Expire(ctx, key, c.ttl)
		return nil
	})
	if err != nil {
		c.logger.Warn("board cache write failed", zap.String("user", userID), zap.Error(err))
	}
}

// evict runs after every write, failed ones included.
func (c *CachedBoards) evict(ctx context.Context, userID string) {
	if c.redis == nil {
		return
	}
	if err := c.redis.Del(ctx, boardCacheKey(userID)).Err(); err != nil {
		c.logger.Warn("board cache evict failed", zap.String("user", userID), zap.Error(err))
	}
}

func boardCacheKey(userID string) string {
	return "board:" + userID
}

func filterField(f model.BoardFilter) string {
	return f.StatusParam() + "|" + f.SearchParam()
}
