package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BuzzLyutic/kanban-board/internal/board"
	"github.com/BuzzLyutic/kanban-board/internal/model"
)

// CreateColumn creates a column and then one task per non-blank seed title,
// concurrently. The board is refreshed once after every request has settled.
// Creation is not optimistic: nothing is shown until the server answers.
func (c *Controller) CreateColumn(ctx context.Context, title string, seeds []string) (model.Column, error) {
	in := model.NewColumn{Title: strings.TrimSpace(title)}
	if err := in.Validate(); err != nil {
		return model.Column{}, err
	}

	titles := make([]string, 0, len(seeds))
	for _, s := range seeds {
		if s = strings.TrimSpace(s); s != "" {
			titles = append(titles, s)
		}
	}

	c.begin()
	defer c.end()

	col, err := c.createColumn(ctx, in, titles)
	if err != nil {
		c.report("create column", err)
	}
	if rerr := c.refresh(context.WithoutCancel(ctx)); rerr != nil && err == nil {
		c.logger.Warn("board not refreshed after column create", zap.Error(rerr))
	}
	return col, err
}

func (c *Controller) createColumn(ctx context.Context, in model.NewColumn, titles []string) (model.Column, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	col, err := c.api.CreateColumn(reqCtx, in)
	if err != nil {
		return model.Column{}, err
	}
	if len(titles) == 0 {
		return col, nil
	}

	// Every seed request runs to completion; failures are collected rather
	// than cancelling the siblings.
	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	for i, t := range titles {
		g.Go(func() error {
			_, err := c.api.CreateTask(reqCtx, model.NewTask{
				Title:    t,
				ColumnID: col.ID,
				Order:    model.Ptr(i),
			})
			if err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("seed task %q: %w", t, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	return col, errors.Join(errs...)
}

// CreateTask creates a task and refreshes the board. Not optimistic.
func (c *Controller) CreateTask(ctx context.Context, in model.NewTask) (model.Task, error) {
	in.Title = strings.TrimSpace(in.Title)
	if err := in.Validate(); err != nil {
		return model.Task{}, err
	}

	c.begin()
	defer c.end()

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	task, err := c.api.CreateTask(reqCtx, in)
	cancel()
	if err != nil {
		c.report("create task", err)
	}
	if rerr := c.refresh(context.WithoutCancel(ctx)); rerr != nil && err == nil {
		c.logger.Warn("board not refreshed after task create", zap.Error(rerr))
	}
	return task, err
}

// EditTask applies a field edit locally and sends it. Order and column
// changes belong to drag and drop and are rejected here.
func (c *Controller) EditTask(id string, patch model.TaskPatch) (*Op, error) {
	if patch.Order != nil || patch.ColumnID != nil {
		return nil, fmt.Errorf("%w: use a move to reorder tasks", model.ErrValidation)
	}
	if patch.Title != nil {
		t := strings.TrimSpace(*patch.Title)
		patch.Title = &t
	}
	if err := patch.Validate(); err != nil {
		return nil, err
	}
	if patch.Empty() {
		return nil, fmt.Errorf("%w: nothing to update", model.ErrValidation)
	}

	op := c.Commit("edit task",
		func(s board.State) board.State { return s.UpdateTask(id, patch) },
		func(ctx context.Context) error {
			_, err := c.api.UpdateTask(ctx, id, patch)
			return err
		},
	)
	return op, nil
}

// EditColumn renames a column optimistically.
func (c *Controller) EditColumn(id string, patch model.ColumnPatch) (*Op, error) {
	if patch.Order != nil {
		return nil, fmt.Errorf("%w: use a move to reorder columns", model.ErrValidation)
	}
	if patch.Title != nil {
		t := strings.TrimSpace(*patch.Title)
		patch.Title = &t
	}
	if err := patch.Validate(); err != nil {
		return nil, err
	}
	if patch.Empty() {
		return nil, fmt.Errorf("%w: nothing to update", model.ErrValidation)
	}

	op := c.Commit("edit column",
		func(s board.State) board.State { return s.UpdateColumn(id, patch) },
		func(ctx context.Context) error {
			_, err := c.api.UpdateColumn(ctx, id, patch)
			return err
		},
	)
	return op, nil
}

// DeleteTask is not applied locally; the item disappears with the refresh.
// Deleting a task the server no longer has counts as success.
func (c *Controller) DeleteTask(id string) *Op {
	return c.Commit("delete task", nil, func(ctx context.Context) error {
		return c.api.DeleteTask(ctx, id)
	})
}

// DeleteColumn removes a column together with its tasks.
func (c *Controller) DeleteColumn(id string) *Op {
	return c.Commit("delete column", nil, func(ctx context.Context) error {
		return c.api.DeleteColumn(ctx, id)
	})
}

// SetStatusFilter switches the status filter and refetches at once.
func (c *Controller) SetStatusFilter(status model.Status) error {
	f := model.BoardFilter{Status: status}
	if err := f.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	if c.filter.Status == status {
		c.mu.Unlock()
		return nil
	}
	c.filter.Status = status
	c.begin()
	c.mu.Unlock()

	go func() {
		defer c.end()
		_ = c.refresh(context.Background())
	}()
	return nil
}

// SetSearch records the search text and refetches once the text has been
// stable for the debounce interval. Each call restarts the interval.
func (c *Controller) SetSearch(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pendingSearch = text
	c.searchGen++
	gen := c.searchGen

	if c.searchTimer != nil && c.searchTimer.Stop() {
		// The previous timer never fired; release its slot.
		c.end()
	}
	c.begin()
	c.searchTimer = time.AfterFunc(c.debounce, func() {
		defer c.end()
		c.applySearch(gen)
	})
}

func (c *Controller) applySearch(gen uint64) {
	c.mu.Lock()
	if gen != c.searchGen {
		c.mu.Unlock()
		return
	}
	text := c.pendingSearch
	c.searchTimer = nil
	if c.filter.Search == text {
		c.mu.Unlock()
		return
	}
	c.filter.Search = text
	c.mu.Unlock()

	_ = c.refresh(context.Background())
}
