package client

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/BuzzLyutic/kanban-board/internal/model"
)

// FetchBoard returns the full ordered column/task tree matching filter.
func (c *Client) FetchBoard(ctx context.Context, filter model.BoardFilter) ([]model.Column, error) {
	q := url.Values{}
	if s := filter.StatusParam(); s != "" {
		q.Set("status", s)
	}
	if s := filter.SearchParam(); s != "" {
		q.Set("q", s)
	}

	var cols []model.Column
	err := c.do(ctx, request{method: http.MethodGet, path: "/columns", query: q, out: &cols})
	if err != nil {
		return nil, err
	}
	if cols == nil {
		cols = []model.Column{}
	}
	return cols, nil
}

func (c *Client) CreateColumn(ctx context.Context, in model.NewColumn) (model.Column, error) {
	var col model.Column
	err := c.do(ctx, request{
		method:         http.MethodPost,
		path:           "/columns",
		body:           in,
		out:            &col,
		idempotencyKey: c.newKey(),
	})
	return col, err
}

func (c *Client) UpdateColumn(ctx context.Context, id string, patch model.ColumnPatch) (model.Column, error) {
	var col model.Column
	err := c.do(ctx, request{method: http.MethodPatch, path: "/columns/" + escape(id), body: patch, out: &col})
	return col, err
}

// DeleteColumn succeeds when the column is already gone.
func (c *Client) DeleteColumn(ctx context.Context, id string) error {
	return c.delete(ctx, "/columns/"+escape(id))
}

func (c *Client) CreateTask(ctx context.Context, in model.NewTask) (model.Task, error) {
	var t model.Task
	err := c.do(ctx, request{
		method:         http.MethodPost,
		path:           "/tasks",
		body:           in,
		out:            &t,
		idempotencyKey: c.newKey(),
	})
	return t, err
}

func (c *Client) UpdateTask(ctx context.Context, id string, patch model.TaskPatch) (model.Task, error) {
	var t model.Task
	err := c.do(ctx, request{method: http.MethodPatch, path: "/tasks/" + escape(id), body: patch, out: &t})
	return t, err
}

// DeleteTask succeeds when the task is already gone.
func (c *Client) DeleteTask(ctx context.Context, id string) error {
	return c.delete(ctx, "/tasks/"+escape(id))
}

func (c *Client) delete(ctx context.Context, path string) error {
	err := c.do(ctx, request{method: http.MethodDelete, path: path})
	if errors.Is(err, ErrNotFound) {
		c.logger.Debug("delete target already absent", zap.String("path", path))
		return nil
	}
	return err
}
