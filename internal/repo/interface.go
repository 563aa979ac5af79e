package repo

import (
	"context"
	"errors"

	"github.com/BuzzLyutic/kanban-board/internal/model"
)

var (
	ErrorNotFound = errors.New("not found")
	ErrorConflict = errors.New("conflict")
)

// BoardRepository хранит колонки и задачи. Все методы работают в рамках доски
// одного пользователя; чужие id выглядят как несуществующие.
//
// Order is a dense 0..n-1 position within the parent. Writes that carry an
// order insert at that position, clamped to the valid range, and shift the
// siblings; removals close the gap.
type BoardRepository interface {
	ListBoard(ctx context.Context, userID string, filter model.BoardFilter) ([]model.Column, error)
	GetColumn(ctx context.Context, userID, id string) (model.Column, error)
	CreateColumn(ctx context.Context, userID string, in model.NewColumn) (model.Column, error)
	UpdateColumn(ctx context.Context, userID, id string, patch model.ColumnPatch) (model.Column, error)
	DeleteColumn(ctx context.Context, userID, id string) error

	GetTask(ctx context.Context, userID, id string) (model.Task, error)
	CreateTask(ctx context.Context, userID string, in model.NewTask) (model.Task, error)
	UpdateTask(ctx context.Context, userID, id string, patch model.TaskPatch) (model.Task, error)
	DeleteTask(ctx context.Context, userID, id string) error

	SaveIdempotencyKey(ctx context.Context, userID, key, resourceID string) error
	GetIdempotencyKey(ctx context.Context, userID, key string) (string, error)
}

// UserUpdate carries already validated and hashed profile changes.
type UserUpdate struct {
	Name         *string
	Email        *string
	PasswordHash *string
}

type UserRepository interface {
	CreateUser(ctx context.Context, u model.User, passwordHash string) (model.User, error)
	// UserByEmail returns the user together with the stored password hash.
	UserByEmail(ctx context.Context, email string) (model.User, string, error)
	UserByID(ctx context.Context, id string) (model.User, error)
	UpdateUser(ctx context.Context, id string, upd UserUpdate) (model.User, error)
}
