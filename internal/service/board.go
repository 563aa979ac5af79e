package service

import (
	"context"
	"strings"

	"github.com/BuzzLyutic/kanban-board/internal/model"
	"github.com/BuzzLyutic/kanban-board/internal/repo"
)

var (
	ErrValidation = model.ErrValidation
)

type BoardService struct {
	repo repo.BoardRepository
}

func NewBoardService(repo repo.BoardRepository) *BoardService {
	return &BoardService{repo: repo}
}

func (s *BoardService) List(ctx context.Context, userID string, filter model.BoardFilter) ([]model.Column, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	cols, err := s.repo.ListBoard(ctx, userID, filter)
	if err != nil {
		return nil, err
	}
	if cols == nil {
		cols = []model.Column{}
	}
	return cols, nil
}

func (s *BoardService) CreateColumn(ctx context.Context, userID string, in model.NewColumn, idempKey string) (model.Column, error) {
	in.Title = strings.TrimSpace(in.Title)
	if err := in.Validate(); err != nil { // Валидация до любых обращений к хранилищу
		return model.Column{}, err
	}

	if idempKey != "" { // Повтор с тем же ключом возвращает уже созданную колонку
		if existingID, err := s.repo.GetIdempotencyKey(ctx, userID, "column:"+idempKey); err == nil {
			if col, err := s.repo.GetColumn(ctx, userID, existingID); err == nil {
				return col, nil
			}
		}
	}

	col, err := s.repo.CreateColumn(ctx, userID, in)
	if err != nil {
		return col, err
	}

	if idempKey != "" {
		s.repo.SaveIdempotencyKey(ctx, userID, "column:"+idempKey, col.ID)
	}
	return col, nil
}

func (s *BoardService) UpdateColumn(ctx context.Context, userID, id string, patch model.ColumnPatch) (model.Column, error) {
	if patch.Title != nil {
		patch.Title = model.Ptr(strings.TrimSpace(*patch.Title))
	}
	if err := patch.Validate(); err != nil {
		return model.Column{}, err
	}
	if patch.Empty() {
		return model.Column{}, ErrValidation
	}
	return s.repo.UpdateColumn(ctx, userID, id, patch)
}

func (s *BoardService) DeleteColumn(ctx context.Context, userID, id string) error {
	return s.repo.DeleteColumn(ctx, userID, id)
}

func (s *BoardService) CreateTask(ctx context.Context, userID string, in model.NewTask, idempKey string) (model.Task, error) {
	in.Title = strings.TrimSpace(in.Title)
	if err := in.Validate(); err != nil {
		return model.Task{}, err
	}

	if idempKey != "" {
		if existingID, err := s.repo.GetIdempotencyKey(ctx, userID, "task:"+idempKey); err == nil {
			if task, err := s.repo.GetTask(ctx, userID, existingID); err == nil {
				return task, nil
			}
		}
	}

	task, err := s.repo.CreateTask(ctx, userID, in)
	if err != nil {
		return task, err
	}

	if idempKey != "" {
		s.repo.SaveIdempotencyKey(ctx, userID, "task:"+idempKey, task.ID)
	}
	return task, nil
}

func (s *BoardService) UpdateTask(ctx context.Context, userID, id string, patch model.TaskPatch) (model.Task, error) {
	if patch.Title != nil {
		patch.Title = model.Ptr(strings.TrimSpace(*patch.Title))
	}
	if err := patch.Validate(); err != nil {
		return model.Task{}, err
	}
	if patch.Empty() {
		return model.Task{}, ErrValidation
	}

	return s.repo.UpdateTask(ctx, userID, id, patch)
}

func (s *BoardService) DeleteTask(ctx context.Context, userID, id string) error {
	return s.repo.DeleteTask(ctx, userID, id)
}
