package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/kanban-board/internal/auth"
	"github.com/BuzzLyutic/kanban-board/internal/model"
	"github.com/BuzzLyutic/kanban-board/internal/repo"
	"github.com/BuzzLyutic/kanban-board/internal/service"
	"github.com/BuzzLyutic/kanban-board/pkg/respond"
)

type BoardHandler struct {
	service *service.BoardService
	logger  *zap.Logger
}

func NewBoardHandler(srv *service.BoardService, logger *zap.Logger) *BoardHandler {
	return &BoardHandler{
		service: srv,
		logger:  logger,
	}
}

func (h *BoardHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := model.BoardFilter{
		Status: model.Status(q.Get("status")),
		Search: q.Get("q"),
	}

	cols, err := h.service.List(r.Context(), auth.UserID(r.Context()), filter)
	if err != nil {
		handleErrors(w, r, h.logger, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, cols)
}

func (h *BoardHandler) CreateColumn(w http.ResponseWriter, r *http.Request) {
	var req model.NewColumn
	if !decode(w, r, h.logger, &req) {
		return
	}

	col, err := h.service.CreateColumn(r.Context(), auth.UserID(r.Context()), req, r.Header.Get("Idempotency-Key"))
	if err != nil {
		handleErrors(w, r, h.logger, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/columns/%s", col.ID))
	respond.JSON(w, r, http.StatusCreated, col)
}

func (h *BoardHandler) UpdateColumn(w http.ResponseWriter, r *http.Request) {
	var req model.ColumnPatch
	if !decode(w, r, h.logger, &req) {
		return
	}

	col, err := h.service.UpdateColumn(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "id"), req)
	if err != nil {
		handleErrors(w, r, h.logger, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, col)
}

func (h *BoardHandler) DeleteColumn(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteColumn(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "id")); err != nil {
		handleErrors(w, r, h.logger, err)
		return
	}
	respond.NoContent(w, r)
}

func (h *BoardHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	var req model.NewTask
	if !decode(w, r, h.logger, &req) {
		return
	}

	task, err := h.service.CreateTask(r.Context(), auth.UserID(r.Context()), req, r.Header.Get("Idempotency-Key"))
	if err != nil {
		handleErrors(w, r, h.logger, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/tasks/%s", task.ID))
	respond.JSON(w, r, http.StatusCreated, task)
}

func (h *BoardHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	var req model.TaskPatch
	if !decode(w, r, h.logger, &req) {
		return
	}

	task, err := h.service.UpdateTask(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "id"), req)
	if err != nil {
		handleErrors(w, r, h.logger, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, task)
}

func (h *BoardHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteTask(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "id")); err != nil {
		handleErrors(w, r, h.logger, err)
		return
	}
	respond.NoContent(w, r)
}

// decode читает JSON тело запроса; при ошибке ответ уже записан.
func decode(w http.ResponseWriter, r *http.Request, logger *zap.Logger, v any) bool {
	if r.Body == nil || r.ContentLength == 0 {
		respond.Error(w, r, http.StatusBadRequest, "empty request body")
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			respond.Error(w, r, http.StatusBadRequest, "empty request body")
			return false
		}
		logger.Debug("failed to decode json", zap.Error(err))
		respond.Error(w, r, http.StatusBadRequest, fmt.Sprintf("invalid json: %v", err))
		return false
	}
	return true
}

func handleErrors(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	switch {
	case errors.Is(err, repo.ErrorNotFound):
		respond.Error(w, r, http.StatusNotFound, "not found")
	case errors.Is(err, repo.ErrorConflict):
		respond.Error(w, r, http.StatusConflict, "conflict")
	case errors.Is(err, service.ErrValidation):
		respond.Error(w, r, http.StatusBadRequest, "validation error")
	case errors.Is(err, service.ErrInvalidCredentials):
		respond.Error(w, r, http.StatusUnauthorized, "invalid email or password")
	default:
		logger.Error("internal error", zap.Error(err))
		respond.Error(w, r, http.StatusInternalServerError, "internal error")
	}
}
