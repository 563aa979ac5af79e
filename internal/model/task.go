package model

import (
	"errors"
	"strings"
)

var ErrValidation = errors.New("validation error")

type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"

	// StatusAll is a filter value only; tasks never carry it.
	StatusAll Status = "all"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

type Task struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description *string `json:"description"`
	Status      Status  `json:"status"`
	Order       int     `json:"order"`
	ColumnID    string  `json:"columnId,omitempty"`
}

// NewTask is the create intent for a task. The server allocates the id.
type NewTask struct {
	Title       string  `json:"title"`
	ColumnID    string  `json:"columnId"`
	Description *string `json:"description,omitempty"`
	Status      *Status `json:"status,omitempty"`
	Order       *int    `json:"order,omitempty"`
}

// TaskPatch is a partial update; nil fields are left unchanged.
type TaskPatch struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Status      *Status `json:"status,omitempty"`
	Order       *int    `json:"order,omitempty"`
	ColumnID    *string `json:"columnId,omitempty"`
}

func (p TaskPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Status == nil && p.Order == nil && p.ColumnID == nil
}

// Apply returns t with the patch fields written over it.
func (p TaskPatch) Apply(t Task) Task {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		d := *p.Description
		t.Description = &d
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.Order != nil {
		t.Order = *p.Order
	}
	if p.ColumnID != nil {
		t.ColumnID = *p.ColumnID
	}
	return t
}

func (p TaskPatch) Validate() error {
	if p.Title != nil {
		if err := ValidateTitle(*p.Title); err != nil {
			return err
		}
	}
	if p.Status != nil && !p.Status.Valid() {
		return ErrValidation
	}
	if p.Order != nil && *p.Order < 0 {
		return ErrValidation
	}
	if p.ColumnID != nil && strings.TrimSpace(*p.ColumnID) == "" {
		return ErrValidation
	}
	return nil
}

func (n NewTask) Validate() error {
	if err := ValidateTitle(n.Title); err != nil {
		return err
	}
	if strings.TrimSpace(n.ColumnID) == "" {
		return ErrValidation
	}
	if n.Status != nil && !n.Status.Valid() {
		return ErrValidation
	}
	if n.Order != nil && *n.Order < 0 {
		return ErrValidation
	}
	return nil
}

func ValidateTitle(title string) error {
	if strings.TrimSpace(title) == "" {
		return ErrValidation
	}
	return nil
}

// Ptr is a convenience for filling patch fields.
func Ptr[T any](v T) *T {
	return &v
}
