package dnd

import (
	"context"
	"fmt"

	"github.com/BuzzLyutic/kanban-board/internal/board"
	"github.com/BuzzLyutic/kanban-board/internal/model"
)

type Kind int

const (
	KindTask Kind = iota + 1
	KindColumn
)

func (k Kind) String() string {
	switch k {
	case KindTask:
		return "task"
	case KindColumn:
		return "column"
	}
	return "unknown"
}

// Item identifies a drag source or a drop target.
type Item struct {
	Kind Kind
	ID   string
}

func Task(id string) Item   { return Item{Kind: KindTask, ID: id} }
func Column(id string) Item { return Item{Kind: KindColumn, ID: id} }

// Mutations is the part of the API a completed drop talks to.
type Mutations interface {
	UpdateTask(ctx context.Context, id string, patch model.TaskPatch) (model.Task, error)
	UpdateColumn(ctx context.Context, id string, patch model.ColumnPatch) (model.Column, error)
}

// Move is a planned drop: where the item was and where it goes.
// For column moves FromColumn and ToColumn are empty and the indexes are
// positions on the board.
type Move struct {
	Kind       Kind
	ID         string
	FromColumn string
	ToColumn   string
	From       int
	To         int
}

func (m Move) CrossColumn() bool {
	return m.Kind == KindTask && m.FromColumn != m.ToColumn
}

// Apply is the optimistic transform for the move.
func (m Move) Apply(s board.State) board.State {
	switch {
	case m.Kind == KindColumn:
		return s.MoveColumn(m.From, m.To)
	case m.CrossColumn():
		return s.MoveTaskAcross(m.ID, m.ToColumn, m.To)
	default:
		return s.MoveTaskWithin(m.FromColumn, m.From, m.To)
	}
}

// Send issues the one mutation that persists the move. Siblings are never
// renumbered by the client; the server does that.
func (m Move) Send(ctx context.Context, api Mutations) error {
	switch {
	case m.Kind == KindColumn:
		_, err := api.UpdateColumn(ctx, m.ID, model.ColumnPatch{Order: model.Ptr(m.To)})
		return err
	case m.CrossColumn():
		_, err := api.UpdateTask(ctx, m.ID, model.TaskPatch{
			ColumnID: model.Ptr(m.ToColumn),
			Order:    model.Ptr(m.To),
		})
		return err
	default:
		_, err := api.UpdateTask(ctx, m.ID, model.TaskPatch{Order: model.Ptr(m.To)})
		return err
	}
}

func (m Move) String() string {
	if m.Kind == KindColumn {
		return fmt.Sprintf("move column %s %d->%d", m.ID, m.From, m.To)
	}
	return fmt.Sprintf("move task %s %s[%d]->%s[%d]", m.ID, m.FromColumn, m.From, m.ToColumn, m.To)
}

// Plan works out where active lands when dropped on over. It reports false
// when the drop is invalid or leaves the item where it is.
//
// A task dropped on another task takes that task's index in its column as it
// is at drop time. A task dropped on a column goes to the end of it; for the
// task's own column that is the last slot.
func Plan(s board.State, active, over Item) (Move, bool) {
	if active.ID == "" || over.ID == "" || active.ID == over.ID {
		return Move{}, false
	}

	switch active.Kind {
	case KindColumn:
		if over.Kind != KindColumn {
			return Move{}, false
		}
		from, to := s.ColumnIndex(active.ID), s.ColumnIndex(over.ID)
		if from < 0 || to < 0 || from == to {
			return Move{}, false
		}
		return Move{Kind: KindColumn, ID: active.ID, From: from, To: to}, true

	case KindTask:
		fromCol, fromIdx, ok := s.LocateTask(active.ID)
		if !ok {
			return Move{}, false
		}
		cols := s.Columns()

		var toCol, toIdx int
		switch over.Kind {
		case KindTask:
			toCol, toIdx, ok = s.LocateTask(over.ID)
			if !ok {
				return Move{}, false
			}
		case KindColumn:
			toCol = s.ColumnIndex(over.ID)
			if toCol < 0 {
				return Move{}, false
			}
			toIdx = len(cols[toCol].Tasks)
			if toCol == fromCol {
				// The end slot of its own column is len-1 once the task is
				// removed; the server clamps len to the same place.
				toIdx--
			}
		default:
			return Move{}, false
		}

		if toCol == fromCol && toIdx == fromIdx {
			return Move{}, false
		}
		return Move{
			Kind:       KindTask,
			ID:         active.ID,
			FromColumn: cols[fromCol].ID,
			ToColumn:   cols[toCol].ID,
			From:       fromIdx,
			To:         toIdx,
		}, true
	}
	return Move{}, false
}
