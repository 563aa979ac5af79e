// Package dnd turns drag gestures into board moves.
//
// The engine keeps one gesture at a time. Nothing touches the board while an
// item is dragged; on drop the planned move is applied locally and sent as a
// single mutation through the Committer.
package dnd

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/BuzzLyutic/kanban-board/internal/board"
	"github.com/BuzzLyutic/kanban-board/internal/reconcile"
)

var (
	ErrAlreadyDragging = errors.New("a drag is already in progress")
	ErrDragLocked      = errors.New("dragging is disabled while editing")
	ErrUnknownItem     = errors.New("drag source not on the board")
)

type Phase int

const (
	PhaseIdle Phase = iota
	PhaseDragging
)

func (p Phase) String() string {
	if p == PhaseDragging {
		return "dragging"
	}
	return "idle"
}

// Committer plans a change against its current state, applies it
// optimistically and sends the matching request, all from one state.
// *reconcile.Controller implements it.
type Committer interface {
	Snapshot() board.State
	CommitPlan(plan reconcile.Planner) *reconcile.Op
}

type Engine struct {
	board  Committer
	api    Mutations
	logger *zap.Logger

	mu      sync.Mutex
	phase   Phase
	active  Item
	editing bool
}

func NewEngine(b Committer, api Mutations, logger *zap.Logger) *Engine {
	return &Engine{board: b, api: api, logger: logger}
}

func (e *Engine) Phase() Phase {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.phase
}

// Active returns the dragged item, if any.
func (e *Engine) Active() (Item, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active, e.phase == PhaseDragging
}

// SetEditing locks drag sources while an inline edit is open.
func (e *Engine) SetEditing(editing bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.editing = editing
}

func (e *Engine) DragStart(item Item) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.editing {
		return ErrDragLocked
	}
	if e.phase == PhaseDragging {
		return ErrAlreadyDragging
	}

	s := e.board.Snapshot()
	switch item.Kind {
	case KindColumn:
		if s.ColumnIndex(item.ID) < 0 {
			return ErrUnknownItem
		}
	case KindTask:
		if _, _, ok := s.LocateTask(item.ID); !ok {
			return ErrUnknownItem
		}
	default:
		return ErrUnknownItem
	}

	e.phase = PhaseDragging
	e.active = item
	return nil
}

// DragCancel abandons the gesture without touching the board.
func (e *Engine) DragCancel() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.reset()
}

// DragEnd finishes the gesture. A nil target, a drop on the dragged item or
// a drop that leaves it in place returns nil and changes nothing. Otherwise
// the move is committed and its op returned.
func (e *Engine) DragEnd(over *Item) *reconcile.Op {
	e.mu.Lock()
	if e.phase != PhaseDragging {
		e.mu.Unlock()
		return nil
	}
	active := e.active
	e.reset()
	e.mu.Unlock()

	if over == nil {
		return nil
	}

	target := *over
	return e.board.CommitPlan(func(s board.State) (reconcile.Change, bool) {
		mv, ok := Plan(s, active, target)
		if !ok {
			e.logger.Debug("drop ignored",
				zap.Stringer("kind", active.Kind),
				zap.String("id", active.ID),
				zap.String("over", target.ID),
			)
			return reconcile.Change{}, false
		}

		e.logger.Debug("drop", zap.Stringer("move", mv))
		return reconcile.Change{
			Label: mv.String(),
			Apply: mv.Apply,
			Send: func(ctx context.Context) error {
				return mv.Send(ctx, e.api)
			},
		}, true
	})
}

// Drop runs a whole gesture in one call.
func (e *Engine) Drop(active, over Item) (*reconcile.Op, error) {
	if err := e.DragStart(active); err != nil {
		return nil, err
	}
	return e.DragEnd(&over), nil
}

func (e *Engine) reset() {
	e.phase = PhaseIdle
	e.active = Item{}
}
