// Package board holds the client's in-memory mirror of the column/task tree.
//
// State is a value: every mutator returns a new State and never writes to the
// receiver's slices, so a snapshot handed to a renderer stays stable while the
// controller moves on. Mutators that cannot find their target return the
// receiver unchanged.
package board

import (
	"fmt"

	"github.com/BuzzLyutic/kanban-board/internal/model"
)

type State struct {
	columns []model.Column
}

// Transform is a pure function from one board state to the next.
type Transform func(State) State

// New builds a State from a fetch response. The input is deep-copied.
func New(columns []model.Column) State {
	return State{columns: cloneColumns(columns)}
}

// Columns returns a deep copy of the column sequence.
func (s State) Columns() []model.Column {
	return cloneColumns(s.columns)
}

func (s State) Len() int {
	return len(s.columns)
}

func (s State) ColumnIndex(id string) int {
	for i, c := range s.columns {
		if c.ID == id {
			return i
		}
	}
	return -1
}

func (s State) Column(id string) (model.Column, bool) {
	i := s.ColumnIndex(id)
	if i < 0 {
		return model.Column{}, false
	}
	return cloneColumn(s.columns[i]), true
}

// LocateTask returns the owning column index and the task's index inside it.
func (s State) LocateTask(id string) (col, idx int, ok bool) {
	for ci, c := range s.columns {
		for ti, t := range c.Tasks {
			if t.ID == id {
				return ci, ti, true
			}
		}
	}
	return -1, -1, false
}

func (s State) Task(id string) (model.Task, bool) {
	ci, ti, ok := s.LocateTask(id)
	if !ok {
		return model.Task{}, false
	}
	return s.columns[ci].Tasks[ti], true
}

// ColumnIDs and TaskIDs are mostly useful for assertions and logging.
func (s State) ColumnIDs() []string {
	ids := make([]string, len(s.columns))
	for i, c := range s.columns {
		ids[i] = c.ID
	}
	return ids
}

func (s State) TaskIDs(columnID string) []string {
	i := s.ColumnIndex(columnID)
	if i < 0 {
		return nil
	}
	ids := make([]string, len(s.columns[i].Tasks))
	for j, t := range s.columns[i].Tasks {
		ids[j] = t.ID
	}
	return ids
}

// MoveColumn repositions the column at from to index to.
func (s State) MoveColumn(from, to int) State {
	if !inRange(from, len(s.columns)) || !inRange(to, len(s.columns)) || from == to {
		return s
	}
	cols := ArrayMove(s.columns, from, to)
	cols[to].Order = to
	return State{columns: cols}
}

// MoveTaskWithin reorders a task inside one column.
func (s State) MoveTaskWithin(columnID string, from, to int) State {
	ci := s.ColumnIndex(columnID)
	if ci < 0 {
		return s
	}
	tasks := s.columns[ci].Tasks
	if !inRange(from, len(tasks)) || !inRange(to, len(tasks)) || from == to {
		return s
	}
	moved := ArrayMove(tasks, from, to)
	moved[to].Order = to

	cols := shallowColumns(s.columns)
	cols[ci].Tasks = moved
	return State{columns: cols}
}

// MoveTaskAcross removes a task from its column and inserts it at index to of
// another column. to may equal the destination length (append).
func (s State) MoveTaskAcross(taskID, toColumnID string, to int) State {
	fromCol, fromIdx, ok := s.LocateTask(taskID)
	if !ok {
		return s
	}
	toCol := s.ColumnIndex(toColumnID)
	if toCol < 0 || toCol == fromCol {
		return s
	}
	dest := s.columns[toCol].Tasks
	if to < 0 || to > len(dest) {
		return s
	}

	task := s.columns[fromCol].Tasks[fromIdx]
	task.ColumnID = toColumnID
	task.Order = to

	origin := make([]model.Task, 0, len(s.columns[fromCol].Tasks)-1)
	origin = append(origin, s.columns[fromCol].Tasks[:fromIdx]...)
	origin = append(origin, s.columns[fromCol].Tasks[fromIdx+1:]...)

	target := make([]model.Task, 0, len(dest)+1)
	target = append(target, dest[:to]...)
	target = append(target, task)
	target = append(target, dest[to:]...)

	cols := shallowColumns(s.columns)
	cols[fromCol].Tasks = origin
	cols[toCol].Tasks = target
	return State{columns: cols}
}

// UpdateTask writes field changes onto a task in place. Position fields in
// the patch are ignored here; moves go through the Move* mutators.
func (s State) UpdateTask(id string, patch model.TaskPatch) State {
	ci, ti, ok := s.LocateTask(id)
	if !ok {
		return s
	}
	patch.Order = nil
	patch.ColumnID = nil
	if patch.Empty() {
		return s
	}
	tasks := make([]model.Task, len(s.columns[ci].Tasks))
	copy(tasks, s.columns[ci].Tasks)
	tasks[ti] = patch.Apply(tasks[ti])

	cols := shallowColumns(s.columns)
	cols[ci].Tasks = tasks
	return State{columns: cols}
}

func (s State) UpdateColumn(id string, patch model.ColumnPatch) State {
	ci := s.ColumnIndex(id)
	patch.Order = nil
	if ci < 0 || patch.Empty() {
		return s
	}
	cols := shallowColumns(s.columns)
	cols[ci] = patch.Apply(cols[ci])
	return State{columns: cols}
}

func (s State) RemoveTask(id string) State {
	ci, ti, ok := s.LocateTask(id)
	if !ok {
		return s
	}
	old := s.columns[ci].Tasks
	tasks := make([]model.Task, 0, len(old)-1)
	tasks = append(tasks, old[:ti]...)
	tasks = append(tasks, old[ti+1:]...)

	cols := shallowColumns(s.columns)
	cols[ci].Tasks = tasks
	return State{columns: cols}
}

func (s State) RemoveColumn(id string) State {
	ci := s.ColumnIndex(id)
	if ci < 0 {
		return s
	}
	cols := make([]model.Column, 0, len(s.columns)-1)
	cols = append(cols, s.columns[:ci]...)
	cols = append(cols, s.columns[ci+1:]...)
	return State{columns: cols}
}

// Validate checks the membership invariant: every task id appears exactly
// once across all columns.
func (s State) Validate() error {
	seen := make(map[string]string)
	for _, c := range s.columns {
		for _, t := range c.Tasks {
			if owner, dup := seen[t.ID]; dup {
				return fmt.Errorf("task %s in both %s and %s", t.ID, owner, c.ID)
			}
			seen[t.ID] = c.ID
		}
	}
	return nil
}

func inRange(i, n int) bool {
	return i >= 0 && i < n
}

// shallowColumns copies the column headers; task slices are still shared and
// must be replaced, not written, by the caller.
func shallowColumns(cols []model.Column) []model.Column {
	out := make([]model.Column, len(cols))
	copy(out, cols)
	return out
}

func cloneColumns(cols []model.Column) []model.Column {
	if cols == nil {
		return nil
	}
	out := make([]model.Column, len(cols))
	for i, c := range cols {
		out[i] = cloneColumn(c)
	}
	return out
}

func cloneColumn(c model.Column) model.Column {
	tasks := make([]model.Task, len(c.Tasks))
	for i, t := range c.Tasks {
		if t.Description != nil {
			d := *t.Description
			t.Description = &d
		}
		if t.ColumnID == "" {
			t.ColumnID = c.ID
		}
		tasks[i] = t
	}
	c.Tasks = tasks
	return c
}
