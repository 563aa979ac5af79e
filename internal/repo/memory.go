package repo

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/BuzzLyutic/kanban-board/internal/model"
)

// Memory is an in-process store for development and end-to-end tests. It
// implements both BoardRepository and UserRepository.
type Memory struct {
	mu sync.RWMutex

	users  map[string]model.User
	hashes map[string]string
	emails map[string]string // lowercased email -> user id

	boards map[string]*memBoard
	idem   map[string]string

	newID func() string
}

type memBoard struct {
	order   []string // column ids
	columns map[string]*memColumn
	tasks   map[string]model.Task
}

type memColumn struct {
	title string
	tasks []string
}

func NewMemory() *Memory {
	return &Memory{
		users:  make(map[string]model.User),
		hashes: make(map[string]string),
		emails: make(map[string]string),
		boards: make(map[string]*memBoard),
		idem:   make(map[string]string),
		newID:  uuid.NewString,
	}
}

// board returns the user's board, creating it on first write.
func (m *Memory) board(userID string) *memBoard {
	b, ok := m.boards[userID]
	if !ok {
		b = &memBoard{columns: make(map[string]*memColumn), tasks: make(map[string]model.Task)}
		m.boards[userID] = b
	}
	return b
}

func (m *Memory) ListBoard(ctx context.Context, userID string, filter model.BoardFilter) ([]model.Column, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.boards[userID]
	if !ok {
		return []model.Column{}, nil
	}
	out := make([]model.Column, 0, len(b.order))
	for _, id := range b.order {
		col := b.column(id)
		matched := col.Tasks[:0]
		for _, t := range col.Tasks {
			if matchTask(t, filter) {
				matched = append(matched, t)
			}
		}
		col.Tasks = matched
		out = append(out, col)
	}
	return out, nil
}

func (m *Memory) GetColumn(ctx context.Context, userID, id string) (model.Column, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.boards[userID]
	if !ok || b.columns[id] == nil {
		return model.Column{}, ErrorNotFound
	}
	return b.column(id), nil
}

func (m *Memory) CreateColumn(ctx context.Context, userID string, in model.NewColumn) (model.Column, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b := m.board(userID)
	id := m.newID()
	b.columns[id] = &memColumn{title: in.Title}
	b.order = insertID(b.order, id, in.Order)
	return b.column(id), nil
}

func (m *Memory) UpdateColumn(ctx context.Context, userID, id string, patch model.ColumnPatch) (model.Column, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.boards[userID]
	if !ok || b.columns[id] == nil {
		return model.Column{}, ErrorNotFound
	}
	if patch.Title != nil {
		b.columns[id].title = *patch.Title
	}
	if patch.Order != nil {
		b.order = moveID(b.order, id, *patch.Order)
	}
	return b.column(id), nil
}

func (m *Memory) DeleteColumn(ctx context.Context, userID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.boards[userID]
	if !ok || b.columns[id] == nil {
		return ErrorNotFound
	}
	for _, tid := range b.columns[id].tasks {
		delete(b.tasks, tid)
	}
	delete(b.columns, id)
	b.order = removeID(b.order, id)
	return nil
}

func (m *Memory) GetTask(ctx context.Context, userID, id string) (model.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.boards[userID]
	if !ok {
		return model.Task{}, ErrorNotFound
	}
	t, ok := b.task(id)
	if !ok {
		return model.Task{}, ErrorNotFound
	}
	return t, nil
}

func (m *Memory) CreateTask(ctx context.Context, userID string, in model.NewTask) (model.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.boards[userID]
	if !ok || b.columns[in.ColumnID] == nil {
		return model.Task{}, ErrorNotFound
	}

	t := model.Task{
		ID:       m.newID(),
		Title:    in.Title,
		Status:   model.StatusPending,
		ColumnID: in.ColumnID,
	}
	if in.Description != nil {
		t.Description = model.Ptr(*in.Description)
	}
	if in.Status != nil {
		t.Status = *in.Status
	}
	b.tasks[t.ID] = t

	col := b.columns[in.ColumnID]
	col.tasks = insertID(col.tasks, t.ID, in.Order)

	t, _ = b.task(t.ID)
	return t, nil
}

func (m *Memory) UpdateTask(ctx context.Context, userID, id string, patch model.TaskPatch) (model.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.boards[userID]
	if !ok {
		return model.Task{}, ErrorNotFound
	}
	t, ok := b.tasks[id]
	if !ok {
		return model.Task{}, ErrorNotFound
	}

	switch {
	case patch.ColumnID != nil && *patch.ColumnID != t.ColumnID:
		dest := b.columns[*patch.ColumnID]
		if dest == nil {
			return model.Task{}, ErrorNotFound
		}
		origin := b.columns[t.ColumnID]
		origin.tasks = removeID(origin.tasks, id)
		dest.tasks = insertID(dest.tasks, id, patch.Order)
		t.ColumnID = *patch.ColumnID
	case patch.Order != nil:
		col := b.columns[t.ColumnID]
		col.tasks = moveID(col.tasks, id, *patch.Order)
	}

	// Position fields were handled above.
	fields := patch
	fields.Order, fields.ColumnID = nil, nil
	b.tasks[id] = fields.Apply(t)

	t, _ = b.task(id)
	return t, nil
}

func (m *Memory) DeleteTask(ctx context.Context, userID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.boards[userID]
	if !ok {
		return ErrorNotFound
	}
	t, ok := b.tasks[id]
	if !ok {
		return ErrorNotFound
	}
	col := b.columns[t.ColumnID]
	col.tasks = removeID(col.tasks, id)
	delete(b.tasks, id)
	return nil
}

func (m *Memory) SaveIdempotencyKey(ctx context.Context, userID, key, resourceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.idem[idemKey(userID, key)]; !ok {
		m.idem[idemKey(userID, key)] = resourceID
	}
	return nil
}

func (m *Memory) GetIdempotencyKey(ctx context.Context, userID, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.idem[idemKey(userID, key)]
	if !ok {
		return "", ErrorNotFound
	}
	return id, nil
}

func (m *Memory) CreateUser(ctx context.Context, u model.User, passwordHash string) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	email := strings.ToLower(u.Email)
	if _, taken := m.emails[email]; taken {
		return model.User{}, ErrorConflict
	}
	u.ID = m.newID()
	u.Email = email
	m.users[u.ID] = u
	m.hashes[u.ID] = passwordHash
	m.emails[email] = u.ID
	return u, nil
}

func (m *Memory) UserByEmail(ctx context.Context, email string) (model.User, string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.emails[strings.ToLower(email)]
	if !ok {
		return model.User{}, "", ErrorNotFound
	}
	return m.users[id], m.hashes[id], nil
}

func (m *Memory) UserByID(ctx context.Context, id string) (model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return model.User{}, ErrorNotFound
	}
	return u, nil
}

func (m *Memory) UpdateUser(ctx context.Context, id string, upd UserUpdate) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return model.User{}, ErrorNotFound
	}
	if upd.Email != nil {
		email := strings.ToLower(*upd.Email)
		if owner, taken := m.emails[email]; taken && owner != id {
			return model.User{}, ErrorConflict
		}
		delete(m.emails, u.Email)
		m.emails[email] = id
		u.Email = email
	}
	if upd.Name != nil {
		u.Name = *upd.Name
	}
	if upd.PasswordHash != nil {
		m.hashes[id] = *upd.PasswordHash
	}
	m.users[id] = u
	return u, nil
}

// column materialises a column with its tasks in position order.
func (b *memBoard) column(id string) model.Column {
	c := b.columns[id]
	col := model.Column{
		ID:    id,
		Title: c.title,
		Order: slices.Index(b.order, id),
		Tasks: make([]model.Task, 0, len(c.tasks)),
	}
	for i, tid := range c.tasks {
		t := b.tasks[tid]
		t.Order = i
		col.Tasks = append(col.Tasks, t)
	}
	return col
}

func (b *memBoard) task(id string) (model.Task, bool) {
	t, ok := b.tasks[id]
	if !ok {
		return model.Task{}, false
	}
	t.Order = slices.Index(b.columns[t.ColumnID].tasks, id)
	return t, true
}
