package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/BuzzLyutic/kanban-board/internal/model"
	"github.com/BuzzLyutic/kanban-board/internal/repo"
)

// MockBoardRepository - мок репозитория доски
type MockBoardRepository struct {
	mock.Mock
}

func (m *MockBoardRepository) ListBoard(ctx context.Context, userID string, filter model.BoardFilter) ([]model.Column, error) {
	args := m.Called(ctx, userID, filter)
	cols, _ := args.Get(0).([]model.Column)
	return cols, args.Error(1)
}

func (m *MockBoardRepository) GetColumn(ctx context.Context, userID, id string) (model.Column, error) {
	args := m.Called(ctx, userID, id)
	return args.Get(0).(model.Column), args.Error(1)
}

func (m *MockBoardRepository) CreateColumn(ctx context.Context, userID string, in model.NewColumn) (model.Column, error) {
	args := m.Called(ctx, userID, in)
	return args.Get(0).(model.Column), args.Error(1)
}

func (m *MockBoardRepository) UpdateColumn(ctx context.Context, userID, id string, patch model.ColumnPatch) (model.Column, error) {
	args := m.Called(ctx, userID, id, patch)
	return args.Get(0).(model.Column), args.Error(1)
}

func (m *MockBoardRepository) DeleteColumn(ctx context.Context, userID, id string) error {
	args := m.Called(ctx, userID, id)
	return args.Error(0)
}

func (m *MockBoardRepository) GetTask(ctx context.Context, userID, id string) (model.Task, error) {
	args := m.Called(ctx, userID, id)
	return args.Get(0).(model.Task), args.Error(1)
}

func (m *MockBoardRepository) CreateTask(ctx context.Context, userID string, in model.NewTask) (model.Task, error) {
	args := m.Called(ctx, userID, in)
	return args.Get(0).(model.Task), args.Error(1)
}

func (m *MockBoardRepository) UpdateTask(ctx context.Context, userID, id string, patch model.TaskPatch) (model.Task, error) {
	args := m.Called(ctx, userID, id, patch)
	return args.Get(0).(model.Task), args.Error(1)
}

func (m *MockBoardRepository) DeleteTask(ctx context.Context, userID, id string) error {
	args := m.Called(ctx, userID, id)
	return args.Error(0)
}

func (m *MockBoardRepository) SaveIdempotencyKey(ctx context.Context, userID, key, resourceID string) error {
	args := m.Called(ctx, userID, key, resourceID)
	return args.Error(0)
}

func (m *MockBoardRepository) GetIdempotencyKey(ctx context.Context, userID, key string) (string, error) {
	args := m.Called(ctx, userID, key)
	return args.String(0), args.Error(1)
}

const uid = "user-1"

func TestBoardService_CreateColumn(t *testing.T) {
	tests := []struct {
		name      string
		in        model.NewColumn
		idempKey  string
		setupMock func(*MockBoardRepository)
		want      model.Column
		wantErr   error
	}{
		{
			name: "successful creation trims the title",
			in:   model.NewColumn{Title: "  Todo  "},
			setupMock: func(m *MockBoardRepository) {
				m.On("CreateColumn", mock.Anything, uid, model.NewColumn{Title: "Todo"}).
					Return(model.Column{ID: "c1", Title: "Todo"}, nil)
			},
			want: model.Column{ID: "c1", Title: "Todo"},
		},
		{
			name:      "blank title",
			in:        model.NewColumn{Title: "   "},
			setupMock: func(m *MockBoardRepository) {},
			wantErr:   ErrValidation,
		},
		{
			name:      "negative order",
			in:        model.NewColumn{Title: "Todo", Order: model.Ptr(-1)},
			setupMock: func(m *MockBoardRepository) {},
			wantErr:   ErrValidation,
		},
		{
			name:     "new idempotency key",
			in:       model.NewColumn{Title: "Todo"},
			idempKey: "k1",
			setupMock: func(m *MockBoardRepository) {
				m.On("GetIdempotencyKey", mock.Anything, uid, "column:k1").Return("", repo.ErrorNotFound)
				m.On("CreateColumn", mock.Anything, uid, mock.Anything).Return(model.Column{ID: "c1", Title: "Todo"}, nil)
				m.On("SaveIdempotencyKey", mock.Anything, uid, "column:k1", "c1").Return(nil)
			},
			want: model.Column{ID: "c1", Title: "Todo"},
		},
		{
			name:     "repeated idempotency key",
			in:       model.NewColumn{Title: "Todo"},
			idempKey: "k1",
			setupMock: func(m *MockBoardRepository) {
				m.On("GetIdempotencyKey", mock.Anything, uid, "column:k1").Return("c1", nil)
				m.On("GetColumn", mock.Anything, uid, "c1").Return(model.Column{ID: "c1", Title: "Todo"}, nil)
			},
			want: model.Column{ID: "c1", Title: "Todo"},
		},
		{
			name:     "key of a deleted column creates again",
			in:       model.NewColumn{Title: "Todo"},
			idempKey: "k1",
			setupMock: func(m *MockBoardRepository) {
				m.On("GetIdempotencyKey", mock.Anything, uid, "column:k1").Return("c1", nil)
				m.On("GetColumn", mock.Anything, uid, "c1").Return(model.Column{}, repo.ErrorNotFound)
				m.On("CreateColumn", mock.Anything, uid, mock.Anything).Return(model.Column{ID: "c2", Title: "Todo"}, nil)
				m.On("SaveIdempotencyKey", mock.Anything, uid, "column:k1", "c2").Return(nil)
			},
			want: model.Column{ID: "c2", Title: "Todo"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := new(MockBoardRepository)
			tt.setupMock(m)
			s := NewBoardService(m)

			got, err := s.CreateColumn(context.Background(), uid, tt.in, tt.idempKey)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				m.AssertNotCalled(t, "CreateColumn", mock.Anything, mock.Anything, mock.Anything)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			m.AssertExpectations(t)
		})
	}
}

func TestBoardService_CreateTask(t *testing.T) {
	t.Run("idempotency keys are namespaced", func(t *testing.T) {
		m := new(MockBoardRepository)
		m.On("GetIdempotencyKey", mock.Anything, uid, "task:k1").Return("t1", nil)
		m.On("GetTask", mock.Anything, uid, "t1").Return(model.Task{ID: "t1"}, nil)

		got, err := NewBoardService(m).CreateTask(context.Background(), uid, model.NewTask{Title: "a", ColumnID: "c1"}, "k1")
		require.NoError(t, err)
		assert.Equal(t, "t1", got.ID)
		m.AssertExpectations(t)
	})

	t.Run("validation", func(t *testing.T) {
		m := new(MockBoardRepository)
		s := NewBoardService(m)

		for _, in := range []model.NewTask{
			{Title: " ", ColumnID: "c1"},
			{Title: "a"},
			{Title: "a", ColumnID: "c1", Status: model.Ptr(model.Status("done"))},
			{Title: "a", ColumnID: "c1", Order: model.Ptr(-2)},
		} {
			_, err := s.CreateTask(context.Background(), uid, in, "")
			assert.ErrorIs(t, err, ErrValidation)
		}
		m.AssertNotCalled(t, "CreateTask", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("not found column", func(t *testing.T) {
		m := new(MockBoardRepository)
		m.On("CreateTask", mock.Anything, uid, model.NewTask{Title: "a", ColumnID: "gone"}).
			Return(model.Task{}, repo.ErrorNotFound)

		_, err := NewBoardService(m).CreateTask(context.Background(), uid, model.NewTask{Title: " a ", ColumnID: "gone"}, "")
		assert.ErrorIs(t, err, repo.ErrorNotFound)
	})
}

func TestBoardService_Update(t *testing.T) {
	m := new(MockBoardRepository)
	s := NewBoardService(m)
	ctx := context.Background()

	_, err := s.UpdateTask(ctx, uid, "t1", model.TaskPatch{})
	assert.ErrorIs(t, err, ErrValidation, "empty patch")

	_, err = s.UpdateTask(ctx, uid, "t1", model.TaskPatch{ColumnID: model.Ptr(" ")})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = s.UpdateColumn(ctx, uid, "c1", model.ColumnPatch{})
	assert.ErrorIs(t, err, ErrValidation)

	m.On("UpdateTask", mock.Anything, uid, "t1", model.TaskPatch{Title: model.Ptr("x"), Order: model.Ptr(2)}).
		Return(model.Task{ID: "t1", Title: "x", Order: 2}, nil)
	task, err := s.UpdateTask(ctx, uid, "t1", model.TaskPatch{Title: model.Ptr(" x "), Order: model.Ptr(2)})
	require.NoError(t, err)
	assert.Equal(t, 2, task.Order)

	m.On("UpdateColumn", mock.Anything, uid, "c1", model.ColumnPatch{Order: model.Ptr(0)}).
		Return(model.Column{ID: "c1"}, nil)
	_, err = s.UpdateColumn(ctx, uid, "c1", model.ColumnPatch{Order: model.Ptr(0)})
	require.NoError(t, err)

	m.AssertExpectations(t)
}

func TestBoardService_List(t *testing.T) {
	m := new(MockBoardRepository)
	s := NewBoardService(m)
	ctx := context.Background()

	_, err := s.List(ctx, uid, model.BoardFilter{Status: "bogus"})
	assert.ErrorIs(t, err, ErrValidation)

	m.On("ListBoard", mock.Anything, uid, model.BoardFilter{}).Return(nil, nil)
	cols, err := s.List(ctx, uid, model.BoardFilter{})
	require.NoError(t, err)
	assert.NotNil(t, cols, "an empty board encodes as []")
}
