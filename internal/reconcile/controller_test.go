package reconcile

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/BuzzLyutic/kanban-board/internal/board"
	"github.com/BuzzLyutic/kanban-board/internal/client"
	"github.com/BuzzLyutic/kanban-board/internal/model"
	"github.com/BuzzLyutic/kanban-board/internal/worker"
)

// fakeAPI is a tiny server-side board. Fetches return a deep copy of it.
type fakeAPI struct {
	mu      sync.Mutex
	columns []model.Column
	nextID  int

	fetchErr  error
	updateErr error
	deleteErr error
	seedErr   error

	fetchHook func(call int)

	fetches      int
	filters      []model.BoardFilter
	columnCreate int
	taskCreate   int
	updates      int
	deletes      int
}

func newFakeAPI(cols ...model.Column) *fakeAPI {
	return &fakeAPI{columns: cols}
}

func (f *fakeAPI) FetchBoard(ctx context.Context, filter model.BoardFilter) ([]model.Column, error) {
	f.mu.Lock()
	f.fetches++
	call := f.fetches
	f.filters = append(f.filters, filter)
	hook := f.fetchHook
	err := f.fetchErr
	cols := board.New(f.columns).Columns()
	f.mu.Unlock()

	if hook != nil {
		hook(call)
	}
	if err != nil {
		return nil, err
	}
	return cols, nil
}

func (f *fakeAPI) CreateColumn(ctx context.Context, in model.NewColumn) (model.Column, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.columnCreate++
	f.nextID++
	col := model.Column{ID: "new-col", Title: in.Title, Order: len(f.columns)}
	f.columns = append(f.columns, col)
	return col, nil
}

func (f *fakeAPI) UpdateColumn(ctx context.Context, id string, patch model.ColumnPatch) (model.Column, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates++
	if f.updateErr != nil {
		return model.Column{}, f.updateErr
	}
	for i, c := range f.columns {
		if c.ID == id {
			f.columns[i] = patch.Apply(c)
			return f.columns[i], nil
		}
	}
	return model.Column{}, client.ErrNotFound
}

func (f *fakeAPI) DeleteColumn(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes++
	if f.deleteErr != nil {
		return f.deleteErr
	}
	for i, c := range f.columns {
		if c.ID == id {
			f.columns = append(f.columns[:i], f.columns[i+1:]...)
			return nil
		}
	}
	// The real client reports a missing item as success.
	return nil
}

func (f *fakeAPI) CreateTask(ctx context.Context, in model.NewTask) (model.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.taskCreate++
	if f.seedErr != nil && in.Title == "bad" {
		return model.Task{}, f.seedErr
	}
	f.nextID++
	t := model.Task{ID: in.Title, Title: in.Title, Status: model.StatusPending, ColumnID: in.ColumnID}
	for i, c := range f.columns {
		if c.ID == in.ColumnID {
			t.Order = len(c.Tasks)
			f.columns[i].Tasks = append(f.columns[i].Tasks, t)
			return t, nil
		}
	}
	return model.Task{}, client.ErrNotFound
}

func (f *fakeAPI) UpdateTask(ctx context.Context, id string, patch model.TaskPatch) (model.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates++
	if f.updateErr != nil {
		return model.Task{}, f.updateErr
	}
	for ci, c := range f.columns {
		for ti, t := range c.Tasks {
			if t.ID == id {
				f.columns[ci].Tasks[ti] = patch.Apply(t)
				return f.columns[ci].Tasks[ti], nil
			}
		}
	}
	return model.Task{}, client.ErrNotFound
}

func (f *fakeAPI) DeleteTask(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes++
	if f.deleteErr != nil {
		return f.deleteErr
	}
	for ci, c := range f.columns {
		for ti, t := range c.Tasks {
			if t.ID == id {
				f.columns[ci].Tasks = append(c.Tasks[:ti], c.Tasks[ti+1:]...)
				return nil
			}
		}
	}
	return nil
}

func (f *fakeAPI) counts() (fetches, columnCreate, taskCreate int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches, f.columnCreate, f.taskCreate
}

func col(id string, tasks ...string) model.Column {
	c := model.Column{ID: id, Title: id}
	for i, t := range tasks {
		c.Tasks = append(c.Tasks, model.Task{ID: t, Title: t, Status: model.StatusPending, Order: i, ColumnID: id})
	}
	return c
}

type notifications struct {
	mu   sync.Mutex
	errs []error
}

func (n *notifications) add(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errs = append(n.errs, err)
}

func (n *notifications) all() []error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]error(nil), n.errs...)
}

func newController(t *testing.T, api API, logger *zap.Logger, opts ...Option) *Controller {
	t.Helper()
	pool := worker.NewPool(logger, 4, 16)
	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)
	t.Cleanup(func() {
		cancel()
		pool.Stop()
	})
	return New(api, pool, logger, opts...)
}

func TestController_Load(t *testing.T) {
	api := newFakeAPI(col("c1", "a", "b"), col("c2"))
	c := newController(t, api, zaptest.NewLogger(t))

	require.NoError(t, c.Load(context.Background()))
	assert.Equal(t, []string{"c1", "c2"}, c.Snapshot().ColumnIDs())
	assert.Equal(t, []string{"a", "b"}, c.Snapshot().TaskIDs("c1"))
}

func TestController_EditConfirmed(t *testing.T) {
	api := newFakeAPI(col("c1", "a"))
	var seen []board.State
	var mu sync.Mutex
	c := newController(t, api, zaptest.NewLogger(t), WithOnChange(func(s board.State) {
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
	}))
	require.NoError(t, c.Load(context.Background()))

	op, err := c.EditTask("a", model.TaskPatch{Title: model.Ptr("  renamed ")})
	require.NoError(t, err)

	// Applied before the request settles.
	task, ok := c.Snapshot().Task("a")
	require.True(t, ok)
	assert.Equal(t, "renamed", task.Title)

	require.NoError(t, op.Wait(context.Background()))
	assert.Equal(t, PhaseConfirmed, op.Phase())

	task, _ = c.Snapshot().Task("a")
	assert.Equal(t, "renamed", task.Title)

	mu.Lock()
	defer mu.Unlock()
	assert.GreaterOrEqual(t, len(seen), 3, "load, optimistic apply and settle refresh")
}

func TestController_FailureRestoresServerState(t *testing.T) {
	api := newFakeAPI(col("c1", "a", "b"))
	api.updateErr = &client.APIError{Status: 500, Message: "boom"}
	notes := &notifications{}
	c := newController(t, api, zaptest.NewLogger(t), WithNotifier(notes.add))
	require.NoError(t, c.Load(context.Background()))

	op := c.Commit("move task",
		func(s board.State) board.State { return s.MoveTaskWithin("c1", 0, 1) },
		func(ctx context.Context) error {
			_, err := api.UpdateTask(ctx, "a", model.TaskPatch{Order: model.Ptr(1)})
			return err
		},
	)
	assert.Equal(t, []string{"b", "a"}, c.Snapshot().TaskIDs("c1"), "optimistic guess")

	err := op.Wait(context.Background())
	require.Error(t, err)
	assert.Equal(t, PhaseReverted, op.Phase())
	assert.Equal(t, []string{"a", "b"}, c.Snapshot().TaskIDs("c1"), "server state wins")

	errs := notes.all()
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "boom")
}

func TestController_UnreconciledWhenRefreshFails(t *testing.T) {
	api := newFakeAPI(col("c1", "a", "b"))
	c := newController(t, api, zaptest.NewLogger(t), WithNotifier(func(error) {}))
	require.NoError(t, c.Load(context.Background()))

	api.mu.Lock()
	api.updateErr = errors.New("offline")
	api.fetchErr = errors.New("offline")
	api.mu.Unlock()

	op := c.Commit("move task",
		func(s board.State) board.State { return s.MoveTaskWithin("c1", 0, 1) },
		func(ctx context.Context) error {
			_, err := api.UpdateTask(ctx, "a", model.TaskPatch{Order: model.Ptr(1)})
			return err
		},
	)
	require.Error(t, op.Wait(context.Background()))
	assert.Equal(t, PhaseUnreconciled, op.Phase())
	assert.Equal(t, []string{"b", "a"}, c.Snapshot().TaskIDs("c1"), "guess stays until a refresh succeeds")

	api.mu.Lock()
	api.fetchErr = nil
	api.mu.Unlock()
	require.NoError(t, c.Refresh(context.Background()))
	assert.Equal(t, []string{"a", "b"}, c.Snapshot().TaskIDs("c1"))
}

func TestController_DeleteTwice(t *testing.T) {
	api := newFakeAPI(col("c1", "a", "b"))
	notes := &notifications{}
	c := newController(t, api, zaptest.NewLogger(t), WithNotifier(notes.add))
	require.NoError(t, c.Load(context.Background()))

	first := c.DeleteTask("a")
	second := c.DeleteTask("a")
	require.NoError(t, first.Wait(context.Background()))
	require.NoError(t, second.Wait(context.Background()))
	c.Wait()

	assert.Empty(t, notes.all())
	assert.Equal(t, []string{"b"}, c.Snapshot().TaskIDs("c1"))
}

func TestController_DeleteIsNotOptimistic(t *testing.T) {
	api := newFakeAPI(col("c1", "a"), col("c2"))
	release := make(chan struct{})
	c := newController(t, api, zaptest.NewLogger(t))
	require.NoError(t, c.Load(context.Background()))

	api.mu.Lock()
	api.fetchHook = func(int) { <-release }
	api.mu.Unlock()

	op := c.DeleteColumn("c1")
	assert.Equal(t, []string{"c1", "c2"}, c.Snapshot().ColumnIDs())

	close(release)
	require.NoError(t, op.Wait(context.Background()))
	assert.Equal(t, []string{"c2"}, c.Snapshot().ColumnIDs())
}

func TestController_CreateColumnWithSeeds(t *testing.T) {
	api := newFakeAPI(col("c1"))
	c := newController(t, api, zaptest.NewLogger(t))
	require.NoError(t, c.Load(context.Background()))

	created, err := c.CreateColumn(context.Background(), " Todo ", []string{"one", " ", "two", "three"})
	require.NoError(t, err)
	assert.Equal(t, "Todo", created.Title)

	fetches, columns, tasks := api.counts()
	assert.Equal(t, 1, columns)
	assert.Equal(t, 3, tasks, "blank seed titles are skipped")
	assert.Equal(t, 2, fetches, "initial load plus one refresh for the whole batch")

	assert.ElementsMatch(t, []string{"one", "two", "three"}, c.Snapshot().TaskIDs("new-col"))
}

func TestController_CreateColumnSeedFailure(t *testing.T) {
	api := newFakeAPI()
	api.seedErr = &client.APIError{Status: 500, Message: "nope"}
	notes := &notifications{}
	c := newController(t, api, zaptest.NewLogger(t), WithNotifier(notes.add))

	_, err := c.CreateColumn(context.Background(), "Todo", []string{"ok", "bad"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad")

	fetches, columns, tasks := api.counts()
	assert.Equal(t, 1, columns)
	assert.Equal(t, 2, tasks, "one failed seed does not stop the others")
	assert.Equal(t, 1, fetches)
	assert.Len(t, notes.all(), 1)
	assert.Equal(t, []string{"ok"}, c.Snapshot().TaskIDs("new-col"))
}

func TestController_CreateValidation(t *testing.T) {
	api := newFakeAPI(col("c1"))
	c := newController(t, api, zaptest.NewLogger(t))

	_, err := c.CreateColumn(context.Background(), "   ", nil)
	assert.ErrorIs(t, err, model.ErrValidation)

	_, err = c.CreateTask(context.Background(), model.NewTask{Title: "", ColumnID: "c1"})
	assert.ErrorIs(t, err, model.ErrValidation)

	_, err = c.EditTask("a", model.TaskPatch{})
	assert.ErrorIs(t, err, model.ErrValidation)

	_, err = c.EditTask("a", model.TaskPatch{Order: model.Ptr(1)})
	assert.ErrorIs(t, err, model.ErrValidation)

	_, err = c.EditColumn("c1", model.ColumnPatch{Title: model.Ptr(" ")})
	assert.ErrorIs(t, err, model.ErrValidation)

	fetches, columns, tasks := api.counts()
	assert.Zero(t, fetches+columns+tasks, "nothing reaches the server")
}

func TestController_CreateTask(t *testing.T) {
	api := newFakeAPI(col("c1", "a"))
	c := newController(t, api, zaptest.NewLogger(t))
	require.NoError(t, c.Load(context.Background()))

	task, err := c.CreateTask(context.Background(), model.NewTask{Title: "b", ColumnID: "c1"})
	require.NoError(t, err)
	assert.Equal(t, "b", task.ID)
	assert.Equal(t, []string{"a", "b"}, c.Snapshot().TaskIDs("c1"))
}

func TestController_SessionExpired(t *testing.T) {
	api := newFakeAPI(col("c1", "a"))
	notes := &notifications{}
	expired := make(chan struct{}, 4)
	c := newController(t, api, zaptest.NewLogger(t),
		WithNotifier(notes.add),
		WithSessionExpired(func() { expired <- struct{}{} }),
	)
	require.NoError(t, c.Load(context.Background()))

	api.mu.Lock()
	api.updateErr = client.ErrUnauthorized
	api.fetchErr = client.ErrUnauthorized
	api.mu.Unlock()

	op, err := c.EditColumn("c1", model.ColumnPatch{Title: model.Ptr("x")})
	require.NoError(t, err)
	assert.ErrorIs(t, op.Wait(context.Background()), client.ErrUnauthorized)

	assert.NotEmpty(t, expired)
	assert.Empty(t, notes.all(), "expiry is not reported as an ordinary failure")
}

func TestController_StaleRefreshIsLogged(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	api := newFakeAPI(col("c1", "a"))

	firstStarted := make(chan struct{})
	releaseFirst := make(chan struct{})
	api.fetchHook = func(call int) {
		if call == 1 {
			close(firstStarted)
			<-releaseFirst
		}
	}
	c := newController(t, api, zap.New(core))

	done := make(chan error, 1)
	go func() { done <- c.Refresh(context.Background()) }()
	<-firstStarted

	require.NoError(t, c.Refresh(context.Background()))
	close(releaseFirst)
	require.NoError(t, <-done)

	entries := logs.FilterMessage("stale board refresh applied over a newer one").All()
	require.Len(t, entries, 1)
	assert.Equal(t, uint64(1), entries[0].ContextMap()["seq"])
	assert.Equal(t, uint64(2), entries[0].ContextMap()["newest"])
}

func TestController_StatusFilter(t *testing.T) {
	api := newFakeAPI(col("c1", "a"))
	c := newController(t, api, zaptest.NewLogger(t))

	assert.ErrorIs(t, c.SetStatusFilter("bogus"), model.ErrValidation)

	require.NoError(t, c.SetStatusFilter(model.StatusCompleted))
	c.Wait()
	require.NoError(t, c.SetStatusFilter(model.StatusCompleted), "same filter does not refetch")
	c.Wait()

	api.mu.Lock()
	defer api.mu.Unlock()
	require.Len(t, api.filters, 1)
	assert.Equal(t, model.StatusCompleted, api.filters[0].Status)
}

func TestController_SearchDebounce(t *testing.T) {
	api := newFakeAPI(col("c1", "a"))
	c := newController(t, api, zaptest.NewLogger(t), WithSearchDebounce(30*time.Millisecond))

	for _, text := range []string{"f", "fi", "fix"} {
		c.SetSearch(text)
		time.Sleep(5 * time.Millisecond)
	}
	c.Wait()

	api.mu.Lock()
	filters := append([]model.BoardFilter(nil), api.filters...)
	api.mu.Unlock()

	require.Len(t, filters, 1, "only the settled text is fetched")
	assert.Equal(t, "fix", filters[0].Search)
	assert.Equal(t, "fix", c.Filter().Search)
}

func TestController_SupersededFilterNotApplied(t *testing.T) {
	api := newFakeAPI(col("c1", "a"))
	started := make(chan struct{})
	release := make(chan struct{})
	api.fetchHook = func(call int) {
		if call == 1 {
			close(started)
			<-release
		}
	}
	c := newController(t, api, zaptest.NewLogger(t))

	require.NoError(t, c.SetStatusFilter(model.StatusPending))
	<-started

	// Remove the task server-side, then switch the filter while the first
	// fetch is still in flight.
	api.mu.Lock()
	api.columns[0].Tasks = nil
	api.mu.Unlock()
	require.NoError(t, c.SetStatusFilter(model.StatusCompleted))

	close(release)
	c.Wait()

	assert.Empty(t, c.Snapshot().TaskIDs("c1"))
	assert.Equal(t, model.StatusCompleted, c.Filter().Status)
}

func TestController_DispatchFailure(t *testing.T) {
	api := newFakeAPI(col("c1", "a", "b"))
	pool := worker.NewPool(zaptest.NewLogger(t), 1, 1)
	pool.Stop()
	notes := &notifications{}
	c := New(api, pool, zaptest.NewLogger(t), WithNotifier(notes.add))
	require.NoError(t, c.Load(context.Background()))

	op := c.Commit("move task",
		func(s board.State) board.State { return s.MoveTaskWithin("c1", 0, 1) },
		func(ctx context.Context) error { t.Fatal("must not be sent"); return nil },
	)
	assert.ErrorIs(t, op.Wait(context.Background()), worker.ErrStopped)
	assert.Equal(t, PhaseReverted, op.Phase())
	assert.Equal(t, []string{"a", "b"}, c.Snapshot().TaskIDs("c1"))
	assert.Len(t, notes.all(), 1)
}

func TestController_CommitAfterPoolContextEnds(t *testing.T) {
	api := newFakeAPI(col("c1", "a", "b"))
	logger := zaptest.NewLogger(t)
	pool := worker.NewPool(logger, 2, 4)
	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)
	t.Cleanup(pool.Stop)

	c := New(api, pool, logger)
	require.NoError(t, c.Load(context.Background()))

	// Ctrl-C during a command cancels the pool's context.
	cancel()
	op := c.DeleteTask("a")

	waited := make(chan struct{})
	go func() {
		c.Wait()
		close(waited)
	}()
	select {
	case <-waited:
	case <-time.After(5 * time.Second):
		t.Fatalf("Wait still blocked; op phase=%s", op.Phase())
	}

	assert.Equal(t, PhaseReverted, op.Phase())
	assert.ErrorIs(t, op.Err(), worker.ErrStopped)
	assert.Equal(t, []string{"a", "b"}, c.Snapshot().TaskIDs("c1"))
	api.mu.Lock()
	assert.Zero(t, api.deletes, "nothing was sent")
	api.mu.Unlock()
}

func TestController_CommitPlan(t *testing.T) {
	api := newFakeAPI(col("c1", "a", "b", "c"))
	c := newController(t, api, zaptest.NewLogger(t))
	require.NoError(t, c.Load(context.Background()))

	op := c.CommitPlan(func(s board.State) (Change, bool) {
		return Change{}, false
	})
	assert.Nil(t, op)

	// The planner sees the state its transform is applied to.
	var planned []string
	op = c.CommitPlan(func(s board.State) (Change, bool) {
		planned = s.TaskIDs("c1")
		return Change{
			Label: "move task",
			Apply: func(s board.State) board.State { return s.MoveTaskWithin("c1", 0, 2) },
			Send: func(ctx context.Context) error {
				_, err := api.UpdateTask(ctx, "a", model.TaskPatch{Order: model.Ptr(2)})
				return err
			},
		}, true
	})
	require.NotNil(t, op)
	assert.Equal(t, []string{"a", "b", "c"}, planned)
	assert.Equal(t, []string{"b", "c", "a"}, c.Snapshot().TaskIDs("c1"))

	require.NoError(t, op.Wait(context.Background()))
	assert.Equal(t, PhaseConfirmed, op.Phase())
}

func TestController_WaitAlongsideSearch(t *testing.T) {
	api := newFakeAPI(col("c1", "a"))
	c := newController(t, api, zaptest.NewLogger(t), WithSearchDebounce(2*time.Millisecond))
	require.NoError(t, c.Load(context.Background()))

	waiting := make(chan struct{})
	go func() {
		defer close(waiting)
		for i := 0; i < 50; i++ {
			c.Wait()
		}
	}()

	for _, q := range []string{"r", "re", "rel", "rele", "relea", "releas", "release"} {
		c.SetSearch(q)
		time.Sleep(time.Millisecond)
	}
	c.Wait()

	select {
	case <-waiting:
	case <-time.After(5 * time.Second):
		t.Fatal("Wait blocked while searches were pending")
	}
	assert.Equal(t, "release", c.Filter().Search)
}
