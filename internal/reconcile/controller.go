// Package reconcile keeps the local board consistent with the server.
//
// Every change goes through Commit: the local state is updated at once and
// the request runs in the background. When the request settles, success or
// failure, the whole board is fetched again and replaces local state, so the
// server's arrangement (including any renumbering of siblings) always wins.
// Failures are reported and never retried.
//
// The controller lock stands in for a UI event loop: every state transition
// happens under it and none interleave. Network calls run outside it.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BuzzLyutic/kanban-board/internal/board"
	"github.com/BuzzLyutic/kanban-board/internal/client"
	"github.com/BuzzLyutic/kanban-board/internal/model"
	"github.com/BuzzLyutic/kanban-board/internal/worker"
)

const (
	DefaultSearchDebounce = 300 * time.Millisecond
	DefaultRequestTimeout = 15 * time.Second
)

// API is the fetch and mutation surface the controller drives.
type API interface {
	FetchBoard(ctx context.Context, filter model.BoardFilter) ([]model.Column, error)
	CreateColumn(ctx context.Context, in model.NewColumn) (model.Column, error)
	UpdateColumn(ctx context.Context, id string, patch model.ColumnPatch) (model.Column, error)
	DeleteColumn(ctx context.Context, id string) error
	CreateTask(ctx context.Context, in model.NewTask) (model.Task, error)
	UpdateTask(ctx context.Context, id string, patch model.TaskPatch) (model.Task, error)
	DeleteTask(ctx context.Context, id string) error
}

// Runner executes mutation jobs asynchronously. *worker.Pool implements it.
type Runner interface {
	Submit(job worker.Job) error
}

type Controller struct {
	api      API
	runner   Runner
	logger   *zap.Logger
	timeout  time.Duration
	debounce time.Duration

	notify    func(error)
	onExpired func()
	onChange  func(board.State)

	mu            sync.Mutex
	state         board.State
	filter        model.BoardFilter
	pendingSearch string
	searchTimer   *time.Timer
	searchGen     uint64
	refreshSeq    uint64
	newestApplied uint64

	// pending counts ops, refreshes and debounced searches not yet settled.
	// Unlike a WaitGroup it may grow while Wait is blocked.
	pendingMu sync.Mutex
	pending   int
	idle      *sync.Cond
}

type Option func(*Controller)

// WithNotifier receives every user-facing failure.
func WithNotifier(fn func(error)) Option {
	return func(c *Controller) { c.notify = fn }
}

// WithSessionExpired is called instead of the notifier when the server
// rejects the session.
func WithSessionExpired(fn func()) Option {
	return func(c *Controller) { c.onExpired = fn }
}

// WithOnChange observes every new board state. It runs outside the
// controller lock.
func WithOnChange(fn func(board.State)) Option {
	return func(c *Controller) { c.onChange = fn }
}

func WithSearchDebounce(d time.Duration) Option {
	return func(c *Controller) { c.debounce = d }
}

func WithRequestTimeout(d time.Duration) Option {
	return func(c *Controller) { c.timeout = d }
}

func WithFilter(f model.BoardFilter) Option {
	return func(c *Controller) { c.filter = f }
}

func New(api API, runner Runner, logger *zap.Logger, opts ...Option) *Controller {
	c := &Controller{
		api:      api,
		runner:   runner,
		logger:   logger,
		timeout:  DefaultRequestTimeout,
		debounce: DefaultSearchDebounce,
	}
	c.idle = sync.NewCond(&c.pendingMu)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) Snapshot() board.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) Filter() model.BoardFilter {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filter
}

// Load performs the initial fetch and returns its error to the caller.
func (c *Controller) Load(ctx context.Context) error {
	return c.refresh(ctx)
}

// Refresh refetches the board with the current filter.
func (c *Controller) Refresh(ctx context.Context) error {
	return c.refresh(ctx)
}

// Commit applies apply to local state now and runs send in the background.
// When send settles the board is refreshed from the server. A nil apply
// commits nothing locally, which is how deletes and creates work.
func (c *Controller) Commit(label string, apply board.Transform, send func(ctx context.Context) error) *Op {
	return c.CommitPlan(func(board.State) (Change, bool) {
		return Change{Label: label, Apply: apply, Send: send}, true
	})
}

// Change is a planned local transform together with the request that
// persists it.
type Change struct {
	Label string
	Apply board.Transform
	Send  func(ctx context.Context) error
}

// Planner works out a change against the current state. It runs under the
// controller lock and must not block.
type Planner func(s board.State) (Change, bool)

// CommitPlan plans and applies a change in one step, so the guess and the
// request are computed from the same state. It returns nil when plan
// reports nothing to do.
func (c *Controller) CommitPlan(plan Planner) *Op {
	c.mu.Lock()
	ch, ok := plan(c.state)
	if !ok {
		c.mu.Unlock()
		return nil
	}
	op := newOp(ch.Label)
	changed := ch.Apply != nil
	if changed {
		c.state = ch.Apply(c.state)
	}
	next := c.state
	// Counted before the lock is released so Wait never misses it.
	c.begin()
	c.mu.Unlock()

	if changed {
		c.publish(next)
	}
	c.dispatch(op, ch.Send)
	return op
}

// Wait blocks until every committed op, refresh and pending search has
// settled. It may be called concurrently with new commits.
func (c *Controller) Wait() {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	for c.pending > 0 {
		c.idle.Wait()
	}
}

func (c *Controller) begin() {
	c.pendingMu.Lock()
	c.pending++
	c.pendingMu.Unlock()
}

func (c *Controller) end() {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	c.pending--
	if c.pending == 0 {
		c.idle.Broadcast()
	}
}

// dispatch runs send on the runner. The caller has already counted the op
// with begin.
func (c *Controller) dispatch(op *Op, send func(ctx context.Context) error) {
	job := worker.Job{
		Name: op.Label,
		Run: func(ctx context.Context) {
			defer c.end()
			c.settle(ctx, op, c.call(ctx, send))
		},
	}
	if err := c.runner.Submit(job); err != nil {
		// Nothing was sent; settle as a failure so the guess is discarded.
		go func() {
			defer c.end()
			c.settle(context.Background(), op, fmt.Errorf("dispatch: %w", err))
		}()
	}
}

func (c *Controller) call(ctx context.Context, send func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return send(ctx)
}

func (c *Controller) settle(ctx context.Context, op *Op, err error) {
	if err != nil {
		c.report(op.Label, err)
	} else {
		c.logger.Debug("mutation confirmed", zap.String("op", op.Label))
	}

	// Detached from the job context: a refresh must still run when the
	// mutation timed out.
	refreshErr := c.refresh(context.WithoutCancel(ctx))

	switch {
	case refreshErr != nil:
		op.settle(PhaseUnreconciled, err)
	case err != nil:
		op.settle(PhaseReverted, err)
	default:
		op.settle(PhaseConfirmed, nil)
	}
}

// refresh fetches the board and replaces local state. The last fetch to
// complete wins. A fetch that completes after a newer one has already been
// applied still overwrites it; that window is logged, not prevented.
func (c *Controller) refresh(ctx context.Context) error {
	c.mu.Lock()
	c.refreshSeq++
	seq := c.refreshSeq
	filter := c.filter
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cols, err := c.api.FetchBoard(ctx, filter)
	if err != nil {
		c.report("refresh board", err)
		return err
	}

	c.mu.Lock()
	if filter != c.filter {
		// The filter changed while this fetch was in flight; the refresh for
		// the new filter owns the state.
		c.mu.Unlock()
		c.logger.Debug("dropping board fetched for a superseded filter", zap.Uint64("seq", seq))
		return nil
	}
	if seq < c.newestApplied {
		c.logger.Warn("stale board refresh applied over a newer one",
			zap.Uint64("seq", seq),
			zap.Uint64("newest", c.newestApplied),
		)
	} else {
		c.newestApplied = seq
	}
	next := board.New(cols)
	c.state = next
	c.mu.Unlock()

	if err := next.Validate(); err != nil {
		c.logger.Warn("server board violates task membership", zap.Error(err))
	}
	c.publish(next)
	return nil
}

func (c *Controller) publish(s board.State) {
	if c.onChange != nil {
		c.onChange(s)
	}
}

func (c *Controller) report(label string, err error) {
	if errors.Is(err, client.ErrUnauthorized) {
		c.logger.Warn("session expired", zap.String("op", label))
		if c.onExpired != nil {
			c.onExpired()
		}
		return
	}

	c.logger.Error("board operation failed", zap.String("op", label), zap.Error(err))
	if c.notify != nil {
		c.notify(fmt.Errorf("%s: %w", label, err))
	}
}
