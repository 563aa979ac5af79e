// Package app wires the kanban client together.
package app

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/BuzzLyutic/kanban-board/internal/client"
	"github.com/BuzzLyutic/kanban-board/internal/config"
	"github.com/BuzzLyutic/kanban-board/internal/dnd"
	"github.com/BuzzLyutic/kanban-board/internal/reconcile"
	"github.com/BuzzLyutic/kanban-board/internal/session"
	"github.com/BuzzLyutic/kanban-board/internal/worker"
)

// ErrSessionExpired is returned by Settle when the server rejected the
// token during the command.
var ErrSessionExpired = errors.New("session expired, log in again")

// Container holds the client components of one CLI run.
type Container struct {
	Config  config.Client
	Logger  *zap.Logger
	Session *session.Session
	API     *client.Client
	Pool    *worker.Pool
	Board   *reconcile.Controller
	DnD     *dnd.Engine

	mu       sync.Mutex
	failures []error
	expired  bool
}

type Option func(*options)

type options struct {
	tokens session.TokenStore
}

// WithTokenStore replaces the token file named in the config.
func WithTokenStore(ts session.TokenStore) Option {
	return func(o *options) { o.tokens = ts }
}

// New builds the container and starts its worker pool. Close releases it.
func New(ctx context.Context, cfg config.Client, logger *zap.Logger, opts ...Option) *Container {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.tokens == nil {
		o.tokens = session.NewTokenFile(cfg.TokenFile)
	}

	c := &Container{Config: cfg, Logger: logger}
	c.Session = session.New(o.tokens, cfg.UserTTL.Duration)
	c.API = client.New(cfg.APIURL, c.Session,
		client.WithTimeout(cfg.Timeout.Duration),
		client.WithLogger(logger.Named("api")),
	)

	c.Pool = worker.NewPool(logger.Named("worker"), cfg.Workers, cfg.Workers*4)
	c.Pool.Start(ctx)

	c.Board = reconcile.New(c.API, c.Pool, logger.Named("board"),
		reconcile.WithNotifier(c.notify),
		reconcile.WithSessionExpired(c.sessionExpired),
		reconcile.WithSearchDebounce(cfg.SearchDebounce.Duration),
		reconcile.WithRequestTimeout(cfg.Timeout.Duration),
	)
	c.DnD = dnd.NewEngine(c.Board, c.API, logger.Named("dnd"))
	return c
}

func (c *Container) notify(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures = append(c.failures, err)
}

func (c *Container) sessionExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.expired = true
}

// Settle waits for every in-flight change and returns the failures reported
// since the last call.
func (c *Container) Settle() error {
	c.Board.Wait()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.expired {
		c.expired = false
		c.failures = nil
		return ErrSessionExpired
	}
	err := errors.Join(c.failures...)
	c.failures = nil
	return err
}

// Close runs whatever is still queued, waits for the board to settle and
// flushes the logger.
func (c *Container) Close() {
	c.Pool.Stop()
	c.Board.Wait()
	_ = c.Logger.Sync()
}
