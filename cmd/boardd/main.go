// Command boardd is the reference board server.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/kanban-board/internal/auth"
	"github.com/BuzzLyutic/kanban-board/internal/config"
	"github.com/BuzzLyutic/kanban-board/internal/logging"
	"github.com/BuzzLyutic/kanban-board/internal/repo"
	"github.com/BuzzLyutic/kanban-board/internal/server"
	"github.com/BuzzLyutic/kanban-board/internal/service"
)

func main() {
	// Загрузка конфигурации
	cfg := config.Load()
	memory := flag.Bool("memory", cfg.Memory, "keep everything in memory instead of postgres")
	flag.Parse()

	// Подключаем логгер
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		logger = zap.Must(zap.NewProduction())
		logger.Warn("bad LOG_LEVEL, using info", zap.Error(err))
	}
	defer logger.Sync()

	ctx := context.Background()

	var (
		boards repo.BoardRepository
		users  repo.UserRepository
	)
	if *memory {
		store := repo.NewMemory()
		boards, users = store, store
		logger.Info("Using in-memory storage")
	} else {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL) // Создаем пул соединений к БД
		if err != nil {
			logger.Fatal("Failed to connect to Database", zap.Error(err)) // дальнейшая работа теряет смысл
		}
		defer pool.Close()

		if err := pool.Ping(ctx); err != nil { // Пытаемся пингануть БД
			logger.Fatal("Failed to ping the Database", zap.Error(err))
		}
		if err := repo.Migrate(ctx, pool); err != nil {
			logger.Fatal("Failed to migrate the Database", zap.Error(err))
		}
		logger.Info("Successfully connected to the Database!")

		pg := repo.NewPG(pool)
		boards, users = pg, pg
	}

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Fatal("Bad REDIS_URL", zap.Error(err))
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()

		if err := rdb.Ping(ctx).Err(); err != nil {
			// Кэш не обязателен, работаем дальше
			logger.Warn("Redis unavailable, board reads fall through", zap.Error(err))
		}
		boards = repo.NewCachedBoards(boards, rdb, cfg.CacheTTL, logger.Named("cache"))
	}

	issuer := auth.NewIssuer(cfg.JWTSecret, cfg.TokenTTL)
	handler := server.New(
		service.NewBoardService(boards),
		service.NewUserService(users, issuer),
		issuer,
		logger,
	)

	srv := http.Server{ // Создаем сервер
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() { // Запуск сервера и обработка ошибок
		logger.Info("Server started", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)
	<-quit

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown error", zap.Error(err))
		return
	}
	logger.Info("Server stopped successfully!")
}
