// Package server assembles the HTTP API of the board server.
package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/kanban-board/internal/auth"
	"github.com/BuzzLyutic/kanban-board/internal/handler"
	"github.com/BuzzLyutic/kanban-board/internal/service"
	"github.com/BuzzLyutic/kanban-board/pkg/respond"
)

func New(boards *service.BoardService, users *service.UserService, issuer *auth.Issuer, logger *zap.Logger) http.Handler {
	boardHandler := handler.NewBoardHandler(boards, logger)
	userHandler := handler.NewUserHandler(users, logger)

	r := chi.NewRouter() // Создаем роутер
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(accessLog(logger))
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respond.JSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/auth/login", userHandler.Login)
	r.Post("/users", userHandler.Register)

	// Всё остальное только с токеном
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(issuer, logger))

		r.Get("/users/me", userHandler.Me)
		r.Patch("/users/me", userHandler.UpdateProfile)

		r.Route("/columns", func(r chi.Router) {
			r.Get("/", boardHandler.List)
			r.Post("/", boardHandler.CreateColumn)
			r.Patch("/{id}", boardHandler.UpdateColumn)
			r.Delete("/{id}", boardHandler.DeleteColumn)
		})

		r.Route("/tasks", func(r chi.Router) {
			r.Post("/", boardHandler.CreateTask)
			r.Patch("/{id}", boardHandler.UpdateTask)
			r.Delete("/{id}", boardHandler.DeleteTask)
		})
	})

	return r
}

// accessLog replaces middleware.Logger so request lines go through zap.
func accessLog(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.Info("request",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("duration", time.Since(start)),
					zap.String("request_id", middleware.GetReqID(r.Context())),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
