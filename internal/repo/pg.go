package repo

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/BuzzLyutic/kanban-board/internal/model"
	"github.com/BuzzLyutic/kanban-board/migrations"
)

// PG хранит доски и пользователей в PostgreSQL.
//
// Every board write runs in one transaction that first locks the owning user
// row, so renumbering of siblings never interleaves for the same board.
type PG struct {
	pool *pgxpool.Pool
}

func NewPG(pool *pgxpool.Pool) *PG {
	return &PG{pool: pool}
}

// Migrate applies the embedded schema. Every statement is idempotent.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	files, err := fs.Glob(migrations.FS, "*.up.sql")
	if err != nil {
		return err
	}
	sort.Strings(files)
	for _, name := range files {
		sql, err := fs.ReadFile(migrations.FS, name)
		if err != nil {
			return err
		}
		if _, err := pool.Exec(ctx, string(sql)); err != nil {
			return fmt.Errorf("apply %s: %w", name, err)
		}
	}
	return nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (r *PG) ListBoard(ctx context.Context, userID string, filter model.BoardFilter) ([]model.Column, error) {
	var status, pattern *string
	if s := filter.StatusParam(); s != "" {
		status = &s
	}
	if q := filter.SearchParam(); q != "" {
		p := "%" + escapeLike(q) + "%"
		pattern = &p
	}

	var cols []model.Column
	// Колонки и задачи читаем одним снимком.
	err := pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}, func(tx pgx.Tx) error {
		var err error
		cols, err = r.listColumns(ctx, tx, userID)
		if err != nil {
			return err
		}
		index := make(map[string]int, len(cols))
		for i, c := range cols {
			index[c.ID] = i
		}

		rows, err := tx.Query(ctx, `
			SELECT id, column_id, title, description, status, position
			FROM tasks
			WHERE user_id = $1
			  AND ($2::text IS NULL OR status = $2)
			  AND ($3::text IS NULL OR title ILIKE $3 OR description ILIKE $3)
			ORDER BY position, created_at
		`, userID, status, pattern)
		if err != nil {
			return err
		}
		tasks, err := pgx.CollectRows(rows, scanTask)
		if err != nil {
			return err
		}
		for _, t := range tasks {
			if i, ok := index[t.ColumnID]; ok {
				cols[i].Tasks = append(cols[i].Tasks, t)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cols, nil
}

func (r *PG) GetColumn(ctx context.Context, userID, id string) (model.Column, error) {
	return r.getColumn(ctx, r.pool, userID, id)
}

func (r *PG) CreateColumn(ctx context.Context, userID string, in model.NewColumn) (model.Column, error) {
	var col model.Column
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := lockBoard(ctx, tx, userID); err != nil {
			return err
		}
		ids, err := columnIDs(ctx, tx, userID)
		if err != nil {
			return err
		}

		id := uuid.NewString()
		if _, err := tx.Exec(ctx, `
			INSERT INTO board_columns (id, user_id, title, position) VALUES ($1, $2, $3, $4)
		`, id, userID, in.Title, len(ids)); err != nil {
			return err
		}
		if err := writePositions(ctx, tx, "board_columns", insertID(ids, id, in.Order)); err != nil {
			return err
		}

		col, err = r.getColumn(ctx, tx, userID, id)
		return err
	})
	return col, mapError(err)
}

func (r *PG) UpdateColumn(ctx context.Context, userID, id string, patch model.ColumnPatch) (model.Column, error) {
	var col model.Column
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := lockBoard(ctx, tx, userID); err != nil {
			return err
		}
		cmd, err := tx.Exec(ctx, `
			UPDATE board_columns SET title = COALESCE($3, title)
			WHERE id = $1 AND user_id = $2
		`, id, userID, patch.Title)
		if err != nil {
			return err
		}
		if cmd.RowsAffected() == 0 {
			return ErrorNotFound
		}

		if patch.Order != nil {
			ids, err := columnIDs(ctx, tx, userID)
			if err != nil {
				return err
			}
			if err := writePositions(ctx, tx, "board_columns", moveID(ids, id, *patch.Order)); err != nil {
				return err
			}
		}

		col, err = r.getColumn(ctx, tx, userID, id)
		return err
	})
	return col, mapError(err)
}

func (r *PG) DeleteColumn(ctx context.Context, userID, id string) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := lockBoard(ctx, tx, userID); err != nil {
			return err
		}
		cmd, err := tx.Exec(ctx, "DELETE FROM board_columns WHERE id = $1 AND user_id = $2", id, userID)
		if err != nil {
			return err
		}
		if cmd.RowsAffected() == 0 {
			return ErrorNotFound
		}
		ids, err := columnIDs(ctx, tx, userID)
		if err != nil {
			return err
		}
		return writePositions(ctx, tx, "board_columns", ids)
	})
	return mapError(err)
}

func (r *PG) GetTask(ctx context.Context, userID, id string) (model.Task, error) {
	return getTask(ctx, r.pool, userID, id)
}

func (r *PG) CreateTask(ctx context.Context, userID string, in model.NewTask) (model.Task, error) {
	var task model.Task
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := lockBoard(ctx, tx, userID); err != nil {
			return err
		}
		if err := columnExists(ctx, tx, userID, in.ColumnID); err != nil {
			return err
		}
		ids, err := taskIDs(ctx, tx, in.ColumnID)
		if err != nil {
			return err
		}

		status := model.StatusPending
		if in.Status != nil {
			status = *in.Status
		}
		id := uuid.NewString()
		if _, err := tx.Exec(ctx, `
			INSERT INTO tasks (id, user_id, column_id, title, description, status, position)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, id, userID, in.ColumnID, in.Title, in.Description, string(status), len(ids)); err != nil {
			return err
		}
		if err := writePositions(ctx, tx, "tasks", insertID(ids, id, in.Order)); err != nil {
			return err
		}

		task, err = getTask(ctx, tx, userID, id)
		return err
	})
	return task, mapError(err)
}

func (r *PG) UpdateTask(ctx context.Context, userID, id string, patch model.TaskPatch) (model.Task, error) {
	var task model.Task
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := lockBoard(ctx, tx, userID); err != nil {
			return err
		}
		cur, err := getTask(ctx, tx, userID, id)
		if err != nil {
			return err
		}

		fields := patch
		fields.Order, fields.ColumnID = nil, nil
		next := fields.Apply(cur)

		switch {
		case patch.ColumnID != nil && *patch.ColumnID != cur.ColumnID:
			dest := *patch.ColumnID
			if err := columnExists(ctx, tx, userID, dest); err != nil {
				return err
			}
			destIDs, err := taskIDs(ctx, tx, dest)
			if err != nil {
				return err
			}
			if _, err := tx.Exec(ctx, "UPDATE tasks SET column_id = $2 WHERE id = $1", id, dest); err != nil {
				return err
			}
			// Старая колонка уплотняется, новая получает задачу на нужной позиции.
			originIDs, err := taskIDs(ctx, tx, cur.ColumnID)
			if err != nil {
				return err
			}
			if err := writePositions(ctx, tx, "tasks", originIDs); err != nil {
				return err
			}
			if err := writePositions(ctx, tx, "tasks", insertID(destIDs, id, patch.Order)); err != nil {
				return err
			}
		case patch.Order != nil:
			ids, err := taskIDs(ctx, tx, cur.ColumnID)
			if err != nil {
				return err
			}
			if err := writePositions(ctx, tx, "tasks", moveID(ids, id, *patch.Order)); err != nil {
				return err
			}
		}

		if _, err := tx.Exec(ctx, `
			UPDATE tasks SET title = $2, description = $3, status = $4, updated_at = now()
			WHERE id = $1
		`, id, next.Title, next.Description, string(next.Status)); err != nil {
			return err
		}

		task, err = getTask(ctx, tx, userID, id)
		return err
	})
	return task, mapError(err)
}

func (r *PG) DeleteTask(ctx context.Context, userID, id string) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := lockBoard(ctx, tx, userID); err != nil {
			return err
		}
		var columnID string
		err := tx.QueryRow(ctx, `
			DELETE FROM tasks WHERE id = $1 AND user_id = $2 RETURNING column_id
		`, id, userID).Scan(&columnID)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrorNotFound
		}
		if err != nil {
			return err
		}
		ids, err := taskIDs(ctx, tx, columnID)
		if err != nil {
			return err
		}
		return writePositions(ctx, tx, "tasks", ids)
	})
	return mapError(err)
}

func (r *PG) SaveIdempotencyKey(ctx context.Context, userID, key, resourceID string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO idempotency_keys (user_id, key, resource_id) VALUES ($1, $2, $3)
		ON CONFLICT (user_id, key) DO NOTHING
	`, userID, key, resourceID)
	return err
}

func (r *PG) GetIdempotencyKey(ctx context.Context, userID, key string) (string, error) {
	var id string
	err := r.pool.QueryRow(ctx, `
		SELECT resource_id FROM idempotency_keys WHERE user_id = $1 AND key = $2
	`, userID, key).Scan(&id)

	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrorNotFound
	}
	return id, err
}

func (r *PG) CreateUser(ctx context.Context, u model.User, passwordHash string) (model.User, error) {
	u.ID = uuid.NewString()
	u.Email = strings.ToLower(u.Email)
	_, err := r.pool.Exec(ctx, `
		INSERT INTO users (id, name, email, password_hash) VALUES ($1, $2, $3, $4)
	`, u.ID, u.Name, u.Email, passwordHash)
	if err != nil {
		return model.User{}, mapError(err)
	}
	return u, nil
}

func (r *PG) UserByEmail(ctx context.Context, email string) (model.User, string, error) {
	var (
		u    model.User
		hash string
	)
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, email, password_hash FROM users WHERE email = $1
	`, strings.ToLower(email)).Scan(&u.ID, &u.Name, &u.Email, &hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.User{}, "", ErrorNotFound
	}
	return u, hash, err
}

func (r *PG) UserByID(ctx context.Context, id string) (model.User, error) {
	var u model.User
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, email FROM users WHERE id = $1
	`, id).Scan(&u.ID, &u.Name, &u.Email)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.User{}, ErrorNotFound
	}
	return u, err
}

func (r *PG) UpdateUser(ctx context.Context, id string, upd UserUpdate) (model.User, error) {
	if upd.Email != nil {
		upd.Email = model.Ptr(strings.ToLower(*upd.Email))
	}
	var u model.User
	err := r.pool.QueryRow(ctx, `
		UPDATE users
		SET name = COALESCE($2, name),
		    email = COALESCE($3, email),
		    password_hash = COALESCE($4, password_hash),
		    updated_at = now()
		WHERE id = $1
		RETURNING id, name, email
	`, id, upd.Name, upd.Email, upd.PasswordHash).Scan(&u.ID, &u.Name, &u.Email)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.User{}, ErrorNotFound
	}
	return u, mapError(err)
}

func (r *PG) listColumns(ctx context.Context, q querier, userID string) ([]model.Column, error) {
	rows, err := q.Query(ctx, `
		SELECT id, title, position FROM board_columns
		WHERE user_id = $1
		ORDER BY position, created_at
	`, userID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Column, error) {
		c := model.Column{Tasks: []model.Task{}}
		err := row.Scan(&c.ID, &c.Title, &c.Order)
		return c, err
	})
}

func (r *PG) getColumn(ctx context.Context, q querier, userID, id string) (model.Column, error) {
	c := model.Column{Tasks: []model.Task{}}
	err := q.QueryRow(ctx, `
		SELECT id, title, position FROM board_columns WHERE id = $1 AND user_id = $2
	`, id, userID).Scan(&c.ID, &c.Title, &c.Order)
	if errors.Is(err, pgx.ErrNoRows) {
		return c, ErrorNotFound
	}
	if err != nil {
		return c, err
	}

	rows, err := q.Query(ctx, `
		SELECT id, column_id, title, description, status, position
		FROM tasks WHERE column_id = $1
		ORDER BY position, created_at
	`, id)
	if err != nil {
		return c, err
	}
	tasks, err := pgx.CollectRows(rows, scanTask)
	if err != nil {
		return c, err
	}
	c.Tasks = append(c.Tasks, tasks...)
	return c, nil
}

func getTask(ctx context.Context, q querier, userID, id string) (model.Task, error) {
	rows, err := q.Query(ctx, `
		SELECT id, column_id, title, description, status, position
		FROM tasks WHERE id = $1 AND user_id = $2
	`, id, userID)
	if err != nil {
		return model.Task{}, err
	}
	t, err := pgx.CollectExactlyOneRow(rows, scanTask)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Task{}, ErrorNotFound
	}
	return t, err
}

func scanTask(row pgx.CollectableRow) (model.Task, error) {
	var (
		t      model.Task
		status string
	)
	err := row.Scan(&t.ID, &t.ColumnID, &t.Title, &t.Description, &status, &t.Order)
	t.Status = model.Status(status)
	return t, err
}

func lockBoard(ctx context.Context, tx pgx.Tx, userID string) error {
	_, err := tx.Exec(ctx, "SELECT 1 FROM users WHERE id = $1 FOR UPDATE", userID)
	return err
}

func columnExists(ctx context.Context, tx pgx.Tx, userID, columnID string) error {
	var one int
	err := tx.QueryRow(ctx, `
		SELECT 1 FROM board_columns WHERE id = $1 AND user_id = $2
	`, columnID, userID).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrorNotFound
	}
	return err
}

func columnIDs(ctx context.Context, tx pgx.Tx, userID string) ([]string, error) {
	rows, err := tx.Query(ctx, `
		SELECT id FROM board_columns WHERE user_id = $1 ORDER BY position, created_at
	`, userID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func taskIDs(ctx context.Context, tx pgx.Tx, columnID string) ([]string, error) {
	rows, err := tx.Query(ctx, `
		SELECT id FROM tasks WHERE column_id = $1 ORDER BY position, created_at
	`, columnID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// writePositions sets position = index for every id. table is one of the two
// constant table names, never user input.
func writePositions(ctx context.Context, tx pgx.Tx, table string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := tx.Exec(ctx, `
		UPDATE `+table+` AS t SET position = o.ord - 1
		FROM unnest($1::text[]) WITH ORDINALITY AS o(id, ord)
		WHERE t.id = o.id
	`, ids)
	return err
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func mapError(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return ErrorConflict
		case "23503": // внешний ключ: колонка или пользователь уже удалены
			return ErrorNotFound
		}
	}
	return err
}
