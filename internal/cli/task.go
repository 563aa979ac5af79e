package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/BuzzLyutic/kanban-board/internal/app"
	"github.com/BuzzLyutic/kanban-board/internal/dnd"
	"github.com/BuzzLyutic/kanban-board/internal/model"
)

func newTaskCommand(c *app.Container) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Manage tasks",
	}
	cmd.AddCommand(
		newTaskAddCommand(c),
		newTaskEditCommand(c),
		newTaskRemoveCommand(c),
		newTaskMoveCommand(c),
	)
	return cmd
}

func newTaskAddCommand(c *app.Container) *cobra.Command {
	var opts struct {
		Column      string
		Description string
		Status      string
	}

	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Add a task at the end of a column",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireLogin(c); err != nil {
				return err
			}

			in := model.NewTask{Title: args[0], ColumnID: opts.Column}
			if cmd.Flags().Changed("desc") {
				in.Description = &opts.Description
			}
			if opts.Status != "" {
				in.Status = model.Ptr(model.Status(opts.Status))
			}

			if _, err := c.Board.CreateTask(cmd.Context(), in); err != nil {
				if errors.Is(err, model.ErrValidation) {
					return fmt.Errorf("task add: %w", err)
				}
				_ = c.Settle()
				return apiErr(err)
			}
			return afterChange(cmd, c)
		},
	}

	cmd.Flags().StringVar(&opts.Column, "column", "", "Column id (required)")
	cmd.Flags().StringVar(&opts.Description, "desc", "", "Description")
	cmd.Flags().StringVar(&opts.Status, "status", "", "Initial status: pending, in_progress or completed")
	_ = cmd.MarkFlagRequired("column")
	return cmd
}

func newTaskEditCommand(c *app.Container) *cobra.Command {
	var opts struct {
		Title       string
		Description string
		Status      string
	}

	cmd := &cobra.Command{
		Use:   "edit <task-id>",
		Short: "Change the title, description or status of a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch model.TaskPatch
			if cmd.Flags().Changed("title") {
				patch.Title = &opts.Title
			}
			if cmd.Flags().Changed("desc") {
				patch.Description = &opts.Description
			}
			if cmd.Flags().Changed("status") {
				patch.Status = model.Ptr(model.Status(opts.Status))
			}

			if err := loadBoard(cmd, c); err != nil {
				return err
			}
			if _, err := c.Board.EditTask(args[0], patch); err != nil {
				return fmt.Errorf("task edit: %w", err)
			}
			return afterChange(cmd, c)
		},
	}

	cmd.Flags().StringVar(&opts.Title, "title", "", "New title")
	cmd.Flags().StringVar(&opts.Description, "desc", "", "New description")
	cmd.Flags().StringVar(&opts.Status, "status", "", "New status: pending, in_progress or completed")
	return cmd
}

func newTaskRemoveCommand(c *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <task-id>",
		Aliases: []string{"delete"},
		Short:   "Delete a task",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadBoard(cmd, c); err != nil {
				return err
			}
			c.Board.DeleteTask(args[0])
			return afterChange(cmd, c)
		},
	}
}

func newTaskMoveCommand(c *app.Container) *cobra.Command {
	var onto, column string

	cmd := &cobra.Command{
		Use:   "move <task-id>",
		Short: "Move a task onto another task or to the end of a column",
		Long: `Move a task the way dropping it would.

--onto <task-id>    take the position of that task, in its column
--column <col-id>   go to the end of that column

Examples:
  kanban task move 3f2a --onto 9c1d
  kanban task move 3f2a --column done`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var over dnd.Item
			switch {
			case onto != "" && column != "":
				return errors.New("use either --onto or --column, not both")
			case onto != "":
				over = dnd.Task(onto)
			case column != "":
				over = dnd.Column(column)
			default:
				return errors.New("a target is required: --onto or --column")
			}

			if err := loadBoard(cmd, c); err != nil {
				return err
			}
			return drop(cmd, c, dnd.Task(args[0]), over)
		},
	}

	cmd.Flags().StringVar(&onto, "onto", "", "Task to drop onto")
	cmd.Flags().StringVar(&column, "column", "", "Column to drop onto")
	return cmd
}
