package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/BuzzLyutic/kanban-board/internal/app"
	"github.com/BuzzLyutic/kanban-board/internal/dnd"
	"github.com/BuzzLyutic/kanban-board/internal/model"
)

func newColumnCommand(c *app.Container) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "column",
		Aliases: []string{"col"},
		Short:   "Manage columns",
	}
	cmd.AddCommand(
		newColumnAddCommand(c),
		newColumnRenameCommand(c),
		newColumnRemoveCommand(c),
		newColumnMoveCommand(c),
	)
	return cmd
}

func newColumnAddCommand(c *app.Container) *cobra.Command {
	var seeds []string

	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Add a column, optionally with starting tasks",
		Long: `Add a column at the end of the board.

Each --task creates one task in the new column. The tasks are created in
parallel and the board is shown once all of them have been answered.

Examples:
  kanban column add Backlog
  kanban column add "This week" --task "Plan" --task "Review"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireLogin(c); err != nil {
				return err
			}
			if _, err := c.Board.CreateColumn(cmd.Context(), args[0], seeds); err != nil {
				// The board may still have changed: show it before failing.
				_ = afterChange(cmd, c)
				return apiErr(err)
			}
			return afterChange(cmd, c)
		},
	}

	cmd.Flags().StringArrayVar(&seeds, "task", nil, "Title of a task to create in the column (repeatable)")
	return cmd
}

func newColumnRenameCommand(c *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <column-id> <title>",
		Short: "Rename a column",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadBoard(cmd, c); err != nil {
				return err
			}
			if _, err := c.Board.EditColumn(args[0], model.ColumnPatch{Title: &args[1]}); err != nil {
				return err
			}
			return afterChange(cmd, c)
		},
	}
}

func newColumnRemoveCommand(c *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <column-id>",
		Aliases: []string{"delete"},
		Short:   "Delete a column and its tasks",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadBoard(cmd, c); err != nil {
				return err
			}
			c.Board.DeleteColumn(args[0])
			return afterChange(cmd, c)
		},
	}
}

func newColumnMoveCommand(c *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "move <column-id> <target-column-id>",
		Short: "Move a column to the position of another column",
		Long: `Move a column the way dropping it onto another column would: it takes
the target's position and the columns in between shift by one.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadBoard(cmd, c); err != nil {
				return err
			}
			return drop(cmd, c, dnd.Column(args[0]), dnd.Column(args[1]))
		},
	}
}

// loadBoard fetches the board a change is planned against.
func loadBoard(cmd *cobra.Command, c *app.Container) error {
	if err := requireLogin(c); err != nil {
		return err
	}
	if err := c.Board.Load(cmd.Context()); err != nil {
		return apiErr(err)
	}
	return nil
}

// drop runs a whole drag gesture and waits for the server to confirm it.
func drop(cmd *cobra.Command, c *app.Container, active, over dnd.Item) error {
	op, err := c.DnD.Drop(active, over)
	if err != nil {
		return fmt.Errorf("%s %s: %w", active.Kind, active.ID, err)
	}
	if op == nil {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Nothing to move.")
		return nil
	}
	return afterChange(cmd, c)
}
