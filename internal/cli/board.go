package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/BuzzLyutic/kanban-board/internal/app"
	"github.com/BuzzLyutic/kanban-board/internal/board"
	"github.com/BuzzLyutic/kanban-board/internal/model"
)

func newBoardCommand(c *app.Container) *cobra.Command {
	var status, query string

	cmd := &cobra.Command{
		Use:   "board",
		Short: "Show the board",
		Long: `Show every column with its tasks.

Examples:
  kanban board
  kanban board --status in_progress
  kanban board --q release`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireLogin(c); err != nil {
				return err
			}

			if status == "" && query == "" {
				if err := c.Board.Load(cmd.Context()); err != nil {
					return apiErr(err)
				}
			} else {
				if err := c.Board.SetStatusFilter(model.Status(status)); err != nil {
					return fmt.Errorf("unknown status %q: %w", status, err)
				}
				c.Board.SetSearch(query)
				if err := c.Settle(); err != nil {
					return err
				}
			}
			return printBoard(cmd.OutOrStdout(), c.Board.Snapshot())
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Only tasks with this status: pending, in_progress, completed or all")
	cmd.Flags().StringVar(&query, "q", "", "Only tasks whose title or description contains this text")
	return cmd
}

// afterChange waits for the change to be confirmed and prints the board the
// server ended up with.
func afterChange(cmd *cobra.Command, c *app.Container) error {
	if err := c.Settle(); err != nil {
		return err
	}
	return printBoard(cmd.OutOrStdout(), c.Board.Snapshot())
}

func printBoard(out io.Writer, s board.State) error {
	if s.Len() == 0 {
		_, err := fmt.Fprintln(out, "Board is empty. Add a column with 'kanban column add <title>'.")
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for i, col := range s.Columns() {
		if i > 0 {
			_, _ = fmt.Fprintln(w)
		}
		_, _ = fmt.Fprintf(w, "%s\t[%s]\t(%d)\n", col.Title, col.ID, len(col.Tasks))
		for _, t := range col.Tasks {
			_, _ = fmt.Fprintf(w, "  %d\t%s\t%s\t%s\n", t.Order, t.ID, t.Status, t.Title)
		}
	}
	return w.Flush()
}
