// Package cli provides the kanban command-line client.
package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/BuzzLyutic/kanban-board/internal/app"
	"github.com/BuzzLyutic/kanban-board/internal/client"
)

// Command group IDs.
const (
	groupAccount = "account"
	groupBoard   = "board"
)

// NewRootCommand creates the root command. The container is built by the
// caller and shared by every subcommand.
func NewRootCommand(c *app.Container, version string) *cobra.Command {
	root := &cobra.Command{
		Use:   "kanban",
		Short: "Kanban board client",
		Long: `kanban manages a kanban board kept on a remote board server.

Changes are applied to the local board at once and confirmed against the
server; the board printed after a change is always the server's.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddGroup(
		&cobra.Group{ID: groupAccount, Title: "Account:"},
		&cobra.Group{ID: groupBoard, Title: "Board:"},
	)

	for _, cmd := range []*cobra.Command{
		newLoginCommand(c),
		newSignupCommand(c),
		newLogoutCommand(c),
		newWhoamiCommand(c),
		newProfileCommand(c),
	} {
		cmd.GroupID = groupAccount
		root.AddCommand(cmd)
	}
	for _, cmd := range []*cobra.Command{
		newBoardCommand(c),
		newColumnCommand(c),
		newTaskCommand(c),
	} {
		cmd.GroupID = groupBoard
		root.AddCommand(cmd)
	}
	return root
}

// apiErr turns a rejected session into the message a user can act on.
func apiErr(err error) error {
	if errors.Is(err, client.ErrUnauthorized) {
		return app.ErrSessionExpired
	}
	return err
}

// requireLogin fails fast when no usable token is stored.
func requireLogin(c *app.Container) error {
	if !c.Session.Authenticated() {
		return errors.New("not logged in, run 'kanban login'")
	}
	return nil
}
