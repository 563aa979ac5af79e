package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/BuzzLyutic/kanban-board/internal/app"
	"github.com/BuzzLyutic/kanban-board/internal/model"
)

func newLoginCommand(c *app.Container) *cobra.Command {
	var creds model.Credentials

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tok, err := c.API.Login(cmd.Context(), creds)
			if err != nil {
				return fmt.Errorf("login: %w", err)
			}
			if err := c.Session.SetToken(tok.AccessToken); err != nil {
				return fmt.Errorf("save token: %w", err)
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Logged in.")
			return nil
		},
	}

	cmd.Flags().StringVar(&creds.Email, "email", "", "Account email (required)")
	cmd.Flags().StringVar(&creds.Password, "password", "", "Account password (required)")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newSignupCommand(c *app.Container) *cobra.Command {
	var reg model.Registration

	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account and log in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := reg.Validate(); err != nil {
				return fmt.Errorf("signup: name, a valid email and a password of at least %d characters are required: %w",
					model.MinPasswordLength, err)
			}
			user, err := c.API.Register(cmd.Context(), reg)
			if err != nil {
				return fmt.Errorf("signup: %w", err)
			}
			tok, err := c.API.Login(cmd.Context(), model.Credentials{Email: reg.Email, Password: reg.Password})
			if err != nil {
				return fmt.Errorf("login: %w", err)
			}
			if err := c.Session.SetToken(tok.AccessToken); err != nil {
				return fmt.Errorf("save token: %w", err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Signed up as %s <%s>.\n", user.Name, user.Email)
			return nil
		},
	}

	cmd.Flags().StringVar(&reg.Name, "name", "", "Display name (required)")
	cmd.Flags().StringVar(&reg.Email, "email", "", "Account email (required)")
	cmd.Flags().StringVar(&reg.Password, "password", "", "Account password (required)")
	return cmd
}

func newLogoutCommand(c *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.Session.Logout(); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
			return nil
		},
	}
}

func newWhoamiCommand(c *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireLogin(c); err != nil {
				return err
			}
			user, err := c.Session.CurrentUser(cmd.Context(), c.API.Me)
			if err != nil {
				return apiErr(err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s <%s>\n", user.Name, user.Email)
			return nil
		},
	}
}

func newProfileCommand(c *app.Container) *cobra.Command {
	var name, email, password string

	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Update name, email or password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireLogin(c); err != nil {
				return err
			}

			// Only flags given on the command line are sent.
			var patch model.ProfilePatch
			if cmd.Flags().Changed("name") {
				patch.Name = &name
			}
			if cmd.Flags().Changed("email") {
				patch.Email = &email
			}
			if cmd.Flags().Changed("password") {
				patch.Password = &password
			}
			if patch == (model.ProfilePatch{}) {
				return fmt.Errorf("nothing to update, pass --name, --email or --password")
			}
			if err := patch.Validate(); err != nil {
				return fmt.Errorf("profile: %w", err)
			}

			user, err := c.API.UpdateProfile(cmd.Context(), patch)
			if err != nil {
				return apiErr(err)
			}
			c.Session.InvalidateUser()
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Updated %s <%s>.\n", user.Name, user.Email)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "New display name")
	cmd.Flags().StringVar(&email, "email", "", "New email")
	cmd.Flags().StringVar(&password, "password", "", "New password")
	return cmd
}
