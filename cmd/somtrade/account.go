package main

import (
	"context"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/vadiminshakov/somtrade/internal"
	"github.com/vadiminshakov/somtrade/internal/render"
	"github.com/vadiminshakov/somtrade/internal/session"
	"github.com/vadiminshakov/somtrade/internal/setup"
)

func (c *cli) serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the market feed and the balance stream",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, release, err := c.open(cmd.Context(), internal.WithBalanceLog())
			if err != nil {
				return err
			}
			defer release()
			return e.Serve(cmd.Context())
		},
	}
}

func (c *cli) setupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Interactive sign-in and preferences wizard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, release, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			defer release()
			return setup.RunTUI(cmd.Context(), e.Sessions)
		},
	}
}

func (c *cli) loginCmd() *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "login <username>",
		Short: "Sign in to the demo account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				err := huh.NewForm(huh.NewGroup(
					huh.NewInput().
						Title("Password").
						EchoMode(huh.EchoModePassword).
						Value(&password),
				)).RunWithContext(cmd.Context())
				if err != nil {
					return err
				}
			}

			e, release, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			defer release()

			if _, err := e.Sessions.Login(cmd.Context(), args[0], password); err != nil {
				return err
			}
			writeln(cmd, render.Success("signed in as "+args[0]))
			return nil
		},
	}
	cmd.Flags().StringVarP(&password, "password", "p", "", "password, prompted when empty")
	return cmd
}

func (c *cli) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and reset the demo portfolio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withSession(cmd, func(ctx context.Context, e *internal.Exchange) error {
				if err := e.Sessions.Logout(ctx); err != nil {
					return err
				}
				writeln(cmd, render.Success("signed out, portfolio reset"))
				return nil
			})
		},
	}
}

func (c *cli) settingsCmd() *cobra.Command {
	var (
		theme    string
		apiKey   string
		clearKey bool
	)
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change preferences",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			e, release, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer release()

			if theme != "" {
				t, err := session.ParseTheme(theme)
				if err != nil {
					return err
				}
				if err := e.Sessions.SetTheme(ctx, t); err != nil {
					return err
				}
			}
			if apiKey != "" || clearKey {
				if err := e.Sessions.SetAPIKey(ctx, strings.TrimSpace(apiKey)); err != nil {
					return err
				}
			}

			s, err := e.Sessions.Settings(ctx)
			if err != nil {
				return err
			}
			key := "not set"
			if s.HasAPIKey {
				key = "saved"
			}
			printf(cmd, "theme:   %s\napi key: %s\n", s.Theme, key)
			return nil
		},
	}
	cmd.Flags().StringVar(&theme, "theme", "", "light or dark")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "AI API key to save")
	cmd.Flags().BoolVar(&clearKey, "clear-api-key", false, "remove the saved AI API key")
	return cmd
}
