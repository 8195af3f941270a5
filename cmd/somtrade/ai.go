package main

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/vadiminshakov/somtrade/internal"
	"github.com/vadiminshakov/somtrade/internal/domain"
	"github.com/vadiminshakov/somtrade/internal/render"
	"github.com/vadiminshakov/somtrade/internal/services/advisor"
)

const credentialHint = "save a key with `somtrade settings --api-key <key>` or set " +
	advisor.EnvGeminiAPIKey + " / " + advisor.EnvLLMAPIKey

func (c *cli) insightCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "insight <coin>",
		Short: "AI overview of a coin",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withSession(cmd, func(ctx context.Context, e *internal.Exchange) error {
				text, err := e.Advisor.Insights(ctx, strings.Join(args, " "))
				if err != nil {
					return aiError(err)
				}
				writeln(cmd, render.Markdown(text, string(e.Sessions.Theme(ctx))))
				return nil
			})
		},
	}
}

func (c *cli) analyzeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "analyze",
		Short: "AI review of the portfolio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withSession(cmd, func(ctx context.Context, e *internal.Exchange) error {
				text, err := e.Advisor.PortfolioAnalysis(ctx, e.Ledger.Snapshot(), e.MarketList(ctx))
				if err != nil {
					return aiError(err)
				}
				writeln(cmd, render.Markdown(text, string(e.Sessions.Theme(ctx))))
				return nil
			})
		},
	}
}

func (c *cli) chatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Talk to the AI advisor, an empty line or EOF ends the chat",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withSession(cmd, func(ctx context.Context, e *internal.Exchange) error {
				theme := string(e.Sessions.Theme(ctx))
				writeln(cmd, render.Markdown(advisor.WelcomeMessage, theme))

				var history []domain.ChatMessage
				scanner := bufio.NewScanner(cmd.InOrStdin())
				for {
					printf(cmd, "> ")
					if !scanner.Scan() {
						return scanner.Err()
					}
					message := strings.TrimSpace(scanner.Text())
					if message == "" {
						return nil
					}

					reply, err := e.Advisor.ChatReply(ctx, history, message)
					history = append(history, domain.ChatMessage{Role: domain.RoleUser, Text: message})
					if err != nil {
						if errors.Is(err, context.Canceled) {
							return nil
						}
						notice := aiError(err).Error()
						history = append(history, domain.ChatMessage{Role: domain.RoleModel, Text: notice, IsError: true})
						writeln(cmd, render.Warning(notice))
						continue
					}
					history = append(history, domain.ChatMessage{Role: domain.RoleModel, Text: reply})
					writeln(cmd, render.Markdown(reply, theme))
				}
			})
		},
	}
}

// aiError adds a hint to credential failures.
func aiError(err error) error {
	if advisor.IsCredentialError(err) {
		return fmt.Errorf("%w: %s", err, credentialHint)
	}
	return err
}
