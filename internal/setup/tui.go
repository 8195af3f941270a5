// Package setup runs the interactive sign-in and preferences wizard.
package setup

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"
	"github.com/vadiminshakov/somtrade/internal/session"
)

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Background(highlight).
			Padding(1, 2).
			Bold(true).
			MarginBottom(1)

	stepStyle = lipgloss.NewStyle().
			Foreground(special).
			Bold(true).
			MarginTop(1).
			MarginBottom(0)
)

// ErrCancelled is returned when the user declines the final confirmation.
var ErrCancelled = errors.New("setup cancelled by user")

// Sessions is the session surface the wizard drives.
type Sessions interface {
	Login(ctx context.Context, username, password string) (string, error)
	Authenticated(ctx context.Context) (bool, error)
	Settings(ctx context.Context) (session.Settings, error)
	SetTheme(ctx context.Context, t session.Theme) error
	SetAPIKey(ctx context.Context, key string) error
}

// Answers collected by the wizard.
type Answers struct {
	// Username and Password are empty when an existing session is kept.
	Username string
	Password string
	Theme    session.Theme
	// APIKey nil keeps the stored key, empty removes it.
	APIKey *string
}

// Apply signs in when credentials are given and stores the preferences.
func Apply(ctx context.Context, s Sessions, a Answers) error {
	if a.Username != "" || a.Password != "" {
		if _, err := s.Login(ctx, a.Username, a.Password); err != nil {
			return err
		}
	}
	if a.Theme != "" {
		if err := s.SetTheme(ctx, a.Theme); err != nil {
			return errors.Wrap(err, "save theme")
		}
	}
	if a.APIKey != nil {
		if err := s.SetAPIKey(ctx, *a.APIKey); err != nil {
			return errors.Wrap(err, "save api key")
		}
	}
	return nil
}

func screen(step string) {
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("SOMTRADE SETUP"))
	fmt.Println(stepStyle.Render(step))
}

// RunTUI launches the terminal wizard and applies the answers.
func RunTUI(ctx context.Context, s Sessions) error {
	current, err := s.Settings(ctx)
	if err != nil {
		return err
	}
	signedIn, err := s.Authenticated(ctx)
	if err != nil {
		return err
	}

	var (
		username   string
		password   string
		theme      = string(current.Theme)
		apiKey     string
		replaceKey = !current.HasAPIKey
		confirm    bool
	)

	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("SOMTRADE SETUP"))
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("Paper trading with a demo wallet. Nothing here touches real funds.\n"))

	// account
	if !signedIn {
		fmt.Println(stepStyle.Render("STEP 1: SIGN IN"))
		err = huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("Username").
					Value(&username).
					Validate(required("username")),
				huh.NewInput().
					Title("Password").
					Description("Any non-empty password opens the demo account").
					EchoMode(huh.EchoModePassword).
					Value(&password).
					Validate(required("password")),
			),
		).RunWithContext(ctx)
		if err != nil {
			return err
		}
	}

	// theme
	screen("STEP 2: APPEARANCE")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Theme").
				Options(
					huh.NewOption("Dark", string(session.ThemeDark)),
					huh.NewOption("Light", string(session.ThemeLight)),
				).
				Value(&theme),
		),
	).RunWithContext(ctx)
	if err != nil {
		return err
	}

	// ai credential
	screen("STEP 3: AI ADVISOR")
	if current.HasAPIKey {
		err = huh.NewForm(
			huh.NewGroup(
				huh.NewConfirm().
					Title("An API key is already stored. Replace it?").
					Value(&replaceKey),
			),
		).RunWithContext(ctx)
		if err != nil {
			return err
		}
	}
	if replaceKey {
		err = huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("AI API Key").
					Description("Leave empty to use the environment or disable the advisor").
					EchoMode(huh.EchoModePassword).
					Value(&apiKey),
			),
		).RunWithContext(ctx)
		if err != nil {
			return err
		}
	}

	// confirmation
	screen("FINAL CONFIRMATION")
	summary := fmt.Sprintf("Account: %s\nTheme: %s\nAPI key: %s\n",
		accountLine(signedIn, username), theme, keyLine(current.HasAPIKey, replaceKey, apiKey))
	fmt.Println(lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(1).Render(summary))

	err = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save settings?").
				Affirmative("Yes, save").
				Negative("No, exit").
				Value(&confirm),
		),
	).RunWithContext(ctx)
	if err != nil {
		return err
	}
	if !confirm {
		return ErrCancelled
	}

	answers := Answers{Username: username, Password: password, Theme: session.Theme(theme)}
	if replaceKey {
		key := strings.TrimSpace(apiKey)
		answers.APIKey = &key
	}
	if err := Apply(ctx, s, answers); err != nil {
		return err
	}

	fmt.Println(lipgloss.NewStyle().Foreground(special).Render("\n✓ Settings saved"))
	return nil
}

func required(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s cannot be empty", field)
		}
		return nil
	}
}

func accountLine(signedIn bool, username string) string {
	if signedIn {
		return "signed in"
	}
	return username
}

func keyLine(stored, replace bool, key string) string {
	switch {
	case !replace && stored:
		return "keep stored key"
	case strings.TrimSpace(key) == "":
		return "none"
	default:
		return "new key"
	}
}
