package advisor

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/somtrade/internal/domain"
	"google.golang.org/genai"
)

// DefaultGeminiModel is the Gemini model used when none is configured.
const DefaultGeminiModel = "gemini-2.5-flash"

type geminiSendFunc func(ctx context.Context, apiKey, model string, cfg *genai.GenerateContentConfig,
	history []*genai.Content, prompt string) (string, error)

// GeminiModel generates text with the Gemini API.
type GeminiModel struct {
	creds CredentialSource
	model string
	send  geminiSendFunc

	mu      sync.Mutex
	client  *genai.Client
	lastKey string
}

// NewGeminiModel creates a backend for model, DefaultGeminiModel when empty.
func NewGeminiModel(creds CredentialSource, model string) *GeminiModel {
	if model == "" {
		model = DefaultGeminiModel
	}
	g := &GeminiModel{creds: creds, model: model}
	g.send = g.sendChat
	return g
}

// Generate implements Model.
func (g *GeminiModel) Generate(ctx context.Context, req Request) (string, error) {
	key, err := g.creds.APIKey(ctx)
	if err != nil {
		return "", err
	}

	var cfg *genai.GenerateContentConfig
	if req.System != "" {
		cfg = &genai.GenerateContentConfig{
			SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: req.System}}},
		}
	}

	history := make([]*genai.Content, 0, len(req.History))
	for _, m := range req.History {
		role := genai.Role(genai.RoleUser)
		if m.Role == domain.RoleModel {
			role = genai.RoleModel
		}
		history = append(history, genai.NewContentFromText(m.Text, role))
	}

	text, err := g.send(ctx, key, g.model, cfg, history, req.Prompt)
	if err != nil {
		return "", classifyGeminiError(err)
	}
	return text, nil
}

func (g *GeminiModel) sendChat(ctx context.Context, apiKey, model string, cfg *genai.GenerateContentConfig,
	history []*genai.Content, prompt string) (string, error) {
	client, err := g.clientFor(ctx, apiKey)
	if err != nil {
		return "", err
	}
	chat, err := client.Chats.Create(ctx, model, cfg, history)
	if err != nil {
		return "", errors.Wrap(err, "create chat")
	}
	resp, err := chat.Send(ctx, &genai.Part{Text: prompt})
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}

// clientFor reuses the client while the key stays the same.
func (g *GeminiModel) clientFor(ctx context.Context, apiKey string) (*genai.Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.client != nil && g.lastKey == apiKey {
		return g.client, nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create gemini client")
	}
	g.client, g.lastKey = client, apiKey
	return client, nil
}

func classifyGeminiError(err error) error {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		var p *genai.APIError
		if !errors.As(err, &p) || p == nil {
			return errors.Wrap(err, "gemini")
		}
		apiErr = *p
	}
	if credentialRejected(apiErr.Code, apiErr.Message) {
		return errors.Wrap(ErrInvalidCredential, apiErr.Message)
	}
	return errors.Wrap(err, "gemini")
}

// credentialRejected reports whether a provider status means a bad API key.
func credentialRejected(status int, message string) bool {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return true
	case http.StatusBadRequest:
		m := strings.ToLower(message)
		return strings.Contains(m, "api key") || strings.Contains(m, "api_key")
	}
	return false
}
