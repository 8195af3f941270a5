package advisor

import (
	"context"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/pkg/errors"
	"github.com/vadiminshakov/somtrade/internal/domain"
)

// DefaultOpenAIModel is the chat model used when none is configured.
const DefaultOpenAIModel = "gpt-4o-mini"

// chatCompleter is the slice of the SDK the backend needs.
type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error)
}

type sdkClient struct {
	client openai.Client
}

func (c *sdkClient) CreateChatCompletion(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
	return c.client.Chat.Completions.New(ctx, params)
}

// OpenAIModel generates text with any OpenAI-compatible chat completions API.
type OpenAIModel struct {
	creds     CredentialSource
	model     string
	newClient func(apiKey string) chatCompleter
}

// NewOpenAIModel creates a backend. baseURL selects a compatible provider, empty means api.openai.com.
func NewOpenAIModel(creds CredentialSource, model, baseURL string) *OpenAIModel {
	if model == "" {
		model = DefaultOpenAIModel
	}
	return &OpenAIModel{
		creds: creds,
		model: model,
		newClient: func(apiKey string) chatCompleter {
			opts := []option.RequestOption{option.WithAPIKey(apiKey)}
			if baseURL != "" {
				opts = append(opts, option.WithBaseURL(baseURL))
			}
			return &sdkClient{client: openai.NewClient(opts...)}
		},
	}
}

// Generate implements Model.
func (o *OpenAIModel) Generate(ctx context.Context, req Request) (string, error) {
	key, err := o.creds.APIKey(ctx)
	if err != nil {
		return "", err
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.History)+2)
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	for _, m := range req.History {
		if m.Role == domain.RoleModel {
			messages = append(messages, openai.AssistantMessage(m.Text))
			continue
		}
		messages = append(messages, openai.UserMessage(m.Text))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	completion, err := o.newClient(key).CreateChatCompletion(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(o.model),
		Messages: messages,
	})
	if err != nil {
		return "", classifyOpenAIError(err)
	}
	if len(completion.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return completion.Choices[0].Message.Content, nil
}

func classifyOpenAIError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) && credentialRejected(apiErr.StatusCode, apiErr.Message) {
		return errors.Wrap(ErrInvalidCredential, apiErr.Message)
	}
	return errors.Wrap(err, "openai")
}
