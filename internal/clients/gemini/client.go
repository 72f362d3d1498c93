package gemini

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/mockmate/mockmate-backend/internal/logger"
	"github.com/mockmate/mockmate-backend/internal/types"
	"github.com/mockmate/mockmate-backend/internal/utils"
)

// Client covers the two call shapes the orchestration needs: single-shot
// generation and a chat call rebuilt from serialized history on every
// request. The SDK chat object never outlives one call.
type Client interface {
	Generate(ctx context.Context, systemInstruction, prompt string, jsonOutput bool) (string, error)
	Chat(ctx context.Context, systemInstruction string, history []types.TurnMessage, message string, jsonOutput bool) (string, error)
	Close() error
}

type client struct {
	log        *logger.Logger
	genai      *genai.Client
	model      string
	maxRetries int
}

func NewClient(ctx context.Context, log *logger.Logger) (Client, error) {
	serviceLog := log.With("service", "GeminiClient")

	apiKey := utils.GetEnv("GEMINI_API_KEY", "", log)
	if apiKey == "" {
		return nil, fmt.Errorf("missing GEMINI_API_KEY")
	}
	model := utils.GetEnv("GEMINI_MODEL", "gemini-2.5-flash", log)
	maxRetries := utils.GetEnvAsInt("GEMINI_MAX_RETRIES", 3, log)

	gc, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &client{
		log:        serviceLog,
		genai:      gc,
		model:      model,
		maxRetries: maxRetries,
	}, nil
}

func (c *client) Close() error {
	if c == nil || c.genai == nil {
		return nil
	}
	return c.genai.Close()
}

func (c *client) newModel(systemInstruction string, jsonOutput bool) *genai.GenerativeModel {
	model := c.genai.GenerativeModel(c.model)
	model.SetTemperature(0.2)
	if systemInstruction != "" {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(systemInstruction)},
		}
	}
	if jsonOutput {
		model.ResponseMIMEType = "application/json"
	}
	return model
}

func (c *client) Generate(ctx context.Context, systemInstruction, prompt string, jsonOutput bool) (string, error) {
	model := c.newModel(systemInstruction, jsonOutput)

	resp, err := c.retry(ctx, func() (*genai.GenerateContentResponse, error) {
		return model.GenerateContent(ctx, genai.Text(prompt))
	})
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}

	text, err := extractText(resp)
	if err != nil {
		return "", err
	}
	if jsonOutput {
		text = cleanJSONBlock(text)
	}
	return text, nil
}

func (c *client) Chat(ctx context.Context, systemInstruction string, history []types.TurnMessage, message string, jsonOutput bool) (string, error) {
	model := c.newModel(systemInstruction, jsonOutput)
	cs := model.StartChat()
	cs.History = toGenaiHistory(history)

	resp, err := c.retry(ctx, func() (*genai.GenerateContentResponse, error) {
		return cs.SendMessage(ctx, genai.Text(message))
	})
	if err != nil {
		return "", fmt.Errorf("gemini chat: %w", err)
	}

	text, err := extractText(resp)
	if err != nil {
		return "", err
	}
	if jsonOutput {
		text = cleanJSONBlock(text)
	}
	return text, nil
}

// toGenaiHistory maps role-tagged turn messages onto the SDK's user/model
// roles. System entries ride along as user turns; the standing system
// instruction is set on the model itself.
func toGenaiHistory(history []types.TurnMessage) []*genai.Content {
	out := make([]*genai.Content, 0, len(history))
	for _, m := range history {
		role := "user"
		if m.Role == types.TurnRoleAssistant {
			role = "model"
		}
		out = append(out, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(m.Text)},
		})
	}
	return out
}

func (c *client) retry(ctx context.Context, fn func() (*genai.GenerateContentResponse, error)) (*genai.GenerateContentResponse, error) {
	backoff := 1 * time.Second
	var last error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		resp, err := fn()
		if err == nil {
			return resp, nil
		}
		last = err

		code := status.Code(err)
		if code != codes.Unavailable && code != codes.ResourceExhausted && code != codes.DeadlineExceeded && code != codes.Internal {
			return nil, err
		}
		if attempt == c.maxRetries {
			break
		}
		c.log.Warn("Gemini request retrying",
			"attempt", attempt+1,
			"max_retries", c.maxRetries,
			"sleep", backoff.String(),
			"error", err.Error(),
		)
		time.Sleep(backoff)
		backoff *= 2
		if backoff > 10*time.Second {
			backoff = 10 * time.Second
		}
	}
	return nil, last
}

func extractText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates in response")
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("no content in response")
	}
	var parts []string
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			parts = append(parts, string(text))
		}
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("no text parts in response")
	}
	return strings.Join(parts, ""), nil
}

func cleanJSONBlock(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}
