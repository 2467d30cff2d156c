package assist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-resolution/internal/config"
)

// OpenAIDrafter calls an OpenAI-compatible chat completions endpoint. The
// response text is returned opaque.
type OpenAIDrafter struct {
	cfg    config.AssistantConfig
	client *http.Client
	logger *zap.Logger
}

// NewOpenAIDrafter constructs the live backend.
func NewOpenAIDrafter(cfg config.AssistantConfig, logger *zap.Logger) *OpenAIDrafter {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &OpenAIDrafter{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Draft sends the structured context as a prompt and returns the
// completion text.
func (d *OpenAIDrafter) Draft(ctx context.Context, kind DraftKind, draft DraftContext) (string, error) {
	prompt, err := buildPrompt(kind, draft)
	if err != nil {
		return "", err
	}

	payload, err := json.Marshal(chatRequest{
		Model: d.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt(kind)},
			{Role: "user", Content: prompt},
		},
		Temperature: 0.2,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.cfg.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+d.cfg.APIKey)

	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("assistant request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("assistant response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("assistant error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("assistant returned no choices (status %d)", resp.StatusCode)
	}

	d.logger.Debug("assistant draft produced",
		zap.String("kind", string(kind)),
		zap.Int("chars", len(parsed.Choices[0].Message.Content)))
	return parsed.Choices[0].Message.Content, nil
}

func systemPrompt(kind DraftKind) string {
	switch kind {
	case DraftCustomerMessage:
		return "You draft concise, friendly support emails in the customer's language."
	case DraftInternalNote:
		return "You write terse internal support notes for engineers."
	default:
		return "You summarize support resolution plans."
	}
}

func buildPrompt(kind DraftKind, draft DraftContext) (string, error) {
	context := map[string]any{}
	if draft.Ticket != nil {
		context["ticket"] = map[string]any{
			"id":          draft.Ticket.ID,
			"subject":     draft.Ticket.Subject,
			"description": draft.Ticket.Description,
			"product_id":  draft.Ticket.ProductID,
		}
	}
	if draft.Step != nil {
		context["step"] = draft.Step
	}
	if draft.Plan != nil {
		context["plan"] = draft.Plan
	}
	if draft.Findings != nil {
		context["findings"] = draft.Findings
	}
	if draft.Summary != nil {
		context["summary"] = draft.Summary
	}

	encoded, err := json.MarshalIndent(context, "", "  ")
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Produce a %s for the following context:\n%s", kind, encoded), nil
}
