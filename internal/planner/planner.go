// internal/planner/planner.go
package planner

import (
	"context"
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/xkilldash9x/formpilot/api/schemas"
	"github.com/xkilldash9x/formpilot/internal/config"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Planner decides what to do next; the engine decides how to do it safely.
// This boundary is deliberate: nothing the planner returns can bypass the
// interaction gate or the submit confirmation.
type Planner interface {
	PlanIntents(ctx context.Context, task string, obs schemas.PageObservation) ([]schemas.Intent, error)
}

const systemPrompt = `You are the planning component of a browser assistant that helps its operator fill job application forms.
You receive the operator's task and a structured observation of the current page.
Respond with a JSON array of intent objects and nothing else. Each intent has:
  "type": one of "navigate", "click", "fill", "type", "set_files", "scroll", "wait", "complete_form", "submit"
  "target": {"locator", "role", "text", "name"} describing the element (omit for navigate)
  "value": URL for navigate, text for fill/type, form selector for complete_form
Prefer "complete_form" over individual fills when a form is present.
Never invent answers to form questions; the engine resolves answers itself.`

// GeminiPlanner asks a Gemini model for the next intents.
type GeminiPlanner struct {
	client *genai.Client
	model  string
	cfg    config.PlannerConfig
	logger *zap.Logger
}

var _ Planner = (*GeminiPlanner)(nil)

func NewGeminiPlanner(ctx context.Context, cfg config.PlannerConfig, logger *zap.Logger) (*GeminiPlanner, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("planner API key is not configured")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &GeminiPlanner{
		client: client,
		model:  cfg.Model,
		cfg:    cfg,
		logger: logger.Named("planner"),
	}, nil
}

func (p *GeminiPlanner) PlanIntents(ctx context.Context, task string, obs schemas.PageObservation) ([]schemas.Intent, error) {
	obsJSON, err := json.MarshalToString(obs)
	if err != nil {
		return nil, fmt.Errorf("failed to encode observation: %w", err)
	}

	prompt := fmt.Sprintf("Task:\n%s\n\nCurrent page observation:\n%s", task, obsJSON)

	callCtx, cancel := context.WithTimeout(ctx, p.cfg.APITimeout)
	defer cancel()

	resp, err := p.client.Models.GenerateContent(callCtx, p.model, genai.Text(prompt), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
		ResponseMIMEType:  "application/json",
	})
	if err != nil {
		return nil, fmt.Errorf("planner call failed: %w", err)
	}

	intents, err := parseIntents(resp.Text())
	if err != nil {
		return nil, err
	}
	p.logger.Debug("Intents planned.", zap.Int("count", len(intents)))
	return intents, nil
}

// parseIntents decodes the model's JSON, tolerating a markdown code fence,
// and rejects intent types outside the engine's vocabulary.
func parseIntents(raw string) ([]schemas.Intent, error) {
	text := strings.TrimSpace(raw)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if i := strings.LastIndex(text, "```"); i >= 0 {
			text = text[:i]
		}
		text = strings.TrimSpace(text)
	}

	var intents []schemas.Intent
	if err := json.UnmarshalFromString(text, &intents); err != nil {
		return nil, fmt.Errorf("planner returned malformed intents: %w", err)
	}

	for i, intent := range intents {
		switch intent.Type {
		case schemas.IntentNavigate, schemas.IntentClick, schemas.IntentFill,
			schemas.IntentTypeKeys, schemas.IntentSetFiles, schemas.IntentScroll,
			schemas.IntentWait, schemas.IntentCompleteForm, schemas.IntentSubmit:
		case schemas.IntentClose:
			// Only the operator closes a session; a planned close is dropped.
			return nil, fmt.Errorf("planner attempted a close at position %d", i)
		default:
			return nil, fmt.Errorf("planner returned unknown intent type %q", intent.Type)
		}
	}
	return intents, nil
}
