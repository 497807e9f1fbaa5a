// internal/planner/planner_test.go
package planner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/formpilot/api/schemas"
	"github.com/xkilldash9x/formpilot/internal/config"
)

func TestParseIntents(t *testing.T) {
	raw := `[
		{"type": "navigate", "value": "https://boards.greenhouse.io/acme/jobs/1"},
		{"type": "click", "target": {"role": "button", "text": "Apply"}},
		{"type": "complete_form", "value": "#application_form"}
	]`

	intents, err := parseIntents(raw)
	require.NoError(t, err)
	require.Len(t, intents, 3)
	assert.Equal(t, schemas.IntentNavigate, intents[0].Type)
	assert.Equal(t, "Apply", intents[1].Target.Text)
	assert.Equal(t, "#application_form", intents[2].Value)
}

func TestParseIntentsStripsCodeFence(t *testing.T) {
	raw := "```json\n[{\"type\": \"scroll\", \"value\": \"down\"}]\n```"

	intents, err := parseIntents(raw)
	require.NoError(t, err)
	require.Len(t, intents, 1)
	assert.Equal(t, schemas.IntentScroll, intents[0].Type)
}

func TestParseIntentsRejectsUnknownType(t *testing.T) {
	_, err := parseIntents(`[{"type": "execute_javascript"}]`)
	assert.Error(t, err)
}

func TestParseIntentsRejectsPlannedClose(t *testing.T) {
	_, err := parseIntents(`[{"type": "close"}]`)
	assert.Error(t, err, "session teardown is operator-only")
}

func TestParseIntentsRejectsMalformedJSON(t *testing.T) {
	_, err := parseIntents(`the model apologizes instead of answering`)
	assert.Error(t, err)
}

func TestNewGeminiPlannerRequiresKey(t *testing.T) {
	cfg := config.NewDefaultConfig().Planner
	cfg.APIKey = ""
	_, err := NewGeminiPlanner(context.Background(), cfg, zap.NewNop())
	assert.Error(t, err)
}
