package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appcfg "github.com/decidepage/core/internal/config"
)

func TestUnmarshalModelJSON(t *testing.T) {
	type payload struct {
		Summary string `json:"summary"`
	}

	cases := []struct {
		name string
		raw  string
	}{
		{"plain", `{"summary": "hello"}`},
		{"fenced", "```json\n{\"summary\": \"hello\"}\n```"},
		{"fenced upper", "```JSON\n{\"summary\": \"hello\"}\n```"},
		{"bare fence", "```\n{\"summary\": \"hello\"}\n```"},
		{"surrounding prose", "Here is the result:\n{\"summary\": \"hello\"}\nDone."},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var out payload
			require.NoError(t, UnmarshalModelJSON(tc.raw, &out))
			assert.Equal(t, "hello", out.Summary)
		})
	}
}

func TestUnmarshalModelJSONInvalid(t *testing.T) {
	var out map[string]interface{}
	assert.Error(t, UnmarshalModelJSON("not json at all", &out))
	assert.Error(t, UnmarshalModelJSON("", &out))
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "short", TruncateRunes("short", 10))
	assert.Equal(t, "abc...", TruncateRunes("abcdef", 3))
	// Multibyte text truncates on rune boundaries.
	assert.Equal(t, "你好...", TruncateRunes("你好世界", 2))
}

func TestSelectProvider(t *testing.T) {
	cfg := appcfg.AIConfig{
		Providers: []appcfg.AIProvider{
			{ID: "disabled", Type: "OpenAI", DefaultModel: "gpt-4o", Enabled: false},
			{ID: "first", Type: "OpenAI", DefaultModel: "gpt-4o-mini", Enabled: true},
			{ID: "claude", Type: "Anthropic", DefaultModel: "claude-haiku-4-5-20251001", Enabled: true},
		},
	}

	t.Run("by assignment", func(t *testing.T) {
		p := SelectProvider(cfg, &appcfg.AIModelAssignment{ProviderID: "claude"})
		require.NotNil(t, p)
		assert.Equal(t, "claude", p.ID)
	})

	t.Run("assignment model override", func(t *testing.T) {
		p := SelectProvider(cfg, &appcfg.AIModelAssignment{ProviderID: "claude", Model: "claude-sonnet-4-5"})
		require.NotNil(t, p)
		assert.Equal(t, "claude-sonnet-4-5", p.DefaultModel)
	})

	t.Run("fallback to first enabled", func(t *testing.T) {
		p := SelectProvider(cfg, nil)
		require.NotNil(t, p)
		assert.Equal(t, "first", p.ID)
	})

	t.Run("unknown assignment falls back", func(t *testing.T) {
		p := SelectProvider(cfg, &appcfg.AIModelAssignment{ProviderID: "missing"})
		require.NotNil(t, p)
		assert.Equal(t, "first", p.ID)
	})

	t.Run("no enabled providers", func(t *testing.T) {
		p := SelectProvider(appcfg.AIConfig{}, nil)
		assert.Nil(t, p)
	})
}

func TestNormalizeEndpoints(t *testing.T) {
	assert.Equal(t, "https://api.openai.com", normalizeOpenAICompatibleEndpoint(""))
	assert.Equal(t, "https://llm.internal", normalizeOpenAICompatibleEndpoint("https://llm.internal/v1/"))
	assert.Equal(t, "https://llm.internal/v1", normalizeOpenAIBaseURL("https://llm.internal"))
	assert.Equal(t, "https://llm.internal/v1", normalizeOpenAIBaseURL("https://llm.internal/v1/"))
}
