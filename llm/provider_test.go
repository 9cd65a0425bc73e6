package llm

import (
	"testing"

	"github.com/BaSui01/promptgate/llm/moderation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func TestDefaultGenerationConfig(t *testing.T) {
	cfg := DefaultGenerationConfig()
	assert.Equal(t, int32(8192), cfg.MaxOutputTokens)
	assert.Equal(t, float32(1.0), cfg.Temperature)
	assert.Equal(t, float32(0.95), cfg.TopP)
}

func TestNewGenerateRequest_DerivesSafety(t *testing.T) {
	req := NewGenerateRequest("hello", moderation.LevelRelaxed, DefaultGenerationConfig())

	assert.Equal(t, "hello", req.Prompt)
	assert.Equal(t, moderation.LevelRelaxed, req.Level)
	require.Len(t, req.Safety, len(moderation.Categories()))
	for _, s := range req.Safety {
		assert.Equal(t, genai.HarmBlockThresholdBlockOnlyHigh, s.Threshold)
	}
}
