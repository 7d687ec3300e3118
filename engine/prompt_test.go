package engine

import (
	"context"
	"testing"

	"github.com/asifkhan0410/recallchat/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildSystemPrompt(t *testing.T) {
	t.Run("no memories", func(t *testing.T) {
		prompt := buildSystemPrompt(nil)
		assert.Contains(t, prompt, "[memory:example]")
		assert.NotContains(t, prompt, "Relevant memories:")
	})

	t.Run("memories are numbered with ids", func(t *testing.T) {
		prompt := buildSystemPrompt([]memory.Memory{
			{ID: "mem-1", Memory: "likes coffee"},
			{ID: "mem-2", Memory: "lives in Berlin"},
		})
		assert.Contains(t, prompt, "[memory:mem-1]")
		assert.Contains(t, prompt, "[1] likes coffee (ID: mem-1)")
		assert.Contains(t, prompt, "[2] lives in Berlin (ID: mem-2)")
	})
}

func TestFallbackEngine(t *testing.T) {
	res, err := (&fallbackEngine{}).Generate(context.TODO(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, apologyMessage, res.Content)
	assert.Empty(t, res.CitedMemoryIDs)
}
