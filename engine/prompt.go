package engine

import (
	"fmt"
	"strings"

	"github.com/asifkhan0410/recallchat/memory"
)

// buildSystemPrompt embeds the retrieved memories with their ids so the
// model can cite them back as [memory:<id>] markers.
func buildSystemPrompt(memories []memory.Memory) string {
	exampleID := "example"
	if len(memories) > 0 {
		exampleID = memories[0].ID
	}

	var memoryContext string
	if len(memories) > 0 {
		var sb strings.Builder
		sb.WriteString("\n\nRelevant memories:\n")
		for i, m := range memories {
			fmt.Fprintf(&sb, "[%d] %s (ID: %s)\n", i+1, m.Memory, m.ID)
		}
		memoryContext = strings.TrimRight(sb.String(), "\n")
	}

	return fmt.Sprintf(`You are a helpful AI assistant with access to the user's memories. When answering questions, use the provided memories as context when relevant. When you reference information from memories, include the memory ID in square brackets like [memory:%s].

Guidelines:
- Be conversational and helpful
- Use memories when they're relevant to the question
- Cite specific memories when you reference them
- If no relevant memories exist, answer based on your general knowledge
- Keep responses concise but informative%s`, exampleID, memoryContext)
}
