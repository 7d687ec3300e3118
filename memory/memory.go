package memory

import (
	"encoding/json"
	"time"

	"github.com/asifkhan0410/recallchat/mem0"
)

type (
	// Memory is the normalized shape handed to callers. Raw mem0 payloads
	// carry timestamps as either RFC 3339 strings or unix numbers depending
	// on the endpoint; normalization flattens both to strings.
	Memory struct {
		ID        string         `json:"id"`
		Memory    string         `json:"memory"`
		Hash      string         `json:"hash,omitempty"`
		Metadata  map[string]any `json:"metadata,omitempty"`
		Score     *float64       `json:"score,omitempty"`
		CreatedAt string         `json:"created_at"`
		UpdatedAt string         `json:"updated_at"`
	}

	ListResult struct {
		Results []Memory `json:"results"`
		Total   int      `json:"total"`
	}
)

func normalize(raw mem0.RawMemory) Memory {
	return Memory{
		ID:        raw.ID,
		Memory:    raw.Memory,
		Hash:      raw.Hash,
		Metadata:  raw.Metadata,
		Score:     raw.Score,
		CreatedAt: normalizeTimestamp(raw.CreatedAt),
		UpdatedAt: normalizeTimestamp(raw.UpdatedAt),
	}
}

func normalizeAll(raws []mem0.RawMemory) []Memory {
	memories := make([]Memory, 0, len(raws))
	for _, raw := range raws {
		memories = append(memories, normalize(raw))
	}
	return memories
}

// normalizeTimestamp accepts the timestamp shapes mem0 responses have been
// observed to use. Numbers are unix seconds, strings pass through, anything
// else falls back to the current time.
func normalizeTimestamp(v any) string {
	switch ts := v.(type) {
	case string:
		if ts != "" {
			return ts
		}
	case float64:
		return time.Unix(int64(ts), 0).UTC().Format(time.RFC3339)
	case int64:
		return time.Unix(ts, 0).UTC().Format(time.RFC3339)
	case int:
		return time.Unix(int64(ts), 0).UTC().Format(time.RFC3339)
	case json.Number:
		if f, err := ts.Float64(); err == nil {
			return time.Unix(int64(f), 0).UTC().Format(time.RFC3339)
		}
	}
	return time.Now().UTC().Format(time.RFC3339)
}
