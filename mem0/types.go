// Package mem0 is a thin client for the Mem0 platform API, the remote
// authority for long-term memories. It deliberately exposes the wire
// shapes as-is; normalization into the application model happens in the
// memory gateway.
package mem0

type (
	// RawMemory mirrors the remote response shape. Timestamp fields are
	// left untyped because the API returns either RFC3339 strings or
	// epoch numbers depending on the endpoint.
	RawMemory struct {
		ID        string         `json:"id"`
		Memory    string         `json:"memory"`
		Hash      string         `json:"hash,omitempty"`
		Metadata  map[string]any `json:"metadata,omitempty"`
		Score     *float64       `json:"score,omitempty"`
		CreatedAt any            `json:"created_at,omitempty"`
		UpdatedAt any            `json:"updated_at,omitempty"`
	}

	// AddedMemory is one element of an add response. A single add call can
	// produce several extracted memories.
	AddedMemory struct {
		ID     string `json:"id"`
		Memory string `json:"memory,omitempty"`
		Event  string `json:"event,omitempty"`
	}

	AddOptions struct {
		UserID   string
		Metadata map[string]any
	}

	SearchOptions struct {
		UserID string
		Limit  int
	}

	GetAllOptions struct {
		UserID string
		Limit  int
	}
)
