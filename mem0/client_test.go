package mem0_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/asifkhan0410/recallchat/mem0"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *mem0.HTTPClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return mem0.NewHTTPClient(mem0.HTTPClientOptions{
		BaseURL: server.URL,
		APIKey:  "test-key",
	})
}

func TestAdd(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/memories/", r.URL.Path)
		assert.Equal(t, "Token test-key", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "u1", body["user_id"])

		json.NewEncoder(w).Encode([]map[string]any{{"id": "mem-1", "event": "ADD"}})
	})

	added, err := client.Add(context.Background(), "I live in Paris", mem0.AddOptions{UserID: "u1"})
	require.NoError(t, err)
	require.Len(t, added, 1)
	assert.Equal(t, "mem-1", added[0].ID)
}

func TestSearchDecodesHeterogeneousTimestamps(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/memories/search/", r.URL.Path)
		json.NewEncoder(w).Encode([]map[string]any{
			{"id": "mem-1", "memory": "a", "created_at": "2024-01-02T03:04:05Z"},
			{"id": "mem-2", "memory": "b", "created_at": 1704164645},
		})
	})

	results, err := client.Search(context.Background(), "q", mem0.SearchOptions{UserID: "u1", Limit: 5})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "2024-01-02T03:04:05Z", results[0].CreatedAt)
	assert.IsType(t, float64(0), results[1].CreatedAt)
}

func TestGetMissReturnsNil(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{})
	})

	result, err := client.Get(context.Background(), "missing", "u1")
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestErrorStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	err := client.Update(context.Background(), "mem-1", "new text", "u1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}
