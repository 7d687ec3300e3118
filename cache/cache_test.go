package cache_test

import (
	"testing"
	"time"

	"github.com/asifkhan0410/recallchat/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPartitionIsolation(t *testing.T) {
	c := cache.New(cache.Options{})

	results := []string{"mem-1", "mem-2"}
	c.SetSearchResults("u1", "q1", 5, results)

	got, ok := c.GetSearchResults("u1", "q1", 5)
	require.True(t, ok)
	assert.Equal(t, results, got)

	_, ok = c.GetSearchResults("u2", "q1", 5)
	assert.False(t, ok, "another user's identical query must miss")

	_, ok = c.GetSearchResults("u1", "q2", 5)
	assert.False(t, ok, "another query for the same user must miss")

	_, ok = c.GetSearchResults("u1", "q1", 10)
	assert.False(t, ok, "a different limit is a different key")

	_, ok = c.GetAllMemories("u1")
	assert.False(t, ok, "search writes must not leak into the all partition")
}

func TestTTLExpiry(t *testing.T) {
	c := cache.New(cache.Options{SearchTTL: 5 * time.Minute})

	now := time.Now()
	c.SetNow(func() time.Time { return now })

	c.SetSearchResults("u1", "q", 5, []string{"mem-1"})

	_, ok := c.GetSearchResults("u1", "q", 5)
	require.True(t, ok)

	now = now.Add(5*time.Minute + time.Second)
	_, ok = c.GetSearchResults("u1", "q", 5)
	assert.False(t, ok, "expired entries read back as absent")
}

func TestSetOverwriteResetsExpiry(t *testing.T) {
	c := cache.New(cache.Options{SearchTTL: 5 * time.Minute})

	now := time.Now()
	c.SetNow(func() time.Time { return now })

	c.SetSearchResults("u1", "q", 5, "old")
	now = now.Add(4 * time.Minute)
	c.SetSearchResults("u1", "q", 5, "new")
	now = now.Add(4 * time.Minute)

	got, ok := c.GetSearchResults("u1", "q", 5)
	require.True(t, ok)
	assert.Equal(t, "new", got)
}

func TestInvalidateUser(t *testing.T) {
	c := cache.New(cache.Options{})

	c.SetSearchResults("u1", "q1", 5, "a")
	c.SetSearchResults("u1", "q2", 5, "b")
	c.SetSearchResults("u2", "q1", 5, "c")
	c.SetAllMemories("u1", "d")
	c.SetUserData("u1", "profile", "e")

	c.InvalidateUser("u1")

	_, ok := c.GetSearchResults("u1", "q1", 5)
	assert.False(t, ok)
	_, ok = c.GetSearchResults("u1", "q2", 5)
	assert.False(t, ok)
	_, ok = c.GetAllMemories("u1")
	assert.False(t, ok)
	_, ok = c.GetUserData("u1", "profile")
	assert.False(t, ok)

	got, ok := c.GetSearchResults("u2", "q1", 5)
	require.True(t, ok, "other users are untouched")
	assert.Equal(t, "c", got)
}

func TestInvalidateMemoryScansValues(t *testing.T) {
	c := cache.New(cache.Options{})

	c.SetSearchResults("u1", "q", 5, []map[string]any{{"id": "mem-42", "text": "likes coffee"}})
	c.SetSearchResults("u2", "other", 5, []map[string]any{{"id": "mem-7"}})
	c.SetAllMemories("u1", map[string]any{"results": []string{"mem-42"}})

	c.InvalidateMemory("mem-42")

	_, ok := c.GetSearchResults("u1", "q", 5)
	assert.False(t, ok)
	_, ok = c.GetAllMemories("u1")
	assert.False(t, ok)
	_, ok = c.GetSearchResults("u2", "other", 5)
	assert.True(t, ok, "entries without the id survive")
}

func TestErrorTolerance(t *testing.T) {
	c := cache.New(cache.Options{})

	assert.NotPanics(t, func() {
		c.SetSearchResults("", "", 0, []string{})
		c.InvalidateUser("")
		c.InvalidateMemory("nonexistent")
		c.GetAllMemories("")
	})

	c.SetSearchResults("u1", "q", 5, nil)
	_, ok := c.GetSearchResults("u1", "q", 5)
	assert.False(t, ok, "stored nil reads back as absent")
}

func TestStatsAndClearAll(t *testing.T) {
	c := cache.New(cache.Options{})

	c.SetSearchResults("u1", "q", 5, "a")
	c.GetSearchResults("u1", "q", 5)
	c.GetSearchResults("u1", "unknown", 5)
	c.GetAllMemories("u1")

	stats := c.GetStats()
	assert.Equal(t, 1, stats.Search.Keys)
	assert.Equal(t, int64(1), stats.Search.Hits)
	assert.Equal(t, int64(1), stats.Search.Misses)
	assert.Equal(t, int64(1), stats.All.Misses)

	c.ClearAll()
	stats = c.GetStats()
	assert.Zero(t, stats.Search.Keys)
	assert.Zero(t, stats.All.Keys)
	assert.Zero(t, stats.Misc.Keys)
}
