package collab

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
)

func TestCacheExpiresAfterTimeout(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := NewCache(clock, time.Minute)

	c.Set("hubs", []string{"h1"})
	v, ok := c.Get("hubs")
	assert.True(t, ok)
	assert.Equal(t, []string{"h1"}, v)

	clock.Advance(time.Minute)
	_, ok = c.Get("hubs")
	assert.True(t, ok, "entry exactly timeout old is still fresh")

	clock.Advance(time.Nanosecond)
	_, ok = c.Get("hubs")
	assert.False(t, ok)
	assert.Equal(t, 1, c.Len())

	c.Set("hubs", []string{"h2"})
	v, ok = c.Get("hubs")
	assert.True(t, ok)
	assert.Equal(t, []string{"h2"}, v)
}

func TestCacheDeletes(t *testing.T) {
	c := NewCache(clockwork.NewFakeClock(), 0)
	for _, k := range []string{"hubs", "search:h1:a", "search:h1:b", "members:h1"} {
		c.Set(k, true)
	}

	c.DeletePrefix("search:")
	assert.Equal(t, 2, c.Len())
	c.Delete("hubs", "missing")
	_, ok := c.Get("members:h1")
	assert.True(t, ok)
	assert.Equal(t, 1, c.Len())

	c.Clear()
	assert.Zero(t, c.Len())
}

func TestCollectionHelpers(t *testing.T) {
	id := func(s string) string { return s }

	items := upsert([]string{"a", "b"}, "b", id)
	assert.Equal(t, []string{"a", "b"}, items)
	items = upsert(items, "c", id)
	assert.Equal(t, []string{"a", "b", "c"}, items)

	assert.Equal(t, []string{"a", "c"}, without(items, "b", id))
	assert.Equal(t, []string{"a", "b", "c"}, replace(items, "z", id))
	assert.Equal(t, "hubs:h1", cacheKey("hubs", "h1"))
}
