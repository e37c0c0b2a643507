package turn

import (
	"container/list"
	"sync"

	"github.com/google/uuid"
)

// AudioCache parks synthesized audio so clients can fetch it by
// handle over plain HTTP instead of receiving bytes inline. Entries
// are evicted oldest-first once the cache is full.
type AudioCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	order   *list.List // front = oldest handle
	max     int
}

// NewAudioCache creates a cache holding at most max payloads.
func NewAudioCache(max int) *AudioCache {
	if max <= 0 {
		max = 128
	}
	return &AudioCache{
		entries: make(map[string][]byte),
		order:   list.New(),
		max:     max,
	}
}

// Put stores a payload and returns its handle.
func (c *AudioCache) Put(audio []byte) string {
	id := uuid.New().String()

	c.mu.Lock()
	defer c.mu.Unlock()
	for len(c.entries) >= c.max {
		oldest := c.order.Front()
		if oldest == nil {
			break
		}
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(string))
	}
	c.entries[id] = audio
	c.order.PushBack(id)
	return id
}

// Get returns the payload for a handle.
func (c *AudioCache) Get(id string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	audio, ok := c.entries[id]
	return audio, ok
}

// Len reports the number of cached payloads.
func (c *AudioCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
