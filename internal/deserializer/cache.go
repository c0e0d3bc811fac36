// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package deserializer

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/cardinalhq/framefeed/config"
	"github.com/cardinalhq/framefeed/internal/dataframe"
)

// chunkCache holds one reference per cached buffer and drops it on eviction.
// ttlcache runs eviction callbacks on their own goroutines, so Close waits
// for them before returning.
type chunkCache struct {
	*ttlcache.Cache[int, *dataframe.ChunkBuffer]
	unsubscribe func()
	stop        chan struct{}
	done        chan struct{}
}

func newChunkCache(cfg config.CacheConfig) *chunkCache {
	c := &chunkCache{
		Cache: ttlcache.New(
			ttlcache.WithTTL[int, *dataframe.ChunkBuffer](cfg.TTL),
			ttlcache.WithCapacity[int, *dataframe.ChunkBuffer](uint64(cfg.Capacity)),
		),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	c.unsubscribe = c.OnEviction(func(_ context.Context, _ ttlcache.EvictionReason, item *ttlcache.Item[int, *dataframe.ChunkBuffer]) {
		item.Value().Release()
	})
	if cfg.TTL > 0 {
		go c.expire(cfg.TTL)
	} else {
		close(c.done)
	}
	return c
}

// expire drops expired buffers every ttl until Close.
func (c *chunkCache) expire(ttl time.Duration) {
	defer close(c.done)
	ticker := time.NewTicker(ttl)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.DeleteExpired()
		}
	}
}

// put caches buf, taking its own reference. An expired entry for id may
// still be present; deleting it first releases it.
func (c *chunkCache) put(id int, buf *dataframe.ChunkBuffer) {
	buf.Retain()
	c.Delete(id)
	c.Set(id, buf, ttlcache.DefaultTTL)
}

// get returns a retained buffer for id, or nil.
func (c *chunkCache) get(id int) *dataframe.ChunkBuffer {
	item := c.Get(id)
	if item == nil {
		return nil
	}
	buf := item.Value()
	if !buf.TryRetain() {
		return nil
	}
	return buf
}

// Close stops expiry, releases every cached buffer and returns once all
// releases have run.
func (c *chunkCache) Close() {
	close(c.stop)
	<-c.done
	c.DeleteAll()
	c.unsubscribe()
}
