package secretkv

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

var _ Provider = &cache{}

type cached struct {
	payload  Payload
	syncedAt time.Time
}

// cache keeps Get results for ttl. Concurrent misses of the same key share one lookup.
type cache struct {
	Provider

	lock     *sync.Mutex
	getCache map[string]cached
	ttl      time.Duration
	group    *singleflight.Group
	now      func() time.Time
}

func NewCached(provider Provider, ttl time.Duration) *cache {
	return &cache{
		Provider: provider,
		lock:     &sync.Mutex{},
		getCache: make(map[string]cached),
		ttl:      ttl,
		group:    &singleflight.Group{},
		now:      time.Now,
	}
}

func (c *cache) Get(ctx context.Context, key string, version int) (Payload, error) {
	sfKey := key + ":" + strconv.Itoa(version)

	c.lock.Lock()
	hit, ok := c.getCache[sfKey]
	c.lock.Unlock()
	if ok && c.now().Sub(hit.syncedAt) < c.ttl {
		log.Debug().Msgf("Cache hit for secret %v", sfKey)
		return hit.payload, nil
	}

	sfResult := c.group.DoChan(sfKey, func() (any, error) {
		// Use context background so a cancelled caller does not poison the shared lookup
		payload, err := c.Provider.Get(context.Background(), key, version)
		if err != nil {
			return payload, err
		}

		c.lock.Lock()
		defer c.lock.Unlock()
		c.getCache[sfKey] = cached{payload: payload, syncedAt: c.now()}

		return payload, nil
	})

	select {
	case data := <-sfResult:
		payload, _ := data.Val.(Payload)
		if data.Shared {
			log.Debug().Msgf("Singleflight working for secret %v", sfKey)
		}
		return payload, data.Err
	case <-ctx.Done():
		return Payload{}, ctx.Err()
	}
}
