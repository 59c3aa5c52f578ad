package static

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/desain-gratis/attachment/utility/secretkv"
)

var _ secretkv.Provider = &handler{}

// handler serves secrets from memory, for local runs and tests
type handler struct {
	lock    *sync.Mutex
	secrets map[string]map[int]secretkv.Payload
}

func New() *handler {
	return &handler{
		lock:    &sync.Mutex{},
		secrets: make(map[string]map[int]secretkv.Payload),
	}
}

// Store adds the next version of key and returns its number
func (h *handler) Store(key string, secret []byte) int {
	h.lock.Lock()
	defer h.lock.Unlock()

	if _, ok := h.secrets[key]; !ok {
		h.secrets[key] = make(map[int]secretkv.Payload)
	}
	version := len(h.secrets[key]) + 1
	h.secrets[key][version] = secretkv.Payload{Key: key, Version: version, Payload: secret}

	return version
}

func (h *handler) Get(ctx context.Context, key string, version int) (secretkv.Payload, error) {
	h.lock.Lock()
	defer h.lock.Unlock()

	versions, ok := h.secrets[key]
	if !ok {
		return secretkv.Payload{}, fmt.Errorf("%w: %v", secretkv.ErrNotFound, key)
	}
	if version <= 0 {
		version = len(versions)
	}

	payload, ok := versions[version]
	if !ok {
		return secretkv.Payload{}, fmt.Errorf("%w: %v version %v", secretkv.ErrNotFound, key, version)
	}
	return payload, nil
}

func (h *handler) List(ctx context.Context, key string) ([]secretkv.Payload, error) {
	h.lock.Lock()
	defer h.lock.Unlock()

	result := make([]secretkv.Payload, 0, len(h.secrets[key]))
	for _, p := range h.secrets[key] {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Version < result[j].Version
	})
	return result, nil
}
