package inmemory

import (
	"context"
	"sync"
	"time"

	"github.com/desain-gratis/attachment/repository/limiter"
	types "github.com/desain-gratis/attachment/types/http"
)

var _ limiter.Repository = &handler{}

type window struct {
	counter   int
	expiredAt time.Time
}

// handler counts in process memory, for single instance deployment
type handler struct {
	mtx     *sync.Mutex
	windows map[string]window
	now     func() time.Time
}

func New() *handler {
	return &handler{
		mtx:     &sync.Mutex{},
		windows: make(map[string]window),
		now:     time.Now,
	}
}

func (h *handler) Get(ctx context.Context, userID, key string) (counter int, remaining time.Duration, err *types.CommonError) {
	h.mtx.Lock()
	defer h.mtx.Unlock()

	w, ok := h.current(userID + "|" + key)
	if !ok {
		return 0, 0, nil
	}
	return w.counter, w.expiredAt.Sub(h.now()), nil
}

func (h *handler) Increment(ctx context.Context, userID, key string, d time.Duration) (counter int, err *types.CommonError) {
	h.mtx.Lock()
	defer h.mtx.Unlock()

	combinedKey := userID + "|" + key
	w, ok := h.current(combinedKey)
	if !ok {
		w = window{expiredAt: h.now().Add(d)}
	}
	w.counter++
	h.windows[combinedKey] = w

	return w.counter, nil
}

// current returns the live window of key, dropping it when expired
func (h *handler) current(key string) (window, bool) {
	w, ok := h.windows[key]
	if !ok {
		return window{}, false
	}
	if !h.now().Before(w.expiredAt) {
		delete(h.windows, key)
		return window{}, false
	}
	return w, true
}
