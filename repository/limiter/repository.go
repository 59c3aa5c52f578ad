package limiter

import (
	"context"
	"time"

	types "github.com/desain-gratis/attachment/types/http"
)

// Repository counts requests per (userID, key) inside a fixed window.
// Implementation needs to be aware of distributed system nature
type Repository interface {
	Get(ctx context.Context, userID, key string) (counter int, remaining time.Duration, err *types.CommonError)

	// Increment adds one to the counter, starting a new window of the given length when there is none.
	// Returns the counter after the increment.
	Increment(ctx context.Context, userID, key string, window time.Duration) (counter int, err *types.CommonError)
}

// Limit allows at most Max requests per Window. Max <= 0 means unlimited.
type Limit struct {
	Max    int
	Window time.Duration
}

// Allow counts the request and reports whether it is within the limit.
func Allow(ctx context.Context, repo Repository, limit Limit, userID, key string) (bool, *types.CommonError) {
	if limit.Max <= 0 {
		return true, nil
	}

	counter, err := repo.Increment(ctx, userID, key, limit.Window)
	if err != nil {
		return false, err
	}

	return counter <= limit.Max, nil
}

var _ Repository = &unlimited{}

type unlimited struct{}

func NewUnlimited() *unlimited {
	return &unlimited{}
}

func (u *unlimited) Get(ctx context.Context, userID, key string) (counter int, remaining time.Duration, err *types.CommonError) {
	return 0, 0, nil
}

func (u *unlimited) Increment(ctx context.Context, userID, key string, window time.Duration) (counter int, err *types.CommonError) {
	return 0, nil
}
