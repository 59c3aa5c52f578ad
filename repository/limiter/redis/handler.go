package redis

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/desain-gratis/attachment/repository/limiter"
	types "github.com/desain-gratis/attachment/types/http"
)

var _ limiter.Repository = &defaultHandler{}

type defaultHandler struct {
	client redis.Cmdable
}

func New(client redis.Cmdable) *defaultHandler {
	return &defaultHandler{
		client: client,
	}
}

func (d *defaultHandler) Get(ctx context.Context, userID, key string) (counter int, remaining time.Duration, err *types.CommonError) {
	combinedKey := combine(userID, key)

	str := d.client.Get(ctx, combinedKey)
	if str.Err() != nil {
		if str.Err() == redis.Nil {
			return 0, 0, nil
		}
		return 0, 0, failed("FAILED_TO_GET_LIMITER", str.Err())
	}

	strTTL := d.client.TTL(ctx, combinedKey)
	if strTTL.Err() != nil {
		return 0, 0, failed("FAILED_TO_GET_LIMITER", strTTL.Err())
	}

	counter, _err := str.Int()
	if _err != nil {
		return 0, 0, failed("FAILED_TO_CONVERT_TO_INTEGER", _err)
	}

	return counter, strTTL.Val(), nil
}

// incrementScript starts the window on the first hit only
var incrementScript = redis.NewScript(`
local counter = redis.call("INCR", KEYS[1])
if counter == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return counter
`)

// Increment runs INCR and the first EXPIRE atomically so a counter cannot be left without a TTL.
func (d *defaultHandler) Increment(ctx context.Context, userID, key string, window time.Duration) (counter int, err *types.CommonError) {
	res, _err := incrementScript.Run(ctx, d.client, []string{combine(userID, key)}, window.Milliseconds()).Int()
	if _err != nil {
		return 0, failed("FAILED_TO_INCREMENT", _err)
	}

	return res, nil
}

func combine(userID, key string) string {
	return userID + "|" + key
}

func failed(code string, err error) *types.CommonError {
	return &types.CommonError{
		Errors: []types.Error{
			{
				Code:    code,
				Message: err.Error(),
			},
		},
	}
}
