package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"

	"github.com/desain-gratis/attachment/repository/attachment"
	"github.com/desain-gratis/attachment/types/entity"
)

var _ attachment.Repository = &handler{}

type handler struct {
	client    redis.Cmdable
	keyPrefix string
}

// New stores each record as a JSON string under "<keyPrefix><owner>|<id>".
func New(client redis.Cmdable, keyPrefix string) *handler {
	return &handler{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

func (h *handler) Get(ctx context.Context, ownerID, id string) (*entity.Attachment, error) {
	b, err := h.client.Get(ctx, h.key(ownerID, id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: owner '%v' has no attachment '%v'", attachment.ErrNotFound, ownerID, id)
	}
	if err != nil {
		log.Err(err).Msgf("failed to get attachment %v %v", ownerID, id)
		return nil, err
	}

	var a entity.Attachment
	if err := json.Unmarshal(b, &a); err != nil {
		return nil, fmt.Errorf("decoding attachment %v: %w", id, err)
	}
	return &a, nil
}

func (h *handler) Put(ctx context.Context, a *entity.Attachment) error {
	if a.Id == "" {
		return attachment.ErrEmptyID
	}

	b, err := json.Marshal(a)
	if err != nil {
		return err
	}

	if err := h.client.Set(ctx, h.key(a.OwnerId, a.Id), b, 0).Err(); err != nil {
		log.Err(err).Msgf("failed to put attachment %v %v", a.OwnerId, a.Id)
		return err
	}
	return nil
}

// Delete reads then removes the key; GETDEL needs redis 6.2 so it is not used.
func (h *handler) Delete(ctx context.Context, ownerID, id string) (*entity.Attachment, error) {
	a, err := h.Get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	n, err := h.client.Del(ctx, h.key(ownerID, id)).Result()
	if err != nil {
		log.Err(err).Msgf("failed to delete attachment %v %v", ownerID, id)
		return nil, err
	}
	if n == 0 {
		return nil, fmt.Errorf("%w: delete failed, '%v' does not exist", attachment.ErrNotFound, id)
	}

	return a, nil
}

func (h *handler) key(ownerID, id string) string {
	return h.keyPrefix + ownerID + "|" + id
}
