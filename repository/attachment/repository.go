package attachment

import (
	"context"
	"errors"

	"github.com/desain-gratis/attachment/types/entity"
)

var (
	ErrNotFound = errors.New("attachment not found")
	ErrEmptyID  = errors.New("attachment id is empty")
)

// Repository stores attachment records. It never touches the object store.
type Repository interface {
	// Get returns a copy of the stored record
	Get(ctx context.Context, ownerID, id string) (*entity.Attachment, error)

	// Put creates or overwrites the record keyed by (OwnerId, Id). Id must be set.
	Put(ctx context.Context, a *entity.Attachment) error

	// Delete removes the record and returns it. If no data, MUST return ErrNotFound
	Delete(ctx context.Context, ownerID, id string) (*entity.Attachment, error)
}
