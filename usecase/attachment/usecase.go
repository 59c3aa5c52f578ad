package attachment

import (
	"context"
	"errors"

	"github.com/desain-gratis/attachment/repository/remote"
	"github.com/desain-gratis/attachment/types/entity"
	types "github.com/desain-gratis/attachment/types/http"
)

var (
	ErrNoPayload   = errors.New("no file_data found to upload to storage")
	ErrFetchFailed = remote.ErrFetchFailed
)

// FetchError carries the HTTP status of a failed fetch
type FetchError = remote.StatusError

// Lifecycle keeps an entity's attachment reference and the stored object in step.
type Lifecycle interface {
	// Reconcile is called before an entity is saved, with the reference it had before.
	// An unchanged reference is a no-op. Otherwise the previous object is deleted
	// (unless suppressed) and the new reference is materialized.
	Reconcile(ctx context.Context, a *entity.Attachment, previous string, opt ReconcileOptions) error

	// Materialize fetches references that are foreign or of a server-stored type,
	// and mirrors foreign ones into storage.
	Materialize(ctx context.Context, a *entity.Attachment) error

	// Upload pushes the pending payload to storage and points the reference at it.
	Upload(ctx context.Context, a *entity.Attachment) error

	// DeleteFile deletes the object behind ref. Best effort: failures are logged only.
	DeleteFile(ctx context.Context, ref string)

	// DeleteFiles deletes the entity's object and clears its reference.
	DeleteFiles(ctx context.Context, a *entity.Attachment)

	URLBuilder
}

type URLBuilder interface {
	PublicURL(a *entity.Attachment) string
	ThumbnailURL(a *entity.Attachment) string
}

type ReconcileOptions struct {
	SuppressFileDelete bool
}

// Usecase persists attachment records, running the lifecycle hooks around each write.
type Usecase interface {
	// Save reconciles the reference against the stored record, then creates or overwrites it.
	// A failed fetch aborts the save and nothing is persisted.
	Save(ctx context.Context, a *entity.Attachment, opt SaveOptions) (*entity.Attachment, *types.CommonError)

	Get(ctx context.Context, ownerID, id string) (*entity.Attachment, *types.CommonError)

	// Delete removes the stored object (best effort) then the record.
	Delete(ctx context.Context, ownerID, id string) (*entity.Attachment, *types.CommonError)
}

type SaveOptions struct {
	SuppressFileDelete bool
}
