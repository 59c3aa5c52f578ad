package crud

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/desain-gratis/attachment/repository/attachment"
	"github.com/desain-gratis/attachment/types/entity"
	types "github.com/desain-gratis/attachment/types/http"
	attachment_uc "github.com/desain-gratis/attachment/usecase/attachment"
)

var _ attachment_uc.Usecase = &crud{}

type crud struct {
	repo      attachment.Repository
	lifecycle attachment_uc.Lifecycle
	now       func() time.Time
}

func New(repo attachment.Repository, lifecycle attachment_uc.Lifecycle) *crud {
	return &crud{
		repo:      repo,
		lifecycle: lifecycle,
		now:       time.Now,
	}
}

func (c *crud) Save(ctx context.Context, a *entity.Attachment, opt attachment_uc.SaveOptions) (*entity.Attachment, *types.CommonError) {
	if err := a.Validate(); err != nil {
		return nil, &types.CommonError{
			Errors: []types.Error{
				{HTTPCode: http.StatusBadRequest, Code: "MISSING_OWNER_ID_IN_DATA", Message: "Please specify attachment owner ID"},
			},
		}
	}

	// previous reference; empty for new records
	var previous string
	if a.Id != "" && !opt.SuppressFileDelete {
		existing, err := c.repo.Get(ctx, a.OwnerId, a.Id)
		if err != nil && !errors.Is(err, attachment.ErrNotFound) {
			log.Err(err).Msgf("failed to load attachment %v", a.Id)
			return nil, internalError("LOAD_FAILED", "Failed to load the existing attachment")
		}
		if existing != nil {
			previous = existing.File
			if a.CreatedAt == "" {
				a.CreatedAt = existing.CreatedAt
			}
			// server-stored content lives only on the record
			if a.File == existing.File && len(a.FileData) == 0 {
				a.FileData = existing.FileData
			}
		}
	}

	err := c.lifecycle.Reconcile(ctx, a, previous, attachment_uc.ReconcileOptions{
		SuppressFileDelete: opt.SuppressFileDelete,
	})
	if err != nil {
		return nil, lifecycleError(err)
	}

	if a.Id == "" {
		a.WithID(uuid.New().String())
	}
	if a.CreatedTime().IsZero() {
		a.WithCreatedTime(c.now())
	}

	if err := c.repo.Put(ctx, a); err != nil {
		log.Err(err).Msgf("failed to save attachment %v", a.Id)
		return nil, internalError("SAVE_FAILED", "Failed to save the attachment")
	}

	return a, nil
}

func (c *crud) Get(ctx context.Context, ownerID, id string) (*entity.Attachment, *types.CommonError) {
	result, err := c.repo.Get(ctx, ownerID, id)
	if err != nil {
		return nil, repositoryError(err)
	}
	return result, nil
}

func (c *crud) Delete(ctx context.Context, ownerID, id string) (*entity.Attachment, *types.CommonError) {
	existing, err := c.repo.Get(ctx, ownerID, id)
	if err != nil {
		return nil, repositoryError(err)
	}

	c.lifecycle.DeleteFiles(ctx, existing)

	result, err := c.repo.Delete(ctx, ownerID, id)
	if err != nil {
		return nil, repositoryError(err)
	}
	return result, nil
}

func lifecycleError(err error) *types.CommonError {
	if errors.Is(err, attachment_uc.ErrFetchFailed) {
		return &types.CommonError{
			Errors: []types.Error{
				{HTTPCode: http.StatusBadGateway, Code: "FETCH_FAILED", Message: err.Error()},
			},
		}
	}
	if errors.Is(err, attachment_uc.ErrNoPayload) {
		return &types.CommonError{
			Errors: []types.Error{
				{HTTPCode: http.StatusBadRequest, Code: "NO_PAYLOAD", Message: err.Error()},
			},
		}
	}

	log.Err(err).Msgf("attachment lifecycle failed")
	return internalError("UPLOAD_FAILED", "Failed to store the attachment file")
}

func repositoryError(err error) *types.CommonError {
	if errors.Is(err, attachment.ErrNotFound) {
		return &types.CommonError{
			Errors: []types.Error{
				{HTTPCode: http.StatusNotFound, Code: "NOT_FOUND", Message: err.Error()},
			},
		}
	}
	log.Err(err).Msgf("attachment repository failed")
	return internalError("REPOSITORY_ERROR", "Failed to access attachment records")
}

func internalError(code, message string) *types.CommonError {
	return &types.CommonError{
		Errors: []types.Error{
			{HTTPCode: http.StatusInternalServerError, Code: code, Message: message},
		},
	}
}
