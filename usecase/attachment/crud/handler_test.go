package crud

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/desain-gratis/attachment/repository/attachment/inmemory"
	"github.com/desain-gratis/attachment/repository/blob"
	blob_inmemory "github.com/desain-gratis/attachment/repository/blob/inmemory"
	"github.com/desain-gratis/attachment/repository/remote"
	"github.com/desain-gratis/attachment/types/entity"
	attachment_uc "github.com/desain-gratis/attachment/usecase/attachment"
	"github.com/desain-gratis/attachment/usecase/attachment/lifecycle"
)

const prefix = "http://store.example.com/"

type fakeRemote map[string]string

func (f fakeRemote) Fetch(ctx context.Context, url string) ([]byte, error) {
	c, ok := f[url]
	if !ok {
		return nil, &remote.StatusError{URL: url, StatusCode: http.StatusNotFound}
	}
	return []byte(c), nil
}

type failingDelete struct {
	blob.Repository
}

func (f failingDelete) Delete(ctx context.Context, path string) (*blob.Data, error) {
	return nil, &blob.DeleteError{Path: path, StatusCode: http.StatusInternalServerError}
}

type storeLen interface {
	blob.Repository
	Len() int
}

func setup(b storeLen, wrap func(blob.Repository) blob.Repository) *crud {
	var repo blob.Repository = b
	if wrap != nil {
		repo = wrap(b)
	}
	lc := lifecycle.New(lifecycle.Config{StoragePrefix: prefix}, repo, fakeRemote{
		"http://external.example.com/a.png":    "a",
		"http://external.example.com/b.png":    "b",
		"http://external.example.com/doc.html": "<p>doc</p>",
	}, nil)

	c := New(inmemory.New(), lc)
	c.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }
	return c
}

func TestSave(t *testing.T) {
	ctx := context.Background()
	store := blob_inmemory.New(prefix)
	c := setup(store, nil)

	created, errUC := c.Save(ctx, &entity.Attachment{OwnerId: "owner", File: "http://external.example.com/a.png"}, attachment_uc.SaveOptions{})
	require.Nil(t, errUC)
	assert.NotEmpty(t, created.Id)
	assert.Equal(t, "2024-01-02T03:04:05Z", created.CreatedAt)
	assert.Contains(t, created.File, prefix+"owner/")
	assert.Equal(t, 1, store.Len())

	// saving again unchanged does nothing to storage
	_, errUC = c.Save(ctx, &entity.Attachment{Id: created.Id, OwnerId: "owner", File: created.File}, attachment_uc.SaveOptions{})
	require.Nil(t, errUC)
	assert.Equal(t, 1, store.Len())

	// replacing removes the old object
	updated, errUC := c.Save(ctx, &entity.Attachment{Id: created.Id, OwnerId: "owner", File: "http://external.example.com/b.png"}, attachment_uc.SaveOptions{})
	require.Nil(t, errUC)
	assert.Equal(t, created.Id, updated.Id)
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)
	assert.Equal(t, 1, store.Len())

	got, errUC := c.Get(ctx, "owner", created.Id)
	require.Nil(t, errUC)
	assert.Equal(t, updated.File, got.File)
}

func TestSave_ServerStoredType(t *testing.T) {
	store := blob_inmemory.New(prefix)
	c := setup(store, nil)

	saved, errUC := c.Save(context.Background(), &entity.Attachment{OwnerId: "owner", File: "http://external.example.com/doc.html"}, attachment_uc.SaveOptions{})
	require.Nil(t, errUC)
	assert.Equal(t, "<p>doc</p>", string(saved.FileData))
	assert.Equal(t, 0, store.Len())
}

func TestSave_UnchangedReferenceKeepsContent(t *testing.T) {
	ctx := context.Background()
	c := setup(blob_inmemory.New(prefix), nil)

	saved, errUC := c.Save(ctx, &entity.Attachment{OwnerId: "owner", File: "http://external.example.com/doc.html"}, attachment_uc.SaveOptions{})
	require.Nil(t, errUC)

	_, errUC = c.Save(ctx, &entity.Attachment{Id: saved.Id, OwnerId: "owner", Name: "renamed", File: saved.File}, attachment_uc.SaveOptions{})
	require.Nil(t, errUC)

	got, errUC := c.Get(ctx, "owner", saved.Id)
	require.Nil(t, errUC)
	assert.Equal(t, "renamed", got.Name)
	assert.Equal(t, "<p>doc</p>", string(got.FileData))
}

func TestSave_Errors(t *testing.T) {
	tests := []struct {
		name     string
		input    *entity.Attachment
		httpCode int
		code     string
	}{
		{
			name:     "missing owner",
			input:    &entity.Attachment{File: "http://external.example.com/a.png"},
			httpCode: http.StatusBadRequest,
			code:     "MISSING_OWNER_ID_IN_DATA",
		},
		{
			name:     "fetch failure",
			input:    &entity.Attachment{Id: "x", OwnerId: "owner", File: "http://external.example.com/missing.png"},
			httpCode: http.StatusBadGateway,
			code:     "FETCH_FAILED",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := setup(blob_inmemory.New(prefix), nil)

			_, errUC := c.Save(context.Background(), tt.input, attachment_uc.SaveOptions{})
			require.NotNil(t, errUC)
			assert.Equal(t, tt.httpCode, errUC.Errors[0].HTTPCode)
			assert.Equal(t, tt.code, errUC.Errors[0].Code)

			if tt.input.Id != "" {
				_, errUC = c.Get(context.Background(), tt.input.OwnerId, tt.input.Id)
				require.NotNil(t, errUC)
				assert.Equal(t, http.StatusNotFound, errUC.Errors[0].HTTPCode)
			}
		})
	}
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	store := blob_inmemory.New(prefix)
	c := setup(store, nil)

	saved, errUC := c.Save(ctx, &entity.Attachment{OwnerId: "owner", File: "http://external.example.com/a.png"}, attachment_uc.SaveOptions{})
	require.Nil(t, errUC)

	_, errUC = c.Delete(ctx, "owner", saved.Id)
	require.Nil(t, errUC)
	assert.Equal(t, 0, store.Len())

	_, errUC = c.Delete(ctx, "owner", saved.Id)
	require.NotNil(t, errUC)
	assert.Equal(t, http.StatusNotFound, errUC.Errors[0].HTTPCode)
}

func TestDelete_StorageFailureStillRemovesRecord(t *testing.T) {
	ctx := context.Background()
	store := blob_inmemory.New(prefix)
	c := setup(store, func(r blob.Repository) blob.Repository { return failingDelete{r} })

	saved, errUC := c.Save(ctx, &entity.Attachment{OwnerId: "owner", File: "http://external.example.com/a.png"}, attachment_uc.SaveOptions{})
	require.Nil(t, errUC)

	_, errUC = c.Delete(ctx, "owner", saved.Id)
	require.Nil(t, errUC)
	assert.Equal(t, 1, store.Len())

	_, errUC = c.Get(ctx, "owner", saved.Id)
	require.NotNil(t, errUC)
}
