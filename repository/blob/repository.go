package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
)

var (
	ErrNotFound     = errors.New("object not found")
	ErrUploadFailed = errors.New("object upload failed")
	ErrDeleteFailed = errors.New("object delete failed")
)

type Repository interface {
	// Upload generic binary to path
	// Path is the object key inside the bucket
	Upload(ctx context.Context, path string, meta Meta, payload io.Reader) (*Data, error)

	// Delete generic binary at path.
	// Providers that report a status other than 204 return a *DeleteError
	Delete(ctx context.Context, path string) (*Data, error)

	// Get the data
	// Better just use the public URL,
	// But if the data is small & meant to be private then can use this
	Get(ctx context.Context, path string) (io.ReadCloser, *Data, error)
}

// Meta is the set of object headers applied on upload.
type Meta struct {
	ContentType  string
	CacheControl string
	ACL          string // canned ACL, eg. "public-read"
	Size         int64  // -1 if unknown
}

type Data struct {
	// The location of the data in the repository
	Path        string
	PublicURL   string
	ContentType string
	ContentSize int64
}

// DeleteError carries the storage provider status of a failed delete.
type DeleteError struct {
	Path       string
	StatusCode int
	Err        error
}

func (e *DeleteError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("storage could not delete object %v (status %d): %v", e.Path, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("storage could not delete object %v (status %d)", e.Path, e.StatusCode)
}

func (e *DeleteError) Is(target error) bool {
	return target == ErrDeleteFailed
}

func (e *DeleteError) Unwrap() error {
	return e.Err
}

// CheckDeleteStatus turns a provider delete status into an error. Only 204 is success.
func CheckDeleteStatus(path string, status int) error {
	if status == http.StatusNoContent {
		return nil
	}
	return &DeleteError{Path: path, StatusCode: status}
}
