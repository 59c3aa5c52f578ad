package inmemory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/desain-gratis/attachment/repository/blob"
)

var _ blob.Repository = &handler{}

type object struct {
	meta    blob.Meta
	payload []byte
}

// handler keeps objects in process memory. For local development and tests.
type handler struct {
	mtx           *sync.Mutex
	objects       map[string]object
	basePublicUrl string
}

func New(basePublicUrl string) *handler {
	return &handler{
		mtx:           &sync.Mutex{},
		objects:       make(map[string]object),
		basePublicUrl: strings.TrimRight(basePublicUrl, "/"),
	}
}

func (h *handler) Upload(ctx context.Context, path string, meta blob.Meta, payload io.Reader) (*blob.Data, error) {
	b, err := io.ReadAll(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: reading payload: %v", blob.ErrUploadFailed, err)
	}

	h.mtx.Lock()
	defer h.mtx.Unlock()

	meta.Size = int64(len(b))
	h.objects[path] = object{meta: meta, payload: b}

	return &blob.Data{
		Path:        path,
		PublicURL:   h.basePublicUrl + "/" + path,
		ContentType: meta.ContentType,
		ContentSize: meta.Size,
	}, nil
}

// Delete behaves like S3: deleting a missing key still succeeds.
func (h *handler) Delete(ctx context.Context, path string) (*blob.Data, error) {
	h.mtx.Lock()
	defer h.mtx.Unlock()

	delete(h.objects, path)
	return &blob.Data{Path: path}, nil
}

func (h *handler) Get(ctx context.Context, path string) (io.ReadCloser, *blob.Data, error) {
	h.mtx.Lock()
	defer h.mtx.Unlock()

	obj, ok := h.objects[path]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %v", blob.ErrNotFound, path)
	}

	return io.NopCloser(bytes.NewReader(obj.payload)), &blob.Data{
		Path:        path,
		PublicURL:   h.basePublicUrl + "/" + path,
		ContentType: obj.meta.ContentType,
		ContentSize: obj.meta.Size,
	}, nil
}

// Meta returns the headers an object was stored with.
func (h *handler) Meta(path string) (blob.Meta, bool) {
	h.mtx.Lock()
	defer h.mtx.Unlock()

	obj, ok := h.objects[path]
	return obj.meta, ok
}

func (h *handler) Len() int {
	h.mtx.Lock()
	defer h.mtx.Unlock()

	return len(h.objects)
}
