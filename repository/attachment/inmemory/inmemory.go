package inmemory

import (
	"context"
	"fmt"
	"sync"

	"github.com/desain-gratis/attachment/repository/attachment"
	"github.com/desain-gratis/attachment/types/entity"
)

var _ attachment.Repository = &handler{}

type handler struct {
	mtx *sync.Mutex

	indexByOwnerID map[string]map[string]struct{}
	data           map[string]entity.Attachment
}

// New spawns an in-process record store. Records do not survive restart.
func New() *handler {
	return &handler{
		mtx:            &sync.Mutex{},
		indexByOwnerID: make(map[string]map[string]struct{}),
		data:           make(map[string]entity.Attachment),
	}
}

func (h *handler) Get(ctx context.Context, ownerID, id string) (*entity.Attachment, error) {
	h.mtx.Lock()
	defer h.mtx.Unlock()

	if _, ok := h.indexByOwnerID[ownerID][id]; !ok {
		return nil, fmt.Errorf("%w: owner '%v' has no attachment '%v'", attachment.ErrNotFound, ownerID, id)
	}

	result := copyData(h.data[key(ownerID, id)])
	return &result, nil
}

func (h *handler) Put(ctx context.Context, a *entity.Attachment) error {
	if a.Id == "" {
		return attachment.ErrEmptyID
	}

	h.mtx.Lock()
	defer h.mtx.Unlock()

	h.data[key(a.OwnerId, a.Id)] = copyData(*a)

	if _, ok := h.indexByOwnerID[a.OwnerId]; !ok {
		h.indexByOwnerID[a.OwnerId] = make(map[string]struct{})
	}
	h.indexByOwnerID[a.OwnerId][a.Id] = struct{}{}

	return nil
}

func (h *handler) Delete(ctx context.Context, ownerID, id string) (*entity.Attachment, error) {
	h.mtx.Lock()
	defer h.mtx.Unlock()

	ids, ok := h.indexByOwnerID[ownerID]
	if !ok {
		return nil, fmt.Errorf("%w: delete failed, owner '%v' has no data", attachment.ErrNotFound, ownerID)
	}
	if _, ok := ids[id]; !ok {
		return nil, fmt.Errorf("%w: delete failed, '%v' does not exist", attachment.ErrNotFound, id)
	}

	k := key(ownerID, id)
	data := h.data[k]

	delete(ids, id)
	if len(ids) == 0 {
		delete(h.indexByOwnerID, ownerID)
	}
	delete(h.data, k)

	return &data, nil
}

func key(ownerID, id string) string {
	return ownerID + "|" + id
}

// copyData detaches the staged payload so callers cannot mutate stored records
func copyData(a entity.Attachment) entity.Attachment {
	if a.FileData != nil {
		buf := make([]byte, len(a.FileData))
		copy(buf, a.FileData)
		a.FileData = buf
	}
	return a
}
