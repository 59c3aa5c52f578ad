package lifecycle

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/desain-gratis/attachment/repository/blob"
	"github.com/desain-gratis/attachment/repository/remote"
	"github.com/desain-gratis/attachment/types/entity"
	"github.com/desain-gratis/attachment/usecase/attachment"
	"github.com/desain-gratis/attachment/utility/cdnurl"
	"github.com/desain-gratis/attachment/utility/mimetype"
	"github.com/desain-gratis/attachment/utility/objectkey"
)

var _ attachment.Lifecycle = &handler{}

const (
	DefaultCacheControl = "public, max-age=2629743"
	DefaultACL          = "public-read"
)

// DefaultServerTypes are kept as raw content next to the entity instead of in the object store
var DefaultServerTypes = []string{".html", ".htm", ".css"}

type Config struct {
	// StoragePrefix is the URL prefix of every object in the store, eg. "http://bucket.s3.amazonaws.com/"
	StoragePrefix string

	// ServerTypes are extensions (with dot) whose content is fetched into FileData and never pushed
	ServerTypes []string

	CacheControl string
	ACL          string
}

type handler struct {
	config      Config
	serverTypes map[string]struct{}
	blobRepo    blob.Repository
	remoteRepo  remote.Repository
	urls        *cdnurl.Builder
	now         func() time.Time
}

func New(
	config Config,
	blobRepo blob.Repository,
	remoteRepo remote.Repository,
	urls *cdnurl.Builder,
) *handler {
	if config.ServerTypes == nil {
		config.ServerTypes = DefaultServerTypes
	}
	if config.CacheControl == "" {
		config.CacheControl = DefaultCacheControl
	}
	if config.ACL == "" {
		config.ACL = DefaultACL
	}

	serverTypes := make(map[string]struct{}, len(config.ServerTypes))
	for _, ext := range config.ServerTypes {
		ext = strings.ToLower(ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		serverTypes[ext] = struct{}{}
	}

	if urls == nil {
		urls = cdnurl.New(cdnurl.Config{StoragePrefix: config.StoragePrefix})
	}

	return &handler{
		config:      config,
		serverTypes: serverTypes,
		blobRepo:    blobRepo,
		remoteRepo:  remoteRepo,
		urls:        urls,
		now:         time.Now,
	}
}

func (h *handler) Reconcile(ctx context.Context, a *entity.Attachment, previous string, opt attachment.ReconcileOptions) error {
	if a.File == previous {
		return nil
	}

	if !opt.SuppressFileDelete {
		h.DeleteFile(ctx, previous)
	}

	return h.Materialize(ctx, a)
}

func (h *handler) Materialize(ctx context.Context, a *entity.Attachment) error {
	if a.File == "" {
		return nil
	}

	serverType := h.isServerType(a.Extension())
	if !serverType && h.isCanonical(a.File) {
		a.FileData = nil
		return nil
	}

	log.Info().Msgf("attachment tries to fetch %v", a.File)
	payload, err := h.remoteRepo.Fetch(ctx, a.File)
	if err != nil {
		return fmt.Errorf("materializing %v: %w", a.File, err)
	}
	a.FileData = payload

	if serverType {
		return nil
	}

	return h.Upload(ctx, a)
}

func (h *handler) Upload(ctx context.Context, a *entity.Attachment) error {
	if len(a.FileData) == 0 {
		return attachment.ErrNoPayload
	}

	name := a.Basename()
	if unescaped, err := url.PathUnescape(name); err == nil {
		name = unescaped
	}
	key := strings.TrimPrefix(objectkey.New(a.OwnerId, h.now(), name), "/")
	log.Info().Msgf("uploading file_name %v key %v", name, key)

	_, err := h.blobRepo.Upload(ctx, key, blob.Meta{
		ContentType:  mimetype.ByFilename(name, "text/plain"),
		CacheControl: h.config.CacheControl,
		ACL:          h.config.ACL,
		Size:         int64(len(a.FileData)),
	}, bytes.NewReader(a.FileData))
	if err != nil {
		return fmt.Errorf("uploading %v: %w", key, err)
	}

	a.File = h.config.StoragePrefix + escapeKey(key)
	a.FileData = nil
	log.Info().Msgf("updated file to %v", a.File)

	return nil
}

func (h *handler) DeleteFile(ctx context.Context, ref string) {
	if ref == "" {
		return
	}
	if !h.isCanonical(ref) {
		log.Info().Msgf("not deleting %v, it is not in the object store", ref)
		return
	}

	key := ref[len(h.config.StoragePrefix):]
	if unescaped, err := url.PathUnescape(key); err == nil {
		key = unescaped
	}

	_, err := h.blobRepo.Delete(ctx, key)
	if err == nil {
		log.Info().Msgf("deleted %v", ref)
		return
	}

	var derr *blob.DeleteError
	if errors.As(err, &derr) {
		log.Error().Msgf("storage could not delete object %v, response code %v", key, derr.StatusCode)
		return
	}
	log.Err(err).Msgf("storage could not delete object %v", key)
}

func (h *handler) DeleteFiles(ctx context.Context, a *entity.Attachment) {
	h.DeleteFile(ctx, a.File)
	a.File = ""
}

func (h *handler) PublicURL(a *entity.Attachment) string {
	return h.urls.PublicURL(a.File)
}

func (h *handler) ThumbnailURL(a *entity.Attachment) string {
	w, ht := a.Size()
	return h.urls.ThumbnailURL(a.File, w, ht)
}

// escapeKey escapes each path segment so that unescaping the reference gives key back
func escapeKey(key string) string {
	segments := strings.Split(key, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return strings.Join(segments, "/")
}

func (h *handler) isServerType(ext string) bool {
	_, ok := h.serverTypes[strings.ToLower(ext)]
	return ok
}

func (h *handler) isCanonical(ref string) bool {
	return h.config.StoragePrefix != "" && strings.HasPrefix(ref, h.config.StoragePrefix)
}
