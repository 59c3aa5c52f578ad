package s3

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog/log"

	"github.com/desain-gratis/attachment/repository/blob"
)

var _ blob.Repository = &handler{}

type handler struct {
	client        *minio.Client
	basePublicUrl string
	bucketName    string
}

type Config struct {
	Endpoint        string // host[:port], without scheme
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
	BucketName      string
	BasePublicURL   string
}

// New creates an S3 compatible (AWS, MinIO, CEPH) blob repository
func New(cfg Config) (*handler, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, err
	}

	return &handler{
		client:        client,
		bucketName:    cfg.BucketName,
		basePublicUrl: strings.TrimRight(cfg.BasePublicURL, "/"),
	}, nil
}

func (h *handler) Upload(ctx context.Context, objectPath string, meta blob.Meta, payload io.Reader) (*blob.Data, error) {
	opts := minio.PutObjectOptions{
		ContentType:  meta.ContentType,
		CacheControl: meta.CacheControl,
	}
	if meta.ACL != "" {
		// minio-go forwards x-amz-acl as a request header instead of user metadata
		opts.UserMetadata = map[string]string{"x-amz-acl": meta.ACL}
	}

	size := meta.Size
	if size == 0 {
		size = -1
	}

	info, err := h.client.PutObject(ctx, h.bucketName, objectPath, payload, size, opts)
	if err != nil {
		// generic message for user.
		// we don't want users know where do we store data
		return nil, fmt.Errorf("%w: failed to put object %v: %v", blob.ErrUploadFailed, objectPath, err)
	}

	return &blob.Data{
		PublicURL:   h.basePublicUrl + "/" + objectPath,
		Path:        objectPath,
		ContentType: meta.ContentType,
		ContentSize: info.Size,
	}, nil
}

// Delete generic binary at path
func (h *handler) Delete(ctx context.Context, path string) (*blob.Data, error) {
	err := h.client.RemoveObject(ctx, h.bucketName, path, minio.RemoveObjectOptions{})
	if err != nil {
		status := minio.ToErrorResponse(err).StatusCode
		if status == 0 {
			status = http.StatusInternalServerError
		}
		log.Debug().Msgf("S3 delete %v responded with %v", path, status)
		return nil, &blob.DeleteError{Path: path, StatusCode: status, Err: err}
	}

	return &blob.Data{
		Path: path,
	}, nil
}

// Get the data
// Better just use the public URL,
// But if the data is small & meant to be private then can use this
func (h *handler) Get(ctx context.Context, path string) (io.ReadCloser, *blob.Data, error) {
	object, err := h.client.GetObject(ctx, h.bucketName, path, minio.GetObjectOptions{})
	if err != nil {
		return nil, nil, fmt.Errorf("%w: cannot get object at path %v", err, path)
	}

	info, err := object.Stat()
	if err != nil {
		object.Close()
		if minio.ToErrorResponse(err).StatusCode == http.StatusNotFound {
			return nil, nil, fmt.Errorf("%w: %v", blob.ErrNotFound, path)
		}
		return nil, nil, fmt.Errorf("%w: cannot stat object at path %v", err, path)
	}

	return object, &blob.Data{
		Path:        path,
		PublicURL:   h.basePublicUrl + "/" + path,
		ContentType: info.ContentType,
		ContentSize: info.Size,
	}, nil
}
