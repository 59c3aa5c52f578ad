package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/googleapi"

	"github.com/desain-gratis/attachment/repository/blob"
)

var _ blob.Repository = &handler{}

// S3 canned ACL names and their GCS predefined ACL counterpart
var predefinedACL = map[string]string{
	"private":                   "private",
	"public-read":               "publicRead",
	"bucket-owner-read":         "bucketOwnerRead",
	"bucket-owner-full-control": "bucketOwnerFullControl",
	"authenticated-read":        "authenticatedRead",
}

type handler struct {
	gcsClient     *storage.Client
	bucketName    string
	basePublicUrl string
}

func New(
	ctx context.Context,
	bucketName string,
	basePublicUrl string,
) (*handler, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	return NewFromClient(client, bucketName, basePublicUrl), nil
}

func NewFromClient(client *storage.Client, bucketName, basePublicUrl string) *handler {
	return &handler{
		gcsClient:     client,
		bucketName:    bucketName,
		basePublicUrl: strings.TrimRight(basePublicUrl, "/"),
	}
}

func (h *handler) Upload(ctx context.Context, objectPath string, meta blob.Meta, payload io.Reader) (*blob.Data, error) {
	object := h.gcsClient.Bucket(h.bucketName).Object(objectPath)
	objWriter := object.NewWriter(ctx)
	objWriter.ContentType = meta.ContentType
	objWriter.CacheControl = meta.CacheControl
	if acl, ok := predefinedACL[meta.ACL]; ok {
		objWriter.PredefinedACL = acl
	}

	length, err := io.Copy(objWriter, payload)
	if err != nil {
		objWriter.Close()
		log.Err(err).Msgf("Error when writing data to object in GCS")
		return nil, fmt.Errorf("%w: written %d bytes of data to '%v' before error: %v", blob.ErrUploadFailed, length, objectPath, err)
	}
	if err = objWriter.Close(); err != nil {
		log.Err(err).Msgf("Error when finish writing data to object in GCS")
		return nil, fmt.Errorf("%w: closing writer of '%v': %v", blob.ErrUploadFailed, objectPath, err)
	}

	return &blob.Data{
		Path:        objectPath,
		PublicURL:   h.basePublicUrl + "/" + objectPath,
		ContentType: meta.ContentType,
		ContentSize: length,
	}, nil
}

// Delete generic binary at path
func (h *handler) Delete(ctx context.Context, path string) (*blob.Data, error) {
	err := h.gcsClient.Bucket(h.bucketName).Object(path).Delete(ctx)
	if err != nil {
		return nil, &blob.DeleteError{Path: path, StatusCode: statusOf(err), Err: err}
	}

	return &blob.Data{
		Path: path,
	}, nil
}

func (h *handler) Get(ctx context.Context, path string) (io.ReadCloser, *blob.Data, error) {
	objReader, err := h.gcsClient.Bucket(h.bucketName).Object(path).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, nil, fmt.Errorf("%w: %v", blob.ErrNotFound, path)
		}
		return nil, nil, fmt.Errorf("%w: cannot get object at path %v", err, path)
	}

	return objReader, &blob.Data{
		Path:        path,
		PublicURL:   h.basePublicUrl + "/" + path,
		ContentType: objReader.Attrs.ContentType,
		ContentSize: objReader.Attrs.Size,
	}, nil
}

func statusOf(err error) int {
	if errors.Is(err, storage.ErrObjectNotExist) {
		return http.StatusNotFound
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code
	}
	return http.StatusInternalServerError
}
