package awss3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/desain-gratis/attachment/repository/blob"
)

var _ blob.Repository = &handler{}

// handler stores objects through the AWS SDK. Use it when the bucket lives in AWS proper
// and credentials come from the default provider chain.
type handler struct {
	client    *s3.Client
	bucket    string
	publicURL string
}

type Config struct {
	Endpoint       string // empty for AWS
	Region         string
	AccessKey      string // empty to use the default credential chain
	SecretKey      string
	ForcePathStyle bool
	Bucket         string
	PublicURL      string
}

func New(ctx context.Context, cfg Config) (*handler, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})

	return NewFromClient(client, cfg.Bucket, cfg.PublicURL), nil
}

func NewFromClient(client *s3.Client, bucket, publicURL string) *handler {
	return &handler{
		client:    client,
		bucket:    bucket,
		publicURL: strings.TrimRight(publicURL, "/"),
	}
}

func (h *handler) Upload(ctx context.Context, path string, meta blob.Meta, payload io.Reader) (*blob.Data, error) {
	input := &s3.PutObjectInput{
		Bucket:      aws.String(h.bucket),
		Key:         aws.String(path),
		Body:        payload,
		ContentType: aws.String(meta.ContentType),
	}
	if meta.CacheControl != "" {
		input.CacheControl = aws.String(meta.CacheControl)
	}
	if meta.ACL != "" {
		input.ACL = s3types.ObjectCannedACL(meta.ACL)
	}
	if meta.Size > 0 {
		input.ContentLength = aws.Int64(meta.Size)
	}

	if _, err := h.client.PutObject(ctx, input); err != nil {
		return nil, fmt.Errorf("%w: putting object %s: %v", blob.ErrUploadFailed, path, err)
	}

	return &blob.Data{
		Path:        path,
		PublicURL:   h.publicURL + "/" + path,
		ContentType: meta.ContentType,
		ContentSize: meta.Size,
	}, nil
}

func (h *handler) Delete(ctx context.Context, path string) (*blob.Data, error) {
	_, err := h.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(h.bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		return nil, &blob.DeleteError{Path: path, StatusCode: statusOf(err), Err: err}
	}
	return &blob.Data{Path: path}, nil
}

func (h *handler) Get(ctx context.Context, path string) (io.ReadCloser, *blob.Data, error) {
	out, err := h.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(h.bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		if statusOf(err) == http.StatusNotFound {
			return nil, nil, fmt.Errorf("%w: %v", blob.ErrNotFound, path)
		}
		return nil, nil, fmt.Errorf("getting object %s: %w", path, err)
	}

	return out.Body, &blob.Data{
		Path:        path,
		PublicURL:   h.publicURL + "/" + path,
		ContentType: aws.ToString(out.ContentType),
		ContentSize: aws.ToInt64(out.ContentLength),
	}, nil
}

func statusOf(err error) int {
	var re *awshttp.ResponseError
	if errors.As(err, &re) {
		return re.HTTPStatusCode()
	}
	return http.StatusInternalServerError
}
