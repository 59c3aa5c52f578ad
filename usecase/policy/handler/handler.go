package handler

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/desain-gratis/attachment/usecase/policy"
	"github.com/desain-gratis/attachment/utility/mimetype"
	"github.com/desain-gratis/attachment/utility/objectkey"
)

var _ policy.Usecase = &issuer{}

const (
	DefaultExpiry       = 30000 * time.Second
	DefaultCacheControl = "public, max-age=2629743"
	DefaultACL          = "public-read"
	DefaultMaxFileSize  = 10 << 20

	successActionStatus = "201"
	expirationLayout    = "2006-01-02T15:04:05.000Z"
)

// DefaultExtensions are the upload types accepted when none are configured
var DefaultExtensions = []string{"jpg", "png", "gif", "css", "html", "js", "pdf", "swf", "ico", "mp3"}

type Config struct {
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string

	// AllowedExtensions without the leading dot, matched case-insensitively
	AllowedExtensions []string

	// MaxFileSize in bytes
	MaxFileSize int64

	// Expiry of the issued policy, counted from issuance
	Expiry time.Duration

	CacheControl string
	ACL          string
}

type issuer struct {
	config  Config
	allowed map[string]struct{}
	now     func() time.Time
}

// New creates the policy issuer. Zero values in config are replaced by the defaults above.
func New(config Config) *issuer {
	if len(config.AllowedExtensions) == 0 {
		config.AllowedExtensions = DefaultExtensions
	}
	if config.MaxFileSize <= 0 {
		config.MaxFileSize = DefaultMaxFileSize
	}
	if config.Expiry <= 0 {
		config.Expiry = DefaultExpiry
	}
	if config.CacheControl == "" {
		config.CacheControl = DefaultCacheControl
	}
	if config.ACL == "" {
		config.ACL = DefaultACL
	}

	allowed := make(map[string]struct{}, len(config.AllowedExtensions))
	for _, ext := range config.AllowedExtensions {
		allowed[strings.ToLower(strings.TrimPrefix(ext, "."))] = struct{}{}
	}

	return &issuer{
		config:  config,
		allowed: allowed,
		now:     time.Now,
	}
}

func (i *issuer) Issue(ctx context.Context, prefix, filename string, fileSize int64) (*policy.Result, error) {
	if err := i.validate(filename, fileSize); err != nil {
		log.Info().Msgf("s3policy error %v", err.Message)
		return nil, err
	}

	contentType := mimetype.ByFilename(filename, "application/octet-stream")

	issuedAt := i.now()
	key := objectkey.New(prefix, issuedAt, filename)

	doc := policy.Document{
		Expiration: issuedAt.Add(i.config.Expiry).UTC().Format(expirationLayout),
		Conditions: []any{
			map[string]string{"bucket": i.config.Bucket},
			map[string]string{"acl": i.config.ACL},
			map[string]string{"key": key},
			map[string]string{"Cache-Control": i.config.CacheControl},
			map[string]string{"Filename": filename},
			map[string]string{"name": filename},
			map[string]string{"Content-Type": contentType},
			[]string{"eq", "$success_action_status", successActionStatus},
		},
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encoding policy document: %w", err)
	}
	encoded := base64.StdEncoding.EncodeToString(raw)

	result := &policy.Result{
		Policy:              encoded,
		Signature:           Sign(i.config.SecretAccessKey, []byte(encoded)),
		AccessKeyID:         i.config.AccessKeyID,
		CacheControl:        i.config.CacheControl,
		ContentType:         contentType,
		ACL:                 i.config.ACL,
		Key:                 key,
		SuccessActionStatus: successActionStatus,
	}

	lower := strings.ToLower(filename)
	if strings.HasSuffix(lower, "jpg") || strings.HasSuffix(lower, "png") {
		result.Filename = filename
	}

	return result, nil
}

// validate runs the checks in order, the first failure wins
func (i *issuer) validate(filename string, fileSize int64) *policy.Error {
	ext := strings.ToLower(path.Ext(path.Base(filename)))
	if _, ok := i.allowed[strings.TrimPrefix(ext, ".")]; !ok || ext == "" {
		return &policy.Error{
			Kind:    policy.ErrUnsupportedFileType,
			Message: fmt.Sprintf("Filetype %s (%s) is not allowed", ext, filename),
		}
	}

	if fileSize <= 0 {
		return &policy.Error{
			Kind:    policy.ErrEmptyFile,
			Message: "File size is zero",
		}
	}

	if fileSize > i.config.MaxFileSize {
		return &policy.Error{
			Kind:    policy.ErrFileTooLarge,
			Message: fmt.Sprintf("Selected file is too large (max is %dMB)", i.config.MaxFileSize/1024/1024),
		}
	}

	return nil
}

// Sign computes base64(HMAC-SHA1(secret, policy)), the signature storage expects for a base64 policy document.
func Sign(secret string, policy []byte) string {
	mac := hmac.New(sha1.New, []byte(secret))
	mac.Write(policy)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
