package policy

// Policy issuance for direct-to-storage uploads.
// The storage provider verifies the signature; nothing is kept server side after issuance.

import (
	"context"
	"errors"
)

var (
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrEmptyFile           = errors.New("empty file")
	ErrFileTooLarge        = errors.New("file too large")
)

type Usecase interface {
	// Issue validates the candidate upload and returns a signed, time limited policy.
	// Validation failures are returned as *Error.
	Issue(ctx context.Context, prefix, filename string, fileSize int64) (*Result, error)
}

// Result holds the form fields the upload client posts to storage together with the file.
type Result struct {
	Policy              string
	Signature           string
	AccessKeyID         string
	CacheControl        string
	ContentType         string
	ACL                 string
	Key                 string
	SuccessActionStatus string

	// Filename is only set for jpg / png uploads, the resizing upload path does not send it
	Filename string
}

// Document is the policy document before encoding.
type Document struct {
	Expiration string `json:"expiration"`
	Conditions []any  `json:"conditions"`
}

// Error is a validation failure with a message meant for the end user.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Is(target error) bool {
	return target == e.Kind
}
