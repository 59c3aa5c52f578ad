package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/desain-gratis/attachment/usecase/policy"
)

var issuedAt = time.Unix(1700000000, 0)

func newTestIssuer() *issuer {
	i := New(Config{
		Bucket:          "test-bucket",
		AccessKeyID:     "AKIDEXAMPLE",
		SecretAccessKey: "secret",
		MaxFileSize:     10 << 20,
	})
	i.now = func() time.Time { return issuedAt }
	return i
}

func TestIssue_Validation(t *testing.T) {
	tests := []struct {
		name        string
		filename    string
		fileSize    int64
		wantKind    error
		wantMessage string
	}{
		{
			name:        "extension not allowed",
			filename:    "virus.exe",
			fileSize:    100,
			wantKind:    policy.ErrUnsupportedFileType,
			wantMessage: "Filetype .exe (virus.exe) is not allowed",
		},
		{
			name:        "no extension",
			filename:    "README",
			fileSize:    100,
			wantKind:    policy.ErrUnsupportedFileType,
			wantMessage: "Filetype  (README) is not allowed",
		},
		{
			name:        "extension checked before size",
			filename:    "virus.exe",
			fileSize:    0,
			wantKind:    policy.ErrUnsupportedFileType,
			wantMessage: "Filetype .exe (virus.exe) is not allowed",
		},
		{
			name:        "zero size",
			filename:    "a.png",
			fileSize:    0,
			wantKind:    policy.ErrEmptyFile,
			wantMessage: "File size is zero",
		},
		{
			name:        "negative size",
			filename:    "a.png",
			fileSize:    -5,
			wantKind:    policy.ErrEmptyFile,
			wantMessage: "File size is zero",
		},
		{
			name:        "too large",
			filename:    "a.pdf",
			fileSize:    10<<20 + 1,
			wantKind:    policy.ErrFileTooLarge,
			wantMessage: "Selected file is too large (max is 10MB)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := newTestIssuer().Issue(context.Background(), "uploads", tt.filename, tt.fileSize)
			require.Error(t, err)
			assert.Nil(t, got)
			assert.True(t, errors.Is(err, tt.wantKind))
			assert.Equal(t, tt.wantMessage, err.Error())

			var perr *policy.Error
			assert.True(t, errors.As(err, &perr))
		})
	}
}

func TestIssue_MaxSizeAccepted(t *testing.T) {
	_, err := newTestIssuer().Issue(context.Background(), "uploads", "a.pdf", 10<<20)
	assert.NoError(t, err)
}

func TestIssue_TooLargeMessageUsesWholeMB(t *testing.T) {
	i := New(Config{MaxFileSize: 5*1024*1024 + 1000})
	_, err := i.Issue(context.Background(), "p", "a.png", 6*1024*1024)
	require.Error(t, err)
	assert.Equal(t, "Selected file is too large (max is 5MB)", err.Error())
}

func TestIssue_Photo(t *testing.T) {
	got, err := newTestIssuer().Issue(context.Background(), "uploads", "photo.JPG", 500000)
	require.NoError(t, err)

	assert.Equal(t, "image/jpeg", got.ContentType)
	assert.Equal(t, "photo.JPG", got.Filename)
	assert.Equal(t, "uploads/1700000000.000000/photo.JPG", got.Key)
	assert.Equal(t, "public-read", got.ACL)
	assert.Equal(t, "public, max-age=2629743", got.CacheControl)
	assert.Equal(t, "201", got.SuccessActionStatus)
	assert.Equal(t, "AKIDEXAMPLE", got.AccessKeyID)
	assert.Equal(t, Sign("secret", []byte(got.Policy)), got.Signature)
}

func TestIssue_FilenameOnlyForJpgAndPng(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{filename: "a.png", want: "a.png"},
		{filename: "b.JPG", want: "b.JPG"},
		{filename: "c.gif", want: ""},
		{filename: "d.pdf", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			got, err := newTestIssuer().Issue(context.Background(), "uploads", tt.filename, 10)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Filename)
		})
	}
}

func TestIssue_UnknownTypeIsOctetStream(t *testing.T) {
	i := New(Config{AllowedExtensions: []string{".bin"}})
	got, err := i.Issue(context.Background(), "p", "blob.bin", 10)
	require.NoError(t, err)
	assert.Equal(t, "application/octet-stream", got.ContentType)
}

func TestIssue_PolicyDocument(t *testing.T) {
	got, err := newTestIssuer().Issue(context.Background(), "uploads", "photo.png", 10)
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(got.Policy)
	require.NoError(t, err)

	var doc struct {
		Expiration string            `json:"expiration"`
		Conditions []json.RawMessage `json:"conditions"`
	}
	require.NoError(t, json.Unmarshal(raw, &doc))

	assert.Equal(t, "2023-11-15T06:33:20.000Z", doc.Expiration)
	require.Len(t, doc.Conditions, 8)

	wantConditions := []map[string]string{
		{"bucket": "test-bucket"},
		{"acl": "public-read"},
		{"key": "uploads/1700000000.000000/photo.png"},
		{"Cache-Control": "public, max-age=2629743"},
		{"Filename": "photo.png"},
		{"name": "photo.png"},
		{"Content-Type": "image/png"},
	}
	for idx, want := range wantConditions {
		var cond map[string]string
		require.NoError(t, json.Unmarshal(doc.Conditions[idx], &cond))
		assert.Equal(t, want, cond)
	}

	var status []string
	require.NoError(t, json.Unmarshal(doc.Conditions[7], &status))
	assert.Equal(t, []string{"eq", "$success_action_status", "201"}, status)
}

func TestSign(t *testing.T) {
	assert.Equal(t, "3nybhbi3iqa8ino29wqQcBydtNk=", Sign("key", []byte("The quick brown fox jumps over the lazy dog")))

	policy := []byte("eyJleHBpcmF0aW9uIjoiMjAyMyJ9")
	assert.Equal(t, Sign("secret", policy), Sign("secret", policy))
	assert.NotEqual(t, Sign("secret", policy), Sign("other", policy))
}
