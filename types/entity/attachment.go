package entity

import (
	"path"
	"strings"
	"time"

	"github.com/desain-gratis/attachment/utility/mimetype"
)

// Attachment is an entity that references a single stored object by URL.
type Attachment struct {
	Id      string `json:"id,omitempty"`
	OwnerId string `json:"owner_id,omitempty"`
	Name    string `json:"name,omitempty"` // display name of the resource

	// File is the reference: empty, a canonical storage URL, or a transient external URL
	File string `json:"file,omitempty"`

	// FileData holds content staged before it is pushed to storage,
	// or the raw content of server-stored types
	FileData []byte `json:"file_data,omitempty"`

	// Requested thumbnail dimension, 0 if not set
	Width  int `json:"width,omitempty"`
	Height int `json:"height,omitempty"`

	CreatedAt string `json:"created_at,omitempty"`
}

var imageExtensions = map[string]struct{}{
	".jpg": {},
	".png": {},
	".gif": {},
	".jpe": {},
}

func (a *Attachment) WithID(id string) *Attachment {
	a.Id = id
	return a
}

func (a *Attachment) ID() string {
	return a.Id
}

func (a *Attachment) WithNamespace(ownerID string) *Attachment {
	a.OwnerId = ownerID
	return a
}

func (a *Attachment) Namespace() string {
	return a.OwnerId
}

func (a *Attachment) URL() string {
	return a.File
}

func (a *Attachment) WithURL(url string) *Attachment {
	a.File = url
	return a
}

func (a *Attachment) WithCreatedTime(t time.Time) *Attachment {
	a.CreatedAt = t.Format(time.RFC3339)
	return a
}

func (a *Attachment) CreatedTime() time.Time {
	t, _ := time.Parse(time.RFC3339, a.CreatedAt)
	return t
}

// Basename is the last path element of the reference, or "file" if there is no reference.
func (a *Attachment) Basename() string {
	if a.File == "" {
		return "file"
	}
	return path.Base(stripQuery(a.File))
}

// Extension returns the extension of the reference basename including the dot, in its original case.
func (a *Attachment) Extension() string {
	if a.File == "" {
		return ""
	}
	return path.Ext(a.Basename())
}

func (a *Attachment) IsImage() bool {
	_, ok := imageExtensions[strings.ToLower(a.Extension())]
	return ok
}

// MimeType guesses the type of the reference from its extension.
func (a *Attachment) MimeType() string {
	return mimetype.ByFilename(a.Basename(), "text/plain")
}

// Size is the thumbnail size requested for this attachment.
func (a *Attachment) Size() (width, height int) {
	return a.Width, a.Height
}

func (a *Attachment) Validate() error {
	if a.OwnerId == "" {
		return ErrEmptyOwner
	}
	return nil
}

func (a *Attachment) String() string {
	return a.Basename()
}

func stripQuery(u string) string {
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		return u[:i]
	}
	return u
}
