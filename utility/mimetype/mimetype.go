// Package mimetype guesses content types from file names.
package mimetype

import (
	"mime"
	"path"
	"strings"
)

// Types the platform table does not always carry.
var extra = map[string]string{
	".mp3": "audio/mpeg",
	".swf": "application/x-shockwave-flash",
	".ico": "image/x-icon",
	".jpe": "image/jpeg",
	".htm": "text/html",
}

func init() {
	for ext, typ := range extra {
		if mime.TypeByExtension(ext) == "" {
			_ = mime.AddExtensionType(ext, typ)
		}
	}
}

// ByFilename returns the media type (without parameters) for the extension of name,
// or fallback when the extension is unknown.
func ByFilename(name, fallback string) string {
	if i := strings.IndexAny(name, "?#"); i >= 0 {
		name = name[:i]
	}
	ext := path.Ext(name)
	if ext == "" {
		return fallback
	}
	t := mime.TypeByExtension(ext)
	if t == "" {
		return fallback
	}
	t, _, _ = strings.Cut(t, ";")
	return strings.TrimSpace(t)
}

// Major returns the part before the slash, "image" for "image/png".
func Major(mediaType string) string {
	major, _, _ := strings.Cut(mediaType, "/")
	return major
}
