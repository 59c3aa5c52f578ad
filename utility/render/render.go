// Package render turns attachment references into markup, picking the element from the media type.
package render

import (
	"bytes"
	"html/template"
	"path"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/desain-gratis/attachment/types/entity"
	"github.com/desain-gratis/attachment/utility/mimetype"
)

type Mode string

const (
	ModeFull    Mode = "full"
	ModeVisible Mode = "visible"
	ModeThumb   Mode = "thumb"
)

const (
	categoryCSS        = "text/css"
	categoryJavascript = "application/javascript"
	categoryImage      = "image"
	categoryAudio      = "audio"
	categoryFlash      = "application/x-shockwave-flash"
	categoryDefault    = "*"
)

const NoThumbnail = "No Thumbnail"

var templates = template.Must(template.New("render").Parse(`
{{- define "text/css" -}}
<link rel="stylesheet" href="{{.File}}" type="text/css"{{if .Class}} class="{{.Class}}"{{end}} />
{{- end -}}
{{- define "application/javascript" -}}
<script{{if .Class}} class="{{.Class}}"{{end}} type="text/javascript" src="{{.File}}"></script>
{{- end -}}
{{- define "image" -}}
<img{{if .Class}} class="{{.Class}}"{{end}} src="{{.File}}" alt="{{.Name}}" />
{{- end -}}
{{- define "audio" -}}
<audio{{if .Class}} class="{{.Class}}"{{end}} src="{{.File}}" controls>{{.Name}}</audio>
{{- end -}}
{{- define "application/x-shockwave-flash" -}}
<div id="{{.Base}}"{{if .Class}} class="{{.Class}}"{{end}}>This page requires Flash{{.Thumb}}</div>
<script type="text/javascript">
	swfobject.embedSWF({{.File}}, {{.Base}}, "100%", "100%", "6.0.0");
</script>
{{- end -}}
{{- define "*" -}}
<a{{if .Class}} class="{{.Class}}"{{end}} href="{{.File}}">{{.Name}}</a>
{{- end -}}
`))

// categories in match order, after exact aliases
var categories = []string{categoryCSS, categoryJavascript, categoryImage, categoryAudio, categoryFlash}

var aliases = map[string]string{
	"application/x-javascript": categoryJavascript,
	"text/javascript":          categoryJavascript,
}

var visible = map[string]struct{}{
	categoryImage:   {},
	categoryAudio:   {},
	categoryFlash:   {},
	categoryDefault: {},
}

type Params struct {
	// File is the URL to render
	File string
	Name string

	// Thumb is optional markup shown inside the flash fallback
	Thumb template.HTML
}

type view struct {
	Params
	Base  string
	Class string
}

// URLBuilder derives the URLs an attachment is served from.
type URLBuilder interface {
	PublicURL(a *entity.Attachment) string
	ThumbnailURL(a *entity.Attachment) string
}

type Renderer struct {
	urls URLBuilder
}

func New(urls URLBuilder) *Renderer {
	return &Renderer{urls: urls}
}

// ByFileName renders params.File using the media type guessed from fileName.
func (r *Renderer) ByFileName(fileName string, params Params, visibleOnly bool) template.HTML {
	return r.ByMimeType(mimetype.ByFilename(fileName, "application"), params, visibleOnly)
}

// ByMimeType renders params.File as the element for mediaType.
// With visibleOnly, types without a visual element (css, javascript) become links
// and the element gets the major type as class.
func (r *Renderer) ByMimeType(mediaType string, params Params, visibleOnly bool) template.HTML {
	category := Category(mediaType)
	if visibleOnly {
		if _, ok := visible[category]; !ok {
			category = categoryDefault
		}
	}

	v := view{Params: params}
	if visibleOnly {
		if category == categoryDefault {
			v.Class = mimetype.Major(mediaType)
		} else {
			v.Class = mimetype.Major(category)
		}
	}
	v.Base = strings.TrimSuffix(path.Base(stripQuery(params.File)), path.Ext(stripQuery(params.File)))

	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, category, v); err != nil {
		log.Err(err).Msgf("failed to render %v", params.File)
		return ""
	}
	return template.HTML(buf.String())
}

// Attachment renders a in the given mode.
//   - full: the public URL as its element
//   - visible: like full but visible only; falls back to the raw FileData when there is no reference
//   - thumb: the thumbnail URL, visible only; NoThumbnail when there is no reference
func (r *Renderer) Attachment(a *entity.Attachment, mode Mode) template.HTML {
	switch mode {
	case ModeThumb:
		file := r.urls.ThumbnailURL(a)
		if file == "" {
			return NoThumbnail
		}
		return r.ByFileName(file, Params{File: file, Name: a.Name}, true)
	case ModeVisible:
		file := r.urls.PublicURL(a)
		if file != "" {
			return r.ByFileName(file, Params{File: file, Name: a.Name}, true)
		}
		// server-stored content is trusted markup
		return template.HTML(a.FileData)
	default:
		file := r.urls.PublicURL(a)
		return r.ByFileName(file, Params{File: file, Name: a.Name}, false)
	}
}

// Category maps a media type onto the element used to render it.
func Category(mediaType string) string {
	if alias, ok := aliases[mediaType]; ok {
		return alias
	}
	for _, c := range categories {
		if mediaType == c || strings.HasPrefix(mediaType, c) {
			return c
		}
	}
	return categoryDefault
}

func stripQuery(u string) string {
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		return u[:i]
	}
	return u
}
