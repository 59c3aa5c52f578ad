package attachmentapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/julienschmidt/httprouter"

	"github.com/desain-gratis/attachment/types/entity"
	types "github.com/desain-gratis/attachment/types/http"
	"github.com/desain-gratis/attachment/usecase/attachment"
	"github.com/desain-gratis/attachment/utility/render"
)

func (s *service) Post(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	namespace, ok := namespaceOf(w, r)
	if !ok {
		return
	}

	var opt attachment.SaveOptions
	if v := r.URL.Query().Get("suppress_file_delete"); v != "" {
		suppress, err := strconv.ParseBool(v)
		if err != nil {
			handleError(w, "BAD_REQUEST", "'suppress_file_delete' must be a boolean", http.StatusBadRequest, nil)
			return
		}
		opt.SuppressFileDelete = suppress
	}

	r.Body = http.MaxBytesReader(w, r.Body, maximumRequestLength)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		handleError(w, "BAD_REQUEST", "failed to read payload", http.StatusBadRequest, err)
		return
	}

	var resource entity.Attachment
	if err := json.Unmarshal(payload, &resource); err != nil {
		handleError(w, "BAD_REQUEST", "failed to parse body", http.StatusBadRequest, nil)
		return
	}
	resource.WithNamespace(namespace)

	if err := resource.Validate(); err != nil {
		handleError(w, "BAD_REQUEST", fmt.Sprintf("validation errors: %v.", err), http.StatusBadRequest, nil)
		return
	}

	result, errUC := s.attachmentUC.Save(r.Context(), &resource, opt)
	if errUC != nil {
		handleCommonError(w, errUC)
		return
	}

	writeJSON(w, http.StatusOK, &types.CommonResponse{Success: s.view(result)})
}

func (s *service) Get(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	namespace, id, ok := keyOf(w, r)
	if !ok {
		return
	}

	result, errUC := s.attachmentUC.Get(r.Context(), namespace, id)
	if errUC != nil {
		handleCommonError(w, errUC)
		return
	}

	writeJSON(w, http.StatusOK, &types.CommonResponse{Success: s.view(result)})
}

func (s *service) Delete(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	namespace, id, ok := keyOf(w, r)
	if !ok {
		return
	}

	result, errUC := s.attachmentUC.Delete(r.Context(), namespace, id)
	if errUC != nil {
		handleCommonError(w, errUC)
		return
	}

	writeJSON(w, http.StatusOK, &types.CommonResponse{Success: result})
}

func (s *service) Render(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	namespace, id, ok := keyOf(w, r)
	if !ok {
		return
	}

	mode := render.Mode(r.URL.Query().Get("mode"))
	switch mode {
	case "":
		mode = render.ModeFull
	case render.ModeFull, render.ModeVisible, render.ModeThumb:
	default:
		handleError(w, "BAD_REQUEST", "'mode' must be one of full, visible, thumb", http.StatusBadRequest, nil)
		return
	}

	result, errUC := s.attachmentUC.Get(r.Context(), namespace, id)
	if errUC != nil {
		handleCommonError(w, errUC)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, string(s.renderer.Attachment(result, mode)))
}

func (s *service) view(a *entity.Attachment) *types.AttachmentView {
	return &types.AttachmentView{
		Attachment:   a,
		PublicURL:    s.urls.PublicURL(a),
		ThumbnailURL: s.urls.ThumbnailURL(a),
	}
}

func namespaceOf(w http.ResponseWriter, r *http.Request) (string, bool) {
	namespace := strings.TrimSpace(r.Header.Get("X-Namespace"))
	if namespace == "" {
		handleError(w, "BAD_REQUEST", "'X-Namespace' header is empty", http.StatusBadRequest, nil)
		return "", false
	}
	return namespace, true
}

func keyOf(w http.ResponseWriter, r *http.Request) (namespace, id string, ok bool) {
	namespace, ok = namespaceOf(w, r)
	if !ok {
		return "", "", false
	}

	id = r.URL.Query().Get("id")
	if id == "" {
		handleError(w, "BAD_REQUEST", "'id' parameter is empty", http.StatusBadRequest, nil)
		return "", "", false
	}
	return namespace, id, true
}
