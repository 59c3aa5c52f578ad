package attachmentapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	attachment_inmemory "github.com/desain-gratis/attachment/repository/attachment/inmemory"
	blob_inmemory "github.com/desain-gratis/attachment/repository/blob/inmemory"
	"github.com/desain-gratis/attachment/repository/limiter"
	limiter_inmemory "github.com/desain-gratis/attachment/repository/limiter/inmemory"
	"github.com/desain-gratis/attachment/repository/remote"
	types "github.com/desain-gratis/attachment/types/http"
	"github.com/desain-gratis/attachment/usecase/attachment/crud"
	"github.com/desain-gratis/attachment/usecase/attachment/lifecycle"
	policy_handler "github.com/desain-gratis/attachment/usecase/policy/handler"
	"github.com/desain-gratis/attachment/utility/cdnurl"
)

const prefix = "http://store.example.com/"

type fakeRemote map[string]string

func (f fakeRemote) Fetch(ctx context.Context, url string) ([]byte, error) {
	c, ok := f[url]
	if !ok {
		return nil, &remote.StatusError{URL: url, StatusCode: http.StatusNotFound}
	}
	return []byte(c), nil
}

func newRouter(opts ...Option) *httprouter.Router {
	urls := cdnurl.New(cdnurl.Config{
		StoragePrefix:    prefix,
		CDNOrigin:        "http://cdn.example.com/",
		ShardCount:       6,
		ThumbnailService: "http://thumb.example.com/",
		Production:       true,
	})
	lc := lifecycle.New(lifecycle.Config{StoragePrefix: prefix}, blob_inmemory.New(prefix), fakeRemote{
		"http://external.example.com/a.png":    "png",
		"http://external.example.com/doc.html": "<p>doc</p>",
	}, urls)

	policyUC := policy_handler.New(policy_handler.Config{
		Bucket:          "store",
		AccessKeyID:     "AKID",
		SecretAccessKey: "secret",
		MaxFileSize:     1 << 20,
	})

	svc := New(policyUC, crud.New(attachment_inmemory.New(), lc), lc, types.WidgetConfig{
		PolicyURL:  "/policy/uploads",
		StorageURL: prefix,
	}, opts...)

	router := httprouter.New()
	svc.Register(router)
	return router
}

func do(t *testing.T, router http.Handler, method, target, namespace, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if namespace != "" {
		req.Header.Set("X-Namespace", namespace)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestPolicy(t *testing.T) {
	router := newRouter()

	tests := []struct {
		name      string
		target    string
		wantError string
	}{
		{
			name:      "unsupported type",
			target:    "/policy/uploads?filename=run.exe&file_size=10",
			wantError: "Filetype .exe (run.exe) is not allowed",
		},
		{
			name:      "missing size",
			target:    "/policy/uploads?filename=a.png",
			wantError: "File size is zero",
		},
		{
			name:      "malformed size",
			target:    "/policy/uploads?filename=a.png&file_size=big",
			wantError: "File size is zero",
		},
		{
			name:      "too large",
			target:    "/policy/uploads?filename=a.png&file_size=2097152",
			wantError: "Selected file is too large (max is 1MB)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, router, http.MethodGet, tt.target, "", "")
			require.Equal(t, http.StatusOK, rec.Code)

			var got types.PolicyErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
			assert.Equal(t, tt.wantError, got.ErrorMessage)
		})
	}

	t.Run("issued", func(t *testing.T) {
		rec := do(t, router, http.MethodGet, "/policy/uploads?filename=a.png&file_size=100", "", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var got map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, "AKID", got["AWSAccessKeyId"])
		assert.Equal(t, "image/png", got["Content-Type"])
		assert.Equal(t, "201", got["success_action_status"])
		assert.Equal(t, "a.png", got["Filename"])
		assert.True(t, strings.HasPrefix(got["key"], "uploads/"))
		assert.Equal(t, policy_handler.Sign("secret", []byte(got["policy"])), got["signature"])
	})
}

func TestPolicy_Limiter(t *testing.T) {
	router := newRouter(WithLimiter(limiter_inmemory.New(), limiter.Limit{Max: 1, Window: time.Minute}))

	rec := do(t, router, http.MethodGet, "/policy/uploads?filename=a.png&file_size=100", "", "")
	assert.NotContains(t, rec.Body.String(), "errorMessage")

	rec = do(t, router, http.MethodGet, "/policy/uploads?filename=a.png&file_size=100", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), messageTooManyRequests)

	// another prefix has its own budget
	rec = do(t, router, http.MethodGet, "/policy/avatars?filename=a.png&file_size=100", "", "")
	assert.NotContains(t, rec.Body.String(), "errorMessage")
}

type savedResponse struct {
	Success struct {
		Attachment struct {
			ID   string `json:"id"`
			File string `json:"file"`
		} `json:"attachment"`
		PublicURL    string `json:"public_url"`
		ThumbnailURL string `json:"thumbnail_url"`
	} `json:"success"`
}

func TestAttachment_Lifecycle(t *testing.T) {
	router := newRouter()

	rec := do(t, router, http.MethodPost, "/attachment", "owner", `{"name":"pic","file":"http://external.example.com/a.png"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var saved savedResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &saved))
	id := saved.Success.Attachment.ID
	require.NotEmpty(t, id)
	assert.True(t, strings.HasPrefix(saved.Success.Attachment.File, prefix+"owner/"))
	assert.Contains(t, saved.Success.PublicURL, ".cdn.example.com/owner/")

	rec = do(t, router, http.MethodGet, "/attachment?id="+id, "owner", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), id)

	rec = do(t, router, http.MethodGet, "/attachment/render?mode=visible&id="+id, "owner", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), `<img class="image" src="http://m`)

	rec = do(t, router, http.MethodGet, "/attachment?id="+id, "someone-else", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, router, http.MethodDelete, "/attachment?id="+id, "owner", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, router, http.MethodGet, "/attachment?id="+id, "owner", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAttachment_Errors(t *testing.T) {
	router := newRouter()

	tests := []struct {
		name       string
		method     string
		target     string
		namespace  string
		body       string
		wantStatus int
		wantCode   string
	}{
		{
			name:       "missing namespace",
			method:     http.MethodPost,
			target:     "/attachment",
			body:       `{}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "BAD_REQUEST",
		},
		{
			name:       "bad json",
			method:     http.MethodPost,
			target:     "/attachment",
			namespace:  "owner",
			body:       `{`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "BAD_REQUEST",
		},
		{
			name:       "fetch failure",
			method:     http.MethodPost,
			target:     "/attachment",
			namespace:  "owner",
			body:       `{"file":"http://external.example.com/missing.png"}`,
			wantStatus: http.StatusBadGateway,
			wantCode:   "FETCH_FAILED",
		},
		{
			name:       "missing id",
			method:     http.MethodGet,
			target:     "/attachment",
			namespace:  "owner",
			wantStatus: http.StatusBadRequest,
			wantCode:   "BAD_REQUEST",
		},
		{
			name:       "unknown render mode",
			method:     http.MethodGet,
			target:     "/attachment/render?id=1&mode=big",
			namespace:  "owner",
			wantStatus: http.StatusBadRequest,
			wantCode:   "BAD_REQUEST",
		},
		{
			name:       "delete missing",
			method:     http.MethodDelete,
			target:     "/attachment?id=nope",
			namespace:  "owner",
			wantStatus: http.StatusNotFound,
			wantCode:   "NOT_FOUND",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, router, tt.method, tt.target, tt.namespace, tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code)

			var got types.CommonResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
			require.NotNil(t, got.Error)
			assert.Equal(t, tt.wantCode, got.Error.Errors[0].Code)
		})
	}
}

func TestWidget(t *testing.T) {
	rec := do(t, newRouter(), http.MethodGet, "/widget", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"signature_url":"/policy/uploads"`)
}

func Test_clientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:5000"
	assert.Equal(t, "10.0.0.1", clientIP(req))

	req.Header.Set("X-Forwarded-For", "1.2.3.4, 10.0.0.1")
	assert.Equal(t, "1.2.3.4", clientIP(req))
}
