package attachmentapi

import (
	"encoding/json"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/log"

	"github.com/desain-gratis/attachment/repository/limiter"
	types "github.com/desain-gratis/attachment/types/http"
	"github.com/desain-gratis/attachment/usecase/attachment"
	"github.com/desain-gratis/attachment/usecase/policy"
	"github.com/desain-gratis/attachment/utility/render"
)

const maximumRequestLength = 1 << 20

// limiterUserID namespaces policy counters in a limiter shared with other services
const limiterUserID = "policy"

type service struct {
	policyUC     policy.Usecase
	attachmentUC attachment.Usecase
	urls         attachment.URLBuilder
	renderer     *render.Renderer
	widget       types.WidgetConfig

	limiterRepo limiter.Repository
	limit       limiter.Limit
}

type Option func(s *service)

// WithLimiter bounds policy requests per prefix and client address.
func WithLimiter(repo limiter.Repository, limit limiter.Limit) Option {
	return func(s *service) {
		s.limiterRepo = repo
		s.limit = limit
	}
}

func New(
	policyUC policy.Usecase,
	attachmentUC attachment.Usecase,
	urls attachment.URLBuilder,
	widget types.WidgetConfig,
	opts ...Option,
) *service {
	s := &service{
		policyUC:     policyUC,
		attachmentUC: attachmentUC,
		urls:         urls,
		renderer:     render.New(urls),
		widget:       widget,
		limiterRepo:  limiter.NewUnlimited(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register mounts every endpoint on router.
func (s *service) Register(router *httprouter.Router) {
	router.GET("/policy/:prefix", s.Policy)
	router.GET("/widget", s.Widget)
	router.POST("/attachment", s.Post)
	router.GET("/attachment", s.Get)
	router.DELETE("/attachment", s.Delete)
	router.GET("/attachment/render", s.Render)
}

func (s *service) Widget(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	writeJSON(w, http.StatusOK, &types.CommonResponse{Success: s.widget})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		handleError(w, "SERVER_ERROR", "server encounter an error", http.StatusInternalServerError, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(payload)
}

func handleError(w http.ResponseWriter, code, msg string, httpStatus int, err error) {
	if err != nil {
		log.Err(err).Msgf("failed to serve request")
	}

	handleCommonError(w, &types.CommonError{
		Errors: []types.Error{
			{Message: msg, Code: code, HTTPCode: httpStatus},
		},
	})
}

func handleCommonError(w http.ResponseWriter, errUC *types.CommonError) {
	status := http.StatusInternalServerError
	if len(errUC.Errors) > 0 && errUC.Errors[0].HTTPCode != 0 {
		status = errUC.Errors[0].HTTPCode
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(types.SerializeError(errUC))
}
