package attachmentapi

import (
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/log"

	"github.com/desain-gratis/attachment/repository/limiter"
	types "github.com/desain-gratis/attachment/types/http"
	"github.com/desain-gratis/attachment/usecase/policy"
)

const (
	messageTooManyRequests = "Too many uploads, please try again later"
	messageServerError     = "Server error, please try again later"
)

// Policy issues a signed upload policy. The upload client reads errorMessage,
// so validation failures are also answered with 200.
func (s *service) Policy(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	prefix := p.ByName("prefix")
	filename := r.URL.Query().Get("filename")

	// missing or malformed size is treated as empty
	fileSize, _ := strconv.ParseInt(r.URL.Query().Get("file_size"), 10, 64)

	allowed, errUC := limiter.Allow(r.Context(), s.limiterRepo, s.limit, limiterUserID, prefix+"|"+clientIP(r))
	if errUC != nil {
		log.Err(errUC.Err()).Msgf("limiter unavailable, allowing policy request")
		allowed = true
	}
	if !allowed {
		writeJSON(w, http.StatusOK, &types.PolicyErrorResponse{ErrorMessage: messageTooManyRequests})
		return
	}

	result, err := s.policyUC.Issue(r.Context(), prefix, filename, fileSize)
	if err != nil {
		var perr *policy.Error
		if errors.As(err, &perr) {
			writeJSON(w, http.StatusOK, &types.PolicyErrorResponse{ErrorMessage: perr.Message})
			return
		}
		log.Err(err).Msgf("failed to issue policy for %v", filename)
		writeJSON(w, http.StatusOK, &types.PolicyErrorResponse{ErrorMessage: messageServerError})
		return
	}

	writeJSON(w, http.StatusOK, &types.PolicyResponse{
		Policy:              result.Policy,
		Signature:           result.Signature,
		AccessKeyID:         result.AccessKeyID,
		CacheControl:        result.CacheControl,
		ContentType:         result.ContentType,
		ACL:                 result.ACL,
		Key:                 result.Key,
		SuccessActionStatus: result.SuccessActionStatus,
		Filename:            result.Filename,
	})
}

// clientIP prefers the first X-Forwarded-For hop
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
