package api

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/zainbaq/medical-ml/errors"
)

// DetailResponse is the error body for every non-validation failure
type DetailResponse struct {
	Detail string `json:"detail"`
}

// ValidationDetail locates one offending field of a request
type ValidationDetail struct {
	Loc  []any  `json:"loc"`
	Msg  string `json:"msg"`
	Type string `json:"type"`
}

// ValidationResponse is the 422 body
type ValidationResponse struct {
	Detail []ValidationDetail `json:"detail"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, code int, detail string) {
	writeJSON(w, code, DetailResponse{Detail: detail})
}

func notFoundDetail(serviceID string) string {
	return fmt.Sprintf("Service '%s' not found", serviceID)
}

// writeError is the single translation from error semantics to status
// codes. Unclassified errors are logged and answered with a generic 500.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		ve       *errors.ValidationError
		nf       *errors.NotFoundError
		tooLarge *http.MaxBytesError
	)

	switch {
	case stderrors.As(err, &ve):
		resp := ValidationResponse{Detail: make([]ValidationDetail, 0, len(ve.Issues))}
		for _, issue := range ve.Issues {
			resp.Detail = append(resp.Detail, ValidationDetail{
				Loc:  fieldLoc(issue.Field),
				Msg:  issue.Message,
				Type: issue.Type,
			})
		}
		writeJSON(w, http.StatusUnprocessableEntity, resp)
	case stderrors.As(err, &nf):
		writeDetail(w, http.StatusNotFound, notFoundDetail(nf.ServiceID))
	case stderrors.As(err, &tooLarge):
		writeDetail(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("Request body exceeds %d bytes", tooLarge.Limit))
	case stderrors.Is(err, errors.ErrRateLimited):
		writeDetail(w, http.StatusTooManyRequests, "Rate limit exceeded")
	case errors.IsInvalid(err):
		writeDetail(w, http.StatusBadRequest, "Invalid request")
	default:
		s.requestLogger(r).Error("Request failed", "error", err)
		writeDetail(w, http.StatusInternalServerError, "Internal server error")
	}
}
