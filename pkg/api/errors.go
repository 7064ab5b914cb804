package api

import (
	"errors"
	"net/http"

	"github.com/specdock/specdock/pkg/fetch"
	"github.com/specdock/specdock/pkg/httputil"
	"github.com/specdock/specdock/pkg/registry"
	"github.com/specdock/specdock/pkg/schema"
)

// writeError maps domain errors onto HTTP statuses. Validation failures
// carry the violated schema and path so clients can pinpoint the problem.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var (
		input       *registry.InputError
		conflict    *registry.ConflictError
		denied      *registry.AuthorizationError
		validation  *schema.ValidationError
		unavailable *schema.UnavailableError
		fetchErr    *fetch.Error
	)

	switch {
	case errors.Is(err, registry.ErrNotFound):
		httputil.WriteNotFound(w, "entry not found")
	case errors.Is(err, schema.ErrUnknownVersion):
		httputil.WriteBadRequest(w, err.Error())
	case errors.As(err, &validation):
		httputil.WriteJSON(w, http.StatusBadRequest, validationBody(validation))
	case errors.As(err, &input):
		httputil.WriteBadRequest(w, input.Error())
	case errors.As(err, &conflict):
		httputil.WriteConflict(w, conflict.Error())
	case errors.As(err, &denied):
		httputil.WriteForbidden(w, denied.Error())
	case errors.As(err, &unavailable):
		httputil.WriteErrorMessage(w, http.StatusServiceUnavailable, unavailable.Error())
	case errors.As(err, &fetchErr):
		httputil.WriteBadGateway(w, fetchErr.Error())
	default:
		s.log.WithError(err).Error("request failed")
		httputil.WriteInternalError(w, errors.New("internal server error"))
	}
}

func validationBody(v *schema.ValidationError) map[string]any {
	body := map[string]any{
		"success": false,
		"status":  http.StatusBadRequest,
		"error":   v.Error(),
		"schema":  v.Schema,
	}
	if v.Path != "" {
		body["path"] = v.Path
	}
	return body
}
