package api

import (
	"errors"
	"net/http"

	"github.com/thisisjab/eventsearch/fault"
)

func (s *server) handleError(w http.ResponseWriter, r *http.Request, err error) {
	var f fault.Fault
	if !errors.As(err, &f) {
		s.internalServerError(w, r, err)
		return
	}

	status, res, ok := faultResponse(f)
	if !ok {
		s.internalServerError(w, r, f)
		return
	}

	s.writeError(w, r, status, res)
}

// faultResponse maps a fault to its status and body. It reports false for
// codes that are server errors.
func faultResponse(f fault.Fault) (int, apiResponse, bool) {
	res := apiResponse{Success: false, Message: f.Message()}

	switch f.Code() {
	case fault.BadInputCode:
		// Errors tied to request fields are 422, anything else is a plain 400.
		if md, ok := f.Metadata().(fault.FieldErrorsMetadata); ok {
			res.Metadata = map[string]any{"fields": md}
			return http.StatusUnprocessableEntity, res, true
		}
		res.Metadata = withContext(f)
		return http.StatusBadRequest, res, true

	case fault.InvalidSyntaxCode, fault.InvalidQueryCode:
		res.Metadata = withContext(f)
		return http.StatusBadRequest, res, true

	case fault.NotFoundCode:
		if res.Message == "" {
			res.Message = "Requested resource not found."
		}
		res.Metadata = withContext(f)
		return http.StatusNotFound, res, true

	case fault.PermissionDeniedCode:
		if res.Message == "" {
			res.Message = "Permission denied."
		}
		return http.StatusForbidden, res, true

	default:
		return 0, apiResponse{}, false
	}
}

func withContext(f fault.Fault) map[string]any {
	if f.Metadata() == nil {
		return nil
	}
	return map[string]any{"context": f.Metadata()}
}

// returnOnError writes the response for err and reports whether there was one.
func (s *server) returnOnError(w http.ResponseWriter, r *http.Request, err error) bool {
	if err == nil {
		return false
	}

	s.handleError(w, r, err)
	return true
}

func (s *server) logError(r *http.Request, err error) {
	s.logger.Error("internal server error",
		"method", r.Method,
		"path", r.RequestURI,
		"remote-addr", r.RemoteAddr,
		"request-id", requestID(r.Context()),
		"error", err,
	)
}

func (s *server) writeError(w http.ResponseWriter, r *http.Request, status int, response apiResponse) {
	s.writeJson(w, status, response, nil) //nolint:errcheck
}

func (s *server) internalServerError(w http.ResponseWriter, r *http.Request, err error) {
	s.logError(r, err)
	s.writeError(w, r, http.StatusInternalServerError, apiResponse{Success: false, Message: "Internal server error"})
}
