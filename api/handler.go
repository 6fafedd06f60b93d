package api

import (
	"net/http"
	"time"

	"github.com/thisisjab/eventsearch/fault"
	"github.com/thisisjab/eventsearch/search"
)

type compileRequest struct {
	Query          string     `json:"query"`
	Fields         []string   `json:"fields"`
	Projects       []int64    `json:"projects"`
	Start          *time.Time `json:"start"`
	End            *time.Time `json:"end"`
	Rollup         int        `json:"rollup"`
	OrderBy        []string   `json:"orderby"`
	Limit          *int       `json:"limit"`
	ReferenceEvent string     `json:"reference_event"`
}

func (req compileRequest) validate(maxLimit int) error {
	errs := fault.FieldErrorsMetadata{}

	if len(req.Fields) == 0 {
		errs["fields"] = append(errs["fields"], "Ensure this field has at least 1 element.")
	}

	if len(req.Projects) == 0 {
		errs["projects"] = append(errs["projects"], "Ensure this field has at least 1 element.")
	}

	if req.Start == nil {
		errs["start"] = append(errs["start"], "This field is required.")
	}

	if req.End == nil {
		errs["end"] = append(errs["end"], "This field is required.")
	}

	if req.Start != nil && req.End != nil && req.Start.After(*req.End) {
		errs["start"] = append(errs["start"], "Ensure start is not after end.")
	}

	if req.Rollup < 0 {
		errs["rollup"] = append(errs["rollup"], "Ensure this value is greater than or equal to 0.")
	}

	if req.Limit != nil {
		if *req.Limit < 0 {
			errs["limit"] = append(errs["limit"], "Ensure this value is greater than or equal to 0.")
		} else if maxLimit > 0 && *req.Limit > maxLimit {
			errs["limit"] = append(errs["limit"], "Ensure this value is less than or equal to the maximum limit.")
		}
	}

	if len(errs) > 0 {
		return fault.New(fault.BadInputCode, "Invalid compile request.").WithMetadata(errs)
	}

	return nil
}

func (req compileRequest) toSearchRequest() search.Request {
	r := search.Request{
		Query:          req.Query,
		Fields:         req.Fields,
		Params:         search.Params{ProjectIDs: req.Projects},
		Rollup:         req.Rollup,
		OrderBy:        req.OrderBy,
		ReferenceEvent: req.ReferenceEvent,
	}

	if req.Start != nil {
		r.Params.Start = req.Start.UTC()
	}
	if req.End != nil {
		r.Params.End = req.End.UTC()
	}
	if req.Limit != nil {
		r.Limit = *req.Limit
	}

	return r
}

// compileHandler compiles a search query and a field list into a backend
// query descriptor.
func (s *server) compileHandler(w http.ResponseWriter, r *http.Request) {
	var req compileRequest
	if s.returnOnError(w, r, s.readJson(w, r, &req)) {
		return
	}

	if s.returnOnError(w, r, req.validate(s.cfg.MaxLimit)) {
		return
	}

	started := time.Now()
	descriptor, err := s.compilers.Compiler().Compile(r.Context(), req.toSearchRequest())
	s.metrics.CompileDuration.Observe(time.Since(started).Seconds())
	s.metrics.CompileRequests.WithLabelValues(outcome(err)).Inc()

	if s.returnOnError(w, r, err) {
		return
	}

	s.metrics.Conditions.Observe(float64(len(descriptor.Conditions)))

	s.writeJson( // nolint:errcheck
		w,
		http.StatusOK,
		apiResponse{
			Success: true,
			Data:    descriptor,
		},
		nil,
	)
}

func (s *server) schemaHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJson(w, http.StatusOK, apiResponse{ //nolint:errcheck
		Success: true,
		Data:    s.compilers.Compiler().Schema().Config(),
	}, nil)
}
