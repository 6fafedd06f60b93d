package api

import "net/http"

type healthStatus struct {
	Columns    int `json:"columns"`
	Aggregates int `json:"aggregates"`
}

// healthCheckHandler reports whether a compiler is loaded and the size of
// the schema it serves.
func (s *server) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	c := s.compilers.Compiler()
	if c == nil {
		s.writeError(w, r, http.StatusServiceUnavailable, apiResponse{Success: false, Message: "No compiler loaded."})
		return
	}

	cfg := c.Schema().Config()
	s.writeJson(w, http.StatusOK, apiResponse{ //nolint:errcheck
		Success: true,
		Message: "OK",
		Data: healthStatus{
			Columns:    len(cfg.Columns),
			Aggregates: len(cfg.Aggregates),
		},
	}, nil)
}
