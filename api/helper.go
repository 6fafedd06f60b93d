package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/thisisjab/eventsearch/fault"
)

type apiResponse struct {
	Success  bool           `json:"success"`
	Message  string         `json:"message,omitempty"`
	Data     any            `json:"data,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// readJson decodes exactly one JSON value from the body into dst. Unknown
// fields and oversized bodies are rejected.
func (s *server) readJson(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.maxBodyBytes())

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return decodeError(err)
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fault.New(fault.BadInputCode, "Body must only contain a single JSON value.")
	}

	return nil
}

// decodeError turns a json decoding error into a BadInput fault. Errors that
// point at a single field carry FieldErrorsMetadata.
func decodeError(err error) error {
	var syntaxError *json.SyntaxError
	var unmarshalTypeError *json.UnmarshalTypeError
	var invalidUnmarshalError *json.InvalidUnmarshalError
	var maxBytesError *http.MaxBytesError

	switch {
	case errors.As(err, &syntaxError):
		return fault.New(fault.BadInputCode, fmt.Sprintf("Body contains badly-formed JSON at character %d.", syntaxError.Offset))

	case errors.Is(err, io.ErrUnexpectedEOF):
		return fault.New(fault.BadInputCode, "Body contains badly-formed JSON.")

	case errors.As(err, &unmarshalTypeError):
		if unmarshalTypeError.Field == "" {
			return fault.New(fault.BadInputCode, fmt.Sprintf("Body contains badly-formed JSON at character %d.", unmarshalTypeError.Offset))
		}
		return fieldError(unmarshalTypeError.Field, fmt.Sprintf("Expected type %s.", unmarshalTypeError.Type.String()))

	case errors.Is(err, io.EOF):
		return fault.New(fault.BadInputCode, "Body cannot be empty.")

	case strings.HasPrefix(err.Error(), "json: unknown field "):
		name := strings.Trim(strings.TrimPrefix(err.Error(), "json: unknown field "), `"`)
		return fieldError(name, "Key is unknown.")

	case errors.As(err, &maxBytesError):
		return fault.New(fault.BadInputCode, fmt.Sprintf("Body must not be larger than %d bytes.", maxBytesError.Limit))

	case errors.As(err, &invalidUnmarshalError):
		panic(err)

	default:
		return err
	}
}

func fieldError(field, message string) fault.Fault {
	return fault.New(fault.BadInputCode, "").WithMetadata(fault.FieldErrorsMetadata{
		field: []string{message},
	})
}

func (s *server) writeJson(w http.ResponseWriter, status int, data apiResponse, headers http.Header) error {
	js, err := json.Marshal(data)
	if err != nil {
		return err
	}

	js = append(js, '\n')
	for key, value := range headers {
		w.Header()[key] = value
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(js) //nolint:errcheck

	return nil
}
