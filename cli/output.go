package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"

	"github.com/thisisjab/eventsearch/fault"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // the query was rejected
	ExitCommandError = 2 // bad flags, unreadable files, storage errors
)

// ExitError carries the exit code a command should end with.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer
	Verbose   bool
}

// CLIResponse is the JSON envelope of every command.
type CLIResponse struct {
	Status string    `json:"status"` // "ok" or "error"
	Data   any       `json:"data,omitempty"`
	Error  *CLIError `json:"error,omitempty"`
}

type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Success writes data as JSON, or calls text to render it.
func (f *OutputFormatter) Success(data any, text func(w io.Writer)) error {
	if f.Format == "json" {
		enc := json.NewEncoder(f.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(CLIResponse{Status: "ok", Data: data})
	}

	text(f.Writer)
	return nil
}

func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		enc := json.NewEncoder(f.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: code, Message: message, Details: details},
		})
	}

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %+v\n", details)
	}
	return nil
}

// Fail reports err and turns it into an ExitError. Query faults exit with
// ExitFailure, anything else with ExitCommandError.
func (f *OutputFormatter) Fail(err error) error {
	var flt fault.Fault
	if errors.As(err, &flt) && (flt.Code() == fault.InvalidSyntaxCode || flt.Code() == fault.InvalidQueryCode) {
		_ = f.Error(string(flt.Code()), flt.Message(), flt.Metadata())
		return WrapExitError(ExitFailure, flt.Message(), nil)
	}

	_ = f.Error(string(fault.CodeOf(err)), err.Error(), nil)
	return WrapExitError(ExitCommandError, "command failed", err)
}

// table renders rows under a title. Nothing is written for no rows.
func table(w io.Writer, title string, header []string, rows [][]string) {
	if len(rows) == 0 {
		return
	}

	fmt.Fprintf(w, "%s:\n", title)

	t := tablewriter.NewWriter(w)
	t.SetHeader(header)
	t.SetAutoWrapText(false)
	t.SetAutoFormatHeaders(true)
	t.AppendBulk(rows)
	t.Render()

	fmt.Fprintln(w)
}
