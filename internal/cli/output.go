package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Process exit codes.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // the store or the shopper's input rejected the request
	ExitCommandError = 2 // configuration or on-device storage is unusable
)

// Error codes carried in Response.Error.Code.
const (
	ErrCodeGeneric      = "E001"
	ErrCodeConfig       = "E002"
	ErrCodeCredentials  = "E003"
	ErrCodeSignInNeeded = "E004"
	ErrCodeForbidden    = "E005"
	ErrCodeNotFound     = "E006"
	ErrCodeInvalidInput = "E007"
	ErrCodeUnavailable  = "E008"
)

const formatJSON = "json"

// ExitError ends a command with Code after its message has been printed.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

// WrapExitError attaches an exit code to err.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode returns the code of the first ExitError in err's chain, or ExitFailure.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		return ExitFailure
	}
	return exitErr.Code
}

// Response is the envelope every command writes in JSON mode, one per line.
type Response struct {
	Status string         `json:"status"`
	Data   interface{}    `json:"data,omitempty"`
	Error  *ResponseError `json:"error,omitempty"`
}

type ResponseError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// OutputFormatter writes command results to Writer as text or JSON.
// Diagnostics go to ErrWriter so JSON output stays machine readable.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer
	Verbose   bool
}

// Render writes data in JSON mode and text otherwise. Trailing newlines in
// text are collapsed to one.
func (f *OutputFormatter) Render(data interface{}, text string) error {
	if f.Format == formatJSON {
		return f.encode(Response{Status: "ok", Data: data})
	}
	_, err := fmt.Fprintln(f.Writer, strings.TrimRight(text, "\n"))
	return err
}

// Error reports a failure. Details are printed in text mode only with --verbose.
func (f *OutputFormatter) Error(code, message string, details interface{}) error {
	if f.Format == formatJSON {
		return f.encode(Response{
			Status: "error",
			Error:  &ResponseError{Code: code, Message: message, Details: details},
		})
	}
	if _, err := fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message); err != nil {
		return err
	}
	if f.Verbose && details != nil {
		_, err := fmt.Fprintf(f.Writer, "Details: %v\n", details)
		return err
	}
	return nil
}

// VerboseLog prints a diagnostic line when --verbose is set.
func (f *OutputFormatter) VerboseLog(format string, args ...interface{}) {
	if !f.Verbose {
		return
	}
	w := f.ErrWriter
	if w == nil {
		w = f.Writer
	}
	fmt.Fprintf(w, format+"\n", args...)
}

func (f *OutputFormatter) encode(resp Response) error {
	return json.NewEncoder(f.Writer).Encode(resp)
}
