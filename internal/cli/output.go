package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0
	ExitRejected     = 1 // the ledger refused the request (insufficient stock, token mismatch, ...)
	ExitCommandError = 2 // bad arguments, unreachable stores
)

// ExitError carries the process exit code for a failed command.
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

func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from err. Plain errors are command errors.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitCommandError
}

// OutputFormatter renders command results as text or JSON.
type OutputFormatter struct {
	Format string
	Writer io.Writer
}

type cliResponse struct {
	Status string    `json:"status"`
	Data   any       `json:"data,omitempty"`
	Error  *cliError `json:"error,omitempty"`
}

type cliError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Success prints data. In text mode each key/value pair of a map goes on its own line.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(cliResponse{Status: "ok", Data: data})
	}
	if kv, ok := data.(map[string]any); ok {
		for _, k := range sortedKeys(kv) {
			fmt.Fprintf(f.Writer, "%s: %v\n", k, kv[k])
		}
		return nil
	}
	fmt.Fprintln(f.Writer, data)
	return nil
}

// Rejected prints a business rejection and returns the matching ExitError.
func (f *OutputFormatter) Rejected(code, message string) error {
	if f.Format == "json" {
		if err := json.NewEncoder(f.Writer).Encode(cliResponse{
			Status: "rejected",
			Error:  &cliError{Code: code, Message: message},
		}); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(f.Writer, "Rejected [%s]: %s\n", code, message)
	}
	return NewExitError(ExitRejected, message)
}
