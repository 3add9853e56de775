package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// jsonOutput is set by --json. Every command then writes exactly one
// Response to stdout.
var jsonOutput bool

// Response is the envelope of --json output.
type Response struct {
	OK       bool       `json:"ok"`
	Data     any        `json:"data,omitempty"`
	Error    *ErrorInfo `json:"error,omitempty"`
	Warnings []Warning  `json:"warnings,omitempty"`
	Meta     *Meta      `json:"meta,omitempty"`
}

// ErrorInfo describes a failed command. Code is one of the constants in
// errors.go.
type ErrorInfo struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    any    `json:"details,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

// Warning is a problem that did not stop the command.
type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Ref     string `json:"ref,omitempty"`
}

// Meta carries counts and timing.
type Meta struct {
	Count      int   `json:"count,omitempty"`
	DurationMs int64 `json:"duration_ms,omitempty"`
}

func isJSONOutput() bool { return jsonOutput }

func writeResponse(resp Response) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	_ = enc.Encode(resp)
}

func outputSuccess(data any, meta *Meta, warnings ...Warning) {
	writeResponse(Response{OK: true, Data: data, Warnings: warnings, Meta: meta})
}

func outputError(code, message, suggestion string) {
	writeResponse(Response{Error: &ErrorInfo{Code: code, Message: message, Suggestion: suggestion}})
}

// handleError reports err. In JSON mode it writes the envelope, refining code
// from the error's kind, and returns errSilent; otherwise it returns err for
// main to print.
func handleError(code string, err error, suggestion string) error {
	if !jsonOutput {
		return err
	}
	outputError(codeFor(err, code), err.Error(), suggestion)
	return errSilent
}

// handleErrorMsg is handleError for failures that have no error value.
func handleErrorMsg(code, message, suggestion string) error {
	if jsonOutput {
		outputError(code, message, suggestion)
		return errSilent
	}
	if suggestion == "" {
		return errors.New(message)
	}
	return fmt.Errorf("%s\n\n%s", message, suggestion)
}

// errSilent is returned once the failure has already been written.
var errSilent = errors.New("already reported")

// IsSilent reports whether err needs no further printing.
func IsSilent(err error) bool { return errors.Is(err, errSilent) }
