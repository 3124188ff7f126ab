package tether

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// maxErrorBody bounds how much of a rejected response body is kept.
const maxErrorBody = 64 << 10

// ResponseHandler inspects a response before its body is consumed. A non-nil
// error rejects the response; the body is then closed and the error is
// returned from the call.
type ResponseHandler func(resp *http.Response) error

// DefaultResponseHandler rejects any response whose status is not 2xx with a
// *ResponseError.
func DefaultResponseHandler(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return NewResponseError(resp)
}

// ResponseError is a response rejected by the post-processor.
type ResponseError struct {
	StatusCode int
	Status     string
	Method     string
	URL        string
	Header     http.Header
	// Body holds the start of the response body.
	Body []byte
	// Remote is the {"error": {...}} envelope sent by the server, if any.
	Remote *Error
}

// NewResponseError reads up to 64KiB of resp's body into a *ResponseError.
func NewResponseError(resp *http.Response) *ResponseError {
	e := &ResponseError{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Header:     resp.Header.Clone(),
	}
	if resp.Request != nil {
		e.Method = resp.Request.Method
		e.URL = resp.Request.URL.String()
	}
	if resp.Body != nil {
		e.Body, _ = io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	}
	var env envelope
	if len(e.Body) > 0 && JSON.Unmarshal(e.Body, &env) == nil && env.Error != nil && env.Error.Code != "" {
		e.Remote = env.Error
	}
	return e
}

func (e *ResponseError) Error() string {
	status := e.Status
	if status == "" {
		status = fmt.Sprintf("%d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	msg := fmt.Sprintf("%s %s: %s", e.Method, e.URL, status)
	if e.Remote != nil {
		msg += ": " + e.Remote.Message
	}
	return msg
}

// Code returns the remote error code if the server sent one, otherwise the
// code mapped from the status.
func (e *ResponseError) Code() ErrorCode {
	if e.Remote != nil {
		return e.Remote.Code
	}
	return CodeFromStatus(e.StatusCode)
}

// Is matches ErrResponse.
func (e *ResponseError) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == CodeResponse
}

// envelope is the {"result": ...} / {"error": {...}} wrapper used by servers
// that envelope their payloads.
type envelope struct {
	Result json.RawMessage `json:"result"`
	Error  *Error          `json:"error"`
}
