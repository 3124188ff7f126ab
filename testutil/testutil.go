// Package testutil provides a recording HTTP server and assertion helpers for
// testing tether contracts against a fake backend.
// This package is designed to be import-cycle safe and can be used from any package.
package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
)

// Recorded is a request as the server received it.
type Recorded struct {
	Method string
	// URI is the request target as sent, path and query still escaped.
	URI    string
	Path   string
	Header http.Header
	Body   []byte
}

// Query parses the recorded query string.
func (r Recorded) Query() url.Values {
	u, err := url.ParseRequestURI(r.URI)
	if err != nil {
		return nil
	}
	return u.Query()
}

// Server is an httptest.Server that records every request before handing it
// to its handler.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	requests []Recorded
	handler  http.Handler
}

// NewServer starts a server answering with handler. A nil handler answers
// 204 No Content. The server is closed when the test ends.
func NewServer(t testing.TB, handler http.Handler) *Server {
	t.Helper()
	if handler == nil {
		handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})
	}
	s := &Server{handler: handler}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serveHTTP))
	t.Cleanup(s.Close)
	return s
}

func (s *Server) serveHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	r.Body = io.NopCloser(bytes.NewReader(body))

	s.mu.Lock()
	s.requests = append(s.requests, Recorded{
		Method: r.Method,
		URI:    r.RequestURI,
		Path:   r.URL.EscapedPath(),
		Header: r.Header.Clone(),
		Body:   body,
	})
	s.mu.Unlock()

	s.handler.ServeHTTP(w, r)
}

// Requests returns the recorded requests in arrival order.
func (s *Server) Requests() []Recorded {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Recorded(nil), s.requests...)
}

// Last returns the most recent request, failing the test if there is none.
func (s *Server) Last(t testing.TB) Recorded {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.requests) == 0 {
		t.Fatal("no requests recorded")
	}
	return s.requests[len(s.requests)-1]
}

// JSON answers with v encoded as JSON.
func JSON(status int, v any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(v)
	}
}

// Text answers with a plain text body.
func Text(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(status)
		io.WriteString(w, body)
	}
}

// ErrorResponse is the error object of an {"error": {...}} envelope.
type ErrorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// Result answers 200 with {"result": v}.
func Result(v any) http.HandlerFunc {
	return JSON(http.StatusOK, map[string]any{"result": v})
}

// Error answers with {"error": {"code": code, "message": message}}.
func Error(status int, code, message string) http.HandlerFunc {
	return JSON(status, map[string]any{"error": ErrorResponse{Code: code, Message: message}})
}

// Events answers with a text/event-stream carrying each event as JSON data,
// separated by heartbeat comments.
func Events(events ...any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.WriteHeader(http.StatusOK)
		flusher, _ := w.(http.Flusher)
		for i, e := range events {
			data, _ := json.Marshal(e)
			fmt.Fprintf(w, "id: %d\ndata: %s\n\n", i, data)
			io.WriteString(w, ": heartbeat\n\n")
			if flusher != nil {
				flusher.Flush()
			}
		}
	}
}

// AssertRequest checks the verb and request target of r.
func AssertRequest(t testing.TB, r Recorded, method, uri string) {
	t.Helper()
	if r.Method != method || r.URI != uri {
		t.Errorf("expected %s %s, got %s %s", method, uri, r.Method, r.URI)
	}
}

// AssertHeader checks that a request header has the expected value.
func AssertHeader(t testing.TB, r Recorded, key, expectedValue string) {
	t.Helper()
	actual := r.Header.Get(key)
	if actual != expectedValue {
		t.Errorf("expected header %s=%s, got %s", key, expectedValue, actual)
	}
}

// AssertJSONBody decodes the request body and compares it with expected.
func AssertJSONBody(t testing.TB, r Recorded, expected any) {
	t.Helper()

	expectedJSON, _ := json.Marshal(expected)

	var expectedData, actualData any
	json.Unmarshal(expectedJSON, &expectedData)
	if err := json.Unmarshal(r.Body, &actualData); err != nil {
		t.Fatalf("failed to decode request body: %v\nBody: %s", err, r.Body)
	}

	expectedStr, _ := json.MarshalIndent(expectedData, "", "  ")
	actualStr, _ := json.MarshalIndent(actualData, "", "  ")

	if string(expectedStr) != string(actualStr) {
		t.Errorf("body mismatch:\nExpected:\n%s\nActual:\n%s", expectedStr, actualStr)
	}
}
