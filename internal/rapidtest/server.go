// Package rapidtest provides a fake rAPId instance for tests.
package rapidtest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/no10ds/rapid-sdk-go/auth"
)

// Credentials accepted by the fake token endpoint.
const (
	ClientID     = "test-client"
	ClientSecret = "test-secret"
	Token        = "test-token"
)

// Request is a recorded call to the fake server.
type Request struct {
	Method string
	Path   string
	Header http.Header
	Body   []byte
	// FileName and File are set for multipart uploads of the "file" field.
	FileName string
	File     []byte
}

// JSON decodes the request body into v.
func (r Request) JSON(v any) error {
	return json.Unmarshal(r.Body, v)
}

// Response is a canned reply.
type Response struct {
	Status int
	Body   any
}

// Server records requests and replies with canned responses keyed by
// "METHOD /path". Responses registered with Sequence are consumed in order,
// the last one repeating.
type Server struct {
	*httptest.Server

	t          *testing.T
	mu         sync.Mutex
	responses  map[string][]Response
	handlers   map[string]http.HandlerFunc
	requests   []Request
	tokenCalls int
	denyToken  bool
}

// NewServer starts a fake instance closed at test cleanup.
func NewServer(t *testing.T) *Server {
	t.Helper()

	s := &Server{
		t:         t,
		responses: make(map[string][]Response),
		handlers:  make(map[string]http.HandlerFunc),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)

	return s
}

// Config returns credentials accepted by the server.
func (s *Server) Config() auth.Config {
	return auth.Config{ClientID: ClientID, ClientSecret: ClientSecret, URL: s.URL}
}

// DenyToken makes the token endpoint answer 401.
func (s *Server) DenyToken() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.denyToken = true
}

// Reply registers a single response for method and path.
func (s *Server) Reply(method, path string, status int, body any) {
	s.Sequence(method, path, Response{Status: status, Body: body})
}

// Sequence registers successive responses for method and path.
func (s *Server) Sequence(method, path string, responses ...Response) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.responses[method+" "+path] = responses
}

// Handle registers a custom handler for method and path.
func (s *Server) Handle(method, path string, h http.HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.handlers[method+" "+path] = h
}

// Requests returns recorded calls to method and path.
func (s *Server) Requests(method, path string) []Request {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Request
	for _, r := range s.requests {
		if r.Method == method && r.Path == path {
			out = append(out, r)
		}
	}

	return out
}

// Count returns the number of calls to method and path.
func (s *Server) Count(method, path string) int {
	return len(s.Requests(method, path))
}

// All returns every recorded non-token call in order.
func (s *Server) All() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]Request(nil), s.requests...)
}

// TokenCalls returns the number of token exchanges.
func (s *Server) TokenCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.tokenCalls
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/oauth2/token" {
		s.serveToken(w, r)
		return
	}

	if got := r.Header.Get("Authorization"); got != "Bearer "+Token {
		s.t.Errorf("%s %s: unexpected Authorization header %q", r.Method, r.URL.Path, got)
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.t.Errorf("read body: %v", err)
	}

	rec := Request{
		Method: r.Method,
		Path:   r.URL.EscapedPath(),
		Header: r.Header.Clone(),
		Body:   body,
	}
	rec.FileName, rec.File = fileField(r.Header.Get("Content-Type"), body)

	key := rec.Method + " " + rec.Path

	s.mu.Lock()
	s.requests = append(s.requests, rec)
	handler := s.handlers[key]
	var resp *Response
	if queue := s.responses[key]; len(queue) > 0 {
		next := queue[0]
		resp = &next
		if len(queue) > 1 {
			s.responses[key] = queue[1:]
		}
	}
	s.mu.Unlock()

	if handler != nil {
		r.Body = io.NopCloser(bytes.NewReader(body))
		handler(w, r)
		return
	}

	if resp == nil {
		s.t.Errorf("unexpected request %s", key)
		w.WriteHeader(http.StatusNotFound)
		return
	}

	writeJSON(w, resp.Status, resp.Body)
}

func (s *Server) serveToken(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.tokenCalls++
	deny := s.denyToken
	s.mu.Unlock()

	id, secret, ok := r.BasicAuth()
	if deny || !ok || id != ClientID || secret != ClientSecret {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid_client"})
		return
	}

	if err := r.ParseForm(); err != nil || r.PostForm.Get("grant_type") != "client_credentials" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unsupported_grant_type"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"access_token": Token, "token_type": "Bearer", "expires_in": 3600})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	if body == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if raw, ok := body.(string); ok {
		io.WriteString(w, raw)
		return
	}

	if err := json.NewEncoder(w).Encode(body); err != nil {
		panic(fmt.Sprintf("rapidtest: encode response: %v", err))
	}
}

func fileField(contentType string, body []byte) (string, []byte) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") {
		return "", nil
	}

	mr := multipart.NewReader(bytes.NewReader(body), params["boundary"])
	for {
		part, err := mr.NextPart()
		if err != nil {
			return "", nil
		}
		if part.FormName() != "file" {
			continue
		}

		data, err := io.ReadAll(part)
		if err != nil {
			return "", nil
		}

		return part.FileName(), data
	}
}
