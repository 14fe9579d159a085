package upstream

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

// Request is a replayable description of one outbound call. It never
// carries the authorization header: that is attached per attempt from the
// credential current at that moment.
type Request struct {
	Method string
	// Path is relative to the configured base URL and may carry a query.
	Path   string
	Body   []byte
	Header http.Header
	// ContentType overrides the JSON default. Binary marks bodies (uploads,
	// multipart) whose Content-Type must be left exactly as the caller set
	// it.
	ContentType string
	Binary      bool
	// Category partitions the in-flight counters ("tasks", "projects", ...).
	Category string
	// Idempotent requests are eligible for silent retries.
	Idempotent bool
	// Silent requests (health checks, polling) are never retried.
	Silent bool

	id string
}

// NewRequest builds a non-idempotent request.
func NewRequest(method, path, category string, body []byte) *Request {
	return &Request{Method: method, Path: path, Body: body, Category: category, Header: make(http.Header)}
}

// Get builds an idempotent read.
func Get(path, category string) *Request {
	r := NewRequest(http.MethodGet, path, category, nil)
	r.Idempotent = true
	return r
}

// Post builds a POST with a JSON body.
func Post(path, category string, body []byte) *Request {
	return NewRequest(http.MethodPost, path, category, body)
}

// Put builds a PUT with a JSON body. PUT is not marked idempotent: the
// caller decides whether replaying it blindly is safe.
func Put(path, category string, body []byte) *Request {
	return NewRequest(http.MethodPut, path, category, body)
}

// Delete builds a DELETE request.
func Delete(path, category string) *Request {
	return NewRequest(http.MethodDelete, path, category, nil)
}

// WithHeader sets an extra header. Authorization is ignored.
func (r *Request) WithHeader(key, value string) *Request {
	if r.Header == nil {
		r.Header = make(http.Header)
	}
	r.Header.Set(key, value)
	return r
}

// AsSilent marks the request as a heartbeat that must never be retried.
func (r *Request) AsSilent() *Request {
	r.Silent = true
	return r
}

// WithRequestID pins the X-Request-ID; otherwise each Send assigns its own.
// Either way the id is kept across retries and replays of that Send.
func (r *Request) WithRequestID(id string) *Request {
	r.id = id
	return r
}

// ID returns the pinned request id, if any. Response.RequestID is the id
// that was actually sent.
func (r *Request) ID() string { return r.id }

// prepared returns a copy of r that carries a request id. Send and the
// refresher work on the copy so a Request can be shared between goroutines.
func (r *Request) prepared() *Request {
	cp := *r
	if cp.id == "" {
		cp.id = uuid.NewString()
	}
	return &cp
}

// Response is a completed 2xx/3xx exchange.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
	// Attempts counts network attempts including retries and replays.
	Attempts  int
	Replays   int
	RequestID string
}

// JSON gives gjson access to the body.
func (r *Response) JSON() gjson.Result { return gjson.ParseBytes(r.Body) }

// Decode unmarshals the body into v.
func (r *Response) Decode(v any) error { return json.Unmarshal(r.Body, v) }
