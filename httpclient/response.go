package httpclient

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
)

// Response is the envelope for one HTTP exchange. The body is fully
// read at receipt time — never left lazily streamed — so the envelope
// is self-contained once the client method returns. Text decoding
// happens on first access and is cached; repeated reads are idempotent
// and side-effect-free. Status and header metadata are usable without
// ever touching the body, including for responses that settled as
// unsuccessful-but-processed.
type Response struct {
	// StatusCode is the numeric HTTP status, e.g. 404.
	StatusCode int

	// Status is the full status line text, e.g. "404 Not Found".
	Status string

	// Header holds the response headers.
	Header http.Header

	body []byte

	mu      sync.Mutex
	text    string
	decoded bool

	// decodeText converts the raw body to text; swappable in tests to
	// count decoder invocations.
	decodeText func([]byte) string
}

func newResponse(resp *http.Response, body []byte) *Response {
	return &Response{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Header:     resp.Header,
		body:       body,
		decodeText: func(b []byte) string { return string(b) },
	}
}

// Bytes returns the raw body.
func (r *Response) Bytes() []byte {
	return r.body
}

// Text returns the body decoded as text. The decode runs once; later
// calls return the cached value.
func (r *Response) Text() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.decoded {
		r.text = r.decodeText(r.body)
		r.decoded = true
	}
	return r.text
}

// JSON unmarshals the cached body into v.
func (r *Response) JSON(v any) error {
	if err := json.Unmarshal(r.body, v); err != nil {
		return &DecodeError{Cause: err}
	}
	return nil
}

// StatusError is the native signal for an HTTP response whose status
// code reports failure. The backend was reached and processed the
// request, so this classifies protocol-tier; the envelope stays
// attached so status, headers and body remain reachable from the
// classified error.
type StatusError struct {
	Code     int
	Status   string
	Envelope *Response
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http status %s", e.Status)
}

// DecodeError is the native signal for a body that could not be
// decoded into the requested structure.
type DecodeError struct {
	Cause error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode response body: %v", e.Cause)
}

func (e *DecodeError) Unwrap() error {
	return e.Cause
}
