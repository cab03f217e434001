package http

import (
	"net/http"
)

// Response is the writer handlers see. It satisfies http.ResponseWriter so
// net/http helpers keep working, and adds an explicit End that finalizes
// the response exactly once. Decorators wrap it to observe the output.
type Response interface {
	http.ResponseWriter

	// End writes body, if any, and finalizes the response.
	End(body []byte) error
	// Status is the status code written, or 200 when none was.
	Status() int
	// Written reports whether the status line was sent.
	Written() bool
	// Finished reports whether End was called.
	Finished() bool
}

type response struct {
	writer   http.ResponseWriter
	status   int
	written  bool
	finished bool
	size     int
}

func NewResponse(w http.ResponseWriter) Response {
	return &response{writer: w}
}

func (r *response) Header() http.Header {
	return r.writer.Header()
}

func (r *response) WriteHeader(status int) {
	if r.written {
		return
	}

	r.status = status
	r.written = true
	r.writer.WriteHeader(status)
}

func (r *response) Write(p []byte) (int, error) {
	if r.finished {
		return 0, ErrResponseFinished
	}

	if !r.written {
		r.WriteHeader(http.StatusOK)
	}

	n, err := r.writer.Write(p)
	r.size += n
	return n, err
}

func (r *response) End(body []byte) error {
	if r.finished {
		return ErrResponseFinished
	}

	if !r.written {
		r.WriteHeader(http.StatusOK)
	}

	if len(body) > 0 {
		if _, err := r.Write(body); err != nil {
			return err
		}
	}

	r.finished = true
	if flusher, ok := r.writer.(http.Flusher); ok {
		flusher.Flush()
	}

	return nil
}

func (r *response) Status() int {
	if r.status == 0 {
		return http.StatusOK
	}
	return r.status
}

func (r *response) Written() bool {
	return r.written
}

func (r *response) Finished() bool {
	return r.finished
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (r *response) Unwrap() http.ResponseWriter {
	return r.writer
}
