package session

import (
	"bytes"
	"net/http"
)

// bufferedWriter holds back the status line and body written by the wrapped
// handler, so that session cookies can still be added to the response headers
// once the handler has returned. Flushes requested by the handler are
// absorbed, so nothing reaches the client before the session is committed.
type bufferedWriter struct {
	w    http.ResponseWriter
	buf  bytes.Buffer
	code int
}

func newBufferedWriter(w http.ResponseWriter) *bufferedWriter {
	return &bufferedWriter{w: w}
}

func (bw *bufferedWriter) Header() http.Header {
	return bw.w.Header()
}

func (bw *bufferedWriter) WriteHeader(code int) {
	// Informational responses are dropped rather than forwarded early.
	if bw.code != 0 || code < 200 {
		return
	}
	bw.code = code
}

func (bw *bufferedWriter) Write(p []byte) (int, error) {
	if bw.code == 0 {
		bw.code = http.StatusOK
	}
	return bw.buf.Write(p)
}

// Flush is a no-op while buffering.
func (bw *bufferedWriter) Flush() {}

// FlushError keeps http.ResponseController from flushing the underlying
// writer ahead of the session cookie.
func (bw *bufferedWriter) FlushError() error {
	return nil
}

// Unwrap supports http.ResponseController.
func (bw *bufferedWriter) Unwrap() http.ResponseWriter {
	return bw.w
}

func (bw *bufferedWriter) flush() error {
	if bw.code == 0 {
		bw.code = http.StatusOK
	}
	bw.w.WriteHeader(bw.code)
	_, err := bw.buf.WriteTo(bw.w)
	return err
}
