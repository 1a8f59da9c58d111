package thttp

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/ridge/must/v2"
	"github.com/ridge/travertine/request"
)

// ResponseWriter collects a response so that it can be compressed and so
// that session cookies can still be set after the handler returns.
//
// ResponseWriter implements http.ResponseWriter; nothing reaches the client
// until the handler returns.
type ResponseWriter struct {
	w           http.ResponseWriter
	compression request.Compression
	status      int
	body        bytes.Buffer
}

func newResponseWriter(w http.ResponseWriter, c request.Compression) *ResponseWriter {
	return &ResponseWriter{w: w, compression: c}
}

// Header implements http.ResponseWriter
func (rw *ResponseWriter) Header() http.Header {
	return rw.w.Header()
}

// WriteHeader implements http.ResponseWriter. Only the first call counts.
func (rw *ResponseWriter) WriteHeader(status int) {
	if rw.status == 0 {
		rw.status = status
	}
}

// Write implements http.ResponseWriter
func (rw *ResponseWriter) Write(p []byte) (int, error) {
	if rw.status == 0 {
		rw.status = http.StatusOK
	}
	return rw.body.Write(p)
}

// JSON writes a status code and a value encoded as JSON
func (rw *ResponseWriter) JSON(res any, status int) {
	body := must.OK1(json.Marshal(res))
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	must.OK1(rw.body.Write(body)) // bytes.Buffer.Write always returns nil
}

// Status returns the response status, 0 if nothing was written yet
func (rw *ResponseWriter) Status() int {
	return rw.status
}

// flush sends the response to the client, compressing the body if the
// client accepts it
func (rw *ResponseWriter) flush() error {
	status := rw.status
	if status == 0 {
		status = http.StatusOK
	}
	body := rw.body.Bytes()
	header := rw.w.Header()
	if rw.compression != request.CompressionNone && len(body) > 0 && header.Get("Content-Encoding") == "" {
		out, encoding, err := compress(body, rw.compression)
		if err != nil {
			return err
		}
		body = out
		header.Set("Content-Encoding", encoding)
		header.Add("Vary", "Accept-Encoding")
		if header.Get("Content-Type") == "" {
			header.Set("Content-Type", http.DetectContentType(rw.body.Bytes()))
		}
	}
	header.Set("Content-Length", strconv.Itoa(len(body)))
	rw.w.WriteHeader(status)
	_, err := rw.w.Write(body)
	return err
}
