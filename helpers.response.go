package main

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"
)

var EmptyData = struct{}{}

// CustomResponseWriter wraps the http.ResponseWriter to record the status
// code and the body size used by the stats and logging middlewares. It keeps
// the network connection so handlers can extend their deadlines through an
// http.ResponseController.
type CustomResponseWriter struct {
	http.ResponseWriter
	conn       net.Conn
	code       int
	bytes      int
	headerSent bool
}

// NewCustomResponseWriter provides CustomResponseWriter with 200 as status code.
func NewCustomResponseWriter(rw http.ResponseWriter, c net.Conn) *CustomResponseWriter {
	return &CustomResponseWriter{ResponseWriter: rw, conn: c, code: http.StatusOK}
}

// WriteHeader records and sends the first status code only.
func (cw *CustomResponseWriter) WriteHeader(code int) {
	if cw.headerSent {
		return
	}
	cw.code = code
	cw.headerSent = true
	cw.ResponseWriter.WriteHeader(code)
}

func (cw *CustomResponseWriter) Write(b []byte) (int, error) {
	if !cw.headerSent {
		cw.WriteHeader(cw.code)
	}
	n, err := cw.ResponseWriter.Write(b)
	cw.bytes += n
	return n, err
}

// Status returns the written status code.
func (cw *CustomResponseWriter) Status() int { return cw.code }

// Bytes returns the size of the response body.
func (cw *CustomResponseWriter) Bytes() int { return cw.bytes }

// Unwrap is used by http.ResponseController.
func (cw *CustomResponseWriter) Unwrap() http.ResponseWriter { return cw.ResponseWriter }

func (cw *CustomResponseWriter) SetWriteDeadline(t time.Time) error {
	if cw.conn == nil {
		return http.ErrNotSupported
	}
	return cw.conn.SetWriteDeadline(t)
}

func (cw *CustomResponseWriter) SetReadDeadline(t time.Time) error {
	if cw.conn == nil {
		return http.ErrNotSupported
	}
	return cw.conn.SetReadDeadline(t)
}

// Envelope is the json body of every api response. Total is only set by
// listing calls and Data is never null.
type Envelope struct {
	RequestID string      `json:"requestid"`
	Status    int         `json:"status"`
	Message   string      `json:"message"`
	Total     *int        `json:"total,omitempty"`
	Data      interface{} `json:"data"`
}

// NewEnvelope builds an envelope, replacing nil data with EmptyData.
func NewEnvelope(requestID string, status int, message string, data interface{}) *Envelope {
	if data == nil {
		data = EmptyData
	}
	return &Envelope{RequestID: requestID, Status: status, Message: message, Data: data}
}

// WriteEnvelope sends env unless the request context is already done. In that
// case only the status is recorded: 504 on deadline and the nginx 499 (Client
// Closed Request) on cancellation.
func WriteEnvelope(ctx context.Context, w http.ResponseWriter, env *Envelope) error {
	if err := ctx.Err(); err != nil {
		status := 499
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusGatewayTimeout
		}
		w.WriteHeader(status)
		return err
	}
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(env.Status)
	return json.NewEncoder(w).Encode(env)
}

// StatusResponse is the data model sent when status endpoint is called.
type StatusResponse struct {
	RequestID string `json:"requestid"`
	Status    string `json:"status"`
	Message   string `json:"message"`
}
