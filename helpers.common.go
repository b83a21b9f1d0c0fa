package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
)

type ContextKey string

const (
	RequestIDContextKey     ContextKey = "request.id"
	RequestNumberContextKey ContextKey = "request.number"
	RequestUserContextKey   ContextKey = "request.user"
	ConnContextKey          ContextKey = "http-conn"
)

// maxBodySize bounds the size of decoded json request bodies.
const maxBodySize = 1 << 20

// GetValueFromContext returns the string saved under contextKey or "".
func GetValueFromContext(ctx context.Context, contextKey ContextKey) string {
	if val, ok := ctx.Value(contextKey).(string); ok {
		return val
	}
	return ""
}

// GetRequestNumberFromContext returns the request sequence number or 0.
func GetRequestNumberFromContext(ctx context.Context) uint64 {
	if val, ok := ctx.Value(RequestNumberContextKey).(uint64); ok {
		return val
	}
	return 0
}

// DecodeRequestBody is a helper function to read the json content of a creation or update request.
// Unknown fields and data trailing the json value are rejected.
func DecodeRequestBody(r *http.Request, v interface{}) error {
	if r.Body == nil || r.Body == http.NoBody {
		return ErrEmptyRequestBody
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return ErrEmptyRequestBody
		}
		return fmt.Errorf("%w: %v", ErrInvalidRequestBody, err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: body must hold a single json value", ErrInvalidRequestBody)
	}
	return nil
}

// GetRequestSourceIP returns the client address, trusting the X-Real-IP
// header first and then the leftmost valid entry of X-Forwarded-For before
// falling back to the peer address.
func GetRequestSourceIP(r *http.Request) string {
	candidates := []string{r.Header.Get("X-Real-IP")}
	candidates = append(candidates, strings.Split(r.Header.Get("X-Forwarded-For"), ",")...)
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		candidates = append(candidates, host)
	}
	for _, ip := range candidates {
		ip = strings.TrimSpace(ip)
		if net.ParseIP(ip) != nil {
			return ip
		}
	}
	return ""
}

// IsAppRunningInDocker reports whether the /.dockerenv marker file exists.
func IsAppRunningInDocker() bool {
	_, err := os.Stat("/.dockerenv")
	return err == nil
}

// SaveConnInContext is the server ConnContext hook. The connection is used
// by the deadline methods of *CustomResponseWriter.
func SaveConnInContext(ctx context.Context, c net.Conn) context.Context {
	return context.WithValue(ctx, ConnContextKey, c)
}

// GetConnFromContext returns the connection saved into the context.
func GetConnFromContext(ctx context.Context) net.Conn {
	if c, ok := ctx.Value(ConnContextKey).(net.Conn); ok {
		return c
	}
	return nil
}
