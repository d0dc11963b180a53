/*
Package logx provides a structured logging wrapper based on zerolog.

This file contains the HTTP middleware the dev API server uses to log each request's
method, URI, status and latency with a per-request child logger stored in the context.
*/
package logx

import (
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// maskIP keeps the network part of a remote address (/24 for IPv4, /64 for IPv6).
func maskIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}

	ip := net.ParseIP(host)
	switch {
	case ip == nil:
		return "unknown_ip"
	case ip.IsLoopback():
		return "loopback"
	case ip.To4() != nil:
		return ip.Mask(net.CIDRMask(24, 32)).String()
	default:
		return ip.Mask(net.CIDRMask(64, 128)).String()
	}
}

// RequestLogger returns an HTTP middleware that logs one line per completed request.
// The request-scoped logger is reachable from handlers via zerolog.Ctx(r.Context()).
func RequestLogger() func(next http.Handler) http.Handler {
	base := Component("http")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			logger := base.With().
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("remote_net", maskIP(r.RemoteAddr)).
				Str("request_method", r.Method).
				Str("request_uri", r.URL.Path).
				Logger()

			r = r.WithContext(logger.WithContext(r.Context()))

			start := time.Now()
			next.ServeHTTP(ww, r)

			status := ww.Status()
			event := logger.Info()
			switch {
			case status >= 500:
				event = logger.Error()
			case status >= 400:
				event = logger.Warn()
			}

			event.
				Int("status", status).
				Int("bytes", ww.BytesWritten()).
				Dur("latency", time.Since(start)).
				Msg("Request completed")
		})
	}
}
