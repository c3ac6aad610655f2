// Package httpserver builds the HTTP server the record API is served from.
package httpserver

import (
	"net/http"
	"time"
)

// New builds an HTTP server for the record API. Request and response bodies
// are small JSON documents, so the read and write timeouts are tight; idle
// keep-alive connections from clients polling the validate endpoints may
// linger longer.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
