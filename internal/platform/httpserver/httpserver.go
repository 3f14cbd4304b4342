package httpserver

import (
	"net/http"
	"time"
)

// New wraps http.Server construction so timeouts stay consistent and main
// stays lean.
func New(addr string, handler http.Handler, readTimeout, writeTimeout time.Duration) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}
}
