package middleware

import (
	"log"
	"net/http"
	"time"
)

// statusRecorder captures the status code written by a handler so the
// access log can report it. Only the first WriteHeader wins, matching
// net/http semantics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) Status() int {
	if rec.status == 0 {
		return http.StatusOK
	}
	return rec.status
}

func (rec *statusRecorder) WriteHeader(code int) {
	if rec.status != 0 {
		return
	}
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}

// Logging writes one access-log line per request: method, path, status
// and elapsed time.
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)

		log.Printf("%s %s %d %s", r.Method, r.URL.Path, rec.Status(), time.Since(start))
	})
}
