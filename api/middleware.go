package api

import (
	"bytes"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/aragonzkresearch/rovote/log"
	"github.com/go-chi/chi/v5/middleware"
)

// DisabledLogging is a global flag to disable the request logging.
var DisabledLogging = false

// jsonRegex matches the start of a JSON document.
var jsonRegex = regexp.MustCompile(`^\s*[\[{]`)

// LoggingConfig holds the configuration of the request logging middleware.
type LoggingConfig struct {
	MaxBodyLog       int
	ExcludedPrefixes []string
}

// DefaultLoggingConfig returns the logging configuration used by the API.
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		MaxBodyLog:       maxRequestBodyLog,
		ExcludedPrefixes: LogExcludedPrefixes,
	}
}

func (lc LoggingConfig) skip(r *http.Request) bool {
	if DisabledLogging || log.Level() != log.LogLevelDebug {
		return true
	}
	for _, prefix := range lc.ExcludedPrefixes {
		if strings.HasPrefix(r.URL.Path, prefix) {
			return true
		}
	}
	return false
}

// bodyForLog reads the request body, restores it for the handler and
// returns a truncated copy if it looks like JSON. Proofs are sent hex
// encoded, so the copy can get long.
func (lc LoggingConfig) bodyForLog(r *http.Request) (string, error) {
	if r.Body == nil || r.ContentLength <= 0 {
		return "", nil
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return "", err
	}
	r.Body = io.NopCloser(bytes.NewReader(body))
	if !jsonRegex.Match(body) {
		return "", nil
	}
	str := string(body)
	if len(str) > lc.MaxBodyLog {
		str = str[:lc.MaxBodyLog] + "..."
	}
	return strings.ReplaceAll(str, "\"", ""), nil
}

// loggingMiddleware logs every request and the status of its response when
// the log level is debug.
func loggingMiddleware(config LoggingConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if config.skip(r) {
				next.ServeHTTP(w, r)
				return
			}
			start := time.Now()
			body, err := config.bodyForLog(r)
			if err != nil {
				log.Warnw("unable to read request body", "error", err.Error())
				ErrMalformedBody.WithErr(err).Write(w)
				return
			}
			log.Debugw("api request",
				"method", r.Method,
				"url", r.URL.String(),
				"body", body)

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			log.Debugw("api response",
				"method", r.Method,
				"url", r.URL.String(),
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"took", time.Since(start).String())
		})
	}
}
