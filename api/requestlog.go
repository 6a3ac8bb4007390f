package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// zapRequestLogger is a chi LogFormatter that writes one structured entry
// per request to the handler's logger.
type zapRequestLogger struct {
	logger *zap.Logger
}

func (l *zapRequestLogger) NewLogEntry(r *http.Request) middleware.LogEntry {
	return &zapLogEntry{logger: l.logger.With(
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.String("remote", r.RemoteAddr),
	)}
}

type zapLogEntry struct {
	logger *zap.Logger
}

func (e *zapLogEntry) Write(status, bytes int, _ http.Header, elapsed time.Duration, _ interface{}) {
	e.logger.Info("request",
		zap.Int("status", status),
		zap.Int("bytes", bytes),
		zap.Duration("elapsed", elapsed),
	)
}

func (e *zapLogEntry) Panic(v interface{}, stack []byte) {
	e.logger.Error("panic serving request",
		zap.Any("panic", v),
		zap.ByteString("stack", stack),
	)
}
