package observability

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

// Until InitLogger runs every call goes through slog.Default.
var current atomic.Pointer[slog.Logger]

// InitLogger installs the process logger on stdout. The dev API uses it;
// the CLI calls InitLoggerTo with stderr so command output stays parseable.
func InitLogger(level, format string) {
	InitLoggerTo(os.Stdout, level, format)
}

// InitLoggerTo installs a logger writing to w and makes it the slog default.
// format is "json" or anything else for logfmt-style text. Source locations
// are only recorded at debug level.
func InitLoggerTo(w io.Writer, level, format string) {
	lvl := parseLevel(level)
	opts := &slog.HandlerOptions{Level: lvl, AddSource: lvl <= slog.LevelDebug}

	var h slog.Handler = slog.NewTextHandler(w, opts)
	if strings.EqualFold(format, "json") {
		h = slog.NewJSONHandler(w, opts)
	}

	l := slog.New(h)
	current.Store(l)
	slog.SetDefault(l)
}

// parseLevel accepts the slog names (debug, info, warn, error, any case).
// Anything unrecognised logs at info.
func parseLevel(level string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

func base() *slog.Logger {
	if l := current.Load(); l != nil {
		return l
	}
	return slog.Default()
}

// logFields are the per-call attributes carried on a context
type logFields struct {
	requestID string
	username  string
}

type fieldsKey struct{}

func fieldsFrom(ctx context.Context) logFields {
	f, _ := ctx.Value(fieldsKey{}).(logFields)
	return f
}

// WithRequestID tags ctx so loggers from FromContext carry request_id
func WithRequestID(ctx context.Context, requestID string) context.Context {
	f := fieldsFrom(ctx)
	f.requestID = requestID
	return context.WithValue(ctx, fieldsKey{}, f)
}

// WithUsername tags ctx with the account the call acts for
func WithUsername(ctx context.Context, username string) context.Context {
	f := fieldsFrom(ctx)
	f.username = username
	return context.WithValue(ctx, fieldsKey{}, f)
}

func RequestIDFrom(ctx context.Context) string {
	return fieldsFrom(ctx).requestID
}

// FromContext returns the process logger with whatever request_id and
// username ctx carries. Empty values are left off.
func FromContext(ctx context.Context) *slog.Logger {
	l := base()
	f := fieldsFrom(ctx)
	if f.requestID != "" {
		l = l.With(slog.String("request_id", f.requestID))
	}
	if f.username != "" {
		l = l.With(slog.String("username", f.username))
	}
	return l
}

// Info and Warn are for code with no context at hand, such as Logout.
func Info(msg string, args ...any) { base().Info(msg, args...) }

func Warn(msg string, args ...any) { base().Warn(msg, args...) }
