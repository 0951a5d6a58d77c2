package logger

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ZeroLogger implements Logger on top of zerolog.
type ZeroLogger struct {
	zlog   *zerolog.Logger
	filter *SensitiveDataFilter
	hook   func(zerolog.Level)
}

var _ Logger = (*ZeroLogger)(nil)

var callerMarshalOnce sync.Once

// New creates a ZeroLogger writing to stdout at the given level. Unknown levels
// fall back to info. If pretty is true, output is console-formatted for humans.
func New(level string, pretty bool) *ZeroLogger {
	return NewWithOptions(level, pretty, nil, nil)
}

// NewWithOptions creates a ZeroLogger with a custom sensitive-field filter and
// an optional extra writer that receives every entry alongside stdout (used to
// feed the OpenTelemetry log bridge). Nil arguments select the defaults.
func NewWithOptions(level string, pretty bool, filterConfig *FilterConfig, extra io.Writer) *ZeroLogger {
	callerMarshalOnce.Do(func() {
		zerolog.CallerMarshalFunc = func(_ uintptr, file string, line int) string {
			base := filepath.Base(file)
			parent := filepath.Base(filepath.Dir(file))
			if parent != "." && parent != "" {
				return parent + "/" + base + ":" + strconv.Itoa(line)
			}
			return base + ":" + strconv.Itoa(line)
		}
	})

	var out io.Writer = os.Stdout
	if pretty {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}
	if extra != nil {
		out = zerolog.MultiLevelWriter(out, extra)
	}

	l := zerolog.New(out).With().Timestamp().CallerWithSkipFrameCount(3).Logger()

	zLevel, err := zerolog.ParseLevel(level)
	if err != nil {
		zLevel = zerolog.InfoLevel
	}
	l = l.Level(zLevel)

	return &ZeroLogger{zlog: &l, filter: NewSensitiveDataFilter(filterConfig)}
}

// WithContext returns a logger bound to the request context: it picks up a
// context-scoped zerolog instance when one is present and attaches the
// context's severity hook so WARN/ERROR entries are reported back to the
// request middleware.
func (l *ZeroLogger) WithContext(ctx any) Logger {
	c, ok := ctx.(context.Context)
	if !ok || c == nil {
		return l
	}

	zl := l.zlog
	if ctxLog := zerolog.Ctx(c); ctxLog != nil && ctxLog.GetLevel() != zerolog.Disabled {
		zl = ctxLog
	}

	hook := severityHookFromContext(c)
	if hook == nil {
		hook = l.hook
	}

	if zl == l.zlog && hook == nil {
		return l
	}
	return &ZeroLogger{zlog: zl, filter: l.filter, hook: hook}
}

// WithFields returns a logger that stamps every entry with the given fields.
// Sensitive values are masked before they are attached.
func (l *ZeroLogger) WithFields(fields map[string]any) Logger {
	if l.filter != nil {
		fields = l.filter.FilterFields(fields)
	}
	log := l.zlog.With().Fields(fields).Logger()
	return &ZeroLogger{zlog: &log, filter: l.filter, hook: l.hook}
}
