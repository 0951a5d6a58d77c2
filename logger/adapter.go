package logger

import (
	"time"

	"github.com/rs/zerolog"
)

// LogEventAdapter adapts zerolog events to the LogEvent interface, applying
// the sensitive-data filter to string and interface fields and reporting
// WARN-or-worse entries through the severity hook when one is attached.
type LogEventAdapter struct {
	event  *zerolog.Event
	filter *SensitiveDataFilter
	level  zerolog.Level
	hook   func(zerolog.Level)
}

// Msg sends the event with the given message.
func (lea *LogEventAdapter) Msg(msg string) {
	lea.trackSeverity()
	lea.event.Msg(msg)
}

// Msgf sends the event with a formatted message.
func (lea *LogEventAdapter) Msgf(format string, args ...any) {
	lea.trackSeverity()
	lea.event.Msgf(format, args...)
}

// Err attaches an error to the event.
func (lea *LogEventAdapter) Err(err error) LogEvent {
	return lea.next(lea.event.Err(err))
}

// Str attaches a string field, masking it when the key is sensitive.
func (lea *LogEventAdapter) Str(key, value string) LogEvent {
	if lea.filter != nil {
		value = lea.filter.FilterString(key, value)
	}
	return lea.next(lea.event.Str(key, value))
}

// Int attaches an int field.
func (lea *LogEventAdapter) Int(key string, value int) LogEvent {
	return lea.next(lea.event.Int(key, value))
}

// Int64 attaches an int64 field.
func (lea *LogEventAdapter) Int64(key string, value int64) LogEvent {
	return lea.next(lea.event.Int64(key, value))
}

// Uint64 attaches a uint64 field.
func (lea *LogEventAdapter) Uint64(key string, value uint64) LogEvent {
	return lea.next(lea.event.Uint64(key, value))
}

// Bool attaches a boolean field.
func (lea *LogEventAdapter) Bool(key string, value bool) LogEvent {
	return lea.next(lea.event.Bool(key, value))
}

// Dur attaches a duration field.
func (lea *LogEventAdapter) Dur(key string, d time.Duration) LogEvent {
	return lea.next(lea.event.Dur(key, d))
}

// Interface attaches an arbitrary value, masking nested sensitive fields.
func (lea *LogEventAdapter) Interface(key string, i any) LogEvent {
	if lea.filter != nil {
		i = lea.filter.FilterValue(key, i)
	}
	return lea.next(lea.event.Interface(key, i))
}

// Bytes attaches a byte-slice field.
func (lea *LogEventAdapter) Bytes(key string, val []byte) LogEvent {
	return lea.next(lea.event.Bytes(key, val))
}

func (lea *LogEventAdapter) next(ev *zerolog.Event) LogEvent {
	return &LogEventAdapter{event: ev, filter: lea.filter, level: lea.level, hook: lea.hook}
}

func (lea *LogEventAdapter) trackSeverity() {
	if lea.hook != nil && lea.level >= zerolog.WarnLevel {
		lea.hook(lea.level)
	}
}

// Info creates an info-level log event.
func (l *ZeroLogger) Info() LogEvent {
	return l.newEvent(l.zlog.Info(), zerolog.InfoLevel)
}

// Error creates an error-level log event.
func (l *ZeroLogger) Error() LogEvent {
	return l.newEvent(l.zlog.Error(), zerolog.ErrorLevel)
}

// Debug creates a debug-level log event.
func (l *ZeroLogger) Debug() LogEvent {
	return l.newEvent(l.zlog.Debug(), zerolog.DebugLevel)
}

// Warn creates a warning-level log event.
func (l *ZeroLogger) Warn() LogEvent {
	return l.newEvent(l.zlog.Warn(), zerolog.WarnLevel)
}

// Fatal creates a fatal-level log event. Sending it exits the process.
func (l *ZeroLogger) Fatal() LogEvent {
	return l.newEvent(l.zlog.Fatal(), zerolog.FatalLevel)
}

func (l *ZeroLogger) newEvent(ev *zerolog.Event, level zerolog.Level) LogEvent {
	return &LogEventAdapter{event: ev, filter: l.filter, level: level, hook: l.hook}
}
