// Package logx provides the logging abstraction shared by every component
// of the emulator. The interface is intentionally small so that callers
// can plug in their own logger without depending on a specific backend.
package logx

import apexlog "github.com/apex/log"

// Logger is the logger used throughout this module.
type Logger interface {
	// Debugf formats and emits a debug message.
	Debugf(format string, v ...any)

	// Debug emits a debug message.
	Debug(message string)

	// Infof formats and emits an informational message.
	Infof(format string, v ...any)

	// Info emits an informational message.
	Info(message string)

	// Warnf formats and emits a warning message.
	Warnf(format string, v ...any)

	// Warn emits a warning message.
	Warn(message string)
}

// NullLogger is a [Logger] that discards everything. Useful in tests.
type NullLogger struct{}

var _ Logger = &NullLogger{}

func (nl *NullLogger) Debug(message string)          {}
func (nl *NullLogger) Debugf(format string, v ...any) {}
func (nl *NullLogger) Info(message string)            {}
func (nl *NullLogger) Infof(format string, v ...any)  {}
func (nl *NullLogger) Warn(message string)            {}
func (nl *NullLogger) Warnf(format string, v ...any)  {}

// Apex adapts the process-wide github.com/apex/log logger to [Logger].
type Apex struct {
	// Entry is the OPTIONAL apex/log entry to use. When nil, the package
	// level apex/log functions (and therefore apex/log's global handler
	// and level) are used.
	Entry *apexlog.Entry
}

var _ Logger = &Apex{}

func (a *Apex) Debug(message string) {
	if a.Entry != nil {
		a.Entry.Debug(message)
		return
	}
	apexlog.Debug(message)
}

func (a *Apex) Debugf(format string, v ...any) {
	if a.Entry != nil {
		a.Entry.Debugf(format, v...)
		return
	}
	apexlog.Debugf(format, v...)
}

func (a *Apex) Info(message string) {
	if a.Entry != nil {
		a.Entry.Info(message)
		return
	}
	apexlog.Info(message)
}

func (a *Apex) Infof(format string, v ...any) {
	if a.Entry != nil {
		a.Entry.Infof(format, v...)
		return
	}
	apexlog.Infof(format, v...)
}

func (a *Apex) Warn(message string) {
	if a.Entry != nil {
		a.Entry.Warn(message)
		return
	}
	apexlog.Warn(message)
}

func (a *Apex) Warnf(format string, v ...any) {
	if a.Entry != nil {
		a.Entry.Warnf(format, v...)
		return
	}
	apexlog.Warnf(format, v...)
}

// WithFields returns an [Apex] logger carrying the given fields, the way
// call sites that need per-link context (e.g. tx/rx node names) should do.
func WithFields(fields apexlog.Fields) *Apex {
	return &Apex{Entry: apexlog.WithFields(fields)}
}
