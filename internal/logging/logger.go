// Package logging provides the minimal structured logging interface used
// across apilens. It is deliberately tiny so callers can adapt log/slog,
// zap, or zerolog without pulling a logging dependency into the engine.
package logging

import "log/slog"

// Logger accepts variadic key-value attribute pairs, following the log/slog
// convention: keys are strings, values anything the backend can serialize.
type Logger interface {
	Debug(msg string, attrs ...any)
	Info(msg string, attrs ...any)
	Warn(msg string, attrs ...any)
	Error(msg string, attrs ...any)

	// With returns a Logger with the given attributes prepended to every log.
	With(attrs ...any) Logger
}

// Nop discards all output. It is the default when no logger is configured.
type Nop struct{}

func (Nop) Debug(string, ...any) {}
func (Nop) Info(string, ...any)  {}
func (Nop) Warn(string, ...any)  {}
func (Nop) Error(string, ...any) {}

func (n Nop) With(...any) Logger { return n }

var _ Logger = Nop{}

// Slog adapts a *slog.Logger to the Logger interface.
type Slog struct {
	logger *slog.Logger
}

// NewSlog wraps the given slog logger; nil falls back to slog.Default().
func NewSlog(logger *slog.Logger) *Slog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Slog{logger: logger}
}

func (s *Slog) Debug(msg string, attrs ...any) { s.logger.Debug(msg, attrs...) }
func (s *Slog) Info(msg string, attrs ...any)  { s.logger.Info(msg, attrs...) }
func (s *Slog) Warn(msg string, attrs ...any)  { s.logger.Warn(msg, attrs...) }
func (s *Slog) Error(msg string, attrs ...any) { s.logger.Error(msg, attrs...) }

func (s *Slog) With(attrs ...any) Logger { return &Slog{logger: s.logger.With(attrs...)} }

var _ Logger = (*Slog)(nil)

// OrNop returns l, or a Nop logger when l is nil.
func OrNop(l Logger) Logger {
	if l == nil {
		return Nop{}
	}
	return l
}
