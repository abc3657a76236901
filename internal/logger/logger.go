// Package logger is the structured logger shared by the CLI, the analysis
// run and the web server. It wraps zerolog; nothing else imports zerolog
// except the HTTP middleware, which writes access events directly.
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/koustreak/contentstats/internal/errs"
)

// Output formats.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Logger is a leveled, structured logger.
type Logger struct {
	zlog zerolog.Logger
}

// Fields are extra key/value pairs attached to one event.
type Fields map[string]interface{}

// Config selects level, format and destination.
type Config struct {
	Level  string // debug, info, warn, error
	Format string // console or json
	Output io.Writer
}

// DefaultConfig logs at info level to stderr, keeping stdout free for the
// run summary.
func DefaultConfig() *Config {
	return &Config{Level: "info", Format: FormatConsole, Output: os.Stderr}
}

// ParseLevel maps a level name to zerolog. The empty string means info.
func ParseLevel(level string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "":
		return zerolog.InfoLevel, nil
	case "debug", "info", "warn", "error":
		return zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	}
	return zerolog.NoLevel, errs.Newf(errs.ErrKindInvalidInput, "unknown log level %q", level)
}

// Validate rejects unknown levels and formats.
func (c *Config) Validate() error {
	if _, err := ParseLevel(c.Level); err != nil {
		return err
	}
	switch c.Format {
	case "", FormatConsole, FormatJSON:
		return nil
	}
	return errs.Newf(errs.ErrKindInvalidInput, "unknown log format %q", c.Format)
}

// New builds a logger. Invalid levels fall back to info; call
// Config.Validate first to reject them instead.
func New(cfg *Config) *Logger {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var zlog zerolog.Logger
	if cfg.Format == FormatJSON {
		zlog = zerolog.New(out)
	} else {
		zlog = zerolog.New(zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
			NoColor:    out != os.Stderr,
		})
	}
	return &Logger{zlog: zlog.Level(level).With().Timestamp().Logger()}
}

// Nop discards everything.
func Nop() *Logger {
	return &Logger{zlog: zerolog.Nop()}
}

// Component returns a child logger tagged with the subsystem emitting it.
func (l *Logger) Component(name string) *Logger {
	return l.With().Str("component", name).Logger()
}

// With starts a child logger with extra fields.
func (l *Logger) With() *Context {
	return &Context{ctx: l.zlog.With()}
}

// Context accumulates fields for a child logger.
type Context struct {
	ctx zerolog.Context
}

func (c *Context) Str(key, val string) *Context {
	c.ctx = c.ctx.Str(key, val)
	return c
}

func (c *Context) Int(key string, val int) *Context {
	c.ctx = c.ctx.Int(key, val)
	return c
}

func (c *Context) Bool(key string, val bool) *Context {
	c.ctx = c.ctx.Bool(key, val)
	return c
}

func (c *Context) Err(err error) *Context {
	c.ctx = c.ctx.Err(err)
	return c
}

func (c *Context) Logger() *Logger {
	return &Logger{zlog: c.ctx.Logger()}
}

func (l *Logger) Debug(msg string) { l.zlog.Debug().Msg(msg) }
func (l *Logger) Info(msg string)  { l.zlog.Info().Msg(msg) }
func (l *Logger) Warn(msg string)  { l.zlog.Warn().Msg(msg) }
func (l *Logger) Error(msg string) { l.zlog.Error().Msg(msg) }

func (l *Logger) Infof(format string, args ...interface{}) {
	l.zlog.Info().Msgf(format, args...)
}

// InfoWith logs msg with fields.
func (l *Logger) InfoWith(msg string, fields Fields) {
	l.zlog.Info().Fields(map[string]interface{}(fields)).Msg(msg)
}

// WarnWith logs a recoverable problem: the run carries on.
func (l *Logger) WarnWith(msg string, err error, fields Fields) {
	l.zlog.Warn().Err(err).Fields(map[string]interface{}(fields)).Msg(msg)
}

// ErrorWith logs a failure that ends the current operation.
func (l *Logger) ErrorWith(msg string, err error, fields Fields) {
	l.zlog.Error().Err(err).Fields(map[string]interface{}(fields)).Msg(msg)
}

// HTTPEvent starts an info event for the request logging middleware.
func (l *Logger) HTTPEvent() *zerolog.Event {
	return l.zlog.Info()
}

var global = Nop()

// SetGlobal installs the process-wide logger returned by Global.
func SetGlobal(l *Logger) {
	if l == nil {
		l = Nop()
	}
	global = l
}

// Global returns the logger installed by SetGlobal, or a no-op one.
func Global() *Logger {
	return global
}
