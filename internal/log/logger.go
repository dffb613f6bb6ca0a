// Package log is minimg's structured logger. It wraps logrus with the small
// API the rest of the code uses: package-level helpers bound to a global
// logger, fields built with F, and error-aware fields via LogWithError.
package log

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"minimg/internal/errors"
)

const timestampFormat = "2006-01-02 15:04:05.000"

var (
	isDebug atomic.Bool
	logger  = NewLogger()
)

// Field is a single key/value pair attached to a log line
type Field struct {
	Key   string
	Value interface{}
}

// F builds a Field
func F(key string, value interface{}) Field {
	return Field{Key: key, Value: value}
}

// Logger writes leveled, structured lines through logrus
type Logger struct {
	entry *logrus.Entry
	file  *os.File
}

// Option configures a Logger
type Option func(*options)

type options struct {
	out   io.Writer
	json  bool
	file  string
	level logrus.Level
}

// WithOutput sets the primary writer (stdout by default)
func WithOutput(w io.Writer) Option {
	return func(o *options) { o.out = w }
}

// WithJSON switches to one JSON object per line
func WithJSON() Option {
	return func(o *options) { o.json = true }
}

// WithFile additionally appends every line to the file at path
func WithFile(path string) Option {
	return func(o *options) { o.file = path }
}

// WithLevel sets the minimum level ("debug", "info", "warn", "error")
func WithLevel(level string) Option {
	return func(o *options) {
		if lvl, err := logrus.ParseLevel(level); err == nil {
			o.level = lvl
		}
	}
}

// NewLogger creates a logger. Debug lines are additionally gated by SetDebug.
func NewLogger(opts ...Option) *Logger {
	o := &options{out: os.Stdout, level: logrus.DebugLevel}
	for _, opt := range opts {
		opt(o)
	}

	base := logrus.New()
	base.SetLevel(o.level)
	if o.json {
		base.SetFormatter(&jsonFormatter{})
	} else {
		base.SetFormatter(&textFormatter{})
	}

	l := &Logger{}
	out := o.out
	if o.file != "" {
		f, err := os.OpenFile(o.file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "log: cannot open %s: %v\n", o.file, err)
		} else {
			l.file = f
			out = io.MultiWriter(o.out, f)
		}
	}
	base.SetOutput(out)
	l.entry = logrus.NewEntry(base)
	return l
}

// Configure replaces the global logger
func Configure(opts ...Option) {
	logger = NewLogger(opts...)
}

// Close releases the log file of the global logger, if any
func Close() error {
	if logger.file != nil {
		return logger.file.Close()
	}
	return nil
}

// SetDebug toggles debug output for every logger
func SetDebug(debug bool) {
	isDebug.Store(debug)
}

// IsDebug reports whether debug output is enabled
func IsDebug() bool {
	return isDebug.Load()
}

// With returns a logger that adds fields to every line
func (l *Logger) With(fields ...Field) *Logger {
	data := make(logrus.Fields, len(fields))
	for _, f := range fields {
		data[f.Key] = f.Value
	}
	return &Logger{entry: l.entry.WithFields(data), file: l.file}
}

// WithContext attaches ctx to the underlying entry
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if ctx == nil {
		return l
	}
	return &Logger{entry: l.entry.WithContext(ctx), file: l.file}
}

// WithError adds error fields, see LogWithError
func (l *Logger) WithError(err error) *Logger {
	return l.With(errorFields(err)...)
}

// Debug logs msg at debug level
func (l *Logger) Debug(msg string) {
	l.log(2, logrus.DebugLevel, msg)
}

// Debugf logs a formatted message at debug level
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.log(2, logrus.DebugLevel, fmt.Sprintf(format, args...))
}

// Info logs msg at info level
func (l *Logger) Info(msg string) {
	l.log(2, logrus.InfoLevel, msg)
}

// Infof logs a formatted message at info level
func (l *Logger) Infof(format string, args ...interface{}) {
	l.log(2, logrus.InfoLevel, fmt.Sprintf(format, args...))
}

// Warn logs msg at warn level
func (l *Logger) Warn(msg string) {
	l.log(2, logrus.WarnLevel, msg)
}

// Warnf logs a formatted message at warn level
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.log(2, logrus.WarnLevel, fmt.Sprintf(format, args...))
}

// Error logs msg at error level
func (l *Logger) Error(msg string) {
	l.log(2, logrus.ErrorLevel, msg)
}

// Errorf logs a formatted message at error level
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.log(2, logrus.ErrorLevel, fmt.Sprintf(format, args...))
}

// ErrorWithStack logs err at error level with the caller's stack attached
func (l *Logger) ErrorWithStack(err error, msg string) {
	buf := make([]byte, 4096)
	n := runtime.Stack(buf, false)
	l.WithError(err).With(F("stack", string(buf[:n]))).log(2, logrus.ErrorLevel, msg)
}

func (l *Logger) log(skip int, level logrus.Level, msg string) {
	if level == logrus.DebugLevel && !isDebug.Load() {
		return
	}
	entry := l.entry
	if _, file, line, ok := runtime.Caller(skip); ok {
		entry = entry.WithField("caller", fmt.Sprintf("%s:%d", filepath.Base(file), line))
	}
	entry.Log(level, msg)
}

// LogWithFields returns the global logger with fields attached
func LogWithFields(fields ...Field) *Logger {
	return logger.With(fields...)
}

// LogWithError returns the global logger with error fields attached: the
// message, its kind, and kind-specific context such as the file path.
func LogWithError(err error) *Logger {
	return logger.WithError(err)
}

// LogError logs err at error level on the global logger
func LogError(err error, msg string) {
	logger.WithError(err).log(2, logrus.ErrorLevel, msg)
}

func errorFields(err error) []Field {
	if err == nil {
		return []Field{F("error", "<nil>")}
	}
	fields := []Field{F("error", err.Error()), F("error_kind", int(errors.KindOf(err)))}

	var fileErr *errors.FileError
	if errors.As(err, &fileErr) && fileErr.Path() != "" {
		fields = append(fields, F("path", fileErr.Path()))
	}
	var configErr *errors.ConfigError
	if errors.As(err, &configErr) && configErr.Param() != "" {
		fields = append(fields, F("param", configErr.Param()))
	}
	var decodeErr *errors.DecodeError
	if errors.As(err, &decodeErr) {
		fields = append(fields, F("path", decodeErr.Path()), F("index", decodeErr.Index()))
	}
	var chanErr *errors.ChannelError
	if errors.As(err, &chanErr) && chanErr.Channel() != "" {
		fields = append(fields, F("channel", chanErr.Channel()))
	}
	return fields
}

func Debug(msg string, args ...interface{}) {
	if len(args) > 0 {
		msg = fmt.Sprintf(msg+": %v", args...)
	}
	logger.log(2, logrus.DebugLevel, msg)
}

func Debugf(format string, args ...interface{}) {
	logger.log(2, logrus.DebugLevel, fmt.Sprintf(format, args...))
}

func Info(format string, args ...interface{}) {
	logger.log(2, logrus.InfoLevel, fmt.Sprintf(format, args...))
}

func Infof(format string, args ...interface{}) {
	logger.log(2, logrus.InfoLevel, fmt.Sprintf(format, args...))
}

func Warn(msg string, args ...interface{}) {
	if len(args) > 0 {
		msg = fmt.Sprintf(msg+": %v", args...)
	}
	logger.log(2, logrus.WarnLevel, msg)
}

func Warnf(format string, args ...interface{}) {
	logger.log(2, logrus.WarnLevel, fmt.Sprintf(format, args...))
}

func Error(msg string, args ...interface{}) {
	if len(args) > 0 {
		msg = fmt.Sprintf(msg+": %v", args...)
	}
	logger.log(2, logrus.ErrorLevel, msg)
}

func Errorf(format string, args ...interface{}) {
	logger.log(2, logrus.ErrorLevel, fmt.Sprintf(format, args...))
}

// textFormatter renders "[timestamp] LEVEL: message key=value ..." with keys sorted
type textFormatter struct{}

func (f *textFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	var b bytes.Buffer
	fmt.Fprintf(&b, "[%s] %s: %s", entry.Time.Format(timestampFormat), levelName(entry.Level), entry.Message)

	keys := make([]string, 0, len(entry.Data))
	for k := range entry.Data {
		if k == "caller" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, entry.Data[k])
	}
	if caller, ok := entry.Data["caller"]; ok {
		fmt.Fprintf(&b, " caller=%v", caller)
	}
	b.WriteByte('\n')
	return b.Bytes(), nil
}

type jsonFormatter struct{}

func (f *jsonFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	data := make(map[string]interface{}, len(entry.Data)+3)
	for k, v := range entry.Data {
		if err, ok := v.(error); ok {
			v = err.Error()
		}
		data[k] = v
	}
	data["timestamp"] = entry.Time.Format(time.RFC3339Nano)
	data["level"] = levelName(entry.Level)
	data["message"] = entry.Message

	out, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal log entry: %w", err)
	}
	return append(out, '\n'), nil
}

func levelName(level logrus.Level) string {
	if level == logrus.WarnLevel {
		return "WARN"
	}
	return strings.ToUpper(level.String())
}
