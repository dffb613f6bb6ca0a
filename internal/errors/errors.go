// Package errors provides standardized error handling for minimg.
// It defines the error kinds the viewer can produce, typed errors that carry
// the context needed to log them (paths, indices, config params), and helpers
// for consistent creation, wrapping and classification.
package errors

import (
	"errors"
	"fmt"
)

// Standard errors package errors that we re-export for convenience
var (
	// Unwrap unwraps an error to access the underlying error
	Unwrap = errors.Unwrap
	// Is reports whether any error in err's chain matches target
	Is = errors.Is
	// As finds the first error in err's chain that matches target
	As = errors.As
)

// ErrorKind represents the kind of error
type ErrorKind int

// Error kinds
const (
	Unknown ErrorKind = iota
	// File error kinds
	FileNotFound
	FileAccessDenied
	InvalidPath
	NoImages
	// Config error kinds
	InvalidConfig
	ConfigNotFound
	// Loader error kinds
	EmptyPathList
	IndexOutOfRange
	DecodeFailed
	UnsupportedFormat
	ChannelClosed
	ShutdownTimeout
	InvariantViolated
)

var kindNames = map[ErrorKind]string{
	Unknown:           "unknown",
	FileNotFound:      "file_not_found",
	FileAccessDenied:  "file_access_denied",
	InvalidPath:       "invalid_path",
	NoImages:          "no_images",
	InvalidConfig:     "invalid_config",
	ConfigNotFound:    "config_not_found",
	EmptyPathList:     "empty_path_list",
	IndexOutOfRange:   "index_out_of_range",
	DecodeFailed:      "decode_failed",
	UnsupportedFormat: "unsupported_format",
	ChannelClosed:     "channel_closed",
	ShutdownTimeout:   "shutdown_timeout",
	InvariantViolated: "invariant_violated",
}

// String returns the snake_case name of the kind
func (k ErrorKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Common error constants for frequently occurring errors
var (
	ErrFileNotFound    = NewFileError("file not found", "", FileNotFound, nil)
	ErrInvalidPath     = NewFileError("invalid file path", "", InvalidPath, nil)
	ErrInvalidConfig   = NewConfigError("invalid configuration", "", InvalidConfig, nil)
	ErrEmptyPathList   = &ApplicationError{msg: "the list of images to read cannot be empty", kind: EmptyPathList}
	ErrLoaderStopped   = NewChannelError("loader is shut down", "requests", ChannelClosed, nil)
	ErrIndexOutOfRange = &ApplicationError{msg: "index out of range", kind: IndexOutOfRange}
)

// ApplicationError is the base error type for all application errors
type ApplicationError struct {
	msg  string
	err  error
	kind ErrorKind
}

// Error returns the error message
func (e *ApplicationError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.err)
	}
	return e.msg
}

// Unwrap returns the wrapped error
func (e *ApplicationError) Unwrap() error {
	return e.err
}

// Kind returns the kind of error
func (e *ApplicationError) Kind() ErrorKind {
	return e.kind
}

// FileError represents errors related to file operations
type FileError struct {
	ApplicationError
	path string
}

// NewFileError creates a new file error
func NewFileError(msg string, path string, kind ErrorKind, err error) *FileError {
	return &FileError{
		ApplicationError: ApplicationError{
			msg:  msg,
			err:  err,
			kind: kind,
		},
		path: path,
	}
}

// Error returns the file error message
func (e *FileError) Error() string {
	if e.path != "" {
		if e.err != nil {
			return fmt.Sprintf("%s: %s: %v", e.msg, e.path, e.err)
		}
		return fmt.Sprintf("%s: %s", e.msg, e.path)
	}
	return e.ApplicationError.Error()
}

// Path returns the file path associated with the error
func (e *FileError) Path() string {
	return e.path
}

// ConfigError represents errors related to configuration
type ConfigError struct {
	ApplicationError
	param string
}

// NewConfigError creates a new configuration error
func NewConfigError(msg string, param string, kind ErrorKind, err error) *ConfigError {
	return &ConfigError{
		ApplicationError: ApplicationError{
			msg:  msg,
			err:  err,
			kind: kind,
		},
		param: param,
	}
}

// Error returns the config error message
func (e *ConfigError) Error() string {
	if e.param != "" {
		if e.err != nil {
			return fmt.Sprintf("%s: %s: %v", e.msg, e.param, e.err)
		}
		return fmt.Sprintf("%s: %s", e.msg, e.param)
	}
	return e.ApplicationError.Error()
}

// Param returns the configuration parameter associated with the error
func (e *ConfigError) Param() string {
	return e.param
}

// DecodeError is a per-image failure. It is terminal for its slot and is
// reported to the viewer as a navigation result.
type DecodeError struct {
	ApplicationError
	path  string
	index int
}

// NewDecodeError creates a new decode error for the image at index
func NewDecodeError(path string, index int, kind ErrorKind, err error) *DecodeError {
	return &DecodeError{
		ApplicationError: ApplicationError{
			msg:  "cannot decode image",
			err:  err,
			kind: kind,
		},
		path:  path,
		index: index,
	}
}

// Error returns the decode error message
func (e *DecodeError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.msg, e.path, e.err)
	}
	return fmt.Sprintf("%s: %s", e.msg, e.path)
}

// Path returns the path of the image that failed to decode
func (e *DecodeError) Path() string {
	return e.path
}

// Index returns the position of the image in the path list
func (e *DecodeError) Index() int {
	return e.index
}

// Reason returns the underlying cause without the path prefix
func (e *DecodeError) Reason() string {
	if e.err != nil {
		return e.err.Error()
	}
	return e.msg
}

// ChannelError reports a broken hand-off between the loader goroutines.
// It is fatal to the loader that produced it.
type ChannelError struct {
	ApplicationError
	channel string
}

// NewChannelError creates a new channel error
func NewChannelError(msg string, channel string, kind ErrorKind, err error) *ChannelError {
	return &ChannelError{
		ApplicationError: ApplicationError{
			msg:  msg,
			err:  err,
			kind: kind,
		},
		channel: channel,
	}
}

// Error returns the channel error message
func (e *ChannelError) Error() string {
	if e.channel != "" {
		if e.err != nil {
			return fmt.Sprintf("%s: %s: %v", e.msg, e.channel, e.err)
		}
		return fmt.Sprintf("%s: %s", e.msg, e.channel)
	}
	return e.ApplicationError.Error()
}

// Channel returns the name of the channel involved
func (e *ChannelError) Channel() string {
	return e.channel
}

// InvariantError signals a broken internal contract, such as resolving a slot
// that was never claimed. It is raised with panic, never returned to callers.
type InvariantError struct {
	ApplicationError
	index int
	state string
}

// NewInvariantError creates a new invariant violation for the slot at index
func NewInvariantError(msg string, index int, state string) *InvariantError {
	return &InvariantError{
		ApplicationError: ApplicationError{
			msg:  msg,
			kind: InvariantViolated,
		},
		index: index,
		state: state,
	}
}

// Error returns the invariant error message
func (e *InvariantError) Error() string {
	return fmt.Sprintf("invariant violated: %s: index=%d state=%s", e.msg, e.index, e.state)
}

// Index returns the slot index involved
func (e *InvariantError) Index() int {
	return e.index
}

// State returns the slot state observed when the invariant broke
func (e *InvariantError) State() string {
	return e.state
}

// New creates a new error with a message
func New(msg string) error {
	return &ApplicationError{
		msg:  msg,
		kind: Unknown,
	}
}

// Newf creates a new error with a formatted message
func Newf(format string, args ...interface{}) error {
	return &ApplicationError{
		msg:  fmt.Sprintf(format, args...),
		kind: Unknown,
	}
}

// Wrap wraps an existing error with additional context. The wrapper keeps
// the kind of err.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return &ApplicationError{
		msg:  msg,
		err:  err,
		kind: KindOf(err),
	}
}

// Wrapf wraps an existing error with additional formatted context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return &ApplicationError{
		msg:  fmt.Sprintf(format, args...),
		err:  err,
		kind: KindOf(err),
	}
}

// KindOf returns the kind of the first application error in err's chain
func KindOf(err error) ErrorKind {
	var appErr interface{ Kind() ErrorKind }
	if errors.As(err, &appErr) {
		return appErr.Kind()
	}
	return Unknown
}

// IsFileNotFound checks if the error is a file not found error
func IsFileNotFound(err error) bool {
	var fileErr *FileError
	if errors.As(err, &fileErr) {
		return fileErr.Kind() == FileNotFound
	}
	return false
}

// IsNoImages checks if a scan found nothing to display
func IsNoImages(err error) bool {
	var fileErr *FileError
	if errors.As(err, &fileErr) {
		return fileErr.Kind() == NoImages
	}
	return false
}

// IsInvalidConfig checks if the error is an invalid configuration error
func IsInvalidConfig(err error) bool {
	var configErr *ConfigError
	if errors.As(err, &configErr) {
		return configErr.Kind() == InvalidConfig
	}
	return false
}

// IsEmptyPathList checks if a loader was constructed without images
func IsEmptyPathList(err error) bool {
	return KindOf(err) == EmptyPathList
}

// IsDecodeError checks if the error is a per-image decode failure
func IsDecodeError(err error) bool {
	var decodeErr *DecodeError
	return errors.As(err, &decodeErr)
}

// IsChannelError checks if the error is a fatal loader channel error
func IsChannelError(err error) bool {
	var chanErr *ChannelError
	return errors.As(err, &chanErr)
}

// IsInvariantViolation checks if the error reports a broken internal contract
func IsInvariantViolation(err error) bool {
	var invErr *InvariantError
	return errors.As(err, &invErr)
}
