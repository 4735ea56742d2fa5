// Package errs defines the three error kinds projblend reports and the
// process exit codes they map to.
//
// None of these errors are recoverable mid-run: the blending pipeline is a
// batch job, so every stage returns the first error it hits and the command
// exits with the code for its kind.
package errs

import (
	"context"
	"errors"
	"fmt"
)

// Exit codes returned by the projblend command.
const (
	ExitOK          = 0
	ExitUsage       = 1
	ExitConfig      = 2
	ExitIO          = 3
	ExitData        = 4
	ExitInterrupted = 130
)

// ConfigError reports a missing or malformed configuration key.
type ConfigError struct {
	// Key is the offending configuration key, if known.
	Key string
	Err error
}

// Config wraps err as a ConfigError for key.
func Config(key string, err error) error {
	return &ConfigError{Key: key, Err: err}
}

// Configf builds a ConfigError for key from a format string.
func Configf(key, format string, args ...any) error {
	return &ConfigError{Key: key, Err: fmt.Errorf(format, args...)}
}

func (e *ConfigError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("config: %v", e.Err)
	}
	return fmt.Sprintf("config: %s: %v", e.Key, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// IOError reports a raster or config file that could not be read or written.
type IOError struct {
	Op   string
	Path string
	Err  error
}

// IO wraps err as an IOError for the operation op on path.
func IO(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &IOError{Op: op, Path: path, Err: err}
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// NoIndex marks a DataError that does not concern a single projector or viewport.
const NoIndex = -1

// DataError reports input data the pipeline cannot blend, such as a
// projector whose samples do not split into the expected viewport count.
type DataError struct {
	Projector int
	Viewport  int
	Err       error
}

// Dataf builds a DataError for the given projector and viewport.
// Use NoIndex for either when it does not apply.
func Dataf(projector, viewport int, format string, args ...any) error {
	return &DataError{Projector: projector, Viewport: viewport, Err: fmt.Errorf(format, args...)}
}

func (e *DataError) Error() string {
	switch {
	case e.Projector != NoIndex && e.Viewport != NoIndex:
		return fmt.Sprintf("projector %d viewport %d: %v", e.Projector, e.Viewport, e.Err)
	case e.Projector != NoIndex:
		return fmt.Sprintf("projector %d: %v", e.Projector, e.Err)
	default:
		return e.Err.Error()
	}
}

func (e *DataError) Unwrap() error { return e.Err }

// ExitCode maps err to the process exit code. A nil error maps to ExitOK and
// errors of unknown kind (including argument errors) map to ExitUsage.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	var (
		ce *ConfigError
		ie *IOError
		de *DataError
	)
	switch {
	case errors.Is(err, context.Canceled):
		return ExitInterrupted
	case errors.As(err, &ce):
		return ExitConfig
	case errors.As(err, &ie):
		return ExitIO
	case errors.As(err, &de):
		return ExitData
	default:
		return ExitUsage
	}
}
