package commands

import (
	"errors"

	"github.com/dfryer1193/selfblog/blog/domain"
)

// Process exit codes.
const (
	ExitOK       = 0
	ExitError    = 1
	ExitConfig   = 2
	ExitConflict = 3
	ExitNotFound = 4
	ExitTemplate = 5
	ExitIO       = 6
)

// ConfigError means the configuration could not be loaded or is invalid.
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string {
	return "configuration: " + e.Err.Error()
}

func (e *ConfigError) Unwrap() error { return e.Err }

// ExitCode maps a command error to the process exit code.
func ExitCode(err error) int {
	var cfgErr *ConfigError
	switch {
	case err == nil:
		return ExitOK
	case errors.As(err, &cfgErr):
		return ExitConfig
	case domain.IsConflict(err):
		return ExitConflict
	case domain.IsNotFound(err):
		return ExitNotFound
	case domain.IsTemplate(err):
		return ExitTemplate
	case domain.IsIO(err):
		return ExitIO
	default:
		return ExitError
	}
}
