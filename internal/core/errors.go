package core

import (
	"errors"

	goerrors "github.com/agilira/go-errors"
)

// Error codes
const (
	// Module lifecycle (1000-1099)
	ErrCodeModuleNotFound      = "MODBOT_1001"
	ErrCodeModuleAlreadyLoaded = "MODBOT_1002"
	ErrCodeModuleLoad          = "MODBOT_1003"
	ErrCodeModuleInit          = "MODBOT_1004"
	ErrCodeModuleNotLoaded     = "MODBOT_1005"
	ErrCodeModuleProtected     = "MODBOT_1006"

	// Dispatch (1100-1199)
	ErrCodeInsufficientArguments = "MODBOT_1101"
	ErrCodePermissionDenied      = "MODBOT_1102"
	ErrCodeCommandExecution      = "MODBOT_1103"

	// Configuration (1200-1299)
	ErrCodeConfigIO   = "MODBOT_1201"
	ErrCodeConfigPath = "MODBOT_1202"
)

func NewModuleNotFoundError(name string) *goerrors.Error {
	return goerrors.New(ErrCodeModuleNotFound, "Module not found").
		WithUserMessage("Module `" + name + "` could not be found").
		WithContext("module", name).
		WithSeverity("warning")
}

func NewModuleAlreadyLoadedError(name string) *goerrors.Error {
	return goerrors.New(ErrCodeModuleAlreadyLoaded, "Module already loaded").
		WithUserMessage("Module `" + name + "` is already loaded").
		WithContext("module", name).
		WithSeverity("warning")
}

func NewModuleLoadError(name string, cause error) *goerrors.Error {
	return goerrors.Wrap(cause, ErrCodeModuleLoad, "Module load failed").
		WithUserMessage("Module `" + name + "` failed to load: " + cause.Error()).
		WithContext("module", name).
		WithSeverity("error")
}

func NewModuleInitError(name string, cause error) *goerrors.Error {
	return goerrors.Wrap(cause, ErrCodeModuleInit, "Module init failed").
		WithUserMessage("Module `" + name + "` failed to initialize: " + cause.Error()).
		WithContext("module", name).
		WithSeverity("error")
}

func NewModuleNotLoadedError(name string) *goerrors.Error {
	return goerrors.New(ErrCodeModuleNotLoaded, "Module not loaded").
		WithUserMessage("Module `" + name + "` is not loaded").
		WithContext("module", name).
		WithSeverity("warning")
}

func NewModuleProtectedError(name string) *goerrors.Error {
	return goerrors.New(ErrCodeModuleProtected, "Module is protected").
		WithUserMessage("Module `" + name + "` cannot be unloaded").
		WithContext("module", name).
		WithSeverity("warning")
}

func NewInsufficientArgumentsError(cmd *Command, prefix string) *goerrors.Error {
	return goerrors.New(ErrCodeInsufficientArguments, "Insufficient arguments").
		WithUserMessage("Not enough arguments. Use `" + cmd.Usage(prefix) + "`: " + cmd.Description).
		WithContext("command", cmd.Name).
		WithSeverity("info")
}

func NewPermissionDeniedError(command string) *goerrors.Error {
	return goerrors.New(ErrCodePermissionDenied, "Permission denied").
		WithUserMessage("You do not have permission to use this command.").
		WithContext("command", command).
		WithSeverity("info")
}

func NewCommandExecutionError(command string, cause error) *goerrors.Error {
	return goerrors.Wrap(cause, ErrCodeCommandExecution, "Command execution failed").
		WithUserMessage("Error executing command `" + command + "`: " + Describe(cause)).
		WithContext("command", command).
		WithSeverity("error")
}

func NewConfigIOError(path string, cause error) *goerrors.Error {
	return goerrors.Wrap(cause, ErrCodeConfigIO, "Config I/O failed").
		WithUserMessage("Configuration could not be read or written").
		WithContext("path", path).
		WithSeverity("error")
}

func NewConfigPathError(path string, cause error) *goerrors.Error {
	return goerrors.Wrap(cause, ErrCodeConfigPath, "Invalid config path").
		WithUserMessage("Invalid configuration path `" + path + "`").
		WithContext("path", path).
		WithSeverity("warning")
}

// IsCode reports whether err or anything it wraps carries code.
func IsCode(err error, code goerrors.ErrorCode) bool {
	if err == nil {
		return false
	}
	if coded, ok := err.(*goerrors.Error); ok && coded.Code == code {
		return true
	}
	switch u := err.(type) {
	case interface{ Unwrap() []error }:
		for _, inner := range u.Unwrap() {
			if IsCode(inner, code) {
				return true
			}
		}
	case interface{ Unwrap() error }:
		return IsCode(u.Unwrap(), code)
	}
	return false
}

// Describe returns the text shown to chat users for err.
func Describe(err error) string {
	var coded *goerrors.Error
	if errors.As(err, &coded) {
		if msg := coded.UserMessage(); msg != "" {
			return msg
		}
	}
	return err.Error()
}
