// Package common provides shared constants, types, and utilities
// used across the WireGuard Manager application.
package common

import "errors"

// Sentinel errors for tunnel operations.
// These can be checked with errors.Is() for proper error handling.
var (
	// Tunnel errors.
	ErrTunnelNotFound   = errors.New("tunnel not found")
	ErrDuplicateName    = errors.New("tunnel name already exists")
	ErrInvalidName      = errors.New("invalid tunnel name")
	ErrInvalidConfig    = errors.New("invalid configuration file")
	ErrIncompleteConfig = errors.New("incomplete tunnel configuration")
	ErrNoConfigPath     = errors.New("no configuration file associated with tunnel")

	// Registry errors.
	ErrRegistryLoad = errors.New("failed to load tunnel registry")
	ErrRegistrySave = errors.New("failed to save tunnel registry")

	// Credential errors.
	ErrCredentialsNotFound = errors.New("credentials not found")
	ErrCredentialStorage   = errors.New("failed to store credentials")
	ErrEncryption          = errors.New("encryption error")
	ErrDecryption          = errors.New("decryption error")

	// Configuration errors.
	ErrConfigLoad = errors.New("failed to load configuration")
	ErrConfigSave = errors.New("failed to save configuration")

	// Platform errors.
	ErrUnsupportedPlatform = errors.New("operation not supported on this platform")
	ErrPermissionDenied    = errors.New("permission denied")
)

// WrapError wraps an error with additional context.
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return &wrappedError{
		msg: message,
		err: err,
	}
}

type wrappedError struct {
	msg string
	err error
}

func (e *wrappedError) Error() string {
	return e.msg + ": " + e.err.Error()
}

func (e *wrappedError) Unwrap() error {
	return e.err
}
