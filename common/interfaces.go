// Package common provides shared constants, types, and utilities
// used across the WireGuard Manager application.
package common

import "time"

// ConnectionStatus represents the session state of a tunnel.
// It is tracked in memory only and starts as StatusDisconnected.
type ConnectionStatus int

const (
	StatusDisconnected ConnectionStatus = iota
	StatusConnected
)

// String returns a human-readable status string.
func (s ConnectionStatus) String() string {
	switch s {
	case StatusDisconnected:
		return "Disconnected"
	case StatusConnected:
		return "Connected"
	default:
		return "Unknown"
	}
}

// CredentialStore defines the interface for secret storage.
// Implementations may use the system keyring, encrypted files, etc.
type CredentialStore interface {
	// Store saves the secret for a tunnel.
	Store(tunnel, secret string) error
	// Get retrieves the secret for a tunnel.
	Get(tunnel string) (string, error)
	// Delete removes the secret for a tunnel.
	Delete(tunnel string) error
	// Clear removes all stored secrets.
	Clear() error
}

// Notifier defines the interface for sending notifications.
type Notifier interface {
	// Notify sends a notification with the given title and message.
	Notify(title, message string) error
	// NotifyWithIcon sends a notification with a custom icon.
	NotifyWithIcon(title, message, icon string) error
}

// Event actions recorded by an EventRecorder.
const (
	ActionAdd        = "add"
	ActionRemove     = "remove"
	ActionConnect    = "connect"
	ActionDisconnect = "disconnect"
)

// Event is the outcome of one lifecycle operation.
type Event struct {
	ID      string
	Time    time.Time
	Tunnel  string
	Action  string
	Success bool
	Message string
}

// EventRecorder persists lifecycle events.
type EventRecorder interface {
	Record(e Event) error
}

// Logger defines the interface for structured logging.
type Logger interface {
	// Debug logs a debug message.
	Debug(msg string, args ...interface{})
	// Info logs an informational message.
	Info(msg string, args ...interface{})
	// Warn logs a warning message.
	Warn(msg string, args ...interface{})
	// Error logs an error message.
	Error(msg string, args ...interface{})
}
