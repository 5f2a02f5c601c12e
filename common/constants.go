// Package common provides shared constants, types, and utilities
// used across the WireGuard Manager application.
package common

import "time"

// Application metadata.
const (
	// AppID is the unique identifier for the application.
	AppID = "com.wgmanager.app"
	// AppName is the display name of the application.
	AppName = "WireGuard Manager"
	// ConfigDirName is the name of the configuration directory.
	ConfigDirName = "wg-manager"
	// KeyringService is the service name secrets are stored under.
	KeyringService = "wg-manager"
)

// File names used by the application.
const (
	RegistryFileName    = "tunnels.yaml"
	ConfigFileName      = "config.yaml"
	CredentialsFileName = ".credentials"
	HistoryFileName     = "history.db"
	LogFileName         = "wg-manager.log"
)

// Tunnel limits.
const (
	// MaxTunnelNameLength is the longest tunnel name accepted by AddTunnel, in characters.
	MaxTunnelNameLength = 29
	// MaxInterfaceNameLength is the kernel limit (IFNAMSIZ - 1) for link names, in bytes.
	MaxInterfaceNameLength = 15
)

// Default timeouts.
const (
	// OperationTimeout bounds a single connect or disconnect issued from the CLI.
	OperationTimeout = 30 * time.Second
	// HandshakeFreshness is how recent the last handshake must be for a tunnel to count as healthy.
	HandshakeFreshness = 3 * time.Minute
	// NotificationTimeout is how long desktop notifications stay visible.
	NotificationTimeout = 5 * time.Second
)

// Parameter applier backends.
const (
	BackendNetlink = "netlink"
	BackendWgTool  = "wg-tool"
)
