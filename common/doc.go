// Package common provides shared constants, types, utilities, and interfaces
// used throughout the WireGuard Manager application.
//
// This package holds the cross-cutting pieces every other package leans on:
//
//   - Constants: application names, file names, tunnel name limits and timeouts
//   - Errors: sentinel errors checked with errors.Is across packages
//   - Interfaces: abstractions for secret storage, notifications and event recording
//   - Logger: leveled logging backed by zap, with optional rotating file output
//   - Utils: config/data directory helpers and atomic file writes
//
// # Usage
//
//	common.LogInfo("Connecting tunnel %s", name)
//
//	if errors.Is(err, common.ErrTunnelNotFound) {
//	    // unknown tunnel
//	}
package common
