// Package vpn provides WireGuard tunnel lifecycle management for WireGuard Manager.
//
// This package implements the core functionality:
//
//   - Config parsing: reading WireGuard INI files into TunnelConfig
//   - Tunnel registry: the persisted, ordered list of known tunnels
//   - Interface control: creating, configuring and deleting kernel WireGuard links
//   - Health inspection: reading handshake and transfer data from the kernel
//
// # Architecture
//
// The package is organized around four types:
//
//   - Manager: the facade front-ends call; tracks per-tunnel connection status
//   - Registry: name to config path mapping with explicit Persist and Restore
//   - Controller: BringUp and BringDown over a LinkManager and a ParameterApplier
//   - TunnelConfig: the parsed content of one configuration file
//
// # Connection Flow
//
//  1. The front-end calls Manager.Connect with a tunnel name
//  2. Manager re-reads the tunnel's config file and validates it
//  3. Controller creates the link, assigns the address, sets it up and
//     applies keys and the first peer
//  4. Any failure deletes the half-built link and leaves the tunnel Disconnected
//
// # Backends
//
// Links are managed over rtnetlink (Linux only). WireGuard parameters are
// applied either through the wgctrl netlink API or by running `wg set`.
//
// # Thread Safety
//
// Manager is safe for concurrent use; it serializes every operation with a
// single lock. Registry and Controller are not, and are owned by the Manager.
package vpn
