// Package vpn provides WireGuard tunnel lifecycle management.
// This file contains on-demand health inspection of kernel devices.
package vpn

import (
	"errors"
	"os"
	"time"

	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"

	"github.com/yllada/wg-manager/common"
)

// HealthState represents the observed health of a tunnel.
type HealthState int

const (
	HealthUnknown HealthState = iota
	HealthHealthy
	HealthDegraded
	HealthUnhealthy
)

// String returns a human-readable representation of the health state.
func (h HealthState) String() string {
	switch h {
	case HealthHealthy:
		return "Healthy"
	case HealthDegraded:
		return "Degraded"
	case HealthUnhealthy:
		return "Unhealthy"
	default:
		return "Unknown"
	}
}

// DeviceInspector reads WireGuard device state. *wgctrl.Client satisfies it.
type DeviceInspector interface {
	Device(name string) (*wgtypes.Device, error)
}

// TunnelHealth is a point-in-time view of one tunnel.
type TunnelHealth struct {
	Name             string
	Status           common.ConnectionStatus
	InterfacePresent bool
	Health           HealthState
	LastHandshake    time.Time
	ReceiveBytes     int64
	TransmitBytes    int64
	Endpoint         string
	// Err is set when the device could not be read.
	Err error
}

// inspectDevice fills the kernel side of h using inspector.
func inspectDevice(inspector DeviceInspector, name string, now time.Time, h *TunnelHealth) {
	if inspector == nil {
		h.Health = HealthUnknown
		return
	}

	dev, err := inspector.Device(name)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			h.InterfacePresent = false
			h.Health = HealthUnhealthy
			return
		}
		h.Health = HealthUnknown
		h.Err = err
		return
	}

	h.InterfacePresent = true
	if len(dev.Peers) == 0 {
		h.Health = HealthUnhealthy
		return
	}

	peer := dev.Peers[0]
	h.LastHandshake = peer.LastHandshakeTime
	h.ReceiveBytes = peer.ReceiveBytes
	h.TransmitBytes = peer.TransmitBytes
	if peer.Endpoint != nil {
		h.Endpoint = peer.Endpoint.String()
	}
	h.Health = classifyHandshake(peer.LastHandshakeTime, now)
}

// classifyHandshake maps the age of the last handshake to a health state.
func classifyHandshake(last, now time.Time) HealthState {
	if last.IsZero() {
		return HealthUnhealthy
	}
	if now.Sub(last) <= common.HandshakeFreshness {
		return HealthHealthy
	}
	return HealthDegraded
}
