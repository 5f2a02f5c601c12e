package vpn

import (
	"errors"
	"net"
	"os"
	"testing"
	"time"

	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"
)

func TestHealthState_String(t *testing.T) {
	tests := []struct {
		state    HealthState
		expected string
	}{
		{HealthHealthy, "Healthy"},
		{HealthDegraded, "Degraded"},
		{HealthUnhealthy, "Unhealthy"},
		{HealthUnknown, "Unknown"},
		{HealthState(99), "Unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.state.String(); got != tt.expected {
				t.Errorf("HealthState.String() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestClassifyHandshake(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		last time.Time
		want HealthState
	}{
		{"never", time.Time{}, HealthUnhealthy},
		{"fresh", now.Add(-30 * time.Second), HealthHealthy},
		{"at limit", now.Add(-3 * time.Minute), HealthHealthy},
		{"stale", now.Add(-10 * time.Minute), HealthDegraded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyHandshake(tt.last, now); got != tt.want {
				t.Errorf("classifyHandshake() = %v, want %v", got, tt.want)
			}
		})
	}
}

type fakeInspector struct {
	devices map[string]*wgtypes.Device
	err     error
}

func (f *fakeInspector) Device(name string) (*wgtypes.Device, error) {
	if f.err != nil {
		return nil, f.err
	}
	dev, ok := f.devices[name]
	if !ok {
		return nil, os.ErrNotExist
	}
	return dev, nil
}

func TestInspectDevice(t *testing.T) {
	now := time.Now()
	inspector := &fakeInspector{devices: map[string]*wgtypes.Device{
		"wg0": {
			Name: "wg0",
			Peers: []wgtypes.Peer{{
				Endpoint:          &net.UDPAddr{IP: net.IPv4(203, 0, 113, 5), Port: 51820},
				LastHandshakeTime: now.Add(-time.Minute),
				ReceiveBytes:      2048,
				TransmitBytes:     1024,
			}},
		},
		"wg1": {Name: "wg1"},
	}}

	var h TunnelHealth
	inspectDevice(inspector, "wg0", now, &h)
	if !h.InterfacePresent || h.Health != HealthHealthy {
		t.Errorf("wg0: present=%v health=%v, want true Healthy", h.InterfacePresent, h.Health)
	}
	if h.ReceiveBytes != 2048 || h.TransmitBytes != 1024 {
		t.Errorf("wg0: rx=%d tx=%d, want 2048 1024", h.ReceiveBytes, h.TransmitBytes)
	}
	if h.Endpoint != "203.0.113.5:51820" {
		t.Errorf("wg0: endpoint = %q", h.Endpoint)
	}

	h = TunnelHealth{}
	inspectDevice(inspector, "wg1", now, &h)
	if !h.InterfacePresent || h.Health != HealthUnhealthy {
		t.Errorf("wg1 without peers: present=%v health=%v, want true Unhealthy", h.InterfacePresent, h.Health)
	}

	h = TunnelHealth{}
	inspectDevice(inspector, "wg9", now, &h)
	if h.InterfacePresent || h.Health != HealthUnhealthy {
		t.Errorf("missing device: present=%v health=%v, want false Unhealthy", h.InterfacePresent, h.Health)
	}

	h = TunnelHealth{}
	inspectDevice(&fakeInspector{err: errors.New("permission denied")}, "wg0", now, &h)
	if h.Health != HealthUnknown || h.Err == nil {
		t.Errorf("inspector error: health=%v err=%v, want Unknown and an error", h.Health, h.Err)
	}

	h = TunnelHealth{}
	inspectDevice(nil, "wg0", now, &h)
	if h.Health != HealthUnknown {
		t.Errorf("nil inspector: health=%v, want Unknown", h.Health)
	}
}
