package vpn

import (
	"context"
	"errors"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yllada/wg-manager/common"
)

func testTunnelConfig() *TunnelConfig {
	return &TunnelConfig{
		Address:    "10.0.0.2/24",
		PrivateKey: testPrivateKey,
		Peers: []Peer{{
			PublicKey:  testPeerKey,
			Endpoint:   "203.0.113.5:51820",
			AllowedIPs: []string{"0.0.0.0/0"},
		}},
	}
}

func TestController_BringUp(t *testing.T) {
	links := newFakeLinks()
	applier := newFakeApplier()
	c := NewController(links, applier)

	cfg := testTunnelConfig()
	cfg.MTU = 1380
	require.NoError(t, c.BringUp(context.Background(), "wg0", cfg))

	assert.True(t, links.links["wg0"])
	assert.True(t, links.up["wg0"])
	assert.Equal(t, []string{"10.0.0.2/24"}, links.addrs["wg0"])
	assert.Equal(t, 1380, links.mtu["wg0"])
	assert.Same(t, cfg, applier.applied["wg0"])
	assert.Equal(t, []string{"exists wg0", "add wg0", "mtu wg0", "addr wg0", "up wg0"}, links.calls)
}

func TestController_BringUpExistingIsNoop(t *testing.T) {
	links := newFakeLinks()
	links.links["wg0"] = true
	applier := newFakeApplier()
	c := NewController(links, applier)

	require.NoError(t, c.BringUp(context.Background(), "wg0", testTunnelConfig()))

	assert.Zero(t, links.count("add"))
	assert.Zero(t, links.count("addr"))
	assert.Empty(t, applier.applied)
}

func TestController_BringUpFailuresCleanUp(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name     string
		failOp   string
		applyErr error
		wantKind error
	}{
		{"address", "addr", nil, ErrAddressAssign},
		{"set up", "up", nil, ErrInterfaceCreate},
		{"mtu", "mtu", nil, ErrInterfaceCreate},
		{"apply", "", boom, ErrParameterApply},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			links := newFakeLinks()
			if tt.failOp != "" {
				links.failOn[tt.failOp] = boom
			}
			applier := newFakeApplier()
			applier.err = tt.applyErr
			c := NewController(links, applier)

			cfg := testTunnelConfig()
			cfg.MTU = 1420
			err := c.BringUp(context.Background(), "wg0", cfg)

			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantKind)
			assert.ErrorIs(t, err, boom)
			assert.False(t, links.links["wg0"], "interface must be deleted after a failed bring-up")
			assert.Equal(t, 1, links.count("delete"))

			var ce *ControllerError
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, "wg0", ce.Interface)
		})
	}
}

func TestController_BringUpCreateFailure(t *testing.T) {
	links := newFakeLinks()
	links.failOn["add"] = errors.New("operation not permitted")
	c := NewController(links, newFakeApplier())

	err := c.BringUp(context.Background(), "wg0", testTunnelConfig())
	assert.ErrorIs(t, err, ErrInterfaceCreate)
	assert.Zero(t, links.count("delete"))
}

func TestController_BringUpLookupFailure(t *testing.T) {
	links := newFakeLinks()
	links.failOn["exists"] = errors.New("netlink socket closed")
	c := NewController(links, newFakeApplier())

	err := c.BringUp(context.Background(), "wg0", testTunnelConfig())
	assert.ErrorIs(t, err, ErrInterfaceLookup)
	assert.Zero(t, links.count("add"))
}

func TestController_BringUpNameTooLong(t *testing.T) {
	links := newFakeLinks()
	c := NewController(links, newFakeApplier())

	err := c.BringUp(context.Background(), "a-very-long-tunnel-name", testTunnelConfig())
	assert.ErrorIs(t, err, ErrInterfaceCreate)
	assert.Zero(t, links.count("add"))
}

func TestController_BringDown(t *testing.T) {
	links := newFakeLinks()
	c := NewController(links, newFakeApplier())
	require.NoError(t, c.BringUp(context.Background(), "wg0", testTunnelConfig()))

	require.NoError(t, c.BringDown(context.Background(), "wg0"))
	assert.False(t, links.links["wg0"])

	// Absent interface is fine.
	require.NoError(t, c.BringDown(context.Background(), "wg0"))
	assert.Equal(t, 1, links.count("delete"))
}

func TestController_BringDownFailures(t *testing.T) {
	for _, op := range []string{"down", "delete"} {
		t.Run(op, func(t *testing.T) {
			links := newFakeLinks()
			links.links["wg0"] = true
			links.failOn[op] = errors.New("device busy")
			c := NewController(links, newFakeApplier())

			err := c.BringDown(context.Background(), "wg0")
			assert.ErrorIs(t, err, ErrInterfaceDelete)
			assert.True(t, links.links["wg0"])
		})
	}
}

func TestController_BringUpPermissionDenied(t *testing.T) {
	links := newFakeLinks()
	links.failOn["add"] = syscall.EPERM
	c := NewController(links, newFakeApplier())

	err := c.BringUp(context.Background(), "wg0", testTunnelConfig())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInterfaceCreate)
	assert.ErrorIs(t, err, common.ErrPermissionDenied)
	assert.ErrorIs(t, err, syscall.EPERM)

	other := controllerErr(ErrInterfaceCreate, "wg0", errors.New("file exists"))
	assert.NotErrorIs(t, other, common.ErrPermissionDenied)
}

func TestControllerError_Message(t *testing.T) {
	err := controllerErr(ErrParameterApply, "wg0", errors.New("wg set: Key is not the correct length"))
	assert.Equal(t, "wg0: applying WireGuard parameters failed: wg set: Key is not the correct length", err.Error())
}
