package vpn

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"

	"github.com/yllada/wg-manager/common"
)

func TestDeviceConfig(t *testing.T) {
	cfg := testTunnelConfig()
	cfg.ListenPort = 51821
	cfg.Peers[0].PresharedKey = testPrivateKey
	cfg.Peers[0].PersistentKeepalive = 25
	cfg.Peers[0].AllowedIPs = []string{"10.0.0.0/24", "fd00::/64"}
	cfg.Peers = append(cfg.Peers, Peer{PublicKey: testPrivateKey, Endpoint: "198.51.100.1:1"})

	conf, err := deviceConfig(cfg)
	require.NoError(t, err)

	priv, _ := wgtypes.ParseKey(testPrivateKey)
	pub, _ := wgtypes.ParseKey(testPeerKey)

	require.NotNil(t, conf.PrivateKey)
	assert.Equal(t, priv, *conf.PrivateKey)
	require.NotNil(t, conf.ListenPort)
	assert.Equal(t, 51821, *conf.ListenPort)
	assert.True(t, conf.ReplacePeers)
	require.Len(t, conf.Peers, 1, "only the first peer is applied")

	peer := conf.Peers[0]
	assert.Equal(t, pub, peer.PublicKey)
	require.NotNil(t, peer.Endpoint)
	assert.Equal(t, "203.0.113.5:51820", peer.Endpoint.String())
	assert.True(t, peer.ReplaceAllowedIPs)
	require.Len(t, peer.AllowedIPs, 2)
	assert.Equal(t, "10.0.0.0/24", peer.AllowedIPs[0].String())
	assert.Equal(t, "fd00::/64", peer.AllowedIPs[1].String())
	require.NotNil(t, peer.PresharedKey)
	require.NotNil(t, peer.PersistentKeepaliveInterval)
	assert.Equal(t, 25*time.Second, *peer.PersistentKeepaliveInterval)
}

func TestDeviceConfig_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*TunnelConfig)
	}{
		{"bad private key", func(c *TunnelConfig) { c.PrivateKey = "AAAA" }},
		{"bad public key", func(c *TunnelConfig) { c.Peers[0].PublicKey = "nope" }},
		{"bad endpoint", func(c *TunnelConfig) { c.Peers[0].Endpoint = "no-port" }},
		{"bad preshared key", func(c *TunnelConfig) { c.Peers[0].PresharedKey = "short" }},
		{"no peers", func(c *TunnelConfig) { c.Peers = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testTunnelConfig()
			tt.mutate(cfg)
			_, err := deviceConfig(cfg)
			assert.Error(t, err)
		})
	}
}

type recordedCommand struct {
	name    string
	args    []string
	keyFile string
}

func TestWgToolApplier_Args(t *testing.T) {
	var got recordedCommand
	a := NewWgToolApplier("/usr/bin/wg")
	a.run = func(_ context.Context, name string, args ...string) (string, error) {
		got = recordedCommand{name: name, args: args}
		// Secrets must exist while wg runs.
		data, err := os.ReadFile(args[3])
		require.NoError(t, err)
		got.keyFile = string(data)
		return "", nil
	}

	cfg := testTunnelConfig()
	cfg.ListenPort = 51820
	cfg.Peers[0].PersistentKeepalive = 15
	cfg.Peers[0].AllowedIPs = []string{"10.0.0.0/24", "10.1.0.0/16"}

	require.NoError(t, a.Apply(context.Background(), "wg0", cfg))

	assert.Equal(t, "/usr/bin/wg", got.name)
	assert.Equal(t, testPrivateKey+"\n", got.keyFile)
	want := []string{
		"set", "wg0", "private-key", got.args[3],
		"listen-port", "51820",
		"peer", testPeerKey,
		"endpoint", "203.0.113.5:51820",
		"persistent-keepalive", "15",
		"allowed-ips", "10.0.0.0/24,10.1.0.0/16",
	}
	assert.Equal(t, want, got.args)

	_, err := os.Stat(got.args[3])
	assert.True(t, os.IsNotExist(err), "key file must be removed after wg exits")
}

func TestWgSetArgs_PresharedKey(t *testing.T) {
	peer := Peer{PublicKey: testPeerKey, Endpoint: "h:1", AllowedIPs: []string{"0.0.0.0/0"}}
	args := wgSetArgs("wg1", 0, peer, "/k", "/psk")
	assert.Equal(t, []string{
		"set", "wg1", "private-key", "/k",
		"peer", testPeerKey,
		"preshared-key", "/psk",
		"endpoint", "h:1",
		"allowed-ips", "0.0.0.0/0",
	}, args)
}

func TestWgToolApplier_SurfacesStderr(t *testing.T) {
	a := NewWgToolApplier("wg")
	a.run = func(ctx context.Context, name string, args ...string) (string, error) {
		// A real ExitError from a command that exits non-zero.
		err := exec.CommandContext(ctx, "sh", "-c", "exit 1").Run()
		return "Key is not the correct length or format", err
	}

	err := a.Apply(context.Background(), "wg0", testTunnelConfig())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrParameterApply)
	assert.Contains(t, err.Error(), "Key is not the correct length or format")
}

func TestWgToolApplier_MissingBinary(t *testing.T) {
	a := NewWgToolApplier("/nonexistent/wg")

	err := a.Apply(context.Background(), "wg0", testTunnelConfig())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrParameterApply)
	assert.True(t, errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist))
}

func TestNewApplier(t *testing.T) {
	a, closeFn, err := NewApplier(common.BackendWgTool, "/usr/bin/wg")
	require.NoError(t, err)
	require.NoError(t, closeFn())
	assert.IsType(t, &WgToolApplier{}, a)

	_, _, err = NewApplier("userspace", "")
	assert.Error(t, err)
}
