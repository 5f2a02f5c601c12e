package vpn

import (
	"context"
	"fmt"
	"net"
	"time"

	"golang.zx2c4.com/wireguard/wgctrl"
	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"
)

// WgctrlApplier configures devices through the WireGuard netlink API.
type WgctrlApplier struct {
	client *wgctrl.Client
}

// NewWgctrlApplier opens a wgctrl client.
func NewWgctrlApplier() (*WgctrlApplier, error) {
	client, err := wgctrl.New()
	if err != nil {
		return nil, fmt.Errorf("open wgctrl client: %w", err)
	}
	return &WgctrlApplier{client: client}, nil
}

// Close releases the wgctrl client.
func (a *WgctrlApplier) Close() error {
	return a.client.Close()
}

// Apply sets the private key and replaces all peers with the active peer.
func (a *WgctrlApplier) Apply(ctx context.Context, iface string, cfg *TunnelConfig) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	conf, err := deviceConfig(cfg)
	if err != nil {
		return err
	}
	return a.client.ConfigureDevice(iface, conf)
}

func deviceConfig(cfg *TunnelConfig) (wgtypes.Config, error) {
	priv, err := wgtypes.ParseKey(cfg.PrivateKey)
	if err != nil {
		return wgtypes.Config{}, fmt.Errorf("private key: %w", err)
	}
	peer, ok := cfg.ActivePeer()
	if !ok {
		return wgtypes.Config{}, fmt.Errorf("no peer to apply")
	}

	pc, err := peerConfig(peer)
	if err != nil {
		return wgtypes.Config{}, err
	}

	conf := wgtypes.Config{
		PrivateKey:   &priv,
		ReplacePeers: true,
		Peers:        []wgtypes.PeerConfig{pc},
	}
	if cfg.ListenPort > 0 {
		port := cfg.ListenPort
		conf.ListenPort = &port
	}
	return conf, nil
}

func peerConfig(peer Peer) (wgtypes.PeerConfig, error) {
	pub, err := wgtypes.ParseKey(peer.PublicKey)
	if err != nil {
		return wgtypes.PeerConfig{}, fmt.Errorf("peer public key: %w", err)
	}

	endpoint, err := net.ResolveUDPAddr("udp", peer.Endpoint)
	if err != nil {
		return wgtypes.PeerConfig{}, fmt.Errorf("peer endpoint %q: %w", peer.Endpoint, err)
	}

	pc := wgtypes.PeerConfig{
		PublicKey:         pub,
		Endpoint:          endpoint,
		ReplaceAllowedIPs: true,
	}

	for _, cidr := range peer.AllowedIPs {
		_, ipnet, err := net.ParseCIDR(cidr)
		if err != nil {
			return wgtypes.PeerConfig{}, fmt.Errorf("allowed ip %q: %w", cidr, err)
		}
		pc.AllowedIPs = append(pc.AllowedIPs, *ipnet)
	}

	if peer.PresharedKey != "" {
		psk, err := wgtypes.ParseKey(peer.PresharedKey)
		if err != nil {
			return wgtypes.PeerConfig{}, fmt.Errorf("preshared key: %w", err)
		}
		pc.PresharedKey = &psk
	}

	if peer.PersistentKeepalive > 0 {
		interval := time.Duration(peer.PersistentKeepalive) * time.Second
		pc.PersistentKeepaliveInterval = &interval
	}

	return pc, nil
}
