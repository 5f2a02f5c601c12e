package vpn

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/yllada/wg-manager/common"
)

// commandRunner runs a command and returns its trimmed stderr.
type commandRunner func(ctx context.Context, name string, args ...string) (string, error)

// WgToolApplier configures devices by running `wg set`.
// Keys are handed to wg through private temporary files since wg only
// reads them from files.
type WgToolApplier struct {
	path string
	run  commandRunner
}

// NewWgToolApplier creates an applier that runs the wg binary at path.
func NewWgToolApplier(path string) *WgToolApplier {
	if path == "" {
		path = "wg"
	}
	return &WgToolApplier{path: path, run: runCommand}
}

func runCommand(ctx context.Context, name string, args ...string) (string, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = io.Discard
	cmd.Stderr = &stderr
	err := cmd.Run()
	return strings.TrimSpace(stderr.String()), err
}

// Apply runs wg set for the private key and the active peer.
func (a *WgToolApplier) Apply(ctx context.Context, iface string, cfg *TunnelConfig) error {
	peer, ok := cfg.ActivePeer()
	if !ok {
		return fmt.Errorf("no peer to apply")
	}

	dir, err := os.MkdirTemp("", "wg-manager-")
	if err != nil {
		return fmt.Errorf("create key directory: %w", err)
	}
	defer os.RemoveAll(dir)

	keyFile, err := writeSecret(dir, "private", cfg.PrivateKey)
	if err != nil {
		return err
	}
	pskFile := ""
	if peer.PresharedKey != "" {
		if pskFile, err = writeSecret(dir, "preshared", peer.PresharedKey); err != nil {
			return err
		}
	}

	args := wgSetArgs(iface, cfg.ListenPort, peer, keyFile, pskFile)
	common.LogDebug("Running %s %s", a.path, strings.Join(args, " "))

	stderr, err := a.run(ctx, a.path, args...)
	if err == nil {
		return nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if stderr == "" {
			stderr = exitErr.String()
		}
		return controllerErr(ErrParameterApply, iface, fmt.Errorf("%s set: %s", a.path, stderr))
	}
	return controllerErr(ErrParameterApply, iface, fmt.Errorf("%s set: %w", a.path, err))
}

func writeSecret(dir, name, value string) (string, error) {
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(value+"\n"), 0600); err != nil {
		return "", fmt.Errorf("write %s key: %w", name, err)
	}
	return path, nil
}

func wgSetArgs(iface string, listenPort int, peer Peer, keyFile, pskFile string) []string {
	args := []string{"set", iface, "private-key", keyFile}
	if listenPort > 0 {
		args = append(args, "listen-port", strconv.Itoa(listenPort))
	}
	args = append(args, "peer", peer.PublicKey)
	if pskFile != "" {
		args = append(args, "preshared-key", pskFile)
	}
	args = append(args, "endpoint", peer.Endpoint)
	if peer.PersistentKeepalive > 0 {
		args = append(args, "persistent-keepalive", strconv.Itoa(peer.PersistentKeepalive))
	}
	args = append(args, "allowed-ips", strings.Join(peer.AllowedIPs, ","))
	return args
}
