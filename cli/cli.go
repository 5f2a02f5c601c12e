// Package cli provides the command-line front-end for WireGuard Manager.
// It renders what the vpn.Manager facade reports; all lifecycle rules live
// in the vpn package.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/yllada/wg-manager/common"
	"github.com/yllada/wg-manager/vpn"
)

// HistoryReader lists recorded lifecycle events.
type HistoryReader interface {
	Recent(ctx context.Context, tunnel string, limit int) ([]common.Event, error)
}

// CLI represents the command-line interface.
type CLI struct {
	manager *vpn.Manager
	secrets common.CredentialStore
	history HistoryReader
	out     io.Writer
	now     func() time.Time
}

// New creates a CLI. secrets and history may be nil when disabled.
func New(manager *vpn.Manager, secrets common.CredentialStore, history HistoryReader, out io.Writer) *CLI {
	return &CLI{
		manager: manager,
		secrets: secrets,
		history: history,
		out:     out,
		now:     time.Now,
	}
}

// ListTunnels lists all registered tunnels.
func (c *CLI) ListTunnels() error {
	tunnels := c.manager.ListTunnels()
	if len(tunnels) == 0 {
		fmt.Fprintln(c.out, "No tunnels registered.")
		fmt.Fprintln(c.out, "Add one with: wg-manager add /path/to/wg0.conf")
		return nil
	}

	w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSTATUS\tCONFIG")
	fmt.Fprintln(w, "----\t------\t------")
	for _, t := range tunnels {
		path := t.ConfigPath
		if path == "" {
			path = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", t.Name, styleStatus(t.Status), path)
	}
	return w.Flush()
}

// AddTunnel registers a config file. An empty name is derived from the
// file name.
func (c *CLI) AddTunnel(path, name string) error {
	if name == "" {
		name = vpn.TunnelNameFromPath(path)
	}
	if err := c.manager.AddTunnel(name, path); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "%s Added tunnel %s\n", okMark(), name)
	return nil
}

// RemoveTunnel unregisters a tunnel, bringing it down first if needed.
func (c *CLI) RemoveTunnel(ctx context.Context, name string) error {
	if err := c.manager.RemoveTunnel(ctx, name); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "%s Removed tunnel %s\n", okMark(), name)
	return nil
}

// Connect brings a tunnel up.
func (c *CLI) Connect(ctx context.Context, name string) error {
	status, err := c.manager.Status(name)
	if err != nil {
		return err
	}
	if status == common.StatusConnected {
		fmt.Fprintf(c.out, "%s is already connected.\n", name)
		return nil
	}

	fmt.Fprintf(c.out, "Connecting to %s...\n", name)
	if _, err := c.manager.Connect(ctx, name); err != nil {
		return fmt.Errorf("connection failed: %w", withHint(err))
	}
	fmt.Fprintf(c.out, "%s Connected to %s\n", okMark(), name)
	return nil
}

// Disconnect brings a tunnel down.
func (c *CLI) Disconnect(ctx context.Context, name string) error {
	status, err := c.manager.Status(name)
	if err != nil {
		return err
	}
	if status != common.StatusConnected {
		fmt.Fprintf(c.out, "%s is not connected.\n", name)
		return nil
	}

	fmt.Fprintf(c.out, "Disconnecting from %s...\n", name)
	if _, err := c.manager.Disconnect(ctx, name); err != nil {
		return fmt.Errorf("failed to disconnect: %w", withHint(err))
	}
	fmt.Fprintf(c.out, "%s Disconnected from %s\n", okMark(), name)
	return nil
}

// Show prints a tunnel's configuration. The private key is never printed;
// the derived public key is shown instead.
func (c *CLI) Show(name string) error {
	cfg, err := c.manager.Describe(name)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(c.out, 0, 0, 1, ' ', 0)
	fmt.Fprintf(w, "%s\n", headerStyle.Render("[Interface] "+name))
	fmt.Fprintf(w, "  Address:\t%s\n", cfg.Address)
	switch pub, err := cfg.PublicKey(); {
	case cfg.PrivateKey == "":
		fmt.Fprintf(w, "  PublicKey:\t%s\n", "(private key not in file)")
	case err != nil:
		fmt.Fprintf(w, "  PublicKey:\t(invalid private key: %v)\n", err)
	default:
		fmt.Fprintf(w, "  PublicKey:\t%s\n", pub)
	}
	if cfg.ListenPort > 0 {
		fmt.Fprintf(w, "  ListenPort:\t%d\n", cfg.ListenPort)
	}
	if cfg.MTU > 0 {
		fmt.Fprintf(w, "  MTU:\t%d\n", cfg.MTU)
	}
	if len(cfg.DNS) > 0 {
		fmt.Fprintf(w, "  DNS:\t%s\n", strings.Join(cfg.DNS, ", "))
	}

	for i, p := range cfg.Peers {
		title := "[Peer]"
		if i == 0 {
			title += " (active)"
		}
		fmt.Fprintf(w, "\n%s\n", headerStyle.Render(title))
		fmt.Fprintf(w, "  PublicKey:\t%s\n", p.PublicKey)
		if p.PresharedKey != "" {
			fmt.Fprintf(w, "  PresharedKey:\t%s\n", "(hidden)")
		}
		if p.Endpoint != "" {
			fmt.Fprintf(w, "  Endpoint:\t%s\n", p.Endpoint)
		}
		if len(p.AllowedIPs) > 0 {
			fmt.Fprintf(w, "  AllowedIPs:\t%s\n", strings.Join(p.AllowedIPs, ", "))
		}
		if p.PersistentKeepalive > 0 {
			fmt.Fprintf(w, "  PersistentKeepalive:\t%ds\n", p.PersistentKeepalive)
		}
	}
	return w.Flush()
}

// Status shows session status and kernel health for one tunnel, or for
// all tunnels when name is empty.
func (c *CLI) Status(name string) error {
	names := []string{name}
	if name == "" {
		names = names[:0]
		for _, t := range c.manager.ListTunnels() {
			names = append(names, t.Name)
		}
		if len(names) == 0 {
			fmt.Fprintln(c.out, "No tunnels registered.")
			return nil
		}
	}

	w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TUNNEL\tSTATUS\tINTERFACE\tHEALTH\tHANDSHAKE\tRX\tTX")
	fmt.Fprintln(w, "------\t------\t---------\t------\t---------\t--\t--")
	for _, n := range names {
		h, err := c.manager.Inspect(n)
		if err != nil {
			return err
		}
		iface := "absent"
		if h.InterfacePresent {
			iface = "present"
		}
		handshake := "-"
		if !h.LastHandshake.IsZero() {
			handshake = formatDuration(c.now().Sub(h.LastHandshake)) + " ago"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			h.Name, styleStatus(h.Status), iface, styleHealth(h.Health), handshake,
			formatBytes(h.ReceiveBytes), formatBytes(h.TransmitBytes))
		if h.Err != nil {
			common.LogWarn("Inspecting %s: %v", n, h.Err)
		}
	}
	return w.Flush()
}

// SetKey stores a private key for a tunnel whose config file omits it.
func (c *CLI) SetKey(name, key string) error {
	if c.secrets == nil {
		return fmt.Errorf("secret storage is disabled (use_keyring: false)")
	}
	if _, err := c.manager.Status(name); err != nil {
		return err
	}

	key = strings.TrimSpace(key)
	probe := vpn.TunnelConfig{PrivateKey: key}
	pub, err := probe.PublicKey()
	if err != nil {
		return fmt.Errorf("invalid private key: %w", err)
	}
	if err := c.secrets.Store(name, key); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "%s Stored private key for %s (public key %s)\n", okMark(), name, pub)
	return nil
}

// DeleteKey removes a stored private key.
func (c *CLI) DeleteKey(name string) error {
	if c.secrets == nil {
		return fmt.Errorf("secret storage is disabled (use_keyring: false)")
	}
	if err := c.secrets.Delete(name); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "%s Deleted stored key for %s\n", okMark(), name)
	return nil
}

// History prints recent lifecycle events.
func (c *CLI) History(ctx context.Context, tunnel string, limit int) error {
	if c.history == nil {
		return fmt.Errorf("history is disabled (enable_history: false)")
	}
	events, err := c.history.Recent(ctx, tunnel, limit)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		fmt.Fprintln(c.out, "No events recorded.")
		return nil
	}

	w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tTUNNEL\tACTION\tRESULT\tDETAIL")
	for _, e := range events {
		result := okStyle.Render("ok")
		if !e.Success {
			result = errStyle.Render("failed")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			e.Time.Local().Format("2006-01-02 15:04:05"), e.Tunnel, e.Action, result, e.Message)
	}
	return w.Flush()
}

type hintedError struct {
	err  error
	hint string
}

func (e *hintedError) Error() string { return e.err.Error() + " (" + e.hint + ")" }

func (e *hintedError) Unwrap() error { return e.err }

// withHint adds a remedy to errors the user can fix.
func withHint(err error) error {
	if errors.Is(err, common.ErrPermissionDenied) {
		return &hintedError{err: err, hint: "run as root or grant CAP_NET_ADMIN"}
	}
	return err
}

// formatDuration formats a duration in a human-readable format.
func formatDuration(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	}
	if minutes > 0 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}

// formatBytes renders a byte count with a binary unit.
func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
