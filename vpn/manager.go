// Package vpn provides WireGuard tunnel lifecycle management.
// This file contains the Manager type, the single entry point front-ends
// use to add, remove, connect and disconnect tunnels.
package vpn

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/yllada/wg-manager/common"
)

// TunnelStatus is one row of ListTunnels.
type TunnelStatus struct {
	Name       string
	ConfigPath string
	Status     common.ConnectionStatus
}

// Options wires a Manager. Registry and Controller are required; the rest
// are optional.
type Options struct {
	Registry    *Registry
	Controller  *Controller
	Credentials common.CredentialStore
	Notifier    common.Notifier
	Events      common.EventRecorder
	Inspector   DeviceInspector
}

// Manager orchestrates tunnel lifecycles.
// All operations are serialized by a single lock. Connection status lives
// in memory only: every tunnel starts Disconnected when the Manager is
// created, whatever the kernel state.
type Manager struct {
	mu          sync.Mutex
	registry    *Registry
	controller  *Controller
	credentials common.CredentialStore
	notifier    common.Notifier
	events      common.EventRecorder
	inspector   DeviceInspector
	states      map[string]common.ConnectionStatus
	now         func() time.Time
}

// NewManager creates a Manager and restores the registry from disk.
func NewManager(opts Options) (*Manager, error) {
	if opts.Registry == nil || opts.Controller == nil {
		return nil, errors.New("vpn: Registry and Controller are required")
	}
	if err := opts.Registry.Restore(); err != nil {
		return nil, err
	}

	return &Manager{
		registry:    opts.Registry,
		controller:  opts.Controller,
		credentials: opts.Credentials,
		notifier:    opts.Notifier,
		events:      opts.Events,
		inspector:   opts.Inspector,
		states:      make(map[string]common.ConnectionStatus),
		now:         time.Now,
	}, nil
}

// ValidateTunnelName checks the name rules applied by AddTunnel.
func ValidateTunnelName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name is empty", common.ErrInvalidName)
	}
	if n := utf8.RuneCountInString(name); n > common.MaxTunnelNameLength {
		return fmt.Errorf("%w: %q is %d characters, max %d", common.ErrInvalidName, name, n, common.MaxTunnelNameLength)
	}
	return nil
}

// TunnelNameFromPath derives a tunnel name from a config file path:
// the base name without its extension.
func TunnelNameFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ListTunnels returns all registered tunnels in registration order.
func (m *Manager) ListTunnels() []TunnelStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries := m.registry.List()
	out := make([]TunnelStatus, 0, len(entries))
	for _, e := range entries {
		out = append(out, TunnelStatus{Name: e.Name, ConfigPath: e.ConfigPath, Status: m.states[e.Name]})
	}
	return out
}

// Status returns the connection status of a tunnel.
func (m *Manager) Status(name string) (common.ConnectionStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.registry.Get(name); err != nil {
		return common.StatusDisconnected, err
	}
	return m.states[name], nil
}

// AddTunnel registers the config file at path under name and persists the
// registry. The file must parse. Nothing changes if any step fails.
func (m *Manager) AddTunnel(name, path string) (err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	opID := uuid.NewString()
	defer func() { m.finish(opID, name, common.ActionAdd, err) }()

	if err := ValidateTunnelName(name); err != nil {
		return err
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", path, err)
	}
	if _, err := ParseFile(abs); err != nil {
		return err
	}

	before := m.registry.snapshot()
	if err := m.registry.Add(name, abs); err != nil {
		return err
	}
	if err := m.registry.Persist(); err != nil {
		m.registry.restoreSnapshot(before)
		return err
	}

	m.states[name] = common.StatusDisconnected
	return nil
}

// RemoveTunnel unregisters a tunnel. A connected tunnel is brought down
// first; if that fails the entry is still removed and the teardown error
// is returned.
func (m *Manager) RemoveTunnel(ctx context.Context, name string) (err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	opID := uuid.NewString()
	defer func() { m.finish(opID, name, common.ActionRemove, err) }()

	if _, err := m.registry.Get(name); err != nil {
		return err
	}

	var downErr error
	if m.states[name] == common.StatusConnected {
		common.LogInfo("[%s] Tunnel %s is connected, bringing it down before removal", opID, name)
		if downErr = m.controller.BringDown(ctx, name); downErr != nil {
			downErr = fmt.Errorf("tunnel %s removed but its interface could not be torn down: %w", name, downErr)
		}
	}

	before := m.registry.snapshot()
	if err := m.registry.Remove(name); err != nil {
		return errors.Join(err, downErr)
	}
	if err := m.registry.Persist(); err != nil {
		m.registry.restoreSnapshot(before)
		return errors.Join(err, downErr)
	}
	delete(m.states, name)

	if m.credentials != nil {
		if err := m.credentials.Delete(name); err != nil && !errors.Is(err, common.ErrCredentialsNotFound) {
			common.LogWarn("[%s] Could not delete stored key for %s: %v", opID, name, err)
		}
	}

	return downErr
}

// Connect brings a tunnel up. Connecting a connected tunnel is a no-op.
// On failure the status stays Disconnected and no interface is left behind.
func (m *Manager) Connect(ctx context.Context, name string) (status common.ConnectionStatus, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, err := m.registry.Get(name)
	if err != nil {
		return common.StatusDisconnected, err
	}
	if m.states[name] == common.StatusConnected {
		common.LogDebug("Tunnel %s is already connected", name)
		return common.StatusConnected, nil
	}

	opID := uuid.NewString()
	defer func() {
		m.finish(opID, name, common.ActionConnect, err)
		m.notifyOutcome(name, "Connected", err)
	}()

	common.LogInfo("[%s] Connecting tunnel %s", opID, name)
	cfg, err := m.loadConfig(opID, entry)
	if err != nil {
		return common.StatusDisconnected, err
	}
	if err := cfg.ValidateForConnect(); err != nil {
		return common.StatusDisconnected, fmt.Errorf("tunnel %s: %w", name, err)
	}
	if err := m.controller.BringUp(ctx, name, cfg); err != nil {
		return common.StatusDisconnected, err
	}

	m.states[name] = common.StatusConnected
	return common.StatusConnected, nil
}

// Disconnect brings a tunnel down. Disconnecting a disconnected tunnel is
// a no-op. On failure the status stays Connected.
func (m *Manager) Disconnect(ctx context.Context, name string) (status common.ConnectionStatus, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.registry.Get(name); err != nil {
		return common.StatusDisconnected, err
	}
	if m.states[name] != common.StatusConnected {
		common.LogDebug("Tunnel %s is already disconnected", name)
		return common.StatusDisconnected, nil
	}

	opID := uuid.NewString()
	defer func() {
		m.finish(opID, name, common.ActionDisconnect, err)
		m.notifyOutcome(name, "Disconnected", err)
	}()

	common.LogInfo("[%s] Disconnecting tunnel %s", opID, name)
	if err := m.controller.BringDown(ctx, name); err != nil {
		return common.StatusConnected, err
	}

	m.states[name] = common.StatusDisconnected
	return common.StatusDisconnected, nil
}

// AdoptInterfaces marks every registered tunnel whose kernel interface
// exists as Connected and returns their names. It is never called
// implicitly; front-ends that do not outlive a single operation use it to
// pick up interfaces brought up by an earlier run.
func (m *Manager) AdoptInterfaces() ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var adopted []string
	var errs []error
	for _, e := range m.registry.List() {
		if m.states[e.Name] == common.StatusConnected {
			continue
		}
		exists, err := m.controller.Exists(e.Name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if exists {
			m.states[e.Name] = common.StatusConnected
			adopted = append(adopted, e.Name)
		}
	}
	return adopted, errors.Join(errs...)
}

// Describe parses a tunnel's config file for display.
func (m *Manager) Describe(name string) (*TunnelConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, err := m.registry.Get(name)
	if err != nil {
		return nil, err
	}
	if entry.ConfigPath == "" {
		return nil, fmt.Errorf("%w: %s", common.ErrNoConfigPath, name)
	}
	return ParseFile(entry.ConfigPath)
}

// Inspect reports the session status and kernel device health of a tunnel.
func (m *Manager) Inspect(name string) (TunnelHealth, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.registry.Get(name); err != nil {
		return TunnelHealth{}, err
	}

	h := TunnelHealth{Name: name, Status: m.states[name]}
	inspectDevice(m.inspector, name, m.now(), &h)
	return h, nil
}

// Close writes the registry back to disk. It does not touch interfaces.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.registry.Persist()
}

func (m *Manager) loadConfig(opID string, entry TunnelEntry) (*TunnelConfig, error) {
	if entry.ConfigPath == "" {
		return nil, fmt.Errorf("%w: %s", common.ErrNoConfigPath, entry.Name)
	}
	cfg, err := ParseFile(entry.ConfigPath)
	if err != nil {
		return nil, err
	}

	if cfg.PrivateKey == "" && m.credentials != nil {
		key, err := m.credentials.Get(entry.Name)
		switch {
		case err == nil:
			common.LogDebug("[%s] Using stored private key for %s", opID, entry.Name)
			cfg.PrivateKey = key
		case errors.Is(err, common.ErrCredentialsNotFound):
		default:
			common.LogWarn("[%s] Reading stored key for %s failed: %v", opID, entry.Name, err)
		}
	}
	return cfg, nil
}

func (m *Manager) finish(opID, tunnel, action string, err error) {
	ev := common.Event{
		ID:      opID,
		Time:    m.now(),
		Tunnel:  tunnel,
		Action:  action,
		Success: err == nil,
	}
	if err != nil {
		ev.Message = err.Error()
		common.LogError("[%s] %s %s failed: %v", opID, action, tunnel, err)
	} else {
		common.LogInfo("[%s] %s %s done", opID, action, tunnel)
	}

	if m.events == nil {
		return
	}
	if rerr := m.events.Record(ev); rerr != nil {
		common.LogWarn("[%s] Recording %s event failed: %v", opID, action, rerr)
	}
}

func (m *Manager) notifyOutcome(name, verb string, err error) {
	if m.notifier == nil {
		return
	}
	var nerr error
	if err != nil {
		nerr = m.notifier.NotifyWithIcon(common.AppName, fmt.Sprintf("%s: %v", name, err), "dialog-error")
	} else {
		nerr = m.notifier.Notify(common.AppName, fmt.Sprintf("%s %s", verb, name))
	}
	if nerr != nil {
		common.LogWarn("Notification failed: %v", nerr)
	}
}
