package cli

import (
	"errors"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"

	"golang.zx2c4.com/wireguard/wgctrl"

	"github.com/yllada/wg-manager/common"
	"github.com/yllada/wg-manager/config"
	"github.com/yllada/wg-manager/history"
	"github.com/yllada/wg-manager/keyring"
	"github.com/yllada/wg-manager/notify"
	"github.com/yllada/wg-manager/vpn"
)

// App holds everything one CLI invocation needs.
type App struct {
	Config  *config.Config
	Manager *vpn.Manager
	CLI     *CLI

	closers []func() error
}

// Setup loads the configuration and wires the Manager with the backends
// it selects. Interfaces already present in the kernel are adopted as
// Connected.
func Setup(configPath string, out io.Writer) (*App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if cfg.LogToFile {
		if err := common.GetLogger().EnableFileLogging(common.GetLogDir()); err != nil {
			common.LogWarn("File logging disabled: %v", err)
		}
	}

	app := &App{Config: cfg}
	ready := false
	defer func() {
		if !ready {
			_ = app.Close()
		}
	}()

	if cfg.Backend == common.BackendWgTool {
		if err := checkWgInstalled(cfg.WgPath); err != nil {
			return nil, err
		}
	}

	links, closeLinks, err := vpn.NewLinkManager()
	if err != nil {
		return nil, err
	}
	app.closers = append(app.closers, closeLinks)

	applier, closeApplier, err := vpn.NewApplier(cfg.Backend, cfg.WgPath)
	if err != nil {
		return nil, err
	}
	app.closers = append(app.closers, closeApplier)

	opts := vpn.Options{
		Registry:   vpn.NewRegistry(cfg.RegistryFile),
		Controller: vpn.NewController(links, applier),
	}

	if client, err := wgctrl.New(); err != nil {
		common.LogDebug("Device inspection unavailable: %v", err)
	} else {
		opts.Inspector = client
		app.closers = append(app.closers, client.Close)
	}

	var secrets common.CredentialStore
	if cfg.UseKeyring {
		store, err := keyring.New(common.KeyringService, filepath.Dir(cfg.Path()))
		if err != nil {
			return nil, err
		}
		secrets = store
		opts.Credentials = store
	}

	var events HistoryReader
	if cfg.EnableHistory {
		store, err := history.Open(cfg.HistoryFile)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, store.Close)
		events = store
		opts.Events = store
	}

	if cfg.ShowNotifications {
		opts.Notifier = notify.NewDBusNotifier(common.AppName)
	}

	manager, err := vpn.NewManager(opts)
	if err != nil {
		return nil, err
	}
	app.Manager = manager

	adopted, err := manager.AdoptInterfaces()
	if err != nil {
		common.LogWarn("Could not check for existing interfaces: %v", err)
	}
	for _, name := range adopted {
		common.LogDebug("Interface %s already up, marked Connected", name)
	}

	app.CLI = New(manager, secrets, events, out)
	ready = true
	return app, nil
}

// Close persists the registry and releases every backend.
func (a *App) Close() error {
	var errs []error
	if a.Manager != nil {
		errs = append(errs, a.Manager.Close())
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}

// checkWgInstalled verifies the wg tool can be found.
func checkWgInstalled(path string) error {
	if _, err := exec.LookPath(path); err != nil {
		return fmt.Errorf("wg tool %q not found: install wireguard-tools or set wg_path: %w", path, err)
	}
	return nil
}
