package vpn

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/yllada/wg-manager/common"
)

// Failure kinds reported by the Controller. Match them with errors.Is.
var (
	ErrInterfaceLookup = errors.New("interface lookup failed")
	ErrInterfaceCreate = errors.New("interface creation failed")
	ErrAddressAssign   = errors.New("address assignment failed")
	ErrParameterApply  = errors.New("applying WireGuard parameters failed")
	ErrInterfaceDelete = errors.New("interface deletion failed")
)

// ControllerError is a failed kernel or tool operation on one interface.
type ControllerError struct {
	Kind      error
	Interface string
	Err       error
}

func (e *ControllerError) Error() string {
	msg := e.Interface + ": " + e.Kind.Error()
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes Kind and Err. Failures caused by EPERM or EACCES also
// match common.ErrPermissionDenied.
func (e *ControllerError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	if errors.Is(e.Err, os.ErrPermission) {
		return []error{e.Kind, common.ErrPermissionDenied, e.Err}
	}
	return []error{e.Kind, e.Err}
}

func controllerErr(kind error, iface string, err error) error {
	return &ControllerError{Kind: kind, Interface: iface, Err: err}
}

// LinkManager manipulates kernel network links.
type LinkManager interface {
	LinkExists(name string) (bool, error)
	// AddLink creates a link of kind wireguard.
	AddLink(name string) error
	DeleteLink(name string) error
	SetLinkUp(name string) error
	SetLinkDown(name string) error
	// AddAddress assigns an address in CIDR form.
	AddAddress(name, cidr string) error
	SetMTU(name string, mtu int) error
}

// ParameterApplier pushes keys and peer parameters onto an existing
// WireGuard interface.
type ParameterApplier interface {
	Apply(ctx context.Context, iface string, cfg *TunnelConfig) error
}

// Controller brings kernel WireGuard interfaces up and down.
// Its methods are synchronous and must not be called concurrently for the
// same interface; the Manager serializes them.
type Controller struct {
	links   LinkManager
	applier ParameterApplier
}

// NewController creates a Controller.
func NewController(links LinkManager, applier ParameterApplier) *Controller {
	return &Controller{links: links, applier: applier}
}

// Exists reports whether the interface is present in the kernel.
func (c *Controller) Exists(name string) (bool, error) {
	ok, err := c.links.LinkExists(name)
	if err != nil {
		return false, controllerErr(ErrInterfaceLookup, name, err)
	}
	return ok, nil
}

// BringUp materializes the interface for cfg. An interface that already
// exists is left untouched. On any failure after creation the interface is
// deleted again before the error is returned.
func (c *Controller) BringUp(ctx context.Context, name string, cfg *TunnelConfig) (err error) {
	exists, err := c.Exists(name)
	if err != nil {
		return err
	}
	if exists {
		common.LogInfo("Interface %s already exists, leaving it as is", name)
		return nil
	}

	if len(name) > common.MaxInterfaceNameLength {
		return controllerErr(ErrInterfaceCreate, name,
			fmt.Errorf("interface name too long (max %d bytes)", common.MaxInterfaceNameLength))
	}

	common.LogDebug("Creating interface %s", name)
	if err := c.links.AddLink(name); err != nil {
		return controllerErr(ErrInterfaceCreate, name, err)
	}
	defer func() {
		if err == nil {
			return
		}
		common.LogWarn("cleanup: undoing: create interface %s", name)
		if delErr := c.links.DeleteLink(name); delErr != nil {
			common.LogError("cleanup: deleting interface %s failed: %v", name, delErr)
		}
	}()

	if cfg.MTU > 0 {
		if err := c.links.SetMTU(name, cfg.MTU); err != nil {
			return controllerErr(ErrInterfaceCreate, name, fmt.Errorf("set mtu %d: %w", cfg.MTU, err))
		}
	}

	if err := c.links.AddAddress(name, cfg.Address); err != nil {
		return controllerErr(ErrAddressAssign, name, fmt.Errorf("%s: %w", cfg.Address, err))
	}

	if err := c.links.SetLinkUp(name); err != nil {
		return controllerErr(ErrInterfaceCreate, name, fmt.Errorf("set up: %w", err))
	}

	if err := c.applier.Apply(ctx, name, cfg); err != nil {
		var ce *ControllerError
		if errors.As(err, &ce) {
			return err
		}
		return controllerErr(ErrParameterApply, name, err)
	}

	common.LogInfo("Interface %s is up with address %s", name, cfg.Address)
	return nil
}

// BringDown removes the interface. A missing interface is not an error.
func (c *Controller) BringDown(ctx context.Context, name string) error {
	exists, err := c.Exists(name)
	if err != nil {
		return err
	}
	if !exists {
		common.LogDebug("Interface %s is already gone", name)
		return nil
	}

	if err := c.links.SetLinkDown(name); err != nil {
		return controllerErr(ErrInterfaceDelete, name, fmt.Errorf("set down: %w", err))
	}
	if err := c.links.DeleteLink(name); err != nil {
		return controllerErr(ErrInterfaceDelete, name, err)
	}

	common.LogInfo("Interface %s removed", name)
	return nil
}
