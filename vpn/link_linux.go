//go:build linux

package vpn

import (
	"errors"
	"fmt"

	"github.com/vishvananda/netlink"
)

// netlinkManager implements LinkManager over rtnetlink.
type netlinkManager struct {
	handle *netlink.Handle
}

// NewLinkManager opens a netlink handle in the current network namespace.
func NewLinkManager() (LinkManager, func() error, error) {
	h, err := netlink.NewHandle()
	if err != nil {
		return nil, nil, fmt.Errorf("open netlink handle: %w", err)
	}
	m := &netlinkManager{handle: h}
	return m, m.close, nil
}

func (m *netlinkManager) close() error {
	m.handle.Close()
	return nil
}

func (m *netlinkManager) lookup(name string) (netlink.Link, error) {
	link, err := m.handle.LinkByName(name)
	if err != nil {
		return nil, fmt.Errorf("lookup %s: %w", name, err)
	}
	return link, nil
}

func (m *netlinkManager) LinkExists(name string) (bool, error) {
	_, err := m.handle.LinkByName(name)
	if err == nil {
		return true, nil
	}
	var notFound netlink.LinkNotFoundError
	if errors.As(err, &notFound) {
		return false, nil
	}
	return false, err
}

func (m *netlinkManager) AddLink(name string) error {
	link := &netlink.GenericLink{
		LinkAttrs: netlink.LinkAttrs{Name: name},
		LinkType:  "wireguard",
	}
	return m.handle.LinkAdd(link)
}

func (m *netlinkManager) DeleteLink(name string) error {
	link, err := m.lookup(name)
	if err != nil {
		return err
	}
	return m.handle.LinkDel(link)
}

func (m *netlinkManager) SetLinkUp(name string) error {
	link, err := m.lookup(name)
	if err != nil {
		return err
	}
	return m.handle.LinkSetUp(link)
}

func (m *netlinkManager) SetLinkDown(name string) error {
	link, err := m.lookup(name)
	if err != nil {
		return err
	}
	return m.handle.LinkSetDown(link)
}

func (m *netlinkManager) AddAddress(name, cidr string) error {
	link, err := m.lookup(name)
	if err != nil {
		return err
	}
	addr, err := netlink.ParseAddr(cidr)
	if err != nil {
		return err
	}
	return m.handle.AddrAdd(link, addr)
}

func (m *netlinkManager) SetMTU(name string, mtu int) error {
	link, err := m.lookup(name)
	if err != nil {
		return err
	}
	return m.handle.LinkSetMTU(link, mtu)
}
