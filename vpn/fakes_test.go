package vpn

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/yllada/wg-manager/common"
)

// Keys generated for tests only.
const (
	testPrivateKey = "yAnz5TF+lXXJte14tji3zlMNq+hd2rYUIgJBgB3fBmk="
	testPeerKey    = "xTIBA5rboUvnH4htodjb6e697QjLERt1NAB4mZqp8Dg="
)

const validConfig = `[Interface]
Address = 10.0.0.2/24
PrivateKey = ` + testPrivateKey + `

[Peer]
PublicKey = ` + testPeerKey + `
Endpoint = 203.0.113.5:51820
AllowedIPs = 0.0.0.0/0
`

func writeConfig(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

// fakeLinks is an in-memory LinkManager. failOn makes the named operation fail.
type fakeLinks struct {
	links  map[string]bool
	addrs  map[string][]string
	mtu    map[string]int
	up     map[string]bool
	calls  []string
	failOn map[string]error
}

func newFakeLinks() *fakeLinks {
	return &fakeLinks{
		links:  make(map[string]bool),
		addrs:  make(map[string][]string),
		mtu:    make(map[string]int),
		up:     make(map[string]bool),
		failOn: make(map[string]error),
	}
}

func (f *fakeLinks) record(op, name string) error {
	f.calls = append(f.calls, op+" "+name)
	return f.failOn[op]
}

func (f *fakeLinks) LinkExists(name string) (bool, error) {
	if err := f.record("exists", name); err != nil {
		return false, err
	}
	return f.links[name], nil
}

func (f *fakeLinks) AddLink(name string) error {
	if err := f.record("add", name); err != nil {
		return err
	}
	if f.links[name] {
		return fmt.Errorf("file exists")
	}
	f.links[name] = true
	return nil
}

func (f *fakeLinks) DeleteLink(name string) error {
	if err := f.record("delete", name); err != nil {
		return err
	}
	if !f.links[name] {
		return fmt.Errorf("link not found")
	}
	delete(f.links, name)
	delete(f.addrs, name)
	delete(f.up, name)
	return nil
}

func (f *fakeLinks) SetLinkUp(name string) error {
	if err := f.record("up", name); err != nil {
		return err
	}
	f.up[name] = true
	return nil
}

func (f *fakeLinks) SetLinkDown(name string) error {
	if err := f.record("down", name); err != nil {
		return err
	}
	f.up[name] = false
	return nil
}

func (f *fakeLinks) AddAddress(name, cidr string) error {
	if err := f.record("addr", name); err != nil {
		return err
	}
	f.addrs[name] = append(f.addrs[name], cidr)
	return nil
}

func (f *fakeLinks) SetMTU(name string, mtu int) error {
	if err := f.record("mtu", name); err != nil {
		return err
	}
	f.mtu[name] = mtu
	return nil
}

func (f *fakeLinks) count(op string) int {
	n := 0
	for _, c := range f.calls {
		if strings.HasPrefix(c, op+" ") {
			n++
		}
	}
	return n
}

type fakeApplier struct {
	applied map[string]*TunnelConfig
	err     error
}

func newFakeApplier() *fakeApplier {
	return &fakeApplier{applied: make(map[string]*TunnelConfig)}
}

func (f *fakeApplier) Apply(_ context.Context, iface string, cfg *TunnelConfig) error {
	if f.err != nil {
		return f.err
	}
	f.applied[iface] = cfg
	return nil
}

type fakeCredentials struct {
	secrets map[string]string
	deleted []string
}

func (f *fakeCredentials) Store(tunnel, secret string) error {
	f.secrets[tunnel] = secret
	return nil
}

func (f *fakeCredentials) Get(tunnel string) (string, error) {
	s, ok := f.secrets[tunnel]
	if !ok {
		return "", common.ErrCredentialsNotFound
	}
	return s, nil
}

func (f *fakeCredentials) Delete(tunnel string) error {
	f.deleted = append(f.deleted, tunnel)
	if _, ok := f.secrets[tunnel]; !ok {
		return common.ErrCredentialsNotFound
	}
	delete(f.secrets, tunnel)
	return nil
}

func (f *fakeCredentials) Clear() error {
	f.secrets = map[string]string{}
	return nil
}

type fakeEvents struct {
	events []common.Event
}

func (f *fakeEvents) Record(e common.Event) error {
	f.events = append(f.events, e)
	return nil
}

type fakeNotifier struct {
	messages []string
}

func (f *fakeNotifier) Notify(title, message string) error {
	f.messages = append(f.messages, message)
	return nil
}

func (f *fakeNotifier) NotifyWithIcon(title, message, icon string) error {
	f.messages = append(f.messages, icon+": "+message)
	return nil
}
