package vpn

import (
	"encoding/base64"
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"

	"golang.org/x/crypto/curve25519"
	"gopkg.in/ini.v1"

	"github.com/yllada/wg-manager/common"
)

const (
	sectionInterface = "interface"
	sectionPeer      = "peer"
)

// TunnelConfig is the parsed content of a WireGuard configuration file.
// It is produced on demand and never cached.
type TunnelConfig struct {
	// Address is the interface address in CIDR form, e.g. 10.0.0.2/24.
	Address string
	// PrivateKey is the base64 interface private key. It may be empty when
	// the key is held in the secret store.
	PrivateKey string
	ListenPort int
	MTU        int
	DNS        []string
	// Peers are kept in file order. Only the first one is applied on connect.
	Peers []Peer
}

// Peer is one [Peer] section.
type Peer struct {
	PublicKey           string
	PresharedKey        string
	Endpoint            string
	AllowedIPs          []string
	PersistentKeepalive int
}

// ParseError reports a configuration file that could not be read or
// does not describe a usable tunnel.
type ParseError struct {
	Path   string
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	msg := "parse " + e.Path + ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ParseError) Unwrap() error { return e.Err }

// Is makes every ParseError match common.ErrInvalidConfig.
func (e *ParseError) Is(target error) bool {
	return target == common.ErrInvalidConfig
}

// ParseFile reads and parses the configuration file at path.
func ParseFile(path string) (*TunnelConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ParseError{Path: path, Reason: "cannot read file", Err: err}
	}
	return Parse(data, path)
}

// Parse parses configuration text. path is used in error messages only.
//
// Section and key names are matched case-insensitively. Lines outside the
// [Interface] and [Peer] sections, blank lines, comments and lines without
// a "=" are ignored. List keys (DNS, AllowedIPs) may repeat and accumulate;
// any other key set twice in one section is an error.
func Parse(data []byte, path string) (*TunnelConfig, error) {
	file, err := ini.LoadSources(ini.LoadOptions{
		AllowNonUniqueSections:  true,
		AllowShadows:            true,
		Insensitive:             true,
		KeyValueDelimiters:      "=",
		SkipUnrecognizableLines: true,
		IgnoreContinuation:      true,
	}, data)
	if err != nil {
		return nil, &ParseError{Path: path, Reason: "malformed file", Err: err}
	}

	var ifaces, peers []*ini.Section
	for _, section := range file.Sections() {
		switch section.Name() {
		case sectionInterface:
			ifaces = append(ifaces, section)
		case sectionPeer:
			peers = append(peers, section)
		}
	}

	switch len(ifaces) {
	case 0:
		return nil, &ParseError{Path: path, Reason: "no [Interface] section"}
	case 1:
	default:
		return nil, &ParseError{Path: path, Reason: fmt.Sprintf("%d [Interface] sections, want exactly one", len(ifaces))}
	}

	cfg := &TunnelConfig{}
	if err := parseInterface(ifaces[0], cfg); err != nil {
		return nil, &ParseError{Path: path, Reason: "[Interface]", Err: err}
	}

	for i, section := range peers {
		peer, err := parsePeer(section)
		if err != nil {
			return nil, &ParseError{Path: path, Reason: fmt.Sprintf("[Peer] #%d", i+1), Err: err}
		}
		cfg.Peers = append(cfg.Peers, peer)
	}

	return cfg, nil
}

func parseInterface(section *ini.Section, cfg *TunnelConfig) error {
	if err := singleValued(section, "Address", "PrivateKey", "ListenPort", "MTU"); err != nil {
		return err
	}
	address := value(section, "address")
	if address == "" {
		return fmt.Errorf("Address is required")
	}
	if _, err := netip.ParsePrefix(address); err != nil {
		return fmt.Errorf("Address %q is not a CIDR: %w", address, err)
	}
	cfg.Address = address
	cfg.PrivateKey = value(section, "privatekey")

	var err error
	if cfg.ListenPort, err = intValue(section, "listenport", 0, 65535); err != nil {
		return err
	}
	if cfg.MTU, err = intValue(section, "mtu", 0, 65535); err != nil {
		return err
	}
	cfg.DNS = listValue(section, "dns")
	return nil
}

func parsePeer(section *ini.Section) (Peer, error) {
	if err := singleValued(section, "PublicKey", "PresharedKey", "Endpoint", "PersistentKeepalive"); err != nil {
		return Peer{}, err
	}
	peer := Peer{
		PublicKey:    value(section, "publickey"),
		PresharedKey: value(section, "presharedkey"),
		Endpoint:     value(section, "endpoint"),
	}
	if peer.PublicKey == "" {
		return Peer{}, fmt.Errorf("PublicKey is required")
	}

	for _, cidr := range listValue(section, "allowedips") {
		if _, err := netip.ParsePrefix(cidr); err != nil {
			return Peer{}, fmt.Errorf("AllowedIPs entry %q is not a CIDR: %w", cidr, err)
		}
		peer.AllowedIPs = append(peer.AllowedIPs, cidr)
	}

	var err error
	if peer.PersistentKeepalive, err = keepaliveValue(section); err != nil {
		return Peer{}, err
	}
	return peer, nil
}

func value(section *ini.Section, key string) string {
	if !section.HasKey(key) {
		return ""
	}
	return strings.TrimSpace(section.Key(key).String())
}

// listValue joins every occurrence of key, each split on commas.
func listValue(section *ini.Section, key string) []string {
	if !section.HasKey(key) {
		return nil
	}
	var out []string
	for _, raw := range section.Key(key).ValueWithShadows() {
		for _, item := range strings.Split(raw, ",") {
			if item = strings.TrimSpace(item); item != "" {
				out = append(out, item)
			}
		}
	}
	return out
}

func singleValued(section *ini.Section, keys ...string) error {
	for _, key := range keys {
		if section.HasKey(key) && len(section.Key(key).ValueWithShadows()) > 1 {
			return fmt.Errorf("%s is set more than once", key)
		}
	}
	return nil
}

func intValue(section *ini.Section, key string, min, max int) (int, error) {
	raw := value(section, key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < min || n > max {
		return 0, fmt.Errorf("%s %q must be a number between %d and %d", key, raw, min, max)
	}
	return n, nil
}

// keepaliveValue accepts "off" like wg(8) does.
func keepaliveValue(section *ini.Section) (int, error) {
	if strings.EqualFold(value(section, "persistentkeepalive"), "off") {
		return 0, nil
	}
	return intValue(section, "persistentkeepalive", 0, 65535)
}

// ActivePeer returns the peer applied on connect.
func (c *TunnelConfig) ActivePeer() (Peer, bool) {
	if len(c.Peers) == 0 {
		return Peer{}, false
	}
	return c.Peers[0], true
}

// ValidateForConnect checks the fields a connect attempt needs.
func (c *TunnelConfig) ValidateForConnect() error {
	if c.PrivateKey == "" {
		return fmt.Errorf("%w: PrivateKey is missing", common.ErrIncompleteConfig)
	}
	peer, ok := c.ActivePeer()
	if !ok {
		return fmt.Errorf("%w: no [Peer] section", common.ErrIncompleteConfig)
	}
	if peer.Endpoint == "" {
		return fmt.Errorf("%w: peer %s has no Endpoint", common.ErrIncompleteConfig, peer.PublicKey)
	}
	return nil
}

// PublicKey derives the interface public key from PrivateKey.
func (c *TunnelConfig) PublicKey() (string, error) {
	priv, err := decodeKey(c.PrivateKey)
	if err != nil {
		return "", fmt.Errorf("PrivateKey: %w", err)
	}
	pub, err := curve25519.X25519(priv, curve25519.Basepoint)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(pub), nil
}

func decodeKey(s string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid base64: %w", err)
	}
	if len(key) != curve25519.ScalarSize {
		return nil, fmt.Errorf("key must be %d bytes, got %d", curve25519.ScalarSize, len(key))
	}
	return key, nil
}
