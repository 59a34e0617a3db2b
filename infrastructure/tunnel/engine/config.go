package engine

import (
	"bufio"
	"encoding/base64"
	"fmt"
	"io"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"noisevpn/infrastructure/cryptography/noise"
)

// Config is the engine's parsed configuration input (§6.3): one local
// identity plus a set of configured remote peers. It is the in-memory
// result of either ParseConfig or direct construction by a caller that
// already has the values (e.g. a TUI flow).
type Config struct {
	PrivateKey noise.PrivateKey
	ListenPort int
	Address    netip.Prefix
	MTU        int
	Peers      []PeerConfig
}

// PeerConfig is one [Peer] section.
type PeerConfig struct {
	PublicKey           noise.PublicKey
	PresharedKey        noise.PresharedKey
	Endpoint            netip.AddrPort // zero value: endpoint unknown until first inbound packet
	AllowedIPs          []netip.Prefix
	PersistentKeepalive time.Duration
}

// ParseConfig reads a WireGuard-conventional .conf-style text representation
// (supplemented from original_source's INI sectioning, per §6.3): an
// [Interface] section followed by zero or more [Peer] sections, each a set
// of "Key = Value" lines. Comments (leading '#' or ';') and blank lines are
// ignored, matching the reference format's own tolerance.
func ParseConfig(r io.Reader) (*Config, error) {
	cfg := &Config{MTU: 1420}
	var peer *PeerConfig
	section := ""

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			section = strings.ToLower(strings.TrimSpace(line[1 : len(line)-1]))
			if section == "peer" {
				cfg.Peers = append(cfg.Peers, PeerConfig{})
				peer = &cfg.Peers[len(cfg.Peers)-1]
			} else {
				peer = nil
			}
			continue
		}

		key, value, ok := splitKeyValue(line)
		if !ok {
			return nil, fmt.Errorf("engine: malformed config line %q", line)
		}

		var err error
		switch section {
		case "interface":
			err = applyInterfaceKey(cfg, key, value)
		case "peer":
			if peer == nil {
				return nil, fmt.Errorf("engine: %q outside any [Peer] section", key)
			}
			err = applyPeerKey(peer, key, value)
		default:
			return nil, fmt.Errorf("engine: key %q outside any recognized section", key)
		}
		if err != nil {
			return nil, err
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func splitKeyValue(line string) (key, value string, ok bool) {
	i := strings.IndexByte(line, '=')
	if i < 0 {
		return "", "", false
	}
	return strings.TrimSpace(line[:i]), strings.TrimSpace(line[i+1:]), true
}

func applyInterfaceKey(cfg *Config, key, value string) error {
	switch key {
	case "PrivateKey":
		return decodeKey32(value, (*[32]byte)(&cfg.PrivateKey))
	case "ListenPort":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("engine: ListenPort: %w", err)
		}
		cfg.ListenPort = port
	case "Address":
		p, err := netip.ParsePrefix(value)
		if err != nil {
			return fmt.Errorf("engine: Address: %w", err)
		}
		cfg.Address = p
	case "MTU":
		mtu, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("engine: MTU: %w", err)
		}
		cfg.MTU = mtu
	case "DNS", "PostUp", "PostDown", "SaveConfig":
		// Accepted and ignored: these are host-provisioning concerns,
		// explicitly an external collaborator's responsibility (§1), not
		// the engine's.
	default:
		return fmt.Errorf("engine: unknown Interface key %q", key)
	}
	return nil
}

func applyPeerKey(p *PeerConfig, key, value string) error {
	switch key {
	case "PublicKey":
		return decodeKey32(value, (*[32]byte)(&p.PublicKey))
	case "PresharedKey":
		return decodeKey32(value, (*[32]byte)(&p.PresharedKey))
	case "Endpoint":
		ap, err := parseEndpoint(value)
		if err != nil {
			return fmt.Errorf("engine: Endpoint: %w", err)
		}
		p.Endpoint = ap
	case "AllowedIPs":
		for _, part := range strings.Split(value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			prefix, err := netip.ParsePrefix(part)
			if err != nil {
				return fmt.Errorf("engine: AllowedIPs: %w", err)
			}
			p.AllowedIPs = append(p.AllowedIPs, prefix)
		}
	case "PersistentKeepalive":
		secs, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("engine: PersistentKeepalive: %w", err)
		}
		p.PersistentKeepalive = time.Duration(secs) * time.Second
	default:
		return fmt.Errorf("engine: unknown Peer key %q", key)
	}
	return nil
}

func decodeKey32(value string, out *[32]byte) error {
	raw, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return fmt.Errorf("decoding base64 key: %w", err)
	}
	if len(raw) != 32 {
		return fmt.Errorf("key must decode to 32 bytes, got %d", len(raw))
	}
	copy(out[:], raw)
	return nil
}

// parseEndpoint accepts the conventional "host:port" form. Per the engine's
// Non-goals (§1) hostnames are not resolved here; the host component must
// already be a literal IP address.
func parseEndpoint(value string) (netip.AddrPort, error) {
	host, portStr, err := splitHostPort(value)
	if err != nil {
		return netip.AddrPort{}, err
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return netip.AddrPort{}, fmt.Errorf("endpoint host %q is not a literal IP address: %w", host, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return netip.AddrPort{}, fmt.Errorf("endpoint port: %w", err)
	}
	return netip.AddrPortFrom(addr.Unmap(), uint16(port)), nil
}

func splitHostPort(value string) (host, port string, err error) {
	i := strings.LastIndexByte(value, ':')
	if i < 0 {
		return "", "", fmt.Errorf("missing port in endpoint %q", value)
	}
	return value[:i], value[i+1:], nil
}
