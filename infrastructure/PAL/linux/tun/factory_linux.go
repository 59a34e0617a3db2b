//go:build linux

// Package tun opens and configures a Linux TUN interface for the engine:
// ioctl(2) TUNSETIFF creates the device node, and the `ip` command-line
// tool assigns its address, brings it up and (client side) routes traffic
// to it, mirroring the teacher's tun_server/tun_client split but collapsed
// to the handful of `ip` invocations this point-to-point engine needs — no
// NAT, no iptables, no MSS clamp, since the engine never expects the
// kernel to forward packets between interfaces on its behalf.
package tun

import (
	"fmt"
	"net/netip"
	"strconv"
	"strings"
	"sync"

	apptun "noisevpn/application/network/routing/tun"
	"noisevpn/infrastructure/PAL/exec_commander"
	"noisevpn/infrastructure/PAL/linux/ioctl"
	"noisevpn/infrastructure/PAL/linux/tun/epoll"
	"noisevpn/infrastructure/settings"
)

const tunPath = "/dev/net/tun"

// ServerFactory implements application/network/routing/tun.ServerManager
// for Linux: CreateDevice opens a TUN interface per settings.Settings and
// brings it up with the configured address, ready for the engine to read
// and write IP packets on in responder role.
type ServerFactory struct {
	commander exec_commander.Commander
	ioctl     ioctl.Contract
	wrapper   apptun.Wrapper
}

func NewServerFactory() apptun.ServerManager {
	return &ServerFactory{
		commander: exec_commander.NewExecCommander(),
		ioctl:     ioctl.NewWrapper(ioctl.NewLinuxIoctlCommander(), tunPath),
		wrapper:   epoll.NewWrapper(),
	}
}

func (f *ServerFactory) CreateDevice(s settings.Settings) (apptun.Device, error) {
	tunFile, err := f.ioctl.CreateTunInterface(s.InterfaceName)
	if err != nil {
		return nil, fmt.Errorf("tun: open %s: %w", s.InterfaceName, err)
	}

	if err := configureLink(f.commander, s.InterfaceName, netip.PrefixFrom(s.InterfaceIP, s.InterfaceSubnet.Bits()), s.MTU); err != nil {
		_ = tunFile.Close()
		return nil, fmt.Errorf("tun: configure %s: %w", s.InterfaceName, err)
	}

	return f.wrapper.Wrap(tunFile)
}

func (f *ServerFactory) DisposeDevices(s settings.Settings) error {
	if err := f.commander.Run("ip", "link", "delete", s.InterfaceName); err != nil && !isBenignCleanupError(err) {
		return fmt.Errorf("tun: delete %s: %w", s.InterfaceName, err)
	}
	return nil
}

// ClientFactory implements application/network/routing/tun.ClientManager.
// It holds the active settings.Settings and the endpoint last reported by
// SetRouteEndpoint, since CreateDevice takes no arguments and must recover
// both from prior configuration, matching the teacher's
// client.Configuration-held-in-the-manager pattern.
type ClientFactory struct {
	mu        sync.Mutex
	settings  settings.Settings
	endpoint  netip.AddrPort
	commander exec_commander.Commander
	ioctl     ioctl.Contract
	wrapper   apptun.Wrapper
}

func NewClientFactory(s settings.Settings) apptun.ClientManager {
	return &ClientFactory{
		settings:  s,
		commander: exec_commander.NewExecCommander(),
		ioctl:     ioctl.NewWrapper(ioctl.NewLinuxIoctlCommander(), tunPath),
		wrapper:   epoll.NewWrapper(),
	}
}

func (f *ClientFactory) SetRouteEndpoint(ep netip.AddrPort) {
	f.mu.Lock()
	f.endpoint = ep
	f.mu.Unlock()
}

func (f *ClientFactory) CreateDevice() (apptun.Device, error) {
	f.mu.Lock()
	s := f.settings
	ep := f.endpoint
	f.mu.Unlock()

	tunFile, err := f.ioctl.CreateTunInterface(s.InterfaceName)
	if err != nil {
		return nil, fmt.Errorf("tun: open %s: %w", s.InterfaceName, err)
	}

	addr := netip.PrefixFrom(s.InterfaceIP, s.InterfaceSubnet.Bits())
	if err := configureLink(f.commander, s.InterfaceName, addr, s.MTU); err != nil {
		_ = tunFile.Close()
		return nil, fmt.Errorf("tun: configure %s: %w", s.InterfaceName, err)
	}

	if ep.IsValid() {
		if err := routeServerThenDefault(f.commander, s.InterfaceName, ep.Addr()); err != nil {
			_ = tunFile.Close()
			return nil, fmt.Errorf("tun: route via %s: %w", s.InterfaceName, err)
		}
	}

	return f.wrapper.Wrap(tunFile)
}

func (f *ClientFactory) DisposeDevices() error {
	f.mu.Lock()
	s := f.settings
	ep := f.endpoint
	f.mu.Unlock()

	var firstErr error
	if ep.IsValid() {
		if err := f.commander.Run("ip", "route", "del", ep.Addr().String()); err != nil && !isBenignCleanupError(err) {
			firstErr = fmt.Errorf("tun: route del %s: %w", ep.Addr(), err)
		}
	}
	if err := f.commander.Run("ip", "link", "delete", s.InterfaceName); err != nil && !isBenignCleanupError(err) && firstErr == nil {
		firstErr = fmt.Errorf("tun: delete %s: %w", s.InterfaceName, err)
	}
	return firstErr
}

// configureLink assigns addr to name, sets its MTU and brings it up. Order
// matters: the address must be assigned before the interface comes up so
// routing tables relying on a freshly-up interface already see the address.
func configureLink(c exec_commander.Commander, name string, addr netip.Prefix, mtu int) error {
	if err := c.Run("ip", "addr", "add", addr.String(), "dev", name); err != nil {
		return fmt.Errorf("addr add: %w", err)
	}
	if mtu > 0 {
		if err := c.Run("ip", "link", "set", "dev", name, "mtu", strconv.Itoa(mtu)); err != nil {
			return fmt.Errorf("set mtu: %w", err)
		}
	}
	if err := c.Run("ip", "link", "set", "dev", name, "up"); err != nil {
		return fmt.Errorf("link up: %w", err)
	}
	return nil
}

// routeServerThenDefault routes traffic to the peer endpoint's address
// through whatever interface currently carries it (so the encrypted UDP
// stream itself keeps leaving via the physical interface), then routes
// everything else through the tunnel, matching the teacher's
// route-the-peer-first-or-you-route-in-circles ordering.
func routeServerThenDefault(c exec_commander.Commander, tunName string, peerAddr netip.Addr) error {
	out, err := c.Output("ip", "route", "get", peerAddr.String())
	if err != nil {
		return fmt.Errorf("route get %s: %w", peerAddr, err)
	}
	viaGateway, devInterface := parseRouteGet(string(out))
	if devInterface == "" {
		return fmt.Errorf("could not parse route to %s", peerAddr)
	}

	var routeErr error
	if viaGateway != "" {
		routeErr = c.Run("ip", "route", "add", peerAddr.String(), "via", viaGateway, "dev", devInterface)
	} else {
		routeErr = c.Run("ip", "route", "add", peerAddr.String(), "dev", devInterface)
	}
	if routeErr != nil {
		return fmt.Errorf("route add %s: %w", peerAddr, routeErr)
	}

	if err := c.Run("ip", "route", "add", "default", "dev", tunName); err != nil {
		return fmt.Errorf("route add default: %w", err)
	}
	return nil
}

func parseRouteGet(routeInfo string) (viaGateway, devInterface string) {
	fields := strings.Fields(routeInfo)
	for i, field := range fields {
		if field == "via" && i+1 < len(fields) {
			viaGateway = fields[i+1]
		}
		if field == "dev" && i+1 < len(fields) {
			devInterface = fields[i+1]
		}
	}
	return
}

func isBenignCleanupError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "cannot find device") ||
		strings.Contains(msg, "no such device") ||
		strings.Contains(msg, "does not exist") ||
		strings.Contains(msg, "not found")
}
