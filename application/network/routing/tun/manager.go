package tun

import (
	"net/netip"
	"os"

	basetun "noisevpn/application/network/tun"
	"noisevpn/infrastructure/settings"
)

// Device is this package's name for the same minimal Read/Write/Close
// handle defined once in application/network/tun, reused here so the
// platform TUN managers can depend on a Device without a second interface
// definition to keep in sync.
type Device = basetun.Device

// Wrapper turns a raw TUN file descriptor into a Device, letting platform
// factories hand off the epoll-driven read/write loop without depending on
// the epoll package's concrete type.
type Wrapper interface {
	Wrap(f *os.File) (Device, error)
}

type ClientManager interface {
	CreateDevice() (Device, error)
	DisposeDevices() error
	SetRouteEndpoint(netip.AddrPort)
}

type ServerManager interface {
	CreateDevice(settings settings.Settings) (Device, error)
	DisposeDevices(settings settings.Settings) error
}
