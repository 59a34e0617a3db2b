//go:build linux

package epoll

import (
	"os"
	application "noisevpn/application/network/routing/tun"
)

type Wrapper struct {
}

func NewWrapper() application.Wrapper {
	return &Wrapper{}
}

func (e *Wrapper) Wrap(f *os.File) (application.Device, error) {
	return NewTUN(f)
}
