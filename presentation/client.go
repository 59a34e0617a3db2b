package presentation

import (
	"context"
	"fmt"
	"net"
	"os"
	"time"

	"noisevpn/infrastructure/PAL/linux/tun"
	"noisevpn/infrastructure/logging"
	"noisevpn/infrastructure/settings"
	"noisevpn/infrastructure/tunnel/engine"
)

const defaultClientConfigPath = "/etc/noisevpn/client.conf"

// StartClient loads the initiator-role configuration, opens a UDP socket
// and a TUN interface routed at the configured peer, and runs the engine
// until ctx is cancelled.
func StartClient(ctx context.Context) {
	if err := runClient(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "client: %v\n", err)
		os.Exit(1)
	}
}

func runClient(ctx context.Context) error {
	path, err := resolveConfigPath(defaultClientConfigPath)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(path)
	if err != nil {
		return err
	}
	if !cfg.Address.IsValid() {
		return fmt.Errorf("client config: Interface.Address is required")
	}
	if len(cfg.Peers) != 1 {
		return fmt.Errorf("client config: exactly one [Peer] section is required, got %d", len(cfg.Peers))
	}
	peer := cfg.Peers[0]
	if !peer.Endpoint.IsValid() {
		return fmt.Errorf("client config: peer Endpoint is required")
	}

	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: 0})
	if err != nil {
		return fmt.Errorf("listen udp: %w", err)
	}

	tunSettings := settings.Settings{
		InterfaceName:   defaultTunName,
		InterfaceSubnet: cfg.Address,
		InterfaceIP:     cfg.Address.Addr(),
		MTU:             settings.ResolveMTU(cfg.MTU),
		Protocol:        settings.UDP,
	}

	factory := tun.NewClientFactory(tunSettings)
	factory.SetRouteEndpoint(peer.Endpoint)
	dev, err := factory.CreateDevice()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("create tun device: %w", err)
	}

	eng, err := engine.NewClient(cfg, conn, dev, logging.NewLogLogger())
	if err != nil {
		_ = conn.Close()
		_ = dev.Close()
		return fmt.Errorf("create engine: %w", err)
	}

	fmt.Printf("connecting to %s, tun %s (%s)\n", peer.Endpoint, tunSettings.InterfaceName, cfg.Address)
	startTrafficStats(ctx, 10*time.Second)
	runErr := eng.Run(ctx)
	if err := factory.DisposeDevices(); err != nil {
		fmt.Fprintf(os.Stderr, "client: tun cleanup: %v\n", err)
	}
	return runErr
}
