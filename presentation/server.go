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

const (
	defaultServerConfigPath = "/etc/noisevpn/server.conf"
	defaultTunName          = "noisevpn0"
)

// StartServer loads the responder-role configuration, opens a UDP socket
// and a TUN interface, and runs the engine until the process is interrupted
// (main cancels the context it eventually passes down on SIGINT/SIGTERM).
func StartServer(ctx context.Context) {
	if err := runServer(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		os.Exit(1)
	}
}

func runServer(ctx context.Context) error {
	path, err := resolveConfigPath(defaultServerConfigPath)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(path)
	if err != nil {
		return err
	}
	if !cfg.Address.IsValid() {
		return fmt.Errorf("server config: Interface.Address is required")
	}

	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: cfg.ListenPort})
	if err != nil {
		return fmt.Errorf("listen udp :%d: %w", cfg.ListenPort, err)
	}

	tunSettings := settings.Settings{
		InterfaceName:   defaultTunName,
		InterfaceSubnet: cfg.Address,
		InterfaceIP:     cfg.Address.Addr(),
		Port:            cfg.ListenPort,
		MTU:             settings.ResolveMTU(cfg.MTU),
		Protocol:        settings.UDP,
	}

	factory := tun.NewServerFactory()
	dev, err := factory.CreateDevice(tunSettings)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("create tun device: %w", err)
	}

	eng, err := engine.NewServer(cfg, conn, dev, logging.NewLogLogger())
	if err != nil {
		_ = conn.Close()
		_ = dev.Close()
		return fmt.Errorf("create engine: %w", err)
	}

	fmt.Printf("listening on :%d, tun %s (%s)\n", cfg.ListenPort, tunSettings.InterfaceName, cfg.Address)
	startTrafficStats(ctx, 10*time.Second)
	runErr := eng.Run(ctx)
	if err := factory.DisposeDevices(tunSettings); err != nil {
		fmt.Fprintf(os.Stderr, "server: tun cleanup: %v\n", err)
	}
	return runErr
}

func loadConfig(path string) (*engine.Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config %s: %w", path, err)
	}
	defer f.Close()
	return engine.ParseConfig(f)
}
