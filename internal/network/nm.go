package network

import (
	"context"
	"fmt"

	"github.com/Wifx/gonetworkmanager/v2"
)

// nmJoin asks NetworkManager, over the system D-Bus, to activate the
// profile for cfg.SSID on cfg.Interface, creating it on first use. The
// secret only travels inside the D-Bus message.
//
// The D-Bus calls are not cancellable; on timeout the attempt is abandoned
// and finishes in the background.
func nmJoin(ctx context.Context, cfg Config) error {
	result := make(chan error, 1)
	go func() { result <- activate(cfg) }()

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return fmt.Errorf("join %q: %w", cfg.SSID, ctx.Err())
	}
}

func activate(cfg Config) error {
	nm, err := gonetworkmanager.NewNetworkManager()
	if err != nil {
		return fmt.Errorf("connect to NetworkManager: %w", err)
	}
	device, err := nm.GetDeviceByIpIface(cfg.Interface)
	if err != nil {
		return fmt.Errorf("find device %s: %w", cfg.Interface, err)
	}

	settings, err := gonetworkmanager.NewSettings()
	if err != nil {
		return fmt.Errorf("open NetworkManager settings: %w", err)
	}
	existing, err := findProfile(settings, profileID(cfg.SSID))
	if err != nil {
		return err
	}

	if existing != nil {
		if _, err := nm.ActivateConnection(existing, device, nil); err != nil {
			return fmt.Errorf("activate %q: %w", cfg.SSID, err)
		}
		return nil
	}
	if _, err := nm.AddAndActivateConnection(wirelessProfile(cfg), device); err != nil {
		return fmt.Errorf("add and activate %q: %w", cfg.SSID, err)
	}
	return nil
}

func findProfile(settings gonetworkmanager.Settings, id string) (gonetworkmanager.Connection, error) {
	conns, err := settings.ListConnections()
	if err != nil {
		return nil, fmt.Errorf("list connections: %w", err)
	}
	for _, c := range conns {
		s, err := c.GetSettings()
		if err != nil {
			continue
		}
		if s["connection"]["id"] == id {
			return c, nil
		}
	}
	return nil, nil
}

func profileID(ssid string) string {
	return "gcn-" + ssid
}

// wirelessProfile builds the NetworkManager settings for a WPA-PSK or open
// network.
func wirelessProfile(cfg Config) map[string]map[string]interface{} {
	conn := map[string]interface{}{
		"id":   profileID(cfg.SSID),
		"type": "802-11-wireless",
	}
	if cfg.Interface != "" {
		conn["interface-name"] = cfg.Interface
	}
	wifi := map[string]interface{}{
		"ssid": []byte(cfg.SSID),
		"mode": "infrastructure",
	}

	profile := map[string]map[string]interface{}{
		"connection":      conn,
		"802-11-wireless": wifi,
	}
	if cfg.Password != "" {
		wifi["security"] = "802-11-wireless-security"
		profile["802-11-wireless-security"] = map[string]interface{}{
			"key-mgmt": "wpa-psk",
			"psk":      cfg.Password,
		}
	}
	return profile
}
