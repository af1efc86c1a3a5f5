package netwatch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"strings"

	logx "schoolbell/pkg/logx"
	"schoolbell/pkg/systemd"
)

const hotspotConn = "belld-hotspot"

// Units used by older install images that serve the fallback network through
// hostapd/dnsmasq instead of a NetworkManager hotspot.
var apUnits = []string{"hostapd", "dnsmasq"}

// OSNetwork implements Checker and Controller over Linux tooling: the sysfs
// carrier flag for link state, a TCP dial for upstream reachability, and
// nmcli for association and the fallback hotspot. When nmcli is unavailable
// the access point falls back to starting the hostapd/dnsmasq units.
type OSNetwork struct {
	iface      string
	probeAddr  string
	apSSID     string
	apPassword string
	log        logx.Logger
}

func NewOSNetwork(cfg Config, log logx.Logger) *OSNetwork {
	c := cfg.withDefaults()
	return &OSNetwork{
		iface:      c.Interface,
		probeAddr:  c.ProbeAddr,
		apSSID:     c.APSSID,
		apPassword: c.APPassword,
		log:        log,
	}
}

func (n *OSNetwork) LinkUp(ctx context.Context) (bool, error) {
	b, err := os.ReadFile("/sys/class/net/" + n.iface + "/carrier")
	if err != nil {
		// Interface gone (driver reload, rfkill): that is "down", not an
		// error the caller can act on differently.
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return bytes.HasPrefix(bytes.TrimSpace(b), []byte("1")), nil
}

func (n *OSNetwork) InternetReachable(ctx context.Context) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", n.probeAddr)
	if err != nil {
		return err
	}
	return conn.Close()
}

func (n *OSNetwork) CurrentSSID(ctx context.Context) string {
	out, err := exec.CommandContext(ctx, "nmcli", "-t", "-f", "active,ssid", "dev", "wifi").Output()
	if err != nil {
		return ""
	}
	for _, line := range strings.Split(string(out), "\n") {
		if rest, ok := strings.CutPrefix(line, "yes:"); ok {
			return strings.TrimSpace(rest)
		}
	}
	return ""
}

func (n *OSNetwork) StartAccessPoint(ctx context.Context) error {
	if n.apSSID == "" {
		return fmt.Errorf("netwatch: access point ssid not configured")
	}
	args := []string{
		"device", "wifi", "hotspot",
		"ifname", n.iface,
		"con-name", hotspotConn,
		"ssid", n.apSSID,
	}
	if n.apPassword != "" {
		args = append(args, "password", n.apPassword)
	}
	err := n.runNmcli(ctx, args...)
	if err != nil && errors.Is(err, exec.ErrNotFound) {
		return n.startAPUnits(ctx)
	}
	return err
}

func (n *OSNetwork) StopAccessPoint(ctx context.Context) error {
	err := n.runNmcli(ctx, "connection", "down", hotspotConn)
	if err != nil && errors.Is(err, exec.ErrNotFound) {
		return n.stopAPUnits(ctx)
	}
	return err
}

// startAPUnits brings up the hostapd/dnsmasq pair. The units carry the SSID
// and password in their own config; the daemon only flips them on and off.
func (n *OSNetwork) startAPUnits(ctx context.Context) error {
	n.log.Info("nmcli unavailable, starting access point units")
	for _, u := range apUnits {
		if err := systemd.Start(ctx, u); err != nil {
			return err
		}
	}
	return nil
}

func (n *OSNetwork) stopAPUnits(ctx context.Context) error {
	var firstErr error
	for _, u := range apUnits {
		if active, _ := systemd.IsActive(ctx, u); !active {
			continue
		}
		if err := systemd.Stop(ctx, u); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (n *OSNetwork) Reconnect(ctx context.Context) error {
	return n.runNmcli(ctx, "device", "connect", n.iface)
}

func (n *OSNetwork) runNmcli(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, "nmcli", args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		if msg := strings.TrimSpace(string(out)); msg != "" {
			return fmt.Errorf("nmcli %s: %s", args[0], msg)
		}
		return fmt.Errorf("nmcli %s: %w", args[0], err)
	}
	n.log.Debug("nmcli ok", logx.String("args", strings.Join(args, " ")))
	return nil
}
