// Package systemd shells out to systemctl for unit control. Used by the
// network fallback on images that run the access point as hostapd/dnsmasq
// units instead of through NetworkManager.
package systemd

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

func IsActive(ctx context.Context, unit string) (bool, error) {
	cmd := exec.CommandContext(ctx, "systemctl", "is-active", unit)
	out, err := cmd.CombinedOutput()
	if err != nil {
		// is-active returns non-zero when inactive; treat as not active
		s := strings.TrimSpace(string(out))
		return s == "active", nil
	}
	return strings.TrimSpace(string(out)) == "active", nil
}

func Start(ctx context.Context, unit string) error {
	return run(ctx, "start", unit)
}

func Stop(ctx context.Context, unit string) error {
	return run(ctx, "stop", unit)
}

func Restart(ctx context.Context, unit string) error {
	return run(ctx, "restart", unit)
}

func run(ctx context.Context, verb, unit string) error {
	out, err := exec.CommandContext(ctx, "systemctl", verb, unit).CombinedOutput()
	if err != nil {
		msg := strings.TrimSpace(string(out))
		if msg == "" {
			msg = err.Error()
		}
		return fmt.Errorf("systemctl %s %s: %s", verb, unit, msg)
	}
	return nil
}
