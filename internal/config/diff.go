package config

import (
	"reflect"
	"sort"
	"strings"
)

// SummarizeChange returns the section names that differ between two configs.
// Secrets (the AP password) never influence log output beyond the section name.
func SummarizeChange(oldCfg, newCfg *Config) []string {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 6)

	if !reflect.DeepEqual(oldCfg.Logging, newCfg.Logging) {
		changed = append(changed, "logging")
	}
	if !reflect.DeepEqual(oldCfg.Store, newCfg.Store) {
		changed = append(changed, "store")
	}
	if strings.TrimSpace(oldCfg.Catalog.Path) != strings.TrimSpace(newCfg.Catalog.Path) {
		changed = append(changed, "catalog")
	}
	if strings.TrimSpace(oldCfg.Scheduler.Timezone) != strings.TrimSpace(newCfg.Scheduler.Timezone) {
		changed = append(changed, "scheduler")
	}
	if !reflect.DeepEqual(oldCfg.Audio, newCfg.Audio) {
		changed = append(changed, "audio")
	}
	if !reflect.DeepEqual(oldCfg.Timevoice, newCfg.Timevoice) {
		changed = append(changed, "timevoice")
	}
	if !reflect.DeepEqual(oldCfg.Netwatch, newCfg.Netwatch) {
		changed = append(changed, "netwatch")
	}
	if !reflect.DeepEqual(oldCfg.Status, newCfg.Status) {
		changed = append(changed, "status")
	}

	sort.Strings(changed)
	return changed
}
