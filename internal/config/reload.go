package config

import (
	"fmt"
	"log/slog"
	"os"
	"reflect"
	"sync"
)

// ReloadResult describes what changed during a config reload.
type ReloadResult struct {
	Changed []string // list of changed fields
	Applied []string // successfully applied
	Skipped []string // require restart
}

// restartRequiredFields lists config fields that cannot be hot-reloaded
// because the queue, client or connectivity sources are already built.
var restartRequiredFields = map[string]bool{
	"API":          true,
	"Storage":      true,
	"Session":      true,
	"Connectivity": true,
}

// hotReloadableFields lists fields that can be applied at runtime.
var hotReloadableFields = []string{
	"LogLevel",
	"Sync.Schedule",
	"Sync.MaxAttempts",
}

// mu protects the Config during concurrent reload operations.
var mu sync.RWMutex

// RLock acquires a read lock on the config.
func RLock() { mu.RLock() }

// RUnlock releases a read lock on the config.
func RUnlock() { mu.RUnlock() }

// Reload re-reads the config from path, diffs against the current config,
// and applies hot-reloadable changes in place. Fields that require a
// restart are reported as skipped.
func (c *Config) Reload(path string) (*ReloadResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config for reload: %w", err)
	}
	newCfg, err := decode(path, data)
	if err != nil {
		return nil, err
	}
	if err := newCfg.Validate(); err != nil {
		return nil, err
	}

	result := &ReloadResult{}

	mu.Lock()
	defer mu.Unlock()
	diffAndApply(c, newCfg, result)
	return result, nil
}

func diffAndApply(old, new *Config, result *ReloadResult) {
	skip := func(field string, changed bool) {
		if changed {
			result.Changed = append(result.Changed, field)
			result.Skipped = append(result.Skipped, field+" (requires restart)")
		}
	}
	skip("API", old.API != new.API)
	skip("Storage", old.Storage != new.Storage)
	skip("Session", old.Session != new.Session)
	skip("Connectivity", !reflect.DeepEqual(old.Connectivity, new.Connectivity))

	if old.LogLevel != new.LogLevel {
		result.Changed = append(result.Changed, "LogLevel")
		old.LogLevel = new.LogLevel
		result.Applied = append(result.Applied, "LogLevel")
	}
	if old.Sync.Schedule != new.Sync.Schedule {
		result.Changed = append(result.Changed, "Sync.Schedule")
		old.Sync.Schedule = new.Sync.Schedule
		result.Applied = append(result.Applied, "Sync.Schedule")
	}
	if old.Sync.MaxAttempts != new.Sync.MaxAttempts {
		result.Changed = append(result.Changed, "Sync.MaxAttempts")
		old.Sync.MaxAttempts = new.Sync.MaxAttempts
		result.Applied = append(result.Applied, "Sync.MaxAttempts")
	}
}

// Has reports whether field was applied.
func (r *ReloadResult) Has(field string) bool {
	for _, f := range r.Applied {
		if f == field {
			return true
		}
	}
	return false
}

// LogResult logs the reload result at the appropriate levels.
func (r *ReloadResult) LogResult(logger *slog.Logger) {
	if len(r.Changed) == 0 {
		logger.Info("config reload: no changes detected")
		return
	}

	logger.Info("config reload complete",
		"changed", len(r.Changed),
		"applied", len(r.Applied),
		"skipped", len(r.Skipped),
	)
	for _, field := range r.Applied {
		logger.Info("config field hot-reloaded", "field", field)
	}
	for _, field := range r.Skipped {
		logger.Warn("config field requires restart", "field", field)
	}
}

// IsRestartRequired returns true if the field requires a restart.
func IsRestartRequired(field string) bool {
	return restartRequiredFields[field]
}

// HotReloadableFields returns the list of hot-reloadable field names.
func HotReloadableFields() []string {
	return hotReloadableFields
}
