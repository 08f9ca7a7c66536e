/*-------------------------------------------------------------------------
 *
 * Land Use Analytics Agent
 *
 * Copyright (c) 2025, the Land Use Analytics Agent authors
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package config

import (
	"fmt"
	"sync"

	"landuse-agent/internal/logging"
)

// ReloadableConfig wraps a Config with thread-safe access and reload capability
type ReloadableConfig struct {
	mu       sync.RWMutex
	config   *Config
	path     string
	cliFlags CLIFlags
	onReload []func(*Config)
}

// NewReloadableConfig creates a new reloadable configuration
func NewReloadableConfig(config *Config, path string, cliFlags CLIFlags) *ReloadableConfig {
	return &ReloadableConfig{
		config:   config,
		path:     path,
		cliFlags: cliFlags,
		onReload: make([]func(*Config), 0),
	}
}

// Get returns the current configuration (read-only access)
func (rc *ReloadableConfig) Get() *Config {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	return rc.config
}

// OnReload registers a callback invoked after each successful reload
func (rc *ReloadableConfig) OnReload(fn func(*Config)) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.onReload = append(rc.onReload, fn)
}

// Reload reloads the configuration from the file.
// Returns an error if the reload fails, keeping the old config in place.
func (rc *ReloadableConfig) Reload() error {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	if rc.path == "" {
		return fmt.Errorf("no configuration file path set")
	}

	newConfig, err := LoadConfig(rc.path, rc.cliFlags)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Settings that are bound at startup (listen address, database path)
	// require a restart; warn rather than silently ignore.
	if newConfig.HTTP.Address != rc.config.HTTP.Address {
		logging.Warn("http address change requires restart",
			"current", rc.config.HTTP.Address, "new", newConfig.HTTP.Address)
	}
	if newConfig.Database.Path != rc.config.Database.Path {
		logging.Warn("database path change requires restart",
			"current", rc.config.Database.Path, "new", newConfig.Database.Path)
	}

	rc.config = newConfig

	for _, callback := range rc.onReload {
		callback(newConfig)
	}

	logging.Info("configuration reloaded", "path", rc.path)
	return nil
}
