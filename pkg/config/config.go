// Split Happens
// Copyright (c) 2026 The Split Happens Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of Split Happens.
//
// Split Happens is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Split Happens is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Split Happens.  If not, see <http://www.gnu.org/licenses/>.

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/SplitHappens/split-happens/pkg/helpers/syncutil"
	"github.com/google/uuid"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	SchemaVersion = 1
	CfgEnv        = "SPLIT_HAPPENS_CFG"
)

type Values struct {
	Profiles       Profiles `toml:"profiles,omitempty"`
	Handlers       Handlers `toml:"handlers,omitempty"`
	ErrorDSN       string   `toml:"error_reporting_dsn,omitempty"`
	DeviceID       string   `toml:"device_id"`
	Proton         Proton   `toml:"proton"`
	Launch         Launch   `toml:"launch"`
	ConfigSchema   int      `toml:"config_schema"`
	DebugLogging   bool     `toml:"debug_logging"`
	ErrorReporting bool     `toml:"error_reporting"`
}

type Proton struct {
	Version          string `toml:"version"`
	SeparatePrefixes bool   `toml:"separate_prefixes"`
}

type Handlers struct {
	// Roots maps a handler uid to its game install directory.
	Roots map[string]string `toml:"roots,omitempty"`
}

type Profiles struct {
	// LastAssignments maps a game id to the profile chosen per instance.
	LastAssignments map[string][]string `toml:"last_assignments,omitempty"`
}

var BaseDefaults = Values{
	ConfigSchema: SchemaVersion,
	Launch: Launch{
		KWinScript:     true,
		FixLowRes:      true,
		SDLBackend:     true,
		KBMSupport:     true,
		PadFilter:      PadFilterNoSteamInput,
		StaggerSecs:    6,
		RestartLimit:   3,
		RestartCrashed: false,
	},
}

type Instance struct {
	cfgPath  string
	vals     Values
	defaults Values
	mu       syncutil.RWMutex
}

//nolint:gocritic // config struct copied for immutability
func NewConfig(configDir string, defaults Values) (*Instance, error) {
	cfgPath := os.Getenv(CfgEnv)
	log.Debug().Msgf("env config path: %s", cfgPath)

	if cfgPath == "" {
		cfgPath = filepath.Join(configDir, CfgFile)
	}

	cfg := Instance{
		mu:       syncutil.RWMutex{},
		cfgPath:  cfgPath,
		vals:     defaults,
		defaults: defaults,
	}

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		log.Info().Msg("saving new default settings to disk")

		err := os.MkdirAll(filepath.Dir(cfgPath), 0o750)
		if err != nil {
			return nil, fmt.Errorf("failed to create config directory: %w", err)
		}

		err = cfg.Save()
		if err != nil {
			return nil, err
		}
	}

	err := cfg.Load()
	if err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Instance) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cfgPath == "" {
		return errors.New("config path not set")
	}

	data, err := os.ReadFile(c.cfgPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	// Fields missing from the file keep their default values.
	newVals := c.defaults
	err = toml.Unmarshal(data, &newVals)
	if err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if newVals.ConfigSchema != SchemaVersion {
		log.Error().Msgf(
			"schema version mismatch: got %d, expecting %d",
			newVals.ConfigSchema,
			SchemaVersion,
		)
		return errors.New("schema version mismatch")
	}

	c.vals = newVals
	return nil
}

func (c *Instance) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cfgPath == "" {
		return errors.New("config path not set")
	}

	c.vals.ConfigSchema = SchemaVersion

	if c.vals.DeviceID == "" {
		newID := uuid.New().String()
		c.vals.DeviceID = newID
		log.Info().Msgf("generated new device id: %s", newID)
	}

	data, err := toml.Marshal(&c.vals)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(c.cfgPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func (c *Instance) DebugLogging() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.DebugLogging
}

func (c *Instance) SetDebugLogging(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.DebugLogging = enabled
	if enabled {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// ErrorReporting reports whether error reporting is enabled and where to.
func (c *Instance) ErrorReporting() (enabled bool, dsn string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.ErrorReporting, c.vals.ErrorDSN
}

func (c *Instance) DeviceID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.DeviceID
}

// HandlerRoot returns the configured game directory for a handler uid.
func (c *Instance) HandlerRoot(uid string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	dir, ok := c.vals.Handlers.Roots[uid]
	return dir, ok && dir != ""
}

func (c *Instance) SetHandlerRoot(uid, dir string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.vals.Handlers.Roots == nil {
		c.vals.Handlers.Roots = make(map[string]string)
	}
	c.vals.Handlers.Roots[uid] = dir
}

func (c *Instance) LastAssignments(gameID string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	prev := c.vals.Profiles.LastAssignments[gameID]
	out := make([]string, len(prev))
	copy(out, prev)
	return out
}

func (c *Instance) SetLastAssignments(gameID string, profiles []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.vals.Profiles.LastAssignments == nil {
		c.vals.Profiles.LastAssignments = make(map[string][]string)
	}
	c.vals.Profiles.LastAssignments[gameID] = append([]string(nil), profiles...)
}

func (c *Instance) ProtonVersion() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Proton.Version
}
