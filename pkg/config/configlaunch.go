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

import "time"

// PadFilter selects which gamepads are offered to instances.
type PadFilter string

const (
	PadFilterAll            PadFilter = "all"
	PadFilterNoSteamInput   PadFilter = "no_steam_input"
	PadFilterOnlySteamInput PadFilter = "only_steam_input"
)

type Launch struct {
	PadFilter         PadFilter `toml:"pad_filter"`
	StaggerSecs       int       `toml:"stagger_secs"`
	RestartLimit      int       `toml:"restart_limit"`
	ForceSDL          bool      `toml:"force_sdl"`
	KWinScript        bool      `toml:"kwin_script"`
	FixLowRes         bool      `toml:"gamescope_fix_lowres"`
	SDLBackend        bool      `toml:"gamescope_sdl_backend"`
	KBMSupport        bool      `toml:"kbm_support"`
	VerticalTwoPlayer bool      `toml:"vertical_two_player"`
	Limit40FPS        bool      `toml:"limit_40fps"`
	GamescopeRT       bool      `toml:"gamescope_rt"`
	ProtonFSR         bool      `toml:"proton_fsr"`
	RestartCrashed    bool      `toml:"restart_crashed"`
}

// LaunchOptions is the immutable snapshot a launch session reads.
type LaunchOptions struct {
	ProtonVersion     string
	PadFilter         PadFilter
	Stagger           time.Duration
	RestartLimit      int
	ForceSDL          bool
	KWinScript        bool
	FixLowRes         bool
	SDLBackend        bool
	KBMSupport        bool
	VerticalTwoPlayer bool
	Limit40FPS        bool
	GamescopeRT       bool
	ProtonFSR         bool
	SeparatePrefixes  bool
	RestartCrashed    bool
}

// DefaultStagger is the pause between successive instance starts.
const DefaultStagger = 6 * time.Second

func (c *Instance) LaunchOptions() LaunchOptions {
	c.mu.RLock()
	defer c.mu.RUnlock()

	l := c.vals.Launch
	stagger := DefaultStagger
	if l.StaggerSecs > 0 {
		stagger = time.Duration(l.StaggerSecs) * time.Second
	}

	return LaunchOptions{
		ProtonVersion:     c.vals.Proton.Version,
		SeparatePrefixes:  c.vals.Proton.SeparatePrefixes,
		PadFilter:         l.PadFilter,
		Stagger:           stagger,
		RestartLimit:      l.RestartLimit,
		ForceSDL:          l.ForceSDL,
		KWinScript:        l.KWinScript,
		FixLowRes:         l.FixLowRes,
		SDLBackend:        l.SDLBackend,
		KBMSupport:        l.KBMSupport,
		VerticalTwoPlayer: l.VerticalTwoPlayer,
		Limit40FPS:        l.Limit40FPS,
		GamescopeRT:       l.GamescopeRT,
		ProtonFSR:         l.ProtonFSR,
		RestartCrashed:    l.RestartCrashed,
	}
}

// DefaultLaunchOptions is LaunchOptions for BaseDefaults.
func DefaultLaunchOptions() LaunchOptions {
	c := Instance{vals: BaseDefaults}
	return c.LaunchOptions()
}
