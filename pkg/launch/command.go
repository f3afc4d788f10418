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

package launch

import (
	"path/filepath"
	"strconv"
	"strings"

	"github.com/SplitHappens/split-happens/pkg/config"
	"github.com/SplitHappens/split-happens/pkg/input"
	"github.com/SplitHappens/split-happens/pkg/instance"
	"github.com/SplitHappens/split-happens/pkg/procscan"
	"github.com/SplitHappens/split-happens/pkg/proton"
	"github.com/SplitHappens/split-happens/pkg/steam"
)

// Gamescope is the compositor every instance runs in.
const Gamescope = "gamescope"

// bind is a bwrap --bind pair.
type bind struct {
	src string
	dst string
}

// spawnPlan is everything needed to build the command line of one
// instance.
type spawnPlan struct {
	inst    instance.Instance
	gameDir string
	// prefix is the Wine prefix, empty for native games.
	prefix string
	// binds go before the per profile binds.
	binds []bind
}

// commandBuilder turns a spawn plan into a command line. It holds the
// parts shared by every instance of a session.
type commandBuilder struct {
	paths   config.Paths
	opts    config.LaunchOptions
	target  Target
	proton  proton.Environment
	devices []input.Device
	bwrap   bool
}

func (b *commandBuilder) name() string {
	if b.opts.KBMSupport {
		return b.paths.GamescopeKBM()
	}
	return Gamescope
}

func (b *commandBuilder) env(p spawnPlan) []string {
	env := []string{
		"SDL_JOYSTICK_HIDAPI=0",
		"ENABLE_GAMESCOPE_WSI=0",
		"PROTON_DISABLE_HIDRAW=1",
	}
	if b.opts.ForceSDL && !b.target.Win {
		env = append(env, "SDL_DYNAMIC_API="+steam.RuntimeSDL(b.paths.SteamDir(), b.target.Is32Bit()))
	}
	if !b.target.Win {
		return env
	}

	env = append(env, "PROTON_VERB=run", "PROTONPATH="+b.proton.Value)
	if b.opts.ProtonFSR {
		env = append(env,
			"WINE_FULLSCREEN_FSR=1",
			"WINE_FULLSCREEN_FSR_MODE=1",
			"WINE_FULLSCREEN_FSR_STRENGTH=2",
		)
	}
	if h := b.target.Handler; h != nil {
		if len(h.DLLOverrides) > 0 {
			env = append(env, "WINEDLLOVERRIDES="+strings.Join(h.DLLOverrides, ",")+",=n,b")
		}
		if h.ColdClient {
			env = append(env, "PROTON_DISABLE_LSTEAMCLIENT=1")
		}
	}
	if p.prefix != "" {
		env = append(env, "WINEPREFIX="+p.prefix, "STEAM_COMPAT_DATA_PATH="+p.prefix)
	}
	return env
}

func (b *commandBuilder) gamescopeArgs(p spawnPlan) []string {
	args := []string{"-W", strconv.Itoa(p.inst.Width), "-H", strconv.Itoa(p.inst.Height)}
	if b.opts.SDLBackend {
		args = append(args, "--backend=sdl")
	}
	if b.opts.GamescopeRT {
		args = append(args, "--rt")
	}
	if b.opts.Limit40FPS {
		args = append(args, "--fps-limit=40", "--secondary-no-focus-fps-limit=40")
	}

	if b.opts.KBMSupport {
		var keyboard, mouse bool
		var held []string
		for _, d := range p.inst.Devices {
			if d < 0 || d >= len(b.devices) {
				continue
			}
			dev := b.devices[d]
			switch dev.Type {
			case input.Keyboard:
				keyboard = true
			case input.Mouse:
				mouse = true
			default:
				continue
			}
			held = append(held, dev.Path)
		}
		if keyboard {
			args = append(args, "--backend-disable-keyboard")
		}
		if mouse {
			args = append(args, "--backend-disable-mouse")
		}
		if len(held) > 0 {
			args = append(args, "--libinput-hold-dev", strings.Join(held, ","))
		}
	}
	return append(args, "--")
}

func (b *commandBuilder) bwrapArgs(p spawnPlan) []string {
	args := []string{
		"bwrap",
		"--die-with-parent",
		"--dev-bind", "/", "/",
		"--bind", "/tmp", "/tmp",
	}
	if rd := b.paths.RuntimeDir(); rd != "" {
		args = append(args, "--bind", rd, rd)
	}

	// Hide pads that belong to other players and anything disabled.
	for i, dev := range b.devices {
		if !dev.Enabled || (dev.Type == input.Gamepad && !p.inst.HasDevice(i)) {
			args = append(args, "--bind", "/dev/null", dev.Path)
		}
	}

	for _, bd := range b.profileBinds(p) {
		args = append(args, "--bind", bd.src, bd.dst)
	}
	return args
}

func (b *commandBuilder) profileBinds(p spawnPlan) []bind {
	h := b.target.Handler
	if h == nil {
		return nil
	}

	save := b.paths.SaveDir(p.inst.Profile, h.UID)
	var binds []bind
	if h.GoldbergPath != "" {
		binds = append(binds, bind{
			src: filepath.Join(b.paths.ProfileDir(p.inst.Profile), "steam"),
			dst: filepath.Join(p.gameDir, h.GoldbergPath, "goldbergsave"),
		})
	}
	binds = append(binds, p.binds...)

	if h.Win {
		users := filepath.Join(p.prefix, "drive_c", "users", "steamuser")
		if h.UniqueAppData {
			binds = append(binds, bind{filepath.Join(save, "_AppData"), filepath.Join(users, "AppData")})
		}
		if h.UniqueDocuments {
			binds = append(binds, bind{filepath.Join(save, "_Documents"), filepath.Join(users, "Documents")})
		}
	} else {
		if h.UniqueLocalShare {
			binds = append(binds, bind{filepath.Join(save, "_share"), b.paths.LocalShare()})
		}
		if h.UniqueConfig {
			binds = append(binds, bind{filepath.Join(save, "_config"), b.paths.ConfigHome()})
		}
	}

	for _, rel := range h.GameUniquePaths {
		binds = append(binds, bind{
			src: filepath.Join(save, filepath.FromSlash(rel)),
			dst: filepath.Join(p.gameDir, filepath.FromSlash(rel)),
		})
	}
	return binds
}

// args is the full argument list after the gamescope binary. The profile
// marker lets a lock check recognize the instance by its gamescope.
func (b *commandBuilder) args(p spawnPlan) []string {
	args := b.gamescopeArgs(p)
	args = append(args, "env", procscan.ProfileMarker(p.inst.Profile))
	if b.bwrap {
		args = append(args, b.bwrapArgs(p)...)
	}
	if b.target.Runtime != "" {
		args = append(args, b.target.Runtime)
	}

	exe := filepath.Join(p.gameDir, b.target.Exec)
	if b.target.Win {
		// Proton wants the real location, not a link into the game tree.
		if real, err := filepath.EvalSymlinks(exe); err == nil {
			exe = real
		}
	}
	args = append(args, exe)
	return append(args, ExpandArgs(b.target.Args, p.gameDir, p.inst)...)
}
