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

// Package launch runs a splitscreen session: one gamescope per player,
// each with its own profile, save data and input devices, supervised until
// every player has quit.
package launch

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/SplitHappens/split-happens/pkg/config"
	"github.com/SplitHappens/split-happens/pkg/handler"
	"github.com/SplitHappens/split-happens/pkg/instance"
	"github.com/SplitHappens/split-happens/pkg/steam"
)

var (
	ErrExecutableNotFound = errors.New("executable not found")
	ErrRuntimeNotFound    = errors.New("steam runtime not found")
	ErrNoInstances        = errors.New("no instances to launch")

	// ErrDuplicateProfile is returned when two instances of a launch share
	// a profile.
	ErrDuplicateProfile = errors.New("profile used by more than one instance")
)

// Game is what a session runs: an Executable or a HandlerGame.
type Game interface {
	isGame()
}

// Executable is a bare binary picked by the user.
type Executable struct {
	Path string
	// Args is split on whitespace.
	Args string
}

// HandlerGame is a game described by an installed handler.
type HandlerGame struct {
	Handler *handler.Handler
	// Root is the game's install directory.
	Root string
}

func (Executable) isGame()  {}
func (HandlerGame) isGame() {}

// GameID names a game in lock files and per-game settings.
func GameID(g Game) string {
	switch g := g.(type) {
	case Executable:
		return filepath.Base(g.Path)
	case HandlerGame:
		return g.Handler.UID
	default:
		panic(fmt.Sprintf("launch: unknown game type %T", g))
	}
}

// Target is a game resolved against the filesystem.
type Target struct {
	// Handler is nil for executables.
	Handler *handler.Handler
	ID      string
	// Dir is the directory instances start in unless they get a private
	// working tree.
	Dir string
	// Exec is relative to Dir.
	Exec string
	// Runtime wraps the executable: umu-run for Windows games, a Steam
	// Linux Runtime entry point, or empty.
	Runtime string
	// Args may contain $GAMEDIR, $PROFILE, $WIDTH, $HEIGHT and
	// $WIDTHXHEIGHT.
	Args []string
	Win  bool
}

// Is32Bit reports whether the target needs 32-bit libraries.
func (t Target) Is32Bit() bool {
	return t.Handler != nil && t.Handler.Is32Bit
}

// ResolveTarget works out where and how g runs. It fails when the
// executable or the Steam runtime the handler asks for is missing.
func ResolveTarget(paths config.Paths, g Game) (Target, error) {
	var t Target
	switch g := g.(type) {
	case Executable:
		t = Target{
			ID:   GameID(g),
			Dir:  filepath.Dir(g.Path),
			Exec: filepath.Base(g.Path),
			Args: strings.Fields(g.Args),
			Win:  strings.EqualFold(filepath.Ext(g.Path), ".exe"),
		}
	case HandlerGame:
		h := g.Handler
		t = Target{
			Handler: h,
			ID:      h.UID,
			Dir:     handler.GameDir(paths, h, g.Root),
			Exec:    h.Exec,
			Args:    h.Args,
			Win:     h.Win,
		}
		if !h.Win {
			rt, err := runtimePath(paths.SteamDir(), h.Runtime)
			if err != nil {
				return Target{}, err
			}
			t.Runtime = rt
		}
	default:
		panic(fmt.Sprintf("launch: unknown game type %T", g))
	}

	if t.Win {
		t.Runtime = paths.UmuRun()
	}

	exe := filepath.Join(t.Dir, t.Exec)
	if _, err := os.Stat(exe); err != nil {
		return Target{}, fmt.Errorf("%w: %s", ErrExecutableNotFound, exe)
	}
	return t, nil
}

func runtimePath(steamDir string, rt handler.Runtime) (string, error) {
	var entry, tree string
	switch rt {
	case handler.RuntimeScout:
		entry = steam.ScoutRuntime(steamDir)
		tree = entry
	case handler.RuntimeSoldier:
		entry = steam.SoldierRuntime(steamDir)
		tree = filepath.Dir(entry)
	default:
		return "", nil
	}
	if _, err := os.Stat(tree); err != nil {
		return "", fmt.Errorf("%w: %s (%s)", ErrRuntimeNotFound, rt, tree)
	}
	return entry, nil
}

// ExpandArgs substitutes the placeholder tokens of the argument template
// for one instance. Only whole arguments are replaced.
func ExpandArgs(args []string, gameDir string, inst instance.Instance) []string {
	out := make([]string, 0, len(args))
	for _, a := range args {
		switch a {
		case "$GAMEDIR":
			a = gameDir
		case "$PROFILE":
			a = inst.Profile
		case "$WIDTH":
			a = strconv.Itoa(inst.Width)
		case "$HEIGHT":
			a = strconv.Itoa(inst.Height)
		case "$WIDTHXHEIGHT":
			a = strconv.Itoa(inst.Width) + "x" + strconv.Itoa(inst.Height)
		}
		out = append(out, a)
	}
	return out
}
