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
	"os"
	"path/filepath"
	"strconv"

	"github.com/adrg/xdg"
)

const (
	DataEnv  = "SPLIT_HAPPENS_DATA"
	ResEnv   = "SPLIT_HAPPENS_RES"
	SteamEnv = "SPLIT_HAPPENS_STEAM"
)

// Paths holds every filesystem location the launcher touches. It is built
// once at startup and passed by value; none of its fields change after
// NewPaths returns.
type Paths struct {
	dataRoot   string
	resDir     string
	steamDir   string
	homeDir    string
	localShare string
	configHome string
	runtimeDir string
}

type PathsOption func(*Paths)

func WithDataRoot(dir string) PathsOption {
	return func(p *Paths) { p.dataRoot = dir }
}

func WithResDir(dir string) PathsOption {
	return func(p *Paths) { p.resDir = dir }
}

// WithSteamDir sets the Steam root. An empty dir keeps the current value.
func WithSteamDir(dir string) PathsOption {
	return func(p *Paths) {
		if dir != "" {
			p.steamDir = dir
		}
	}
}

func WithHomeDir(dir string) PathsOption {
	return func(p *Paths) { p.homeDir = dir }
}

func WithLocalShare(dir string) PathsOption {
	return func(p *Paths) { p.localShare = dir }
}

func WithConfigHome(dir string) PathsOption {
	return func(p *Paths) { p.configHome = dir }
}

func WithRuntimeDir(dir string) PathsOption {
	return func(p *Paths) { p.runtimeDir = dir }
}

// NewPaths resolves the default layout from XDG and environment overrides,
// then applies opts.
func NewPaths(opts ...PathsOption) Paths {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.Getenv("HOME")
	}

	p := Paths{
		dataRoot:   filepath.Join(xdg.DataHome, AppName),
		homeDir:    home,
		localShare: xdg.DataHome,
		configHome: xdg.ConfigHome,
		runtimeDir: xdg.RuntimeDir,
		steamDir:   os.Getenv(SteamEnv),
	}
	if v := os.Getenv(DataEnv); v != "" {
		p.dataRoot = v
	}
	if v := os.Getenv(ResEnv); v != "" {
		p.resDir = v
	}

	for _, opt := range opts {
		opt(&p)
	}

	if p.resDir == "" {
		p.resDir = filepath.Join(p.dataRoot, "res")
	}
	if p.steamDir == "" {
		p.steamDir = filepath.Join(p.homeDir, ".local", "share", "Steam")
	}
	return p
}

func (p Paths) DataRoot() string   { return p.dataRoot }
func (p Paths) ResDir() string     { return p.resDir }
func (p Paths) SteamDir() string   { return p.steamDir }
func (p Paths) HomeDir() string    { return p.homeDir }
func (p Paths) LocalShare() string { return p.localShare }
func (p Paths) ConfigHome() string { return p.configHome }
func (p Paths) RuntimeDir() string { return p.runtimeDir }

func (p Paths) HandlersDir() string  { return filepath.Join(p.dataRoot, "handlers") }
func (p Paths) ProfilesDir() string  { return filepath.Join(p.dataRoot, "profiles") }
func (p Paths) GameSymsRoot() string { return filepath.Join(p.dataRoot, "gamesyms") }
func (p Paths) TmpDir() string       { return filepath.Join(p.dataRoot, "tmp") }
func (p Paths) LogsDir() string      { return filepath.Join(p.dataRoot, "logs") }
func (p Paths) LocksDir() string     { return filepath.Join(p.dataRoot, "run", "locks") }
func (p Paths) WarningsFile() string { return filepath.Join(p.LogsDir(), WarnFile) }

func (p Paths) ProfileDir(profile string) string {
	return filepath.Join(p.ProfilesDir(), profile)
}

// SaveDir is the per profile, per handler save tree.
func (p Paths) SaveDir(profile, uid string) string {
	return filepath.Join(p.ProfileDir(profile), "saves", uid)
}

func (p Paths) GameSymsDir(uid string) string {
	return filepath.Join(p.GameSymsRoot(), uid)
}

// RunFS is the private working tree of one instance.
func (p Paths) RunFS(profile string) string {
	return filepath.Join(p.dataRoot, "run", profile, "fs")
}

// PrefixDir is the Wine prefix for a profile. A positive n appends the
// separate-prefix suffix.
func (p Paths) PrefixDir(profile string, n int) string {
	name := profile
	if n > 0 {
		name += "_" + strconv.Itoa(n)
	}
	return filepath.Join(p.dataRoot, "pfx", name)
}

// UmuRun is the bundled umu launcher, falling back to PATH lookup.
func (p Paths) UmuRun() string {
	return p.resBinary("umu-run")
}

// GamescopeKBM is the gamescope build with per-instance keyboard and mouse
// hold support.
func (p Paths) GamescopeKBM() string {
	return p.resBinary("gamescope-kbm")
}

func (p Paths) resBinary(name string) string {
	bundled := filepath.Join(p.resDir, "bin", name)
	if _, err := os.Stat(bundled); err == nil {
		return bundled
	}
	return name
}
