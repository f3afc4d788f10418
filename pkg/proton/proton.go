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

// Package proton finds Proton builds and turns the configured version
// into the PROTONPATH a launch exports.
package proton

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/SplitHappens/split-happens/pkg/steam"
	"github.com/rs/zerolog/log"
)

// DefaultVersion is used when no version is configured.
const DefaultVersion = "GE-Proton"

type Source int

const (
	// CompatibilityTool is a build under compatibilitytools.d.
	CompatibilityTool Source = iota
	// SteamRuntime is a Valve build installed as a Steam app.
	SteamRuntime
)

// Install is a discovered Proton build.
type Install struct {
	ID          string
	DisplayName string
	Root        string
	Source      Source
}

// Label is the name shown in listings.
func (i Install) Label() string {
	badge := "Custom"
	if i.Source == SteamRuntime {
		badge = "Steam"
	}
	return i.DisplayName + " (" + badge + ")"
}

// Matches reports whether a settings value names this install, by id,
// display name or root path.
func (i Install) Matches(value string) bool {
	v := strings.TrimSpace(value)
	if v == "" {
		return false
	}
	return strings.EqualFold(i.ID, v) ||
		strings.EqualFold(i.DisplayName, v) ||
		strings.EqualFold(i.Root, v)
}

// Environment is the resolved Proton selection for one launch.
type Environment struct {
	// Value is exported as PROTONPATH.
	Value string
	Label string
	// Root is set only when the build was found on disk.
	Root string
}

// Verified reports whether Root points at a real install.
func (e Environment) Verified() bool {
	return e.Root != ""
}

// Discover lists Proton builds in compatibilitytools.d and in the common
// directory of every Steam library, sorted by display name.
func Discover(steamDir string) []Install {
	if steamDir == "" {
		return nil
	}

	var installs []Install
	installs = collect(filepath.Join(steamDir, "compatibilitytools.d"), CompatibilityTool, installs)
	for _, lib := range steam.LibraryDirs(steamDir) {
		installs = collect(filepath.Join(lib, "common"), SteamRuntime, installs)
	}

	// the same build can be reachable twice through symlinks
	seen := make(map[string]struct{}, len(installs))
	out := installs[:0]
	for _, in := range installs {
		key := in.Root
		if real, err := filepath.EvalSymlinks(in.Root); err == nil {
			key = real
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, in)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].DisplayName < out[j].DisplayName })
	return out
}

func collect(root string, source Source, installs []Install) []Install {
	entries, err := os.ReadDir(root)
	if err != nil {
		return installs
	}
	for _, e := range entries {
		path := filepath.Join(root, e.Name())
		if info, err := os.Stat(path); err != nil || !info.IsDir() {
			continue
		}
		if !isProtonRoot(path) {
			continue
		}
		name := strings.TrimSpace(e.Name())
		installs = append(installs, Install{ID: name, DisplayName: name, Root: path, Source: source})
	}
	return installs
}

func isProtonRoot(path string) bool {
	for _, p := range []string{"proton", "dist/bin/wine", "files/bin/wine"} {
		if _, err := os.Stat(filepath.Join(path, p)); err == nil {
			return true
		}
	}
	return false
}

// Resolve turns a configured version into a launch environment. An empty
// value picks the first GE-Proton install, an existing path is used as is
// (its parent when it names a file), a known id or name maps to its root
// and anything else is passed through for umu to resolve.
func Resolve(value string, installs []Install) Environment {
	v := strings.TrimSpace(value)

	if v == "" {
		for _, in := range installs {
			if in.Matches(DefaultVersion) {
				return Environment{Value: in.Root, Label: in.DisplayName, Root: in.Root}
			}
		}
		return Environment{Value: DefaultVersion, Label: DefaultVersion}
	}

	if info, err := os.Stat(v); err == nil {
		root := v
		if !info.IsDir() {
			root = filepath.Dir(v)
		}
		return Environment{Value: root, Label: v, Root: root}
	}

	for _, in := range installs {
		if in.Matches(v) {
			return Environment{Value: in.Root, Label: in.DisplayName, Root: in.Root}
		}
	}

	log.Debug().Str("version", v).Msg("proton version not found locally, passing through")
	return Environment{Value: v, Label: v}
}
