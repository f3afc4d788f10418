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

// Package steam locates the Steam client, its library folders and the
// runtimes and manifests inside them.
package steam

import (
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
)

// FlatpakSteamID is the Flatpak app ID for Steam.
const FlatpakSteamID = "com.valvesoftware.Steam"

// FindSteamDir returns the first existing Steam root among the usual Linux
// install locations, checking extra first. It returns "" when none exist.
func FindSteamDir(home string, extra ...string) string {
	paths := append([]string{}, extra...)
	paths = append(paths,
		filepath.Join(home, ".steam", "steam"),
		filepath.Join(home, ".local", "share", "Steam"),
		filepath.Join(home, ".var", "app", FlatpakSteamID, ".steam", "steam"),
		filepath.Join(home, "snap", "steam", "common", ".steam", "steam"),
		"/usr/games/steam",
		"/opt/steam",
	)

	for _, path := range paths {
		if path == "" {
			continue
		}
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			log.Debug().Msgf("found Steam installation: %s", path)
			return path
		}
	}

	log.Debug().Msg("Steam installation not found")
	return ""
}

// FindSteamAppsDir finds the steamapps directory from a Steam root directory.
// It checks for both lowercase and mixed-case "steamapps" directories.
func FindSteamAppsDir(steamDir string) string {
	candidates := []string{
		"steamapps",
		"SteamApps",
		"steam/steamapps",
	}

	for _, candidate := range candidates {
		path := filepath.Join(steamDir, candidate)
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			return path
		}
	}

	return filepath.Join(steamDir, "steamapps")
}

// ScoutRuntime is the entry point of the Steam Linux Runtime 1.0 (scout).
func ScoutRuntime(steamDir string) string {
	return filepath.Join(steamDir, "ubuntu12_32", "steam-runtime", "run.sh")
}

// SoldierRuntime is the entry point of the Steam Linux Runtime 2.0 (soldier).
func SoldierRuntime(steamDir string) string {
	return filepath.Join(steamDir, "steamapps", "common", "SteamLinuxRuntime_soldier", "_v2-entry-point")
}

// RuntimeSDL is the SDL2 library shipped with the scout runtime.
func RuntimeSDL(steamDir string, is32Bit bool) string {
	arch := "x86_64-linux-gnu"
	if is32Bit {
		arch = "i386-linux-gnu"
	}
	return filepath.Join(steamDir, "ubuntu12_32", "steam-runtime", "usr", "lib", arch, "libSDL2-2.0.so.0")
}
