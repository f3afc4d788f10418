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

package handler

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// Diagnose inspects the emulator resources a handler needs inside
// gameDir. Findings are logged; problems that will likely break the game
// are returned as warnings for the user.
func Diagnose(h *Handler, gameDir string) []string {
	var warnings []string
	warn := func(format string, args ...any) {
		warnings = append(warnings, fmt.Sprintf(format, args...))
	}

	log.Info().Str("uid", h.UID).Msgf("handler executable: %s", filepath.Join(gameDir, h.Exec))

	if h.NemirtingasPath != "" {
		diagnoseNemirtingas(h, gameDir, warn)
	}
	if h.GoldbergPath != "" {
		diagnoseGoldberg(h, gameDir, warn)
	}
	return warnings
}

func diagnoseNemirtingas(h *Handler, gameDir string, warn func(string, ...any)) {
	target := filepath.Join(gameDir, h.NemirtingasPath)
	log.Info().Str("uid", h.UID).Msgf("Nemirtingas config expected at %s", target)

	parentRel := filepath.Dir(h.NemirtingasPath)
	if parentRel == "." {
		warn("Nemirtingas path for handler %s has no parent directory; check handler JSON.", h.UID)
		return
	}

	parent := filepath.Join(gameDir, parentRel)
	if _, err := os.Stat(parent); err != nil {
		warn("Nemirtingas directory %s is missing. Ensure the handler copied patched EOSSDK files there.", parent)
		return
	}

	// EOSSDK may sit next to the executable rather than beside the config,
	// so walk up until something is found or the game dir is left.
	var found, scanned []string
	root := filepath.Clean(gameDir)
	for dir := parent; isWithin(dir, root); dir = filepath.Dir(dir) {
		scanned = append(scanned, dir)
		entries, err := os.ReadDir(dir)
		if err != nil {
			warn("Failed to scan %s for EOSSDK files: %v. Verify directory permissions.", dir, err)
			return
		}
		for _, e := range entries {
			if isFile(dir, e) && strings.Contains(strings.ToLower(e.Name()), "eossdk") {
				found = append(found, filepath.Join(dir, e.Name()))
			}
		}
		if len(found) > 0 || dir == root {
			break
		}
	}

	if len(found) == 0 {
		warn("No EOSSDK files were found near %s (searched: %s). Nemirtingas may fail to initialize.",
			target, strings.Join(scanned, ", "))
		return
	}
	for _, p := range found {
		log.Info().Msgf("found EOS file for Nemirtingas: %s", p)
	}
}

func diagnoseGoldberg(h *Handler, gameDir string, warn func(string, ...any)) {
	dir := filepath.Join(gameDir, h.GoldbergPath)
	log.Info().Str("uid", h.UID).Msgf("Goldberg assets expected at %s", dir)

	if _, err := os.Stat(dir); err != nil {
		warn("Goldberg directory %s is missing. Ensure the handler copied Goldberg files there.", dir)
		return
	}

	settings := filepath.Join(dir, "steam_settings")
	if _, err := os.Stat(settings); err != nil {
		warn("Goldberg path %s lacks a steam_settings directory. Multiplayer emulation will likely fail.", dir)
		return
	}

	for _, f := range []struct{ name, desc string }{
		{"steam_appid.txt", "Steam App ID"},
		{"configs.user.ini", "user configuration"},
		{"steam_interfaces.txt", "interface list"},
	} {
		path := filepath.Join(settings, f.name)
		if _, err := os.Stat(path); err != nil {
			warn("steam_settings at %s is missing %s (%s).", settings, f.name, f.desc)
			continue
		}
		if f.name != "steam_appid.txt" {
			log.Info().Msgf("found Goldberg config file: %s", path)
			continue
		}
		data, err := os.ReadFile(path) //nolint:gosec // G304: inside the game dir
		if err != nil {
			warn("Failed to read %s: %v", path, err)
			continue
		}
		got := strings.TrimSpace(string(data))
		if h.SteamAppID != "" && got != h.SteamAppID {
			warn("steam_appid.txt at %s contains %s but handler expects %s.", path, got, h.SteamAppID)
		}
		log.Info().Msgf("steam_appid.txt at %s has value %s", path, got)
	}
}

func isWithin(dir, root string) bool {
	rel, err := filepath.Rel(root, dir)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, "../")
}

func isFile(dir string, e os.DirEntry) bool {
	if e.Type().IsRegular() {
		return true
	}
	// Mirrored trees are made of symlinks to regular files.
	info, err := os.Stat(filepath.Join(dir, e.Name()))
	return err == nil && info.Mode().IsRegular()
}
