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

package steam

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/andygrunwald/vdf"
	"github.com/rs/zerolog/log"
)

// AppInfo contains metadata for a Steam app from its manifest.
type AppInfo struct {
	Name       string
	InstallDir string
	AppID      int
}

func parseVDF(path string) (map[string]any, error) {
	//nolint:gosec // Safe: reads Steam config files
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msgf("error closing %s", path)
		}
	}()

	m, err := vdf.NewParser(f).Parse()
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return normalizeVDFKeys(m), nil
}

// ReadAppManifest reads a Steam app manifest and returns its info.
// steamAppsDir should point to the steamapps directory.
func ReadAppManifest(steamAppsDir string, appID int) (AppInfo, bool) {
	manifestPath := filepath.Join(steamAppsDir, fmt.Sprintf("appmanifest_%d.acf", appID))

	m, err := parseVDF(manifestPath)
	if err != nil {
		log.Debug().Err(err).Int("appID", appID).Msg("failed to read app manifest")
		return AppInfo{}, false
	}

	appState, ok := m["appstate"].(map[string]any)
	if !ok {
		log.Warn().Int("appID", appID).Msg("AppState not found in manifest")
		return AppInfo{}, false
	}

	name, ok := appState["name"].(string)
	if !ok {
		log.Warn().Int("appID", appID).Msg("name not found in manifest")
		return AppInfo{}, false
	}

	installDir, _ := appState["installdir"].(string) //nolint:revive // installdir is optional

	return AppInfo{
		AppID:      appID,
		Name:       name,
		InstallDir: installDir,
	}, true
}

// LibraryDirs returns the steamapps directory of every Steam library,
// the main one first. Libraries listed in libraryfolders.vdf that no longer
// exist on disk are skipped.
func LibraryDirs(steamDir string) []string {
	main := FindSteamAppsDir(steamDir)
	dirs := []string{main}
	seen := map[string]struct{}{filepath.Clean(main): {}}

	m, err := parseVDF(filepath.Join(main, "libraryfolders.vdf"))
	if err != nil {
		log.Debug().Err(err).Msg("no additional Steam libraries")
		return dirs
	}

	lfs, ok := m["libraryfolders"].(map[string]any)
	if !ok {
		return dirs
	}

	// vdf keys are "0", "1", ... and map order is random
	for i := 0; i < len(lfs); i++ {
		ls, ok := lfs[strconv.Itoa(i)].(map[string]any)
		if !ok {
			continue
		}
		libraryPath, ok := ls["path"].(string)
		if !ok || libraryPath == "" {
			continue
		}
		dir := filepath.Clean(filepath.Join(libraryPath, "steamapps"))
		if _, dup := seen[dir]; dup {
			continue
		}
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			continue
		}
		seen[dir] = struct{}{}
		dirs = append(dirs, dir)
	}
	return dirs
}

// FindInstallDir searches every library of steamDir for an installed app
// and returns its full install directory.
func FindInstallDir(steamDir string, appID int) (string, bool) {
	for _, dir := range LibraryDirs(steamDir) {
		info, ok := ReadAppManifest(dir, appID)
		if !ok || info.InstallDir == "" {
			continue
		}
		path := filepath.Join(dir, "common", info.InstallDir)
		if _, err := os.Stat(path); err == nil {
			return path, true
		}
	}
	return "", false
}
