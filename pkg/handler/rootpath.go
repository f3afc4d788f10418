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
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/SplitHappens/split-happens/pkg/steam"
)

var ErrGameRootNotFound = errors.New("game root directory not found")

// RootLookup resolves user-configured game directories by handler uid.
type RootLookup interface {
	HandlerRoot(uid string) (string, bool)
}

// GameRoot finds the install directory of the game a handler runs: a
// configured directory wins, then the Steam library holding the handler's
// app id.
func GameRoot(h *Handler, steamDir string, roots RootLookup) (string, error) {
	if roots != nil {
		if dir, ok := roots.HandlerRoot(h.UID); ok {
			if info, err := os.Stat(dir); err == nil && info.IsDir() {
				return dir, nil
			}
			return "", fmt.Errorf("%w: configured directory %s for %s", ErrGameRootNotFound, dir, h.UID)
		}
	}

	if id, err := strconv.Atoi(h.SteamAppID); err == nil && steamDir != "" {
		if dir, ok := steam.FindInstallDir(steamDir, id); ok {
			return dir, nil
		}
	}

	return "", fmt.Errorf("%w: set one for %s with -set-root %s=<dir>", ErrGameRootNotFound, h.UID, h.UID)
}
