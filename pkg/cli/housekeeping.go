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

package cli

import (
	"fmt"
	"os"

	"github.com/SplitHappens/split-happens/pkg/config"
	"github.com/SplitHappens/split-happens/pkg/profiles"
	"github.com/rs/zerolog/log"
)

// Housekeep restores the data root to a clean idle state: the top level
// directories exist, guest profiles from an earlier session are gone and
// the scratch directory is empty.
func Housekeep(paths config.Paths, store *profiles.Store) error {
	for _, dir := range []string{paths.GameSymsRoot(), paths.HandlersDir(), paths.ProfilesDir()} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	if err := store.RemoveGuestProfiles(); err != nil {
		return fmt.Errorf("failed to remove guest profiles: %w", err)
	}

	if err := os.RemoveAll(paths.TmpDir()); err != nil {
		return fmt.Errorf("failed to clear %s: %w", paths.TmpDir(), err)
	}
	log.Debug().Msg("housekeeping done")
	return nil
}
