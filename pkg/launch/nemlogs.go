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
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/charlievieth/fastwalk"
	"github.com/rs/zerolog/log"
)

// nemirtingasLogRoots are the emulator's log locations inside a prefix.
func nemirtingasLogRoots(prefix string) []string {
	appdata := filepath.Join(prefix, "drive_c", "users", "steamuser", "AppData")
	return []string{
		filepath.Join(appdata, "Roaming", "NemirtingasEpicEmu"),
		filepath.Join(appdata, "Local", "NemirtingasEpicEmu"),
	}
}

func isNemirtingasLog(name string) bool {
	lower := strings.ToLower(name)
	if !strings.HasSuffix(lower, ".log") && !strings.HasSuffix(lower, ".txt") {
		return false
	}
	return strings.Contains(lower, "nemirtingas") || strings.Contains(lower, "applog")
}

func findNemirtingasLogs(roots []string) []string {
	var (
		mu      sync.Mutex
		sources []string
	)
	conf := fastwalk.Config{Follow: false}
	for _, root := range roots {
		if _, err := os.Stat(root); err != nil {
			continue
		}
		err := fastwalk.Walk(&conf, root, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				log.Warn().Err(err).Msgf("failed to enumerate Nemirtingas logs under %s", p)
				return nil
			}
			if d.IsDir() || !isNemirtingasLog(d.Name()) {
				return nil
			}
			mu.Lock()
			sources = append(sources, p)
			mu.Unlock()
			return nil
		})
		if err != nil {
			log.Warn().Err(err).Msgf("failed to walk %s", root)
		}
	}
	slices.Sort(sources)
	return slices.Compact(sources)
}

// collectNemirtingasLogs concatenates the emulator logs a prefix
// accumulated into dest, one "===== path =====" section per file. Nothing
// is written when no logs exist.
func collectNemirtingasLogs(prefix, dest string) error {
	var out bytes.Buffer
	for _, src := range findNemirtingasLogs(nemirtingasLogRoots(prefix)) {
		//nolint:gosec // G304: found by walking the prefix
		data, err := os.ReadFile(src)
		if err != nil {
			log.Warn().Err(err).Msgf("failed to read Nemirtingas log %s", src)
			continue
		}
		fmt.Fprintf(&out, "===== %s =====\n", src)
		out.Write(data)
		if !bytes.HasSuffix(data, []byte("\n")) {
			out.WriteByte('\n')
		}
		out.WriteByte('\n')
	}
	if out.Len() == 0 {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o750); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(dest), err)
	}
	if err := os.WriteFile(dest, out.Bytes(), 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", dest, err)
	}
	return nil
}
