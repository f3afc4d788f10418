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
	"context"
	"os"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog/log"
	"golang.org/x/text/cases"
)

// Scan parses every handlers/<dir>/handler.json. Handlers that fail to
// parse are logged and skipped. The result is ordered case-insensitively
// by display name.
func Scan(ctx context.Context, handlersDir string, opts ...ParseOption) []Handler {
	entries, err := os.ReadDir(handlersDir)
	if err != nil {
		log.Debug().Err(err).Msg("no handlers directory")
		return nil
	}

	var out []Handler
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		path := filepath.Join(handlersDir, entry.Name(), DescriptorFile)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		h, err := Parse(ctx, path, opts...)
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("skipping handler")
			continue
		}
		out = append(out, h)
	}

	fold := cases.Fold()
	sort.SliceStable(out, func(i, j int) bool {
		return fold.String(out[i].Display()) < fold.String(out[j].Display())
	})
	return out
}

// Find returns the installed handler with the given uid.
func Find(ctx context.Context, handlersDir, uid string, opts ...ParseOption) (Handler, error) {
	if err := ValidateUID(uid); err != nil {
		return Handler{}, err
	}
	return Parse(ctx, filepath.Join(handlersDir, uid, DescriptorFile), opts...)
}
