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
	"path/filepath"
	"strings"

	"github.com/SplitHappens/split-happens/pkg/config"
	"github.com/SplitHappens/split-happens/pkg/helpers"
	"github.com/rs/zerolog/log"
)

// ArchiveExt is the extension of installable handler bundles.
const ArchiveExt = ".pdh"

var ErrInvalidArchive = errors.New("handler archive not valid")

// Install unpacks a handler bundle into the handlers directory under the
// uid its descriptor declares, replacing any previous install of that
// uid, and returns the uid.
func Install(paths config.Paths, archive string) (string, error) {
	info, err := os.Stat(archive)
	if err != nil || !info.Mode().IsRegular() || !strings.EqualFold(filepath.Ext(archive), ArchiveExt) {
		return "", fmt.Errorf("%w: %s", ErrInvalidArchive, archive)
	}

	if err := os.MkdirAll(paths.TmpDir(), 0o750); err != nil {
		return "", fmt.Errorf("failed to create tmp dir: %w", err)
	}
	tmp, err := os.MkdirTemp(paths.TmpDir(), "install-")
	if err != nil {
		return "", fmt.Errorf("failed to create extraction dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(tmp); err != nil {
			log.Warn().Err(err).Msgf("failed to remove %s", tmp)
		}
	}()

	if err := helpers.ExtractZip(archive, tmp); err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidArchive, err)
	}

	doc, err := readDocument(filepath.Join(tmp, DescriptorFile))
	if err != nil {
		return "", err
	}
	uid, ok := doc["handler.uid"].(string)
	if !ok || uid == "" {
		return "", fmt.Errorf("%w: no uid field found in %s", ErrInvalidUID, DescriptorFile)
	}
	if err := ValidateUID(uid); err != nil {
		return "", err
	}

	if err := os.MkdirAll(paths.HandlersDir(), 0o750); err != nil {
		return "", fmt.Errorf("failed to create handlers dir: %w", err)
	}
	dest := filepath.Join(paths.HandlersDir(), uid)
	if err := os.RemoveAll(dest); err != nil {
		return "", fmt.Errorf("failed to remove previous install: %w", err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		log.Debug().Err(err).Msg("rename failed, copying handler instead")
		if err := helpers.CopyDir(tmp, dest, helpers.CopyDirOptions{Overwrite: true}); err != nil {
			return "", fmt.Errorf("failed to install handler: %w", err)
		}
	}

	log.Info().Str("uid", uid).Msg("installed handler")
	return uid, nil
}
