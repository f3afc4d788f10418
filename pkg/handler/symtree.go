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
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/SplitHappens/split-happens/pkg/config"
	"github.com/SplitHappens/split-happens/pkg/helpers"
	"github.com/SplitHappens/split-happens/pkg/helpers/command"
	"github.com/rs/zerolog/log"
)

// GameDir is the directory instances of h run from: the shared symlink
// tree for handlers that need one, otherwise the game root itself.
func GameDir(paths config.Paths, h *Handler, root string) string {
	if h.SymlinkDir {
		return paths.GameSymsDir(h.UID)
	}
	return root
}

// BuildSymlinkTree creates gamesyms/<uid> from the game root. An existing
// tree is reused as is. The steps run in a fixed order and later steps
// override earlier ones:
//
//  1. mirror root with symlinks, leaving out never-symlink paths and the
//     Nemirtingas config
//  2. replace copy_instead paths with real copies
//  3. delete remove paths and per-profile paths
//  4. copy the handler's copy_to_symdir tree over the result
//  5. provision Goldberg when the handler uses it
func BuildSymlinkTree(ctx context.Context, paths config.Paths, h *Handler, root string, exec command.Executor) error {
	sym := paths.GameSymsDir(h.UID)
	if _, err := os.Stat(sym); err == nil {
		log.Debug().Str("uid", h.UID).Msg("symlink tree already built")
		return nil
	}

	log.Info().Str("uid", h.UID).Str("root", root).Msg("building symlink tree")
	if err := os.MkdirAll(sym, 0o750); err != nil {
		return fmt.Errorf("failed to create %s: %w", sym, err)
	}

	err := buildSymlinkTree(ctx, paths, h, root, sym, exec)
	if err != nil {
		// A half built tree would be reused by the next launch.
		if rmErr := os.RemoveAll(sym); rmErr != nil {
			log.Warn().Err(rmErr).Msgf("failed to remove partial tree %s", sym)
		}
		return err
	}
	return nil
}

func buildSymlinkTree(
	ctx context.Context,
	paths config.Paths,
	h *Handler,
	root, sym string,
	exec command.Executor,
) error {
	never := append([]string{}, h.NeverSymlinkPaths...)
	if h.HasNemirtingas() && h.NemirtingasPath != "" {
		never = append(never, h.NemirtingasPath)
	}

	err := helpers.CopyDir(root, sym, helpers.CopyDirOptions{
		Symlink: true,
		Exclude: func(rel string) bool { return matchesAny(rel, never) },
	})
	if err != nil {
		return fmt.Errorf("failed to mirror game root: %w", err)
	}

	for _, p := range h.CopyInsteadPaths {
		if err := copyInstead(filepath.Join(root, p), filepath.Join(sym, p)); err != nil {
			return err
		}
	}

	for _, p := range append(append([]string{}, h.RemovePaths...), h.GameUniquePaths...) {
		target := filepath.Join(sym, p)
		if _, err := os.Lstat(target); err != nil {
			continue
		}
		if err := os.RemoveAll(target); err != nil {
			return fmt.Errorf("failed to remove %s: %w", target, err)
		}
	}

	overrides := filepath.Join(h.Dir, "copy_to_symdir")
	if info, err := os.Stat(overrides); err == nil && info.IsDir() {
		if err := helpers.CopyDir(overrides, sym, helpers.CopyDirOptions{Overwrite: true}); err != nil {
			return fmt.Errorf("failed to apply copy_to_symdir: %w", err)
		}
	}

	if h.GoldbergPath != "" {
		return provisionGoldberg(ctx, paths, h, root, sym, exec)
	}
	return nil
}

func copyInstead(src, dest string) error {
	info, err := os.Stat(src)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to stat %s: %w", src, err)
	}

	if info.IsDir() {
		log.Debug().Msgf("copying directory instead of linking: %s", src)
		if err := helpers.CopyDir(src, dest, helpers.CopyDirOptions{Overwrite: true}); err != nil {
			return fmt.Errorf("failed to copy %s: %w", src, err)
		}
		return nil
	}

	log.Debug().Msgf("copying file instead of linking: %s", src)
	if err := os.MkdirAll(filepath.Dir(dest), 0o750); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(dest), err)
	}
	return helpers.CopyFile(src, dest)
}

// matchesAny reports whether rel is one of list or lies below one of them.
func matchesAny(rel string, list []string) bool {
	for _, p := range list {
		if rel == p || strings.HasPrefix(rel, p+"/") {
			return true
		}
	}
	return false
}
