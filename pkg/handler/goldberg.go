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

	"github.com/SplitHappens/split-happens/pkg/config"
	"github.com/SplitHappens/split-happens/pkg/helpers"
	"github.com/SplitHappens/split-happens/pkg/helpers/command"
)

// ErrInterfaceGeneration is returned when generate_interfaces fails.
var ErrInterfaceGeneration = errors.New("generate interfaces failed")

var goldbergToggles = []struct {
	name     string
	contents string
}{
	{"disable_overlay.txt", ""},
	{"auto_accept_invite.txt", ""},
	{"disable_overlay_warning_any.txt", ""},
	{"gc_token.txt", "1"},
	{"new_app_ticket.txt", "1"},
}

// provisionGoldberg sets up the Goldberg emulator inside sym/<api_path>.
func provisionGoldberg(
	ctx context.Context,
	paths config.Paths,
	h *Handler,
	root, sym string,
	exec command.Executor,
) error {
	dest := filepath.Join(sym, h.GoldbergPath)
	settings := filepath.Join(dest, "steam_settings")
	if err := os.MkdirAll(filepath.Join(settings, "mods"), 0o750); err != nil {
		return fmt.Errorf("failed to create steam_settings: %w", err)
	}

	err := helpers.WriteIni(filepath.Join(settings, "configs.user.ini"), helpers.IniSection{
		Name: "user::saves",
		Keys: []helpers.IniKey{{Name: "local_save_path", Value: "./goldbergsave"}},
	})
	if err != nil {
		return err
	}

	if h.SteamAppID != "" {
		if err := writeFile(filepath.Join(settings, "steam_appid.txt"), h.SteamAppID); err != nil {
			return err
		}
	}

	// Goldberg looks for this one beside the library, not in steam_settings.
	if err := writeFile(filepath.Join(dest, "disable_lan_only.txt"), ""); err != nil {
		return err
	}
	for _, t := range goldbergToggles {
		if err := writeFile(filepath.Join(settings, t.name), t.contents); err != nil {
			return err
		}
	}

	lib := h.SteamLibrary()
	override := filepath.Join(h.Dir, lib)
	if _, err := os.Stat(override); err == nil {
		if err := helpers.CopyFile(override, filepath.Join(dest, lib)); err != nil {
			return fmt.Errorf("failed to apply bundled %s: %w", lib, err)
		}
	}

	// Coldclient handlers ship their own client in copy_to_symdir.
	if h.ColdClient {
		return nil
	}

	platform := "linux"
	if h.Win {
		platform = "win"
	}
	emu := filepath.Join(paths.ResDir(), "goldberg", platform, h.arch())
	if err := helpers.CopyDir(emu, dest, helpers.CopyDirOptions{Overwrite: true}); err != nil {
		return fmt.Errorf("failed to copy goldberg: %w", err)
	}

	gen := filepath.Join(paths.ResDir(), "goldberg", "generate_interfaces_"+h.arch())
	err = exec.RunSpec(ctx, command.Spec{
		Name: gen,
		Args: []string{filepath.Join(root, h.GoldbergPath, lib)},
		Dir:  settings,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInterfaceGeneration, err)
	}
	return nil
}

// writeFile replaces path, never writing through a mirrored symlink.
func writeFile(path, contents string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	//nolint:gosec // G306: emulator settings are not secret
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
