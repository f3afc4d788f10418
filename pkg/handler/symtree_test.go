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
	"os"
	"path/filepath"
	"testing"

	"github.com/SplitHappens/split-happens/pkg/config"
	"github.com/SplitHappens/split-happens/pkg/helpers/command"
	testhelpers "github.com/SplitHappens/split-happens/pkg/testing/helpers"
	"github.com/SplitHappens/split-happens/pkg/testing/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type symtreeFixture struct {
	paths config.Paths
	root  string
	h     *Handler
}

func newSymtreeFixture(t *testing.T) symtreeFixture {
	t.Helper()
	data := t.TempDir()
	root := t.TempDir()
	testhelpers.WriteTree(t, root, map[string]string{
		"game.bin":                    "elf",
		"data/level1.pak":             "pak",
		"Config/settings.cfg":         "cfg",
		"Launcher.exe":                "launcher",
		"Saved/slot0":                 "save",
		"Cache/shader.bin":            "cache",
		"eos/NemirtingasEpicEmu.json": "{}",
	})

	handlerDir := filepath.Join(data, "handlers", "demo")
	testhelpers.WriteTree(t, handlerDir, map[string]string{
		"copy_to_symdir/data/level1.pak": "patched",
	})

	return symtreeFixture{
		paths: config.NewPaths(config.WithDataRoot(data)),
		root:  root,
		h: &Handler{
			UID:               "demo",
			Dir:               handlerDir,
			SymlinkDir:        true,
			CopyInsteadPaths:  []string{"Config"},
			RemovePaths:       []string{"Launcher.exe"},
			NeverSymlinkPaths: []string{"Cache"},
			GameUniquePaths:   []string{"Saved"},
			NemirtingasPath:   "eos/NemirtingasEpicEmu.json",
		},
	}
}

func TestBuildSymlinkTree(t *testing.T) {
	t.Parallel()

	f := newSymtreeFixture(t)
	exec := mocks.MockCommandExecutor{}

	require.NoError(t, BuildSymlinkTree(context.Background(), f.paths, f.h, f.root, &exec))
	sym := f.paths.GameSymsDir("demo")
	assert.Equal(t, sym, GameDir(f.paths, f.h, f.root))

	link, err := os.Readlink(filepath.Join(sym, "game.bin"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(f.root, "game.bin"), link)

	// copy_instead paths are real files
	info, err := os.Lstat(filepath.Join(sym, "Config", "settings.cfg"))
	require.NoError(t, err)
	assert.True(t, info.Mode().IsRegular())

	assert.NoFileExists(t, filepath.Join(sym, "Launcher.exe"))
	assert.NoDirExists(t, filepath.Join(sym, "Saved"))
	assert.NoDirExists(t, filepath.Join(sym, "Cache"))
	assert.NoFileExists(t, filepath.Join(sym, "eos", "NemirtingasEpicEmu.json"))

	// copy_to_symdir overrides the mirrored link
	data, err := os.ReadFile(filepath.Join(sym, "data", "level1.pak"))
	require.NoError(t, err)
	assert.Equal(t, "patched", string(data))
	info, err = os.Lstat(filepath.Join(sym, "data", "level1.pak"))
	require.NoError(t, err)
	assert.True(t, info.Mode().IsRegular())

	// the game root is untouched
	assert.FileExists(t, filepath.Join(f.root, "Launcher.exe"))
	data, err = os.ReadFile(filepath.Join(f.root, "data", "level1.pak"))
	require.NoError(t, err)
	assert.Equal(t, "pak", string(data))

	exec.AssertNotCalled(t, "RunSpec", mock.Anything, mock.Anything)
}

func TestBuildSymlinkTree_Reused(t *testing.T) {
	t.Parallel()

	f := newSymtreeFixture(t)
	sym := f.paths.GameSymsDir("demo")
	require.NoError(t, os.MkdirAll(sym, 0o750))

	exec := mocks.MockCommandExecutor{}
	require.NoError(t, BuildSymlinkTree(context.Background(), f.paths, f.h, f.root, &exec))

	entries, err := os.ReadDir(sym)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestGameDir_NoSymlinkTree(t *testing.T) {
	t.Parallel()

	paths := config.NewPaths(config.WithDataRoot(t.TempDir()))
	assert.Equal(t, "/games/demo", GameDir(paths, &Handler{UID: "demo"}, "/games/demo"))
}

func goldbergFixture(t *testing.T) symtreeFixture {
	t.Helper()
	f := newSymtreeFixture(t)
	f.h.GoldbergPath = "bin"
	f.h.SteamAppID = "480"
	testhelpers.WriteTree(t, f.root, map[string]string{"bin/libsteam_api.so": "real"})
	testhelpers.WriteTree(t, f.paths.ResDir(), map[string]string{
		"goldberg/linux/x64/libsteam_api.so": "emu",
		"goldberg/generate_interfaces_x64":   "",
	})
	return f
}

func TestBuildSymlinkTree_Goldberg(t *testing.T) {
	t.Parallel()

	f := goldbergFixture(t)
	exec := mocks.MockCommandExecutor{}
	exec.On("RunSpec", mock.Anything, mock.MatchedBy(func(s command.Spec) bool {
		return filepath.Base(s.Name) == "generate_interfaces_x64" &&
			len(s.Args) == 1 && s.Args[0] == filepath.Join(f.root, "bin", "libsteam_api.so") &&
			filepath.Base(s.Dir) == "steam_settings"
	})).Return(nil).Once()

	require.NoError(t, BuildSymlinkTree(context.Background(), f.paths, f.h, f.root, &exec))
	exec.AssertExpectations(t)

	bin := filepath.Join(f.paths.GameSymsDir("demo"), "bin")
	data, err := os.ReadFile(filepath.Join(bin, "libsteam_api.so"))
	require.NoError(t, err)
	assert.Equal(t, "emu", string(data))

	data, err = os.ReadFile(filepath.Join(bin, "steam_settings", "steam_appid.txt"))
	require.NoError(t, err)
	assert.Equal(t, "480", string(data))

	data, err = os.ReadFile(filepath.Join(bin, "steam_settings", "gc_token.txt"))
	require.NoError(t, err)
	assert.Equal(t, "1", string(data))

	data, err = os.ReadFile(filepath.Join(bin, "steam_settings", "configs.user.ini"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "local_save_path=./goldbergsave")

	assert.FileExists(t, filepath.Join(bin, "disable_lan_only.txt"))
	assert.DirExists(t, filepath.Join(bin, "steam_settings", "mods"))

	// the real library in the game root is not overwritten through the link
	data, err = os.ReadFile(filepath.Join(f.root, "bin", "libsteam_api.so"))
	require.NoError(t, err)
	assert.Equal(t, "real", string(data))
}

func TestBuildSymlinkTree_GoldbergColdClient(t *testing.T) {
	t.Parallel()

	f := goldbergFixture(t)
	f.h.ColdClient = true
	exec := mocks.MockCommandExecutor{}

	require.NoError(t, BuildSymlinkTree(context.Background(), f.paths, f.h, f.root, &exec))
	exec.AssertNotCalled(t, "RunSpec", mock.Anything, mock.Anything)

	link, err := os.Readlink(filepath.Join(f.paths.GameSymsDir("demo"), "bin", "libsteam_api.so"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(f.root, "bin", "libsteam_api.so"), link)
}

func TestBuildSymlinkTree_GenerateFailureRemovesTree(t *testing.T) {
	t.Parallel()

	f := goldbergFixture(t)
	exec := mocks.MockCommandExecutor{}
	exec.On("RunSpec", mock.Anything, mock.Anything).Return(errors.New("exit status 1"))

	err := BuildSymlinkTree(context.Background(), f.paths, f.h, f.root, &exec)
	require.ErrorIs(t, err, ErrInterfaceGeneration)
	assert.NoDirExists(t, f.paths.GameSymsDir("demo"))
}

func TestMatchesAny(t *testing.T) {
	t.Parallel()

	list := []string{"Saved", "a/b"}
	assert.True(t, matchesAny("Saved", list))
	assert.True(t, matchesAny("Saved/x", list))
	assert.True(t, matchesAny("a/b/c", list))
	assert.False(t, matchesAny("SavedGames", list))
	assert.False(t, matchesAny("a", list))
}
