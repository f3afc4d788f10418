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

	testhelpers "github.com/SplitHappens/split-happens/pkg/testing/helpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	err   error
	calls int
}

func (f *fakeFetcher) FetchHeader(_ context.Context, _, dest string) error {
	f.calls++
	if f.err != nil {
		//nolint:gosec // G306: test file permissions are fine
		_ = os.WriteFile(dest, []byte("partial"), 0o644)
		return f.err
	}
	//nolint:gosec // G306: test file permissions are fine
	return os.WriteFile(dest, []byte("jpeg"), 0o644)
}

func parse(t *testing.T, doc map[string]any, opts ...ParseOption) (Handler, error) {
	t.Helper()
	path := testhelpers.WriteHandler(t, t.TempDir(), doc)
	if len(opts) == 0 {
		opts = []ParseOption{WithHeaderFetcher(nil)}
	}
	return Parse(context.Background(), path, opts...)
}

func TestParse_UIDValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		uid     any
		name    string
		wantErr bool
	}{
		{name: "alphanumeric", uid: "Game2", wantErr: false},
		{name: "empty", uid: "", wantErr: true},
		{name: "missing", uid: nil, wantErr: true},
		{name: "dash", uid: "my-game", wantErr: true},
		{name: "space", uid: "my game", wantErr: true},
		{name: "traversal", uid: "../x", wantErr: true},
		{name: "unicode letters", uid: "Spielä", wantErr: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			doc := map[string]any{}
			if tt.uid != nil {
				doc["handler.uid"] = tt.uid
			}
			_, err := parse(t, doc)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidUID)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestParse_Defaults(t *testing.T) {
	t.Parallel()

	h, err := parse(t, map[string]any{"handler.uid": "demo"})
	require.NoError(t, err)

	assert.Equal(t, "demo", h.Display())
	assert.False(t, h.Win)
	assert.False(t, h.SymlinkDir)
	assert.Equal(t, RuntimeNone, h.Runtime)
	assert.Empty(t, h.Exec)
	assert.Empty(t, h.Args)
	assert.Empty(t, h.CopyInsteadPaths)
	assert.Empty(t, h.SteamAppID)
	assert.Empty(t, h.Images)
	assert.Empty(t, h.SteamHeader)
	assert.False(t, h.HasNemirtingas())
}

func TestParse_AllFields(t *testing.T) {
	t.Parallel()

	h, err := parse(t, map[string]any{
		"handler.uid":                "demo",
		"handler.name":               "Demo Game",
		"handler.author":             "someone",
		"handler.version":            "1.2",
		"game.symlink_dir":           true,
		"game.win":                   true,
		"game.32bit":                 true,
		"game.runtime":               "soldier",
		"game.exec":                  "/Binaries\\Win32\\Demo.exe",
		"game.args":                  []any{"-windowed", "$WIDTHXHEIGHT"},
		"game.copy_instead_paths":    []any{"Config", "../../etc"},
		"game.remove_paths":          []any{"Launcher.exe"},
		"game.dll_overrides":         []any{"winmm", "dinput8"},
		"game.never_symlink_paths":   []any{"Saved"},
		"steam.api_path":             "Binaries/Win32",
		"steam.appid":                480,
		"steam.gb_coldclient":        true,
		"eos.config_path":            "Binaries/Win32/nepice_settings/NemirtingasEpicEmu.json",
		"eos.per_instance":           true,
		"profiles.unique_appdata":    true,
		"profiles.unique_documents":  true,
		"profiles.unique_localshare": true,
		"profiles.unique_config":     true,
		"profiles.game_paths":        []any{"Saved/Config", ""},
	})
	require.NoError(t, err)

	assert.Equal(t, "Demo Game", h.Display())
	assert.Equal(t, RuntimeSoldier, h.Runtime)
	assert.Equal(t, "Binaries/Win32/Demo.exe", h.Exec)
	assert.Equal(t, []string{"-windowed", "$WIDTHXHEIGHT"}, h.Args)
	assert.Equal(t, []string{"Config", "etc"}, h.CopyInsteadPaths)
	assert.Equal(t, []string{"winmm", "dinput8"}, h.DLLOverrides)
	assert.Equal(t, "480", h.SteamAppID)
	assert.Equal(t, "steam_api.dll", h.SteamLibrary())
	assert.Equal(t, []string{"Saved/Config"}, h.GameUniquePaths)
	assert.True(t, h.HasNemirtingas())
	assert.True(t, h.ColdClient)
	assert.True(t, h.UniqueConfig)
}

func TestParse_Malformed(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, DescriptorFile)
	//nolint:gosec // G306: test file permissions are fine
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := Parse(context.Background(), path, WithHeaderFetcher(nil))
	require.ErrorIs(t, err, ErrInvalidFormat)

	_, err = Parse(context.Background(), filepath.Join(dir, "missing.json"), WithHeaderFetcher(nil))
	require.ErrorIs(t, err, ErrNoDescriptor)
}

func TestParse_GalleryImages(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	testhelpers.WriteTree(t, dir, map[string]string{
		"imgs/b.png":     "",
		"imgs/a.jpg":     "",
		"imgs/c.gif":     "",
		"imgs/notes":     "",
		"imgs/sub/d.png": "",
	})
	path := testhelpers.WriteHandler(t, dir, map[string]any{"handler.uid": "demo"})

	h, err := Parse(context.Background(), path, WithHeaderFetcher(nil))
	require.NoError(t, err)

	assert.Equal(t, []string{
		filepath.Join(dir, "imgs", "a.jpg"),
		filepath.Join(dir, "imgs", "b.png"),
	}, h.Images)
}

func TestParse_SteamHeader(t *testing.T) {
	t.Parallel()

	t.Run("downloads_and_caches", func(t *testing.T) {
		t.Parallel()

		fetcher := &fakeFetcher{}
		dir := t.TempDir()
		path := testhelpers.WriteHandler(t, dir, map[string]any{"handler.uid": "demo", "steam.appid": "480"})

		h, err := Parse(context.Background(), path, WithHeaderFetcher(fetcher))
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "steam_header.jpg"), h.SteamHeader)

		_, err = Parse(context.Background(), path, WithHeaderFetcher(fetcher))
		require.NoError(t, err)
		assert.Equal(t, 1, fetcher.calls)
	})

	t.Run("failure_clears_reference", func(t *testing.T) {
		t.Parallel()

		fetcher := &fakeFetcher{err: errors.New("offline")}
		dir := t.TempDir()
		path := testhelpers.WriteHandler(t, dir, map[string]any{"handler.uid": "demo", "steam.appid": "480"})

		h, err := Parse(context.Background(), path, WithHeaderFetcher(fetcher))
		require.NoError(t, err)
		assert.Empty(t, h.SteamHeader)
		assert.NoFileExists(t, filepath.Join(dir, "steam_header.jpg"))
	})

	t.Run("no_appid_no_fetch", func(t *testing.T) {
		t.Parallel()

		fetcher := &fakeFetcher{}
		_, err := parse(t, map[string]any{"handler.uid": "demo"}, WithHeaderFetcher(fetcher))
		require.NoError(t, err)
		assert.Zero(t, fetcher.calls)
	})
}

func TestHandler_SteamLibrary(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "libsteam_api.so", (&Handler{}).SteamLibrary())
	assert.Equal(t, "steam_api64.dll", (&Handler{Win: true}).SteamLibrary())
	assert.Equal(t, "steam_api.dll", (&Handler{Win: true, Is32Bit: true}).SteamLibrary())
}
