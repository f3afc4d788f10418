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
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/SplitHappens/split-happens/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeArchive(t *testing.T, path string, files map[string]string) {
	t.Helper()
	f, err := os.Create(path) //nolint:gosec // G304: test path
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
}

func TestInstall(t *testing.T) {
	t.Parallel()

	paths := config.NewPaths(config.WithDataRoot(t.TempDir()))
	archive := filepath.Join(t.TempDir(), "demo.pdh")
	writeArchive(t, archive, map[string]string{
		"handler.json":          `{"handler.uid": "demo"}`,
		"copy_to_symdir/a.txt":  "a",
		"copy_to_profilesave/b": "b",
	})

	uid, err := Install(paths, archive)
	require.NoError(t, err)
	assert.Equal(t, "demo", uid)
	assert.FileExists(t, filepath.Join(paths.HandlersDir(), "demo", "handler.json"))
	assert.FileExists(t, filepath.Join(paths.HandlersDir(), "demo", "copy_to_symdir", "a.txt"))

	entries, err := os.ReadDir(paths.TmpDir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestInstall_ReplacesPrevious(t *testing.T) {
	t.Parallel()

	paths := config.NewPaths(config.WithDataRoot(t.TempDir()))
	first := filepath.Join(t.TempDir(), "v1.pdh")
	writeArchive(t, first, map[string]string{"handler.json": `{"handler.uid": "demo"}`, "old.txt": "x"})
	second := filepath.Join(t.TempDir(), "v2.pdh")
	writeArchive(t, second, map[string]string{"handler.json": `{"handler.uid": "demo"}`, "new.txt": "y"})

	_, err := Install(paths, first)
	require.NoError(t, err)
	_, err = Install(paths, second)
	require.NoError(t, err)

	assert.NoFileExists(t, filepath.Join(paths.HandlersDir(), "demo", "old.txt"))
	assert.FileExists(t, filepath.Join(paths.HandlersDir(), "demo", "new.txt"))
}

func TestInstall_Rejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		files   map[string]string
		wantErr error
		name    string
		ext     string
	}{
		{
			name:    "wrong_extension",
			ext:     ".zip",
			files:   map[string]string{"handler.json": `{"handler.uid": "demo"}`},
			wantErr: ErrInvalidArchive,
		},
		{
			name:    "no_descriptor",
			ext:     ".pdh",
			files:   map[string]string{"readme.txt": "hi"},
			wantErr: ErrNoDescriptor,
		},
		{
			name:    "no_uid",
			ext:     ".pdh",
			files:   map[string]string{"handler.json": `{"handler.name": "x"}`},
			wantErr: ErrInvalidUID,
		},
		{
			name:    "bad_uid",
			ext:     ".pdh",
			files:   map[string]string{"handler.json": `{"handler.uid": "a/b"}`},
			wantErr: ErrInvalidUID,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			paths := config.NewPaths(config.WithDataRoot(t.TempDir()))
			archive := filepath.Join(t.TempDir(), "bundle"+tt.ext)
			writeArchive(t, archive, tt.files)

			_, err := Install(paths, archive)
			require.ErrorIs(t, err, tt.wantErr)

			entries, _ := os.ReadDir(paths.HandlersDir())
			assert.Empty(t, entries)
		})
	}
}
