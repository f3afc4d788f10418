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

// Package helpers builds fixtures shared by package tests.
package helpers

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

// FSHelper provides utilities for filesystem mocking in tests
type FSHelper struct {
	Fs afero.Fs
}

// NewMemoryFS creates a new in-memory filesystem for testing
func NewMemoryFS() *FSHelper {
	return &FSHelper{
		Fs: afero.NewMemMapFs(),
	}
}

// CreateDirectoryStructure creates files (string values) and directories
// (map values) below basePath.
func (h *FSHelper) CreateDirectoryStructure(basePath string, structure map[string]any) error {
	for name, content := range structure {
		fullPath := filepath.Join(basePath, name)

		switch v := content.(type) {
		case string:
			if err := h.Fs.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
				return fmt.Errorf("failed to create directory for file %s: %w", fullPath, err)
			}
			if err := afero.WriteFile(h.Fs, fullPath, []byte(v), 0o644); err != nil {
				return fmt.Errorf("failed to create file %s: %w", fullPath, err)
			}
		case map[string]any:
			if err := h.Fs.MkdirAll(fullPath, 0o755); err != nil {
				return fmt.Errorf("failed to create directory %s: %w", fullPath, err)
			}
			if err := h.CreateDirectoryStructure(fullPath, v); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unsupported content type for %s: %T", fullPath, content)
		}
	}
	return nil
}

// WriteTree writes files on the real filesystem below root. Keys are
// slash separated relative paths.
func WriteTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o750))
		//nolint:gosec // G306: test file permissions are fine
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
}

// WriteHandler writes a handler.json built from doc into dir and returns
// its path.
func WriteHandler(t *testing.T, dir string, doc map[string]any) string {
	t.Helper()
	data, err := json.MarshalIndent(doc, "", "  ")
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(dir, 0o750))
	path := filepath.Join(dir, "handler.json")
	//nolint:gosec // G306: test file permissions are fine
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

// FakeProc creates <root>/<pid>/cmdline so procfs readers can be pointed
// at root. Arguments are NUL separated as in the real file.
func FakeProc(t *testing.T, root string, pid int, args ...string) {
	t.Helper()
	dir := filepath.Join(root, strconv.Itoa(pid))
	require.NoError(t, os.MkdirAll(dir, 0o750))
	var data []byte
	for _, a := range args {
		data = append(data, a...)
		data = append(data, 0)
	}
	//nolint:gosec // G306: test file permissions are fine
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cmdline"), data, 0o644))
}
