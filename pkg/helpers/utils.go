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

package helpers

import (
	"archive/zip"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math/big"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/charlievieth/fastwalk"
	"github.com/rs/zerolog/log"
)

// RandomUint32 returns a cryptographically random uint32.
func RandomUint32() (uint32, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1<<32))
	if err != nil {
		return 0, fmt.Errorf("failed to generate random number: %w", err)
	}
	return uint32(n.Uint64()), nil //nolint:gosec // bounded by 1<<32
}

// CopyFile copies a regular file, keeping its permission bits. An existing
// destination, including a symlink, is replaced rather than written through.
func CopyFile(sourcePath, destPath string) error {
	//nolint:gosec // Safe: utility function for copying files with controlled paths
	inputFile, err := os.Open(sourcePath)
	if err != nil {
		return fmt.Errorf("failed to open source file %s: %w", sourcePath, err)
	}
	defer func(inputFile *os.File) {
		_ = inputFile.Close()
	}(inputFile)

	info, err := inputFile.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat source file %s: %w", sourcePath, err)
	}

	if err := os.Remove(destPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to replace destination file: %w", err)
	}

	//nolint:gosec // Safe: utility function for copying files with controlled paths
	outputFile, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("failed to create destination file: %w", err)
	}
	defer func(outputFile *os.File) {
		_ = outputFile.Close()
	}(outputFile)

	_, err = io.Copy(outputFile, inputFile)
	if err != nil {
		return fmt.Errorf("failed to copy file content: %w", err)
	}
	err = outputFile.Sync()
	if err != nil {
		return fmt.Errorf("failed to sync file: %w", err)
	}
	return nil
}

// CopyDirOptions controls CopyDir.
type CopyDirOptions struct {
	// Exclude is called with the slash separated path relative to the
	// source root. Excluded directories are not descended into.
	Exclude func(rel string) bool
	// Symlink creates links to the source files instead of copying them.
	Symlink bool
	// Overwrite replaces existing destination files. Without it existing
	// files are left alone.
	Overwrite bool
}

// CopyDir recreates the src tree under dst. Directories are always real
// directories; files are copied or linked depending on opts. Symlinks in
// the source are recreated pointing at the same target.
func CopyDir(src, dst string, opts CopyDirOptions) error {
	if err := os.MkdirAll(dst, 0o750); err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}

	conf := fastwalk.Config{Follow: false}
	err := fastwalk.Walk(&conf, src, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return fmt.Errorf("failed to relativise %s: %w", p, err)
		}
		if rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if opts.Exclude != nil && opts.Exclude(rel) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		target := filepath.Join(dst, filepath.FromSlash(rel))
		switch {
		case d.IsDir():
			if err := os.MkdirAll(target, 0o750); err != nil {
				return fmt.Errorf("failed to create %s: %w", target, err)
			}
			return nil
		case d.Type()&fs.ModeSymlink != 0:
			return copySymlink(p, target, opts.Overwrite)
		default:
			return copyEntry(p, target, opts)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to copy %s to %s: %w", src, dst, err)
	}
	return nil
}

func copyEntry(srcPath, target string, opts CopyDirOptions) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(target), err)
	}
	if _, err := os.Lstat(target); err == nil {
		if !opts.Overwrite {
			return nil
		}
		if err := os.RemoveAll(target); err != nil {
			return fmt.Errorf("failed to remove %s: %w", target, err)
		}
	}
	if opts.Symlink {
		if err := os.Symlink(srcPath, target); err != nil {
			return fmt.Errorf("failed to link %s: %w", target, err)
		}
		return nil
	}
	return CopyFile(srcPath, target)
}

func copySymlink(srcPath, target string, overwrite bool) error {
	link, err := os.Readlink(srcPath)
	if err != nil {
		return fmt.Errorf("failed to read link %s: %w", srcPath, err)
	}
	if _, err := os.Lstat(target); err == nil {
		if !overwrite {
			return nil
		}
		if err := os.RemoveAll(target); err != nil {
			return fmt.Errorf("failed to remove %s: %w", target, err)
		}
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(target), err)
	}
	if err := os.Symlink(link, target); err != nil {
		return fmt.Errorf("failed to link %s: %w", target, err)
	}
	return nil
}

// ErrZipSlip is returned when an archive entry escapes the destination.
var ErrZipSlip = errors.New("archive entry escapes destination")

// ExtractZip unpacks the archive at filePath into destDir.
func ExtractZip(filePath, destDir string) error {
	r, err := zip.OpenReader(filePath)
	if err != nil {
		return fmt.Errorf("failed to open zip file: %w", err)
	}
	defer func(r *zip.ReadCloser) {
		err := r.Close()
		if err != nil {
			log.Warn().Err(err).Msg("close zip failed")
		}
	}(r)

	for _, f := range r.File {
		name := SanitizePath(f.Name)
		if name == "" {
			continue
		}
		target := filepath.Join(destDir, filepath.FromSlash(name))
		if !strings.HasPrefix(target, filepath.Clean(destDir)+string(os.PathSeparator)) {
			return fmt.Errorf("%w: %s", ErrZipSlip, f.Name)
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o750); err != nil {
				return fmt.Errorf("failed to create %s: %w", target, err)
			}
			continue
		}
		if err := extractZipFile(f, target); err != nil {
			return err
		}
	}
	return nil
}

func extractZipFile(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(target), err)
	}
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("failed to open archive entry %s: %w", f.Name, err)
	}
	defer func() {
		_ = rc.Close()
	}()

	mode := f.Mode().Perm()
	if mode == 0 {
		mode = 0o644
	}
	//nolint:gosec // G304: target is checked against destDir
	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", target, err)
	}
	defer func() {
		_ = out.Close()
	}()

	//nolint:gosec // G110: handler bundles are installed by the local user
	if _, err := io.Copy(out, rc); err != nil {
		return fmt.Errorf("failed to extract %s: %w", f.Name, err)
	}
	return nil
}

// SanitizePath normalises a relative path taken from a descriptor or
// archive: backslashes become slashes, the result is cleaned and any
// leading root or parent references are dropped so it can never escape
// the directory it is joined onto. An empty or "." path becomes "".
func SanitizePath(p string) string {
	p = strings.TrimSpace(strings.ReplaceAll(p, "\\", "/"))
	if p == "" {
		return ""
	}
	p = path.Clean("/" + p)
	p = strings.TrimPrefix(p, "/")
	if p == "." {
		return ""
	}
	return p
}

// SanitizeFilename turns an identifier into a single path element.
func SanitizeFilename(s string) string {
	s = SanitizePath(s)
	return strings.ReplaceAll(s, "/", "_")
}
