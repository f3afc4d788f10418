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
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/ini.v1"
)

func init() {
	// Goldberg reads "key=value" without padding around the equals sign.
	ini.PrettyFormat = false
	ini.PrettyEqual = false
}

// IniKey is one key of an IniSection.
type IniKey struct {
	Name  string
	Value string
}

// IniSection is a named section with keys in write order.
type IniSection struct {
	Name string
	Keys []IniKey
}

// EncodeIni renders sections in order.
func EncodeIni(sections ...IniSection) ([]byte, error) {
	f, err := buildIni(sections)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to encode ini: %w", err)
	}
	return buf.Bytes(), nil
}

func buildIni(sections []IniSection) (*ini.File, error) {
	f := ini.Empty()
	for _, s := range sections {
		sec, err := f.NewSection(s.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to add ini section %s: %w", s.Name, err)
		}
		for _, k := range s.Keys {
			if _, err := sec.NewKey(k.Name, k.Value); err != nil {
				return nil, fmt.Errorf("failed to add ini key %s: %w", k.Name, err)
			}
		}
	}
	return f, nil
}

// WriteIni writes sections to path, replacing any existing file.
func WriteIni(path string, sections ...IniSection) error {
	f, err := buildIni(sections)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(path), err)
	}
	// Replace rather than write through an existing symlink.
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	if err := f.SaveTo(path); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// IniValue returns the value of key in section of an encoded ini
// document, or "" if the section or key is missing.
func IniValue(data []byte, section, key string) string {
	f, err := ini.Load(data)
	if err != nil {
		return ""
	}
	return f.Section(section).Key(key).String()
}
