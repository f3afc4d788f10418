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

package profiles

import (
	"crypto/sha1" //nolint:gosec // G505: content fingerprint, not a security boundary
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

// NemirtingasFile is the Epic emulator config name.
const NemirtingasFile = "NemirtingasEpicEmu.json"

var ErrInvalidHexField = errors.New("preserved identity field is not hexadecimal")

var validate = validator.New()

// preservedFields survive a rewrite so a profile keeps its Epic identity.
var preservedFields = []string{"epicid", "productuserid"}

// NemirtingasConfig locates a written Epic emulator config.
type NemirtingasConfig struct {
	Dir  string
	Path string
	// SHA1 is the hex digest of the bytes written.
	SHA1 string
}

type nemirtingasDoc struct {
	Username      string `json:"username"`
	Language      string `json:"language"`
	AppID         string `json:"appid"`
	LogLevel      string `json:"log_level"`
	EpicID        string `json:"epicid,omitempty"`
	ProductUserID string `json:"productuserid,omitempty"`
}

// EnsureNemirtingasConfig writes the profile's Epic emulator config for
// appID, keeping the identity fields of any previous config, and flushes
// it to disk before returning.
func (s *Store) EnsureNemirtingasConfig(profile, appID string) (NemirtingasConfig, error) {
	if err := s.CreateProfile(profile); err != nil {
		return NemirtingasConfig{}, err
	}

	dir := s.NemirtingasDir(profile)
	path := filepath.Join(dir, NemirtingasFile)

	preserved, err := s.readPreserved(path)
	if err != nil {
		return NemirtingasConfig{}, err
	}

	doc := nemirtingasDoc{
		Username:      DisplayName(profile),
		Language:      "en",
		AppID:         appID,
		LogLevel:      "info",
		EpicID:        preserved["epicid"],
		ProductUserID: preserved["productuserid"],
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return NemirtingasConfig{}, fmt.Errorf("failed to encode %s: %w", path, err)
	}

	if err := s.writeSynced(path, data); err != nil {
		return NemirtingasConfig{}, err
	}

	sum := sha1.Sum(data) //nolint:gosec // G401: see import
	return NemirtingasConfig{Dir: dir, Path: path, SHA1: hex.EncodeToString(sum[:])}, nil
}

func (s *Store) readPreserved(path string) (map[string]string, error) {
	out := map[string]string{}
	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return out, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(data) == 0 {
		return out, nil
	}

	var existing map[string]any
	if err := json.Unmarshal(data, &existing); err != nil {
		log.Warn().Err(err).Msgf("replacing unreadable Nemirtingas config %s", path)
		return out, nil
	}

	for _, key := range preservedFields {
		v, ok := existing[key]
		if !ok || v == nil {
			continue
		}
		str, isStr := v.(string)
		if !isStr {
			return nil, fmt.Errorf("%w: %s in %s", ErrInvalidHexField, key, path)
		}
		if str == "" {
			continue
		}
		if err := validate.Var(str, "hexadecimal"); err != nil {
			return nil, fmt.Errorf("%w: %s=%q in %s", ErrInvalidHexField, key, str, path)
		}
		out[key] = str
	}
	return out, nil
}

func (s *Store) writeSynced(path string, data []byte) error {
	if err := s.fs.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(path), err)
	}
	f, err := s.fs.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to sync %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	return nil
}

// ResetNemirtingasSession clears emulator command state left by earlier
// runs. The Logs directory is kept; Commands is recreated if anything was
// removed. Failures are logged.
func (s *Store) ResetNemirtingasSession(profile string) {
	appdata := filepath.Join(s.NemirtingasDir(profile), "appdata")
	entries, err := afero.ReadDir(s.fs, appdata)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Warn().Err(err).Msgf("failed to enumerate Nemirtingas appdata %s", appdata)
		}
		return
	}

	cleared := false
	for _, e := range entries {
		if e.Name() == "Logs" {
			continue
		}
		p := filepath.Join(appdata, e.Name())
		if err := s.fs.RemoveAll(p); err != nil {
			log.Warn().Err(err).Msgf("failed to remove stale Nemirtingas appdata %s", p)
			continue
		}
		cleared = true
	}

	if cleared {
		if err := s.fs.MkdirAll(filepath.Join(appdata, "Commands"), 0o750); err != nil {
			log.Warn().Err(err).Msg("failed to recreate Nemirtingas command directory")
		}
	}
}
