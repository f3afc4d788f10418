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

// Package profiles manages player profiles: the per-player identity files
// read by the Steam and Epic emulators and the per-game save trees that
// isolate one player's data from another's.
package profiles

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/SplitHappens/split-happens/pkg/config"
	"github.com/SplitHappens/split-happens/pkg/handler"
	"github.com/SplitHappens/split-happens/pkg/helpers"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

// GuestName is the selection that stands for a throwaway profile.
const GuestName = "Guest"

// steamID64Base is the first individual account id in the public
// universe. Generated ids stay inside that range.
const steamID64Base = 76561197960265728

var ErrInvalidName = errors.New("invalid profile name")

// GuestNames are friendly names front ends can offer for new profiles.
var GuestNames = []string{
	"Blinky", "Pinky", "Inky", "Clyde", "Beatrice", "Battler", "Miyao", "Rena", "Ellie", "Joel",
	"Leon", "Ada", "Madeline", "Theo", "Yokatta", "Wyrm", "Brodiee", "Supreme", "Conk", "Gort",
	"Lich", "Smores", "Canary", "Trico", "Yorda", "Wander", "Agro", "Jak", "Daxter", "Soap",
	"Ghost",
}

// Store creates and lists profiles below the profiles directory.
type Store struct {
	fs    afero.Fs
	paths config.Paths
}

type Option func(*Store)

// WithFs swaps the filesystem the store works on.
func WithFs(fs afero.Fs) Option {
	return func(s *Store) { s.fs = fs }
}

func NewStore(paths config.Paths, opts ...Option) *Store {
	s := &Store{fs: afero.NewOsFs(), paths: paths}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GuestKey is the on-disk profile of the nth guest. Hidden names keep
// guests out of ScanProfiles and let RemoveGuestProfiles find them.
func GuestKey(n int) string {
	return "." + GuestName + strconv.Itoa(n)
}

// DisplayName strips the hidden marker from a profile key.
func DisplayName(profile string) string {
	return strings.TrimPrefix(profile, ".")
}

// ValidateName rejects names that cannot be used as a single directory.
func ValidateName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, "/\\\x00") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// SuggestName returns the first friendly name not already taken.
func SuggestName(existing []string) string {
	taken := make(map[string]struct{}, len(existing))
	for _, e := range existing {
		taken[strings.ToLower(e)] = struct{}{}
	}
	for _, n := range GuestNames {
		if _, ok := taken[strings.ToLower(n)]; !ok {
			return n
		}
	}
	return GuestName + strconv.Itoa(len(existing)+1)
}

func (s *Store) steamSettingsDir(profile string) string {
	return filepath.Join(s.paths.ProfileDir(profile), "steam", "settings")
}

// NemirtingasDir is the Epic emulator settings directory of a profile.
func (s *Store) NemirtingasDir(profile string) string {
	return filepath.Join(s.paths.ProfileDir(profile), "nepice_settings")
}

// NemirtingasLogPath is where collected emulator logs are written.
func (s *Store) NemirtingasLogPath(profile string) string {
	return filepath.Join(s.NemirtingasDir(profile), "NemirtingasEpicEmu.log")
}

// CreateProfile makes the profile directory and its Goldberg identity the
// first time a name is seen. Calling it again leaves the identity alone.
func (s *Store) CreateProfile(name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}

	dir := s.paths.ProfileDir(name)
	exists, err := afero.DirExists(s.fs, dir)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", dir, err)
	}

	if !exists {
		log.Info().Str("profile", name).Msg("creating profile")
		if err := s.writeSteamIdentity(name); err != nil {
			return err
		}
	}

	for _, d := range []string{s.steamSettingsDir(name), s.NemirtingasDir(name)} {
		if err := s.fs.MkdirAll(d, 0o750); err != nil {
			return fmt.Errorf("failed to create %s: %w", d, err)
		}
	}
	return nil
}

func (s *Store) writeSteamIdentity(name string) error {
	n, err := helpers.RandomUint32()
	if err != nil {
		return fmt.Errorf("failed to generate steam id: %w", err)
	}
	steamID := strconv.FormatUint(steamID64Base+uint64(n), 10)

	data, err := helpers.EncodeIni(helpers.IniSection{
		Name: "user::general",
		Keys: []helpers.IniKey{
			{Name: "account_name", Value: DisplayName(name)},
			{Name: "account_steamid", Value: steamID},
			{Name: "language", Value: "english"},
			{Name: "ip_country", Value: "US"},
		},
	})
	if err != nil {
		return err
	}

	dir := s.steamSettingsDir(name)
	if err := s.fs.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	path := filepath.Join(dir, "configs.user.ini")
	if err := afero.WriteFile(s.fs, path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// CreateGameSave prepares saves/<uid> for a profile: the private
// directories the handler asks for plus its bundled default save. An
// existing save tree is kept as is.
func (s *Store) CreateGameSave(profile string, h *handler.Handler) error {
	dir := s.paths.SaveDir(profile, h.UID)
	exists, err := afero.Exists(s.fs, dir)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", dir, err)
	}
	if exists {
		log.Debug().Str("profile", profile).Str("uid", h.UID).Msg("game save already exists")
		return nil
	}
	log.Info().Str("profile", profile).Str("uid", h.UID).Msg("creating game save")

	dirs := []string{dir}
	if h.UniqueAppData {
		dirs = append(dirs,
			filepath.Join(dir, "_AppData", "Local"),
			filepath.Join(dir, "_AppData", "LocalLow"),
			filepath.Join(dir, "_AppData", "Roaming"),
		)
	}
	if h.UniqueDocuments {
		dirs = append(dirs, filepath.Join(dir, "_Documents"))
	}
	if h.UniqueLocalShare {
		dirs = append(dirs, filepath.Join(dir, "_share"))
	}
	if h.UniqueConfig {
		dirs = append(dirs, filepath.Join(dir, "_config"))
	}
	for _, p := range h.GameUniquePaths {
		// Paths with a dot are taken to be files the default save provides.
		if p == "" || strings.Contains(p, ".") {
			continue
		}
		dirs = append(dirs, filepath.Join(dir, filepath.FromSlash(p)))
	}

	for _, d := range dirs {
		if err := s.fs.MkdirAll(d, 0o750); err != nil {
			return fmt.Errorf("failed to create %s: %w", d, err)
		}
	}

	defaults := filepath.Join(h.Dir, "copy_to_profilesave")
	if ok, _ := afero.DirExists(s.fs, defaults); ok {
		log.Info().Str("uid", h.UID).Msg("copying bundled save data")
		if err := copyTree(s.fs, defaults, dir); err != nil {
			return err
		}
	}
	return nil
}

// ScanProfiles lists profile names in lexical order. Hidden guest
// profiles are not listed. With includeGuest the Guest choice leads the
// list.
func (s *Store) ScanProfiles(includeGuest bool) []string {
	var out []string
	entries, err := afero.ReadDir(s.fs, s.paths.ProfilesDir())
	if err != nil {
		log.Debug().Err(err).Msg("no profiles directory")
	}
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)

	if includeGuest {
		out = append([]string{GuestName}, out...)
	}
	return out
}

// RemoveGuestProfiles deletes every hidden profile directory.
func (s *Store) RemoveGuestProfiles() error {
	root := s.paths.ProfilesDir()
	entries, err := afero.ReadDir(s.fs, root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read %s: %w", root, err)
	}

	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), ".") {
			continue
		}
		path := filepath.Join(root, e.Name())
		if err := s.fs.RemoveAll(path); err != nil {
			return fmt.Errorf("failed to remove guest profile %s: %w", path, err)
		}
		log.Debug().Msgf("removed guest profile %s", e.Name())
	}
	return nil
}

// copyTree copies regular files from src into dst, replacing files that
// already exist.
func copyTree(fs afero.Fs, src, dst string) error {
	err := afero.Walk(fs, src, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return fmt.Errorf("failed to relativise %s: %w", p, err)
		}
		target := filepath.Join(dst, rel)

		switch {
		case info.IsDir():
			if err := fs.MkdirAll(target, 0o750); err != nil {
				return fmt.Errorf("failed to create %s: %w", target, err)
			}
		case info.Mode().IsRegular():
			data, err := afero.ReadFile(fs, p)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", p, err)
			}
			if err := afero.WriteFile(fs, target, data, info.Mode().Perm()); err != nil {
				return fmt.Errorf("failed to write %s: %w", target, err)
			}
		default:
			log.Debug().Msgf("skipping non-regular file %s", p)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to copy %s to %s: %w", src, dst, err)
	}
	return nil
}
