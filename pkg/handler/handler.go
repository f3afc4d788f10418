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

// Package handler models game handlers: the handler.json descriptor that
// says how to run one game, the library of installed handlers, and the
// shared symlink tree a handler's instances run from.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/SplitHappens/split-happens/pkg/helpers"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
)

// DescriptorFile is the descriptor name inside a handler directory.
const DescriptorFile = "handler.json"

var (
	ErrInvalidUID    = errors.New("uid must be alphanumeric")
	ErrNoDescriptor  = errors.New("handler.json not found")
	ErrInvalidFormat = errors.New("malformed handler descriptor")
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Runtime selects the Steam Linux Runtime a native game runs under.
type Runtime string

const (
	RuntimeNone    Runtime = ""
	RuntimeScout   Runtime = "scout"
	RuntimeSoldier Runtime = "soldier"
)

// Handler is a parsed descriptor. Values are immutable once returned by
// Parse; launches copy them.
type Handler struct {
	// Dir is the directory holding handler.json and its resources.
	Dir         string
	SteamHeader string
	UID         string
	Name        string
	Author      string
	Version     string
	Info        string
	Runtime     Runtime
	Exec        string
	// GoldbergPath is the directory, relative to the game root, holding
	// the Steam API library to emulate.
	GoldbergPath string
	// NemirtingasPath is the Nemirtingas config file, relative to the
	// game root.
	NemirtingasPath   string
	SteamAppID        string
	Images            []string
	Args              []string
	CopyInsteadPaths  []string
	RemovePaths       []string
	DLLOverrides      []string
	NeverSymlinkPaths []string
	GameUniquePaths   []string
	SymlinkDir        bool
	Win               bool
	Is32Bit           bool
	EOSPerInstance    bool
	ColdClient        bool
	UniqueAppData     bool
	UniqueDocuments   bool
	UniqueLocalShare  bool
	UniqueConfig      bool
}

// Display is the name shown to users.
func (h *Handler) Display() string {
	if h.Name == "" {
		return h.UID
	}
	return h.Name
}

// HasNemirtingas reports whether instances need a private Epic config.
func (h *Handler) HasNemirtingas() bool {
	return h.NemirtingasPath != "" || h.EOSPerInstance
}

// SteamLibrary is the file name of the Steam API library the handler
// ships for its platform and architecture.
func (h *Handler) SteamLibrary() string {
	switch {
	case !h.Win:
		return "libsteam_api.so"
	case h.Is32Bit:
		return "steam_api.dll"
	default:
		return "steam_api64.dll"
	}
}

func (h *Handler) arch() string {
	if h.Is32Bit {
		return "x32"
	}
	return "x64"
}

// HeaderFetcher downloads the artwork for a Steam app to dest.
type HeaderFetcher interface {
	FetchHeader(ctx context.Context, appID, dest string) error
}

type parseOptions struct {
	fetcher HeaderFetcher
}

type ParseOption func(*parseOptions)

// WithHeaderFetcher replaces the network fetcher. A nil fetcher disables
// header downloads.
func WithHeaderFetcher(f HeaderFetcher) ParseOption {
	return func(o *parseOptions) { o.fetcher = f }
}

// Parse reads the descriptor at path. Optional fields default to their
// zero value. The uid must be non-empty and alphanumeric.
func Parse(ctx context.Context, path string, opts ...ParseOption) (Handler, error) {
	o := parseOptions{fetcher: DefaultHeaderFetcher}
	for _, opt := range opts {
		opt(&o)
	}

	doc, err := readDocument(path)
	if err != nil {
		return Handler{}, err
	}

	h := Handler{
		UID:     str(doc, "handler.uid"),
		Name:    str(doc, "handler.name"),
		Author:  str(doc, "handler.author"),
		Version: str(doc, "handler.version"),
		Info:    str(doc, "handler.info"),

		SymlinkDir:        boolean(doc, "game.symlink_dir"),
		Win:               boolean(doc, "game.win"),
		Is32Bit:           boolean(doc, "game.32bit"),
		Runtime:           Runtime(str(doc, "game.runtime")),
		Exec:              helpers.SanitizePath(str(doc, "game.exec")),
		Args:              strs(doc, "game.args"),
		CopyInsteadPaths:  paths(doc, "game.copy_instead_paths"),
		RemovePaths:       paths(doc, "game.remove_paths"),
		DLLOverrides:      strs(doc, "game.dll_overrides"),
		NeverSymlinkPaths: paths(doc, "game.never_symlink_paths"),

		GoldbergPath:    helpers.SanitizePath(str(doc, "steam.api_path")),
		SteamAppID:      appID(doc["steam.appid"]),
		ColdClient:      boolean(doc, "steam.gb_coldclient"),
		NemirtingasPath: helpers.SanitizePath(str(doc, "eos.config_path")),
		EOSPerInstance:  boolean(doc, "eos.per_instance"),

		UniqueAppData:    boolean(doc, "profiles.unique_appdata"),
		UniqueDocuments:  boolean(doc, "profiles.unique_documents"),
		UniqueLocalShare: boolean(doc, "profiles.unique_localshare"),
		UniqueConfig:     boolean(doc, "profiles.unique_config"),
		GameUniquePaths:  paths(doc, "profiles.game_paths"),
	}

	if err := ValidateUID(h.UID); err != nil {
		return Handler{}, err
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return Handler{}, fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	h.Dir = filepath.Dir(absPath)
	h.Images = galleryImages(h.Dir)
	h.SteamHeader = ensureSteamHeader(ctx, o.fetcher, h.Dir, h.SteamAppID)

	return h, nil
}

// ValidateUID checks that uid is usable as a directory name.
func ValidateUID(uid string) error {
	if err := validate.Var(uid, "required,alphanumunicode"); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return fmt.Errorf("%w: %q", ErrInvalidUID, uid)
		}
		return fmt.Errorf("failed to validate uid: %w", err)
	}
	return nil
}

func readDocument(path string) (map[string]any, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: descriptor paths come from the handlers dir
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNoDescriptor, path)
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidFormat, path, err)
	}
	return doc, nil
}

func str(doc map[string]any, key string) string {
	s, _ := doc[key].(string) //nolint:revive // absent or mistyped keys are empty
	return s
}

func boolean(doc map[string]any, key string) bool {
	b, _ := doc[key].(bool) //nolint:revive // absent or mistyped keys are false
	return b
}

func strs(doc map[string]any, key string) []string {
	arr, ok := doc[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, v := range arr {
		s, _ := v.(string) //nolint:revive // non-string entries become empty
		out = append(out, s)
	}
	return out
}

func paths(doc map[string]any, key string) []string {
	raw := strs(doc, key)
	out := raw[:0]
	for _, p := range raw {
		if p = helpers.SanitizePath(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// appID accepts the id as a string or a JSON number.
func appID(v any) string {
	switch id := v.(type) {
	case string:
		return strings.TrimSpace(id)
	case float64:
		return strconv.FormatInt(int64(id), 10)
	default:
		return ""
	}
}

func galleryImages(dir string) []string {
	entries, err := os.ReadDir(filepath.Join(dir, "imgs"))
	if err != nil {
		return nil
	}

	var out []string
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		name := entry.Name()
		if strings.HasSuffix(name, ".png") || strings.HasSuffix(name, ".jpg") {
			out = append(out, filepath.Join(dir, "imgs", name))
		}
	}
	sort.Strings(out)
	return out
}

func ensureSteamHeader(ctx context.Context, fetcher HeaderFetcher, dir, appID string) string {
	if appID == "" || fetcher == nil {
		return ""
	}

	dest := filepath.Join(dir, "steam_header.jpg")
	if _, err := os.Stat(dest); err == nil {
		return dest
	}

	if err := fetcher.FetchHeader(ctx, appID, dest); err != nil {
		log.Debug().Err(err).Str("appid", appID).Msg("steam header download failed")
		_ = os.Remove(dest)
		return ""
	}
	if _, err := os.Stat(dest); err != nil {
		return ""
	}
	return dest
}
