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

// Package kwin loads the splitscreen window placement script into a
// running KWin session over D-Bus.
package kwin

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/SplitHappens/split-happens/pkg/helpers/syncutil"
	"github.com/godbus/dbus/v5"
	"github.com/rs/zerolog/log"
)

const (
	service    = "org.kde.KWin"
	objectPath = "/Scripting"
	iface      = "org.kde.kwin.Scripting"
	// ScriptName is the plugin name the script is registered under.
	ScriptName = "splitscreen"
)

const (
	scriptDefault  = "splitscreen_kwin.js"
	scriptVertical = "splitscreen_kwin_vertical.js"
)

var ErrScriptNotFound = errors.New("kwin script not found")

// ScriptPath picks the layout script in resDir for a session.
func ScriptPath(resDir string, instances int, vertical bool) string {
	if instances == 2 && vertical {
		return filepath.Join(resDir, scriptVertical)
	}
	return filepath.Join(resDir, scriptDefault)
}

// Caller invokes a method of the KWin scripting interface.
type Caller interface {
	Call(ctx context.Context, method string, args ...any) ([]any, error)
}

type busCaller struct {
	obj dbus.BusObject
}

func (b busCaller) Call(ctx context.Context, method string, args ...any) ([]any, error) {
	call := b.obj.CallWithContext(ctx, iface+"."+method, 0, args...)
	if call.Err != nil {
		return nil, fmt.Errorf("%s: %w", method, call.Err)
	}
	return call.Body, nil
}

// Client tracks the script it loaded so it can unload the same one.
type Client struct {
	caller   Caller
	scriptID any
	mu       syncutil.Mutex
	loaded   bool
}

func NewClient(caller Caller) *Client {
	return &Client{caller: caller}
}

// Connect talks to KWin on the session bus.
func Connect() (*Client, error) {
	conn, err := dbus.SessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}
	return NewClient(busCaller{obj: conn.Object(service, objectPath)}), nil
}

// Start loads and runs the script at path.
func (c *Client) Start(ctx context.Context, path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("%w: %s", ErrScriptNotFound, path)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	log.Info().Msgf("loading kwin script %s", path)
	body, err := c.caller.Call(ctx, "loadScript", path, ScriptName)
	if err != nil {
		return fmt.Errorf("failed to load kwin script: %w", err)
	}
	var id any
	if len(body) > 0 {
		id = body[0]
	}
	c.scriptID = id
	c.loaded = true
	log.Info().Msgf("kwin script loaded as id %v", id)

	// Plasma builds differ in whether start takes the id.
	if _, err := c.caller.Call(ctx, "start", id); err != nil {
		if !isSignatureMismatch(err) {
			return fmt.Errorf("failed to start kwin script: %w", err)
		}
		log.Debug().Err(err).Msg("kwin rejected script id, starting all scripts")
		if _, err := c.caller.Call(ctx, "start"); err != nil {
			return fmt.Errorf("failed to start kwin script: %w", err)
		}
	}
	log.Info().Msg("kwin script started")
	return nil
}

// Unload removes the script loaded by Start. Without a loaded script it
// unloads by name in case an earlier session left one behind.
func (c *Client) Unload(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	id, loaded := c.scriptID, c.loaded
	c.scriptID, c.loaded = nil, false

	if loaded && id != nil {
		_, err := c.caller.Call(ctx, "unloadScript", id)
		if err == nil {
			log.Info().Msg("kwin script unloaded")
			return nil
		}
		if !isSignatureMismatch(err) {
			return fmt.Errorf("failed to unload kwin script: %w", err)
		}
		log.Debug().Err(err).Msg("kwin rejected script id, unloading by name")
	}

	if _, err := c.caller.Call(ctx, "unloadScript", ScriptName); err != nil {
		return fmt.Errorf("failed to unload kwin script: %w", err)
	}
	log.Info().Msg("kwin script unloaded")
	return nil
}

func isSignatureMismatch(err error) bool {
	var derr dbus.Error
	if errors.As(err, &derr) {
		switch derr.Name {
		case "org.freedesktop.DBus.Error.InvalidArgs", "org.freedesktop.DBus.Error.UnknownMethod":
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "signature mismatch")
}
