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

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/SplitHappens/split-happens/pkg/config"
	"github.com/SplitHappens/split-happens/pkg/handler"
	"github.com/SplitHappens/split-happens/pkg/input"
	"github.com/SplitHappens/split-happens/pkg/instance"
	"github.com/SplitHappens/split-happens/pkg/launch"
	"github.com/SplitHappens/split-happens/pkg/profiles"
	"github.com/SplitHappens/split-happens/pkg/proton"
	"github.com/rs/zerolog/log"
)

// Launcher runs a planned session to completion.
type Launcher interface {
	Launch(ctx context.Context, game launch.Game, devices []input.Device, instances []instance.Instance) error
}

// App holds what the commands act on.
type App struct {
	Out      io.Writer
	Cfg      *config.Instance
	Store    *profiles.Store
	Launcher Launcher
	// Devices lists the input devices. Defaults to /proc/bus/input.
	Devices func() ([]input.Device, error)
	// Screen returns the display size. Defaults to the detected screen.
	Screen    func() (width, height int)
	Paths     config.Paths
	ParseOpts []handler.ParseOption
}

func (a *App) devices() ([]input.Device, error) {
	if a.Devices != nil {
		return a.Devices()
	}
	devs, err := input.Scan(input.DevicesFile, a.Cfg.LaunchOptions().PadFilter)
	if err != nil {
		return nil, fmt.Errorf("failed to list input devices: %w", err)
	}
	return devs, nil
}

func (a *App) screen() (width, height int) {
	if a.Screen != nil {
		return a.Screen()
	}
	return instance.ScreenResolution()
}

// Run performs the command selected by the flags. Launches block until
// the session ends or ctx is cancelled.
func (f *Flags) Run(ctx context.Context, app *App) error {
	switch {
	case *f.Install != "":
		return app.install(*f.Install)
	case *f.NewProfile != "":
		return app.newProfile(*f.NewProfile)
	case *f.SetRoot != "":
		return app.setRoot(*f.SetRoot)
	case *f.ListHandlers:
		return app.listHandlers(ctx)
	case *f.ListProfiles:
		return app.listProfiles()
	case *f.ListProton:
		return app.listProton()
	case *f.ListDevices:
		return app.listDevices()
	case *f.Exec != "":
		path, err := filepath.Abs(*f.Exec)
		if err != nil {
			return fmt.Errorf("failed to resolve %s: %w", *f.Exec, err)
		}
		return app.launch(ctx, launch.Executable{Path: path, Args: *f.Args}, f.Players)
	case *f.Handler != "":
		game, err := app.handlerGame(ctx, *f.Handler)
		if err != nil {
			return err
		}
		return app.launch(ctx, game, f.Players)
	default:
		return ErrNothingToDo
	}
}

func (a *App) handlerGame(ctx context.Context, uid string) (launch.HandlerGame, error) {
	h, err := handler.Find(ctx, a.Paths.HandlersDir(), uid, a.ParseOpts...)
	if err != nil {
		return launch.HandlerGame{}, fmt.Errorf("failed to load handler %s: %w", uid, err)
	}
	root, err := handler.GameRoot(&h, a.Paths.SteamDir(), a.Cfg)
	if err != nil {
		return launch.HandlerGame{}, fmt.Errorf("failed to find the game of %s: %w", h.Display(), err)
	}
	return launch.HandlerGame{Handler: &h, Root: root}, nil
}

func (a *App) launch(ctx context.Context, game launch.Game, players []Player) error {
	devices, err := a.devices()
	if err != nil {
		return err
	}

	id := launch.GameID(game)
	choices := a.Store.ScanProfiles(true)
	instances, choices, err := PlanInstances(players, devices, choices, a.Cfg.LastAssignments(id))
	if err != nil {
		return err
	}
	if len(instances) == 0 {
		return ErrNoDevices
	}

	opts := a.Cfg.LaunchOptions()
	instance.SetNames(instances, choices)
	w, h := a.screen()
	instance.SetResolutions(instances, w, h, instance.Layout{
		VerticalTwoPlayer: opts.VerticalTwoPlayer,
		FixLowRes:         opts.FixLowRes,
	})

	a.Cfg.SetLastAssignments(id, Selections(instances))
	if err := a.Cfg.Save(); err != nil {
		log.Warn().Err(err).Msg("failed to save profile assignments")
	}

	for _, inst := range instances {
		labels := make([]string, 0, len(inst.Devices))
		for _, dev := range inst.Devices {
			labels = append(labels, devices[dev].Label())
		}
		log.Info().Msgf("%s: %s", inst.Name, strings.Join(labels, ", "))
	}

	return a.Launcher.Launch(ctx, game, devices, instances)
}

func (a *App) install(archive string) error {
	uid, err := handler.Install(a.Paths, archive)
	if err != nil {
		return fmt.Errorf("failed to install %s: %w", archive, err)
	}
	_, _ = fmt.Fprintf(a.Out, "Installed handler %s\n", uid)
	return nil
}

func (a *App) newProfile(name string) error {
	if name == "auto" {
		name = profiles.SuggestName(a.Store.ScanProfiles(false))
	}
	if name == profiles.GuestName || strings.HasPrefix(name, ".") {
		return fmt.Errorf("%w: %q", profiles.ErrInvalidName, name)
	}
	if err := a.Store.CreateProfile(name); err != nil {
		return fmt.Errorf("failed to create profile %s: %w", name, err)
	}
	_, _ = fmt.Fprintln(a.Out, name)
	return nil
}

func (a *App) setRoot(value string) error {
	uid, dir, ok := strings.Cut(value, "=")
	if !ok || dir == "" {
		return fmt.Errorf("expected uid=dir, got %q", value)
	}
	if err := handler.ValidateUID(uid); err != nil {
		return err
	}
	dir, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", dir, err)
	}
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("failed to read game directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}

	a.Cfg.SetHandlerRoot(uid, dir)
	if err := a.Cfg.Save(); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

func (a *App) listHandlers(ctx context.Context) error {
	for _, h := range handler.Scan(ctx, a.Paths.HandlersDir(), a.ParseOpts...) {
		root, err := handler.GameRoot(&h, a.Paths.SteamDir(), a.Cfg)
		if err != nil {
			root = "(game not found)"
		}
		_, _ = fmt.Fprintf(a.Out, "%s\t%s\t%s\n", h.UID, h.Display(), root)
	}
	return nil
}

func (a *App) listProfiles() error {
	for _, p := range a.Store.ScanProfiles(false) {
		_, _ = fmt.Fprintln(a.Out, p)
	}
	return nil
}

func (a *App) listProton() error {
	current := a.Cfg.ProtonVersion()
	for _, in := range proton.Discover(a.Paths.SteamDir()) {
		mark := " "
		if current != "" && in.Matches(current) {
			mark = "*"
		}
		_, _ = fmt.Fprintf(a.Out, "%s %s\t%s\n", mark, in.Label(), in.Root)
	}
	return nil
}

func (a *App) listDevices() error {
	devices, err := a.devices()
	if err != nil {
		return err
	}
	for i, d := range devices {
		state := ""
		if !d.Enabled {
			state = "\t(disabled)"
		}
		_, _ = fmt.Fprintf(a.Out, "%d\t%s\t%s\t%s%s\n", i, d.Type, d.Path, d.Name, state)
	}
	return nil
}
