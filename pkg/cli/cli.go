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
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/SplitHappens/split-happens/internal/telemetry"
	"github.com/SplitHappens/split-happens/pkg/config"
	"github.com/SplitHappens/split-happens/pkg/helpers"
	"github.com/SplitHappens/split-happens/pkg/profiles"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ErrNothingToDo is returned by Run when no command flag was given.
var ErrNothingToDo = errors.New("no command given, see -help")

type Flags struct {
	Version      *bool
	Exec         *string
	Args         *string
	Handler      *string
	Install      *string
	NewProfile   *string
	SetRoot      *string
	ListHandlers *bool
	ListProfiles *bool
	ListProton   *bool
	ListDevices  *bool
	KWin         *bool
	Verbose      *bool
	Players      playerFlags
}

// playerFlags collects every -player value in order.
type playerFlags []Player

func (p *playerFlags) String() string {
	parts := make([]string, 0, len(*p))
	for _, pl := range *p {
		parts = append(parts, pl.String())
	}
	return strings.Join(parts, " ")
}

func (p *playerFlags) Set(value string) error {
	pl, err := ParsePlayer(value)
	if err != nil {
		return err
	}
	*p = append(*p, pl)
	return nil
}

// SetupFlags defines the command line on the default flag set.
func SetupFlags() *Flags {
	return SetupFlagSet(flag.CommandLine)
}

// SetupFlagSet defines the command line on fs.
func SetupFlagSet(fs *flag.FlagSet) *Flags {
	f := &Flags{
		Version: fs.Bool(
			"version",
			false,
			"print version and exit",
		),
		Exec: fs.String(
			"exec",
			"",
			"launch an executable directly",
		),
		Args: fs.String(
			"args",
			"",
			"arguments passed to the -exec executable",
		),
		Handler: fs.String(
			"handler",
			"",
			"launch the game of an installed handler by uid",
		),
		Install: fs.String(
			"install",
			"",
			"install a handler archive (.pdh)",
		),
		NewProfile: fs.String(
			"new-profile",
			"",
			"create a named profile, \"auto\" picks a free name",
		),
		SetRoot: fs.String(
			"set-root",
			"",
			"set the game directory of a handler as uid=dir",
		),
		ListHandlers: fs.Bool(
			"list-handlers",
			false,
			"print installed handlers",
		),
		ListProfiles: fs.Bool(
			"list-profiles",
			false,
			"print named profiles",
		),
		ListProton: fs.Bool(
			"list-proton",
			false,
			"print Proton builds found in Steam",
		),
		ListDevices: fs.Bool(
			"list-devices",
			false,
			"print input devices",
		),
		KWin: fs.Bool(
			"kwin",
			false,
			"run inside a nested KWin session sized to the screen",
		),
		Verbose: fs.Bool(
			"verbose",
			false,
			"log debug output to stderr",
		),
	}
	fs.Var(
		&f.Players,
		"player",
		"add an instance as profile[:device,device], repeatable",
	)
	return f
}

// Pre parses the command line and handles the flags that need no setup.
func (f *Flags) Pre() {
	flag.Parse()

	if *f.Version {
		_, _ = fmt.Printf("Split Happens v%s (linux)\n", config.AppVersion)
		os.Exit(0)
	}
}

// Setup prepares the data root, logging, settings and error reporting,
// then runs startup housekeeping. Returns the loaded settings.
//
//nolint:gocritic // config struct copied for immutability
func Setup(
	paths config.Paths,
	defaultConfig config.Values,
	writers []io.Writer,
	verbose bool,
) *config.Instance {
	err := helpers.EnsureDirectories(paths)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error creating directories: %v\n", err)
		os.Exit(1)
	}

	err = helpers.InitLogging(paths, writers)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error initializing logging: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.NewConfig(paths.DataRoot(), defaultConfig)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if verbose || cfg.DebugLogging() {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	reporting, dsn := cfg.ErrorReporting()
	if err := telemetry.Init(reporting, dsn, cfg.DeviceID(), config.AppVersion); err != nil {
		log.Warn().Err(err).Msg("failed to initialize error reporting")
	}

	if err := Housekeep(paths, profiles.NewStore(paths)); err != nil {
		log.Warn().Err(err).Msg("startup housekeeping failed")
	}

	return cfg
}
