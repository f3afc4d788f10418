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

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/SplitHappens/split-happens/internal/telemetry"
	"github.com/SplitHappens/split-happens/pkg/cli"
	"github.com/SplitHappens/split-happens/pkg/config"
	"github.com/SplitHappens/split-happens/pkg/helpers/command"
	"github.com/SplitHappens/split-happens/pkg/instance"
	"github.com/SplitHappens/split-happens/pkg/launch"
	"github.com/SplitHappens/split-happens/pkg/profiles"
	"github.com/SplitHappens/split-happens/pkg/steam"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := run(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func run() error {
	flags := cli.SetupFlags()
	flags.Pre()

	if os.Geteuid() == 0 {
		return errors.New("split-happens cannot be run as root")
	}

	if *flags.KWin {
		w, h := instance.ScreenResolution()
		return cli.RelaunchInKWin(&command.RealExecutor{}, os.Args, w, h)
	}

	var opts []config.PathsOption
	if os.Getenv(config.SteamEnv) == "" {
		home, _ := os.UserHomeDir()
		opts = append(opts, config.WithSteamDir(steam.FindSteamDir(home)))
	}
	paths := config.NewPaths(opts...)

	var logWriters []io.Writer
	if *flags.Verbose {
		logWriters = []io.Writer{os.Stderr}
	}
	cfg := cli.Setup(paths, config.BaseDefaults, logWriters, *flags.Verbose)
	defer telemetry.Close()

	defer func() {
		if err := recover(); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Panic: %s\n", err)
			log.Fatal().Msgf("panic: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	// Restore default handling after the first signal so a second one
	// exits immediately.
	context.AfterFunc(ctx, stop)

	app := &cli.App{
		Out:      os.Stdout,
		Cfg:      cfg,
		Store:    profiles.NewStore(paths),
		Launcher: launch.NewLauncher(paths, cfg.LaunchOptions()),
		Paths:    paths,
	}

	err := flags.Run(ctx, app)
	switch {
	case errors.Is(err, context.Canceled):
		log.Info().Msg("launch cancelled")
		return nil
	case errors.Is(err, cli.ErrNothingToDo):
		flag.Usage()
		return err
	case err != nil:
		log.Error().Err(err).Msg("command failed")
		return err
	}
	return nil
}
