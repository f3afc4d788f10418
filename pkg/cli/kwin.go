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
	"fmt"
	"strconv"
	"strings"

	"github.com/SplitHappens/split-happens/pkg/helpers/command"
	"github.com/rs/zerolog/log"
)

// KWinSessionSpec describes a nested kwin_wayland session of the given
// size that runs args, minus any -kwin flag, as its only client.
func KWinSessionSpec(args []string, width, height int) command.Spec {
	quoted := make([]string, 0, len(args))
	for _, a := range args {
		switch strings.TrimLeft(a, "-") {
		case "kwin", "kwin=true", "kwin=1":
			continue
		}
		quoted = append(quoted, strconv.Quote(a))
	}
	return command.Spec{
		Name: "kwin_wayland",
		Args: []string{
			"--xwayland",
			"--width", strconv.Itoa(width),
			"--height", strconv.Itoa(height),
			"--exit-with-session",
			strings.Join(quoted, " "),
		},
	}
}

// RelaunchInKWin starts this program again inside a nested KWin session
// and returns without waiting for it.
func RelaunchInKWin(exec command.Executor, args []string, width, height int) error {
	spec := KWinSessionSpec(args, width, height)
	log.Info().Strs("args", spec.Args).Msg("starting nested kwin session")
	proc, err := exec.Spawn(spec)
	if err != nil {
		return fmt.Errorf("failed to start kwin_wayland: %w", err)
	}
	log.Debug().Int("pid", proc.Pid()).Msg("kwin session started")
	return nil
}
