//go:build deadlock

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

// Package syncutil holds the mutex types of the lock set, the process
// tracker, the KWin client and the settings. Builds with -tags=deadlock
// run them under go-deadlock.
package syncutil

import (
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	deadlock "github.com/sasha-s/go-deadlock"
)

func init() {
	// Supervise holds no mutex while waiting on children, so anything
	// held longer than this is a real bug.
	deadlock.Opts.DeadlockTimeout = 30 * time.Second
	deadlock.Opts.LogBuf = reportWriter{}
}

// reportWriter sends detector reports to the session log instead of
// stderr, which gamescope output already floods.
type reportWriter struct{}

func (reportWriter) Write(p []byte) (int, error) {
	if msg := strings.TrimSpace(string(p)); msg != "" {
		log.Error().Msg(msg)
	}
	return len(p), nil
}

type Mutex struct {
	deadlock.Mutex
}

type RWMutex struct {
	deadlock.RWMutex
}
