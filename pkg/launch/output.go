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

package launch

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/SplitHappens/split-happens/pkg/helpers/syncutil"
	"github.com/rs/zerolog/log"
)

// gamescope prints this for every repeated frame.
const duplicateBufferWarning = "[Warn]  xwm: got the same buffer committed twice, ignoring."

func isGamescopeNoise(line string) bool {
	line = strings.TrimSpace(line)
	return strings.HasPrefix(line, "[gamescope") && strings.HasSuffix(line, duplicateBufferWarning)
}

// outputLog forwards child output to the log line by line. A single
// outputLog is given as both Stdout and Stderr, so writes never overlap.
type outputLog struct {
	profile string
	buf     []byte
}

func newOutputLog(profile string) *outputLog {
	return &outputLog{profile: profile}
}

func (o *outputLog) Write(p []byte) (int, error) {
	o.buf = append(o.buf, p...)
	for {
		i := bytes.IndexByte(o.buf, '\n')
		if i < 0 {
			break
		}
		o.emit(string(o.buf[:i]))
		o.buf = o.buf[i+1:]
	}
	if len(o.buf) == 0 {
		o.buf = nil
	}
	return len(p), nil
}

// Flush logs a trailing partial line.
func (o *outputLog) Flush() {
	if len(o.buf) > 0 {
		o.emit(string(o.buf))
		o.buf = nil
	}
}

func (o *outputLog) emit(line string) {
	line = strings.TrimRight(line, "\r")
	if line == "" || isGamescopeNoise(line) {
		return
	}
	log.Info().Str("profile", o.profile).Msg(line)
}

// warnLog records problems the user should see after the session, in
// launch_warnings.txt as well as the main log.
type warnLog struct {
	path string
	mu   syncutil.Mutex
}

func (w *warnLog) Warn(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	log.Warn().Msg(msg)

	w.mu.Lock()
	defer w.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(w.path), 0o750); err != nil {
		log.Warn().Err(err).Msg("failed to create launch warnings directory")
		return
	}
	//nolint:gosec // G304: path comes from config.Paths
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		log.Warn().Err(err).Msgf("failed to open %s", w.path)
		return
	}
	defer func() {
		if err := f.Close(); err != nil {
			log.Warn().Err(err).Msgf("failed to close %s", w.path)
		}
	}()
	if _, err := fmt.Fprintf(f, "[WARN] %s\n", msg); err != nil {
		log.Warn().Err(err).Msgf("failed to write %s", w.path)
	}
}
