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

package procscan

import "strings"

// ProfileEnv is set through env(1) on every instance, so the profile an
// instance runs for shows up in its gamescope's arguments whatever the
// game is.
const ProfileEnv = "SPLIT_HAPPENS_PROFILE"

// ProfileMarker is the argument that tags an instance of profile.
func ProfileMarker(profile string) string {
	return ProfileEnv + "=" + profile
}

// LauncherHelpers are the wrapper binaries an instance runs under.
var LauncherHelpers = []string{"gamescope", "gsc-kbm", "bwrap", "umu-run"}

// InstanceMatcher recognizes a helper process of one profile's instance.
type InstanceMatcher struct {
	profile string
}

func NewInstanceMatcher(profile string) InstanceMatcher {
	return InstanceMatcher{profile: profile}
}

// Match reports whether the command line of proc names the profile and
// one of the launcher helpers. It is a substring test, so a longer
// profile name sharing the prefix also matches.
func (m InstanceMatcher) Match(proc ProcessInfo) bool {
	if m.profile == "" || len(proc.Args) == 0 {
		return false
	}
	cmdline := proc.Cmdline()
	if !strings.Contains(cmdline, m.profile) {
		return false
	}
	for _, h := range LauncherHelpers {
		if strings.Contains(cmdline, h) {
			return true
		}
	}
	return false
}
