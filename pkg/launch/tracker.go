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
	"github.com/SplitHappens/split-happens/pkg/helpers/syncutil"
	"github.com/rs/zerolog/log"
)

// groupTracker remembers the process group of every instance spawned in
// a session. Groups stay tracked after their leader exits so helpers left
// behind are still reached at teardown, but an exited leader's pid is
// never looked up again. Every group gets SIGTERM at most once and
// SIGKILL at most once.
type groupTracker struct {
	ctl       Control
	signalled map[int]bool
	exited    map[int]bool
	killed    map[int]bool
	groups    []int
	mu        syncutil.Mutex
	closed    bool
}

func newGroupTracker(ctl Control) *groupTracker {
	return &groupTracker{
		ctl:       ctl,
		signalled: map[int]bool{},
		exited:    map[int]bool{},
		killed:    map[int]bool{},
	}
}

// Track adds a group. After TerminateAll has run, the group is signalled
// immediately so a spawn racing with cancellation does not outlive the
// session.
func (g *groupTracker) Track(pid int) {
	g.mu.Lock()
	g.groups = append(g.groups, pid)
	delete(g.exited, pid)
	closed := g.closed
	if closed {
		g.signalled[pid] = true
	}
	g.mu.Unlock()

	if closed {
		log.Debug().Int("pgid", pid).Msg("session closing, terminating new group")
		g.ctl.TerminateGroup(pid, true)
	}
}

// Exited records that the leader of group pid has been reaped.
func (g *groupTracker) Exited(pid int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.exited[pid] = true
}

// TerminateAll signals every group not yet signalled and closes the
// tracker. It is safe to call concurrently and repeatedly.
func (g *groupTracker) TerminateAll() {
	type pending struct {
		pid   int
		alive bool
	}
	g.mu.Lock()
	g.closed = true
	var todo []pending
	for _, pid := range g.groups {
		if !g.signalled[pid] {
			g.signalled[pid] = true
			todo = append(todo, pending{pid: pid, alive: !g.exited[pid]})
		}
	}
	g.mu.Unlock()

	for _, p := range todo {
		log.Debug().Int("pgid", p.pid).Bool("leader_alive", p.alive).Msg("terminating process group")
		g.ctl.TerminateGroup(p.pid, p.alive)
	}
}

// KillAll sends SIGKILL to every group whose leader has not exited.
func (g *groupTracker) KillAll() {
	g.mu.Lock()
	var todo []int
	for _, pid := range g.groups {
		if !g.exited[pid] && !g.killed[pid] {
			g.killed[pid] = true
			todo = append(todo, pid)
		}
	}
	g.mu.Unlock()

	for _, pid := range todo {
		log.Warn().Int("pgid", pid).Msg("process group ignored SIGTERM, killing it")
		g.ctl.KillGroup(pid)
	}
}

// Closed reports whether TerminateAll has run.
func (g *groupTracker) Closed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.closed
}

func (g *groupTracker) Groups() []int {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]int, len(g.groups))
	copy(out, g.groups)
	return out
}
