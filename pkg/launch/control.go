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

// Control is the operating system side of instance management.
type Control interface {
	// TerminateGroup sends SIGTERM to the process group led by pid. While
	// the leader is alive, descendants that left the group are signalled
	// too; once it has exited only the group is, since pid may be reused.
	TerminateGroup(pid int, leaderAlive bool)
	// KillGroup sends SIGKILL to the process group led by pid.
	KillGroup(pid int)
	// Tune pins pid to its share of the CPUs and raises its priority.
	// Failures are logged.
	Tune(pid, index, total int)
}

// InstancePriority is the nice value given to every instance.
const InstancePriority = -5

// CoreSet is the CPU set of instance index out of total on a machine with
// cpus logical cores. Cores are dealt round robin so the first
// cpus%total instances get one extra. It is nil when pinning would not
// help: a single instance, or fewer cores than instances.
func CoreSet(index, total, cpus int) []int {
	if total <= 1 || cpus < total || index < 0 || index >= total {
		return nil
	}
	width := cpus / total
	if index < cpus%total {
		width++
	}
	cores := make([]int, 0, width)
	for core := index; core < cpus && len(cores) < width; core += total {
		cores = append(cores, core)
	}
	return cores
}
