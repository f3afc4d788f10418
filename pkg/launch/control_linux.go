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
	"errors"

	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/process"
	"golang.org/x/sys/unix"
)

// SystemControl drives real processes.
type SystemControl struct{}

func (SystemControl) TerminateGroup(pid int, leaderAlive bool) {
	// Collect descendants first; once the leader is gone they are
	// reparented and can no longer be found.
	var descendants []*process.Process
	if leaderAlive {
		if p, err := process.NewProcess(int32(pid)); err == nil { //nolint:gosec // G115: pids fit in int32
			descendants = allDescendants(p)
		}
	}

	signalGroup(pid, unix.SIGTERM)

	for _, d := range descendants {
		if err := d.Terminate(); err != nil {
			log.Debug().Err(err).Int32("pid", d.Pid).Msg("failed to terminate descendant")
		}
	}
}

func (SystemControl) KillGroup(pid int) {
	signalGroup(pid, unix.SIGKILL)
}

func signalGroup(pid int, sig unix.Signal) {
	if err := unix.Kill(-pid, sig); err != nil && !errors.Is(err, unix.ESRCH) {
		log.Debug().Err(err).Int("pgid", pid).Str("signal", sig.String()).Msg("failed to signal process group")
	}
}

// allDescendants walks the process tree depth first, children before
// their parents.
func allDescendants(p *process.Process) []*process.Process {
	children, err := p.Children()
	if err != nil || len(children) == 0 {
		return nil
	}
	out := make([]*process.Process, 0, len(children))
	for _, c := range children {
		out = append(out, allDescendants(c)...)
		out = append(out, c)
	}
	return out
}

func (SystemControl) Tune(pid, index, total int) {
	pinInstance(pid, index, total)

	if err := unix.Setpriority(unix.PRIO_PROCESS, pid, InstancePriority); err != nil {
		log.Warn().Err(err).Msgf("unable to raise priority of instance %d (pid %d)", index+1, pid)
		return
	}
	log.Info().Msgf("raised priority of instance %d/%d (pid %d)", index+1, total, pid)
}

func pinInstance(pid, index, total int) {
	if total <= 1 {
		return
	}
	cpus, err := cpu.Counts(true)
	if err != nil || cpus == 0 {
		log.Warn().Err(err).Msgf("unable to count CPUs, leaving instance %d unpinned", index+1)
		return
	}
	cores := CoreSet(index, total, cpus)
	if cores == nil {
		log.Warn().Msgf("only %d CPUs for %d instances, skipping affinity", cpus, total)
		return
	}

	var set unix.CPUSet
	for _, c := range cores {
		set.Set(c)
	}
	if err := unix.SchedSetaffinity(pid, &set); err != nil {
		log.Warn().Err(err).Msgf("failed to set CPU affinity for instance %d", index+1)
		return
	}
	log.Info().Ints("cores", cores).Msgf("bound instance %d/%d (pid %d)", index+1, total, pid)
}
