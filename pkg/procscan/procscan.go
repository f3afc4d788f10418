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

// Package procscan reads process information from /proc and recognizes
// the helper processes of running instances.
package procscan

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// DefaultProcPath is the procfs mount point.
const DefaultProcPath = "/proc"

// ProcessInfo is what Read learns about a process.
type ProcessInfo struct {
	Comm string
	Args []string
	PID  int
}

// Cmdline is Args joined by spaces.
func (p ProcessInfo) Cmdline() string {
	return strings.Join(p.Args, " ")
}

// Reader reads process entries from a procfs tree.
type Reader struct {
	procPath string
}

// NewReader returns a Reader rooted at procPath, or DefaultProcPath when
// procPath is empty.
func NewReader(procPath string) *Reader {
	if procPath == "" {
		procPath = DefaultProcPath
	}
	return &Reader{procPath: procPath}
}

// Read returns the process with the given pid. It fails when the process
// does not exist or its cmdline cannot be read. comm is optional.
func (r *Reader) Read(pid int) (ProcessInfo, error) {
	dir := filepath.Join(r.procPath, strconv.Itoa(pid))

	cmdline, err := os.ReadFile(filepath.Join(dir, "cmdline")) //nolint:gosec // G304: procPath is controlled
	if err != nil {
		return ProcessInfo{}, fmt.Errorf("read cmdline of %d: %w", pid, err)
	}
	comm, _ := os.ReadFile(filepath.Join(dir, "comm")) //nolint:gosec // G304: procPath is controlled

	var args []string
	if trimmed := bytes.TrimRight(cmdline, "\x00"); len(trimmed) > 0 {
		for _, a := range bytes.Split(trimmed, []byte{0}) {
			args = append(args, string(a))
		}
	}

	return ProcessInfo{
		PID:  pid,
		Comm: strings.TrimSpace(string(comm)),
		Args: args,
	}, nil
}
