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

// Package command provides an abstraction over exec.Command for testability.
package command

import (
	"context"
	"io"
	"os"
	"os/exec"
)

// Spec describes a long-running child process.
type Spec struct {
	Stdout io.Writer
	Stderr io.Writer
	Name   string
	Dir    string
	Args   []string
	// Env is appended to the current process environment.
	Env []string
	// NewProcessGroup starts the child as the leader of a new process group
	// so the whole group can be signalled through -pid.
	NewProcessGroup bool
}

// Process is a started child process.
type Process interface {
	Pid() int
	Wait() error
}

// Executor provides an abstraction over exec.Command for testability.
// This allows commands to be mocked in tests without executing real system commands.
type Executor interface {
	// Run executes a command and waits for it to complete.
	// Returns an error if the command fails to start or exits with non-zero status.
	Run(ctx context.Context, name string, args ...string) error

	// Output runs a command and returns its standard output.
	Output(ctx context.Context, name string, args ...string) ([]byte, error)

	// RunSpec runs the described command to completion. Dir and Env are
	// honoured, NewProcessGroup is ignored.
	RunSpec(ctx context.Context, spec Spec) error

	// Spawn starts the described command without waiting for it. The child
	// is not bound to any context; callers own its lifetime.
	Spawn(spec Spec) (Process, error)
}

// RealExecutor uses actual exec.Command to execute system commands.
// This is the production implementation used in normal operation.
type RealExecutor struct{}

// Run executes a system command using exec.CommandContext.
//
//nolint:wrapcheck // Wrapping exec errors loses important context
func (*RealExecutor) Run(ctx context.Context, name string, args ...string) error {
	return exec.CommandContext(ctx, name, args...).Run()
}

// Output runs a command and returns its standard output.
//
//nolint:wrapcheck // Wrapping exec errors loses important context
func (*RealExecutor) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

//nolint:wrapcheck // Wrapping exec errors loses important context
func (*RealExecutor) RunSpec(ctx context.Context, spec Spec) error {
	cmd := exec.CommandContext(ctx, spec.Name, spec.Args...)
	applySpec(cmd, spec)
	return cmd.Run()
}

// Spawn starts a command and returns a handle to wait on it.
//
//nolint:wrapcheck // Wrapping exec errors loses important context
func (*RealExecutor) Spawn(spec Spec) (Process, error) {
	cmd := exec.Command(spec.Name, spec.Args...) //nolint:noctx // lifetime managed by caller
	applySpec(cmd, spec)
	if spec.NewProcessGroup {
		setProcessGroup(cmd)
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &realProcess{cmd: cmd}, nil
}

func applySpec(cmd *exec.Cmd, spec Spec) {
	cmd.Dir = spec.Dir
	if len(spec.Env) > 0 {
		cmd.Env = append(os.Environ(), spec.Env...)
	}
	cmd.Stdout = spec.Stdout
	cmd.Stderr = spec.Stderr
}

type realProcess struct {
	cmd *exec.Cmd
}

func (p *realProcess) Pid() int {
	return p.cmd.Process.Pid
}

//nolint:wrapcheck // exit status is inspected by callers
func (p *realProcess) Wait() error {
	return p.cmd.Wait()
}
