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

// Package mocks holds testify mocks shared across package tests.
package mocks

import (
	"context"

	"github.com/SplitHappens/split-happens/pkg/helpers/command"
	"github.com/stretchr/testify/mock"
)

// MockCommandExecutor is a testify mock for command.Executor.
// It allows testing code that executes system commands without actually running them.
type MockCommandExecutor struct {
	mock.Mock
}

// Run mocks the execution of a system command.
// Use On() to set expectations and Return() to control the mock behavior.
//
// Example:
//
//	mockCmd := &MockCommandExecutor{}
//	mockCmd.On("Run", mock.Anything, "bwrap", mock.Anything).Return(nil)
func (m *MockCommandExecutor) Run(ctx context.Context, name string, args ...string) error {
	called := m.Called(ctx, name, args)
	//nolint:wrapcheck // Mock returns are already wrapped by caller
	return called.Error(0)
}

func (m *MockCommandExecutor) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	called := m.Called(ctx, name, args)
	out, _ := called.Get(0).([]byte) //nolint:revive // nil output is allowed
	//nolint:wrapcheck // Mock returns are already wrapped by caller
	return out, called.Error(1)
}

func (m *MockCommandExecutor) RunSpec(ctx context.Context, spec command.Spec) error {
	called := m.Called(ctx, spec)
	//nolint:wrapcheck // Mock returns are already wrapped by caller
	return called.Error(0)
}

func (m *MockCommandExecutor) Spawn(spec command.Spec) (command.Process, error) {
	called := m.Called(spec)
	proc, _ := called.Get(0).(command.Process) //nolint:revive // nil process on error
	//nolint:wrapcheck // Mock returns are already wrapped by caller
	return proc, called.Error(1)
}

// MockProcess is a command.Process whose Wait blocks until Exit is called.
type MockProcess struct {
	exited chan struct{}
	err    error
	pid    int
}

func NewMockProcess(pid int) *MockProcess {
	return &MockProcess{pid: pid, exited: make(chan struct{})}
}

func (p *MockProcess) Pid() int {
	return p.pid
}

func (p *MockProcess) Wait() error {
	<-p.exited
	return p.err
}

// Exit releases Wait with err. It must be called at most once.
func (p *MockProcess) Exit(err error) {
	p.err = err
	close(p.exited)
}
