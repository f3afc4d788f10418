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
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/SplitHappens/split-happens/pkg/config"
	"github.com/SplitHappens/split-happens/pkg/handler"
	"github.com/SplitHappens/split-happens/pkg/helpers/command"
	"github.com/SplitHappens/split-happens/pkg/instance"
	"github.com/SplitHappens/split-happens/pkg/lock"
	"github.com/SplitHappens/split-happens/pkg/procscan"
	testhelpers "github.com/SplitHappens/split-happens/pkg/testing/helpers"
	"github.com/SplitHappens/split-happens/pkg/testing/mocks"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const waitTimeout = 5 * time.Second

type fakeControl struct {
	onTerminate func(pid int)
	onKill      func(pid int)
	terminated  []int
	walked      []int
	killed      []int
	tuned       []int
	mu          sync.Mutex
}

func (c *fakeControl) TerminateGroup(pid int, leaderAlive bool) {
	c.mu.Lock()
	c.terminated = append(c.terminated, pid)
	if leaderAlive {
		c.walked = append(c.walked, pid)
	}
	fn := c.onTerminate
	c.mu.Unlock()
	if fn != nil {
		fn(pid)
	}
}

func (c *fakeControl) KillGroup(pid int) {
	c.mu.Lock()
	c.killed = append(c.killed, pid)
	fn := c.onKill
	c.mu.Unlock()
	if fn != nil {
		fn(pid)
	}
}

func (c *fakeControl) Tune(pid, _, _ int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tuned = append(c.tuned, pid)
}

func (c *fakeControl) Terminated() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]int(nil), c.terminated...)
}

// Walked lists the groups terminated while their leader was alive.
func (c *fakeControl) Walked() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]int(nil), c.walked...)
}

func (c *fakeControl) Killed() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]int(nil), c.killed...)
}

func (c *fakeControl) Tuned() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]int(nil), c.tuned...)
}

type spawnRecord struct {
	at   time.Time
	spec command.Spec
}

type launchFixture struct {
	clock    *clockwork.FakeClock
	exec     *mocks.MockCommandExecutor
	ctl      *fakeControl
	h        *handler.Handler
	gameRoot string
	spawns   []spawnRecord
	paths    config.Paths
	mu       sync.Mutex
}

func newLaunchFixture(t *testing.T) *launchFixture {
	t.Helper()
	base := t.TempDir()
	f := &launchFixture{
		clock: clockwork.NewFakeClock(),
		exec:  &mocks.MockCommandExecutor{},
		ctl:   &fakeControl{},
		paths: config.NewPaths(
			config.WithDataRoot(filepath.Join(base, "data")),
			config.WithResDir(filepath.Join(base, "res")),
			config.WithSteamDir(filepath.Join(base, "steam")),
			config.WithHomeDir(filepath.Join(base, "home")),
			config.WithLocalShare(filepath.Join(base, "home", ".local", "share")),
			config.WithConfigHome(filepath.Join(base, "home", ".config")),
			config.WithRuntimeDir(filepath.Join(base, "xdg-run")),
		),
		gameRoot: filepath.Join(base, "games", "demo"),
	}
	testhelpers.WriteTree(t, f.gameRoot, map[string]string{
		"bin/game.bin":   "#!/bin/sh",
		"data/level.pak": "pak",
	})
	f.h = &handler.Handler{
		Dir:  filepath.Join(base, "handlers", "demo"),
		UID:  "demo",
		Name: "Demo",
		Exec: "bin/game.bin",
		Args: []string{"-profile", "$PROFILE", "$WIDTHXHEIGHT"},
	}
	require.NoError(t, os.MkdirAll(f.h.Dir, 0o750))

	f.exec.On("Run", mock.Anything, "bwrap", []string{"--version"}).
		Return(errors.New(`exec: "bwrap": executable file not found in $PATH`)).Maybe()
	return f
}

// expectSpawn queues proc (or err) as the result of the next Spawn call.
func (f *launchFixture) expectSpawn(proc command.Process, err error) {
	var ret any
	if proc != nil {
		ret = proc
	}
	f.exec.On("Spawn", mock.Anything).Return(ret, err).Once().Run(func(args mock.Arguments) {
		spec, _ := args.Get(0).(command.Spec)
		f.mu.Lock()
		defer f.mu.Unlock()
		f.spawns = append(f.spawns, spawnRecord{at: f.clock.Now(), spec: spec})
	})
}

func (f *launchFixture) spawnCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.spawns)
}

func (f *launchFixture) spawned(i int) spawnRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.spawns[i]
}

func (f *launchFixture) launcher(opts config.LaunchOptions, extra ...Option) *Launcher {
	options := append([]Option{
		WithClock(f.clock),
		WithExecutor(f.exec),
		WithControl(f.ctl),
	}, extra...)
	return NewLauncher(f.paths, opts, options...)
}

func (f *launchFixture) waitForSpawns(t *testing.T, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return f.spawnCount() == n }, waitTimeout, time.Millisecond)
}

func (f *launchFixture) advanceAfterWaiter(t *testing.T, d time.Duration) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	require.NoError(t, f.clock.BlockUntilContext(ctx, 1))
	f.clock.Advance(d)
}

func lockFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	require.NoError(t, err)
	var out []string
	for _, e := range entries {
		out = append(out, e.Name())
	}
	return out
}

func guests(count, width, height int) []instance.Instance {
	instances := make([]instance.Instance, count)
	for i := range instances {
		instances[i].ProfileSelection = 0
		instances[i].Devices = []int{i}
	}
	instance.SetNames(instances, []string{"Guest"})
	for i := range instances {
		instances[i].Width, instances[i].Height = width, height
	}
	return instances
}

func baseOptions() config.LaunchOptions {
	return config.LaunchOptions{Stagger: config.DefaultStagger, RestartLimit: 3}
}

func TestLaunch_TwoNativeInstancesWithoutSandbox(t *testing.T) {
	t.Parallel()

	f := newLaunchFixture(t)
	procs := []*mocks.MockProcess{mocks.NewMockProcess(101), mocks.NewMockProcess(102)}
	f.expectSpawn(procs[0], nil)
	f.expectSpawn(procs[1], nil)

	l := f.launcher(baseOptions())
	game := HandlerGame{Handler: f.h, Root: f.gameRoot}

	errCh := make(chan error, 1)
	go func() {
		errCh <- l.Launch(context.Background(), game, nil, guests(2, 1920, 540))
	}()

	f.waitForSpawns(t, 1)
	f.advanceAfterWaiter(t, config.DefaultStagger)
	f.waitForSpawns(t, 2)

	assert.Len(t, lockFiles(t, f.paths.LocksDir()), 2)

	procs[0].Exit(nil)
	procs[1].Exit(nil)
	require.NoError(t, <-errCh)

	first, second := f.spawned(0), f.spawned(1)
	assert.Equal(t, config.DefaultStagger, second.at.Sub(first.at))

	runFS := f.paths.RunFS(".Guest1")
	assert.Equal(t, Gamescope, first.spec.Name)
	assert.Equal(t, runFS, first.spec.Dir)
	assert.True(t, first.spec.NewProcessGroup)
	assert.Equal(t, []string{
		"-W", "1920", "-H", "540", "--",
		"env", "SPLIT_HAPPENS_PROFILE=.Guest1",
		filepath.Join(runFS, "bin", "game.bin"),
		"-profile", ".Guest1", "1920x540",
	}, first.spec.Args)
	assert.Contains(t, first.spec.Env, "SDL_JOYSTICK_HIDAPI=0")
	assert.Equal(t, f.paths.RunFS(".Guest2"), second.spec.Dir)

	for _, profile := range []string{".Guest1", ".Guest2"} {
		info, err := os.Lstat(filepath.Join(f.paths.RunFS(profile), "bin", "game.bin"))
		require.NoError(t, err)
		assert.NotZero(t, info.Mode()&os.ModeSymlink, "working tree of %s links into the game", profile)
	}

	assert.Empty(t, lockFiles(t, f.paths.LocksDir()))
	entries, err := os.ReadDir(f.paths.ProfilesDir())
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasPrefix(e.Name(), "."), "guest profile %s left behind", e.Name())
	}

	assert.Equal(t, []int{101, 102}, f.ctl.Tuned())
	assert.ElementsMatch(t, []int{101, 102}, f.ctl.Terminated())
	assert.Empty(t, f.ctl.Walked(), "exited leaders are signalled by group only")
	f.exec.AssertExpectations(t)
}

func TestLaunch_CancelTerminatesInstances(t *testing.T) {
	t.Parallel()

	f := newLaunchFixture(t)
	proc := mocks.NewMockProcess(201)
	f.expectSpawn(proc, nil)
	f.ctl.onTerminate = func(pid int) {
		if pid == 201 {
			proc.Exit(errors.New("signal: terminated"))
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := f.launcher(baseOptions())
	errCh := make(chan error, 1)
	go func() {
		errCh <- l.Launch(ctx, HandlerGame{Handler: f.h, Root: f.gameRoot}, nil, guests(1, 1280, 800))
	}()

	f.waitForSpawns(t, 1)
	cancel()

	require.ErrorIs(t, <-errCh, context.Canceled)
	assert.Equal(t, []int{201}, f.ctl.Terminated())
	assert.Empty(t, f.ctl.Killed())
	assert.Empty(t, lockFiles(t, f.paths.LocksDir()))
}

func TestLaunch_CancelReleasesLocksBeforeInstancesExit(t *testing.T) {
	t.Parallel()

	f := newLaunchFixture(t)
	proc := mocks.NewMockProcess(202)
	f.expectSpawn(proc, nil)
	// The instance ignores SIGTERM and only goes away on SIGKILL.
	f.ctl.onKill = func(pid int) {
		if pid == 202 {
			proc.Exit(errors.New("signal: killed"))
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := f.launcher(baseOptions())
	errCh := make(chan error, 1)
	go func() {
		errCh <- l.Launch(ctx, HandlerGame{Handler: f.h, Root: f.gameRoot}, nil, guests(1, 1280, 800))
	}()

	f.waitForSpawns(t, 1)
	require.Len(t, lockFiles(t, f.paths.LocksDir()), 1)
	cancel()

	require.Eventually(t, func() bool {
		return len(lockFiles(t, f.paths.LocksDir())) == 0
	}, waitTimeout, time.Millisecond)
	assert.Equal(t, []int{202}, f.ctl.Terminated())
	assert.Empty(t, f.ctl.Killed())

	f.advanceAfterWaiter(t, killGrace)

	require.ErrorIs(t, <-errCh, context.Canceled)
	assert.Equal(t, []int{202}, f.ctl.Killed())
}

func TestLaunch_RejectsSharedProfile(t *testing.T) {
	t.Parallel()

	f := newLaunchFixture(t)
	instances := guests(2, 1920, 540)
	for i := range instances {
		instances[i].Profile, instances[i].Name, instances[i].Guest = "Alice", "Alice", false
	}

	err := f.launcher(baseOptions()).Launch(
		context.Background(), HandlerGame{Handler: f.h, Root: f.gameRoot}, nil, instances,
	)
	require.ErrorIs(t, err, ErrDuplicateProfile)
	assert.Zero(t, f.spawnCount())
	assert.Empty(t, lockFiles(t, f.paths.LocksDir()))
	assert.NoDirExists(t, f.paths.ProfileDir("Alice"))
}

func TestLaunch_SpawnFailureTearsDownStartedInstances(t *testing.T) {
	t.Parallel()

	f := newLaunchFixture(t)
	proc := mocks.NewMockProcess(301)
	f.expectSpawn(proc, nil)
	f.expectSpawn(nil, errors.New("fork failed"))
	f.ctl.onTerminate = func(pid int) {
		if pid == 301 {
			proc.Exit(errors.New("signal: terminated"))
		}
	}

	l := f.launcher(baseOptions())
	errCh := make(chan error, 1)
	go func() {
		errCh <- l.Launch(context.Background(), HandlerGame{Handler: f.h, Root: f.gameRoot}, nil, guests(2, 1920, 540))
	}()

	f.waitForSpawns(t, 1)
	f.advanceAfterWaiter(t, config.DefaultStagger)

	err := <-errCh
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to start instance 2")
	assert.Equal(t, []int{301}, f.ctl.Terminated())
	assert.Empty(t, lockFiles(t, f.paths.LocksDir()))
}

func TestLaunch_RestartsCrashedInstance(t *testing.T) {
	t.Parallel()

	f := newLaunchFixture(t)
	first, second := mocks.NewMockProcess(401), mocks.NewMockProcess(402)
	f.expectSpawn(first, nil)
	f.expectSpawn(second, nil)

	opts := baseOptions()
	opts.RestartCrashed = true
	opts.RestartLimit = 1

	l := f.launcher(opts)
	errCh := make(chan error, 1)
	go func() {
		errCh <- l.Launch(context.Background(), HandlerGame{Handler: f.h, Root: f.gameRoot}, nil, guests(1, 1280, 800))
	}()

	f.waitForSpawns(t, 1)
	first.Exit(errors.New("exit status 1"))
	f.advanceAfterWaiter(t, restartDelay)
	f.waitForSpawns(t, 2)

	// The restart budget is spent; a second crash ends the session.
	second.Exit(errors.New("exit status 1"))
	require.NoError(t, <-errCh)

	assert.Equal(t, f.spawned(0).spec.Args, f.spawned(1).spec.Args)
	assert.Equal(t, []int{401, 402}, f.ctl.Tuned())
}

func TestLaunch_LockContentionReleasesEarlierLocks(t *testing.T) {
	t.Parallel()

	f := newLaunchFixture(t)
	procRoot := t.TempDir()
	testhelpers.FakeProc(t, procRoot, 500, "gamescope", "--", "env", procscan.ProfileMarker(".Guest2"), "game.bin")

	held, err := lock.Acquire(f.paths.LocksDir(), "demo", ".Guest2", lock.WithPID(500), lock.WithProcPath(procRoot))
	require.NoError(t, err)
	defer held.Release()

	l := f.launcher(baseOptions(), WithLockOptions(lock.WithProcPath(procRoot)))
	err = l.Launch(context.Background(), HandlerGame{Handler: f.h, Root: f.gameRoot}, nil, guests(2, 1920, 540))

	require.ErrorIs(t, err, lock.ErrAlreadyRunning)
	assert.Equal(t, []string{filepath.Base(held.Path())}, lockFiles(t, f.paths.LocksDir()))
	assert.Zero(t, f.spawnCount())
}

func TestLaunch_MissingExecutableFailsBeforeSpawn(t *testing.T) {
	t.Parallel()

	f := newLaunchFixture(t)
	h := *f.h
	h.Exec = "bin/missing.bin"

	l := f.launcher(baseOptions())
	err := l.Launch(context.Background(), HandlerGame{Handler: &h, Root: f.gameRoot}, nil, guests(1, 1280, 800))

	require.ErrorIs(t, err, ErrExecutableNotFound)
	assert.Empty(t, lockFiles(t, f.paths.LocksDir()))
	assert.Zero(t, f.spawnCount())
}

func TestLaunch_NoInstances(t *testing.T) {
	t.Parallel()

	f := newLaunchFixture(t)
	err := f.launcher(baseOptions()).Launch(context.Background(), Executable{Path: "/bin/true"}, nil, nil)
	require.ErrorIs(t, err, ErrNoInstances)
}

type fakeCompositor struct {
	startErr error
	started  []string
	unloaded int
	mu       sync.Mutex
}

func (c *fakeCompositor) Start(_ context.Context, path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.started = append(c.started, path)
	return c.startErr
}

func (c *fakeCompositor) Unload(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.unloaded++
	return nil
}

func TestLaunch_LoadsAndUnloadsLayoutScript(t *testing.T) {
	t.Parallel()

	f := newLaunchFixture(t)
	procs := []*mocks.MockProcess{mocks.NewMockProcess(501), mocks.NewMockProcess(502)}
	f.expectSpawn(procs[0], nil)
	f.expectSpawn(procs[1], nil)

	opts := baseOptions()
	opts.KWinScript = true
	opts.VerticalTwoPlayer = true
	comp := &fakeCompositor{}

	l := f.launcher(opts, WithCompositor(comp))
	errCh := make(chan error, 1)
	go func() {
		errCh <- l.Launch(context.Background(), HandlerGame{Handler: f.h, Root: f.gameRoot}, nil, guests(2, 960, 1080))
	}()

	f.waitForSpawns(t, 1)
	f.advanceAfterWaiter(t, config.DefaultStagger)
	f.waitForSpawns(t, 2)
	procs[0].Exit(nil)
	procs[1].Exit(nil)
	require.NoError(t, <-errCh)

	assert.Equal(t, []string{filepath.Join(f.paths.ResDir(), "splitscreen_kwin_vertical.js")}, comp.started)
	assert.Equal(t, 1, comp.unloaded)
}

func TestLaunch_UnloadsScriptWhenStartFails(t *testing.T) {
	t.Parallel()

	f := newLaunchFixture(t)
	opts := baseOptions()
	opts.KWinScript = true
	comp := &fakeCompositor{startErr: errors.New("start rejected")}

	err := f.launcher(opts, WithCompositor(comp)).Launch(
		context.Background(), HandlerGame{Handler: f.h, Root: f.gameRoot}, nil, guests(1, 1280, 800),
	)
	require.ErrorContains(t, err, "start rejected")
	assert.Len(t, comp.started, 1)
	assert.Equal(t, 1, comp.unloaded)
	assert.Zero(t, f.spawnCount())
	assert.Empty(t, lockFiles(t, f.paths.LocksDir()))
}
