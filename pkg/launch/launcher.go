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
	"fmt"
	"sync"
	"time"

	"github.com/SplitHappens/split-happens/pkg/config"
	"github.com/SplitHappens/split-happens/pkg/handler"
	"github.com/SplitHappens/split-happens/pkg/helpers/command"
	"github.com/SplitHappens/split-happens/pkg/helpers/syncutil"
	"github.com/SplitHappens/split-happens/pkg/input"
	"github.com/SplitHappens/split-happens/pkg/instance"
	"github.com/SplitHappens/split-happens/pkg/kwin"
	"github.com/SplitHappens/split-happens/pkg/lock"
	"github.com/SplitHappens/split-happens/pkg/profiles"
	"github.com/SplitHappens/split-happens/pkg/proton"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const (
	// restartDelay is the pause before a crashed instance is started
	// again in its slot.
	restartDelay = 2 * time.Second
	// unloadTimeout bounds the compositor call made during teardown.
	unloadTimeout = 5 * time.Second
	// killGrace is how long instances get to exit after SIGTERM before
	// their groups are killed.
	killGrace = 10 * time.Second
)

// Compositor loads the window layout script of a session.
type Compositor interface {
	Start(ctx context.Context, path string) error
	Unload(ctx context.Context) error
}

// Launcher starts splitscreen sessions. One Launcher may run several
// sessions, but only one at a time.
type Launcher struct {
	clock      clockwork.Clock
	exec       command.Executor
	ctl        Control
	compositor Compositor
	store      *profiles.Store
	warn       *warnLog
	paths      config.Paths
	lockOpts   []lock.Option
	opts       config.LaunchOptions
}

type Option func(*Launcher)

func WithClock(c clockwork.Clock) Option {
	return func(l *Launcher) { l.clock = c }
}

func WithExecutor(e command.Executor) Option {
	return func(l *Launcher) { l.exec = e }
}

// WithControl replaces the signal and scheduling backend.
func WithControl(c Control) Option {
	return func(l *Launcher) { l.ctl = c }
}

// WithCompositor sets the layout script backend. Without it KWin is
// reached over the session bus when the kwin_script setting is on.
func WithCompositor(c Compositor) Option {
	return func(l *Launcher) { l.compositor = c }
}

func WithStore(s *profiles.Store) Option {
	return func(l *Launcher) { l.store = s }
}

// WithLockOptions is passed through to lock.Acquire.
func WithLockOptions(opts ...lock.Option) Option {
	return func(l *Launcher) { l.lockOpts = append(l.lockOpts, opts...) }
}

func NewLauncher(paths config.Paths, opts config.LaunchOptions, options ...Option) *Launcher {
	l := &Launcher{
		paths: paths,
		opts:  opts,
		clock: clockwork.NewRealClock(),
		exec:  &command.RealExecutor{},
		ctl:   SystemControl{},
	}
	for _, o := range options {
		o(l)
	}
	if l.store == nil {
		l.store = profiles.NewStore(paths)
	}
	l.warn = &warnLog{path: paths.WarningsFile()}
	return l
}

// slot is one player's place in a session. A restarted instance keeps
// its slot.
type slot struct {
	lock     *lock.Lock
	out      *outputLog
	prefix   string
	inst     instance.Instance
	index    int
	restarts int
}

type session struct {
	*Launcher
	groups   *groupTracker
	drained  map[string]bool
	builder  commandBuilder
	slots    []*slot
	locks    lock.Set
	drainMu  syncutil.Mutex
	closing  sync.Once
	kwinUsed bool
}

// Launch runs game with one gamescope per instance and returns once every
// instance has exited. Cancelling ctx terminates the session; teardown
// runs on every return path once the locks are held.
func (l *Launcher) Launch(
	ctx context.Context,
	game Game,
	devices []input.Device,
	instances []instance.Instance,
) error {
	if len(instances) == 0 {
		return ErrNoInstances
	}
	if err := uniqueProfiles(instances); err != nil {
		return err
	}
	id := GameID(game)
	log.Info().Str("game", id).Int("instances", len(instances)).Msg("launching session")

	if err := l.provision(ctx, game, instances); err != nil {
		return err
	}

	s := &session{
		Launcher: l,
		groups:   newGroupTracker(l.ctl),
		drained:  map[string]bool{},
	}
	claims := make([]lock.Claim, 0, len(instances))
	for _, inst := range instances {
		claims = append(claims, lock.Claim{Game: id, Profile: inst.Profile})
	}
	if err := s.locks.AcquireAll(l.paths.LocksDir(), claims, l.lockOpts...); err != nil {
		return err
	}
	defer s.close(ctx)

	for i, inst := range instances {
		s.slots = append(s.slots, &slot{index: i, inst: inst.Clone(), lock: s.locks.Get(i)})
	}

	if err := s.prepare(ctx, game, devices); err != nil {
		return err
	}
	return s.run(ctx)
}

// uniqueProfiles rejects instances that share a profile: they would share
// a lock and a working tree.
func uniqueProfiles(instances []instance.Instance) error {
	seen := make(map[string]bool, len(instances))
	for _, inst := range instances {
		if seen[inst.Profile] {
			return fmt.Errorf("%w: %s", ErrDuplicateProfile, inst.Name)
		}
		seen[inst.Profile] = true
	}
	return nil
}

// provision creates the profiles, saves and shared symlink tree a
// handler game needs.
func (l *Launcher) provision(ctx context.Context, game Game, instances []instance.Instance) error {
	hg, ok := game.(HandlerGame)
	if !ok {
		return nil
	}
	for _, inst := range instances {
		if err := l.store.CreateProfile(inst.Profile); err != nil {
			return fmt.Errorf("failed to create profile %s: %w", inst.Name, err)
		}
		if err := l.store.CreateGameSave(inst.Profile, hg.Handler); err != nil {
			return fmt.Errorf("failed to create save for %s: %w", inst.Name, err)
		}
	}
	if hg.Handler.SymlinkDir {
		if err := handler.BuildSymlinkTree(ctx, l.paths, hg.Handler, hg.Root, l.exec); err != nil {
			return fmt.Errorf("failed to build symlink tree: %w", err)
		}
	}
	return nil
}

// prepare resolves everything the spawn loop shares.
func (s *session) prepare(ctx context.Context, game Game, devices []input.Device) error {
	target, err := ResolveTarget(s.paths, game)
	if err != nil {
		return err
	}
	s.builder = commandBuilder{
		paths:   s.paths,
		opts:    s.opts,
		target:  target,
		devices: devices,
	}

	if target.Win {
		env := proton.Resolve(s.opts.ProtonVersion, proton.Discover(s.paths.SteamDir()))
		if env.Verified() {
			log.Info().Msgf("using Proton build %s at %s", env.Label, env.Root)
		} else {
			s.warn.Warn("unable to verify Proton build %q on disk, continuing with the provided hint", env.Label)
		}
		s.builder.proton = env
	}

	if h := target.Handler; h != nil {
		for _, w := range handler.Diagnose(h, target.Dir) {
			s.warn.Warn("%s", w)
		}
	}

	s.builder.bwrap = s.exec.Run(ctx, "bwrap", "--version") == nil
	log.Info().Bool("bwrap", s.builder.bwrap).Msg("sandbox helper detection")

	if s.opts.KWinScript {
		if s.compositor == nil {
			c, err := kwin.Connect()
			if err != nil {
				return err
			}
			s.compositor = c
		}
		// Start can fail after the script is loaded; teardown unloads it.
		s.kwinUsed = true
		script := kwin.ScriptPath(s.paths.ResDir(), len(s.slots), s.opts.VerticalTwoPlayer)
		if err := s.compositor.Start(ctx, script); err != nil {
			return err
		}
	}
	return nil
}

// run spawns the instances in order, staggered, and waits for all of
// them.
func (s *session) run(ctx context.Context) error {
	exited := make(chan struct{})
	aborted := make(chan struct{})
	// Cancellation frees the profiles right away; instances still get
	// killGrace to exit.
	stop := context.AfterFunc(ctx, func() {
		defer close(aborted)
		s.groups.TerminateAll()
		s.locks.ReleaseAll()
		s.escalate(exited)
	})

	var g errgroup.Group
	var err error
	for i, sl := range s.slots {
		if i > 0 {
			select {
			case <-ctx.Done():
			case <-s.clock.After(s.opts.Stagger):
			}
		}
		if err = ctx.Err(); err != nil {
			break
		}

		var proc command.Process
		proc, err = s.spawn(ctx, sl)
		if err != nil {
			err = fmt.Errorf("failed to start instance %d (%s): %w", i+1, sl.inst.Name, err)
			break
		}
		g.Go(func() error {
			s.supervise(ctx, sl, proc)
			return nil
		})
	}

	var failed sync.WaitGroup
	if err != nil && ctx.Err() == nil {
		s.groups.TerminateAll()
		failed.Go(func() { s.escalate(exited) })
	}
	_ = g.Wait()
	close(exited)
	failed.Wait()
	if !stop() {
		<-aborted
	}

	if err == nil {
		err = ctx.Err()
	}
	return err
}

// supervise waits for the instance in sl and restarts it after a crash
// when restart_crashed is on.
func (s *session) supervise(ctx context.Context, sl *slot, proc command.Process) {
	for {
		err := proc.Wait()
		s.groups.Exited(proc.Pid())
		sl.out.Flush()
		if err == nil || ctx.Err() != nil || s.groups.Closed() {
			log.Info().Err(err).Msgf("instance %s exited", sl.inst.Name)
			return
		}

		log.Warn().Err(err).Msgf("instance %s exited unexpectedly", sl.inst.Name)
		if !s.opts.RestartCrashed || sl.restarts >= s.opts.RestartLimit {
			return
		}
		sl.restarts++
		if sl.prefix != "" {
			s.forgetDrained(sl.prefix)
		}

		select {
		case <-ctx.Done():
			return
		case <-s.clock.After(restartDelay):
		}

		next, err := s.spawn(ctx, sl)
		if err != nil {
			s.warn.Warn("failed to restart instance %s: %v", sl.inst.Name, err)
			return
		}
		log.Info().Msgf("restarted %s in slot %d (restart %d)", sl.inst.Name, sl.index+1, sl.restarts)
		proc = next
	}
}

// escalate kills the groups still running killGrace after they were
// terminated, unless exited is closed first.
func (s *session) escalate(exited <-chan struct{}) {
	select {
	case <-exited:
	case <-s.clock.After(killGrace):
		s.groups.KillAll()
	}
}

// close tears the session down. Only the first call does anything.
func (s *session) close(ctx context.Context) {
	s.closing.Do(func() {
		for _, sl := range s.slots {
			if sl.prefix == "" {
				continue
			}
			if err := collectNemirtingasLogs(sl.prefix, s.store.NemirtingasLogPath(sl.inst.Profile)); err != nil {
				log.Warn().Err(err).Msgf("failed to collect Nemirtingas logs for %s", sl.inst.Name)
			}
		}

		s.groups.TerminateAll()
		s.locks.ReleaseAll()

		if s.kwinUsed {
			uctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), unloadTimeout)
			if err := s.compositor.Unload(uctx); err != nil {
				log.Warn().Err(err).Msg("failed to unload kwin script")
			}
			cancel()
		}

		if err := s.store.RemoveGuestProfiles(); err != nil {
			log.Warn().Err(err).Msg("failed to remove guest profiles")
		}
		log.Info().Msg("session finished")
	})
}
