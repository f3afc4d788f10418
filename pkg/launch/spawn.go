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
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/SplitHappens/split-happens/pkg/helpers"
	"github.com/SplitHappens/split-happens/pkg/helpers/command"
	"github.com/rs/zerolog/log"
)

var errNoNemirtingasParent = errors.New("nemirtingas config path has no parent directory")

// spawn starts the instance of sl and registers it with the session.
func (s *session) spawn(ctx context.Context, sl *slot) (command.Process, error) {
	inst := sl.inst
	h := s.builder.target.Handler

	nem, err := s.store.EnsureNemirtingasConfig(inst.Profile, s.builder.target.ID)
	if err != nil {
		return nil, err
	}
	s.store.ResetNemirtingasSession(inst.Profile)

	plan := spawnPlan{inst: inst, gameDir: s.builder.target.Dir}
	if h != nil && !s.builder.bwrap {
		dir, err := s.prepareWorkingTree(inst.Profile, nem.Dir)
		if err != nil {
			return nil, err
		}
		plan.gameDir = dir
	}

	if h != nil && h.NemirtingasPath != "" {
		dest, err := nemirtingasTarget(plan.gameDir, h.NemirtingasPath)
		if err != nil {
			return nil, err
		}
		log.Info().Str("profile", inst.Profile).Str("sha1", nem.SHA1).
			Msgf("Nemirtingas config %s -> %s", nem.Path, dest)
		if s.builder.bwrap {
			plan.binds = append(plan.binds, bind{src: nem.Dir, dst: dest})
		}
	}

	if s.builder.target.Win {
		prefix, err := s.preparePrefix(ctx, sl.index, inst.Profile)
		if err != nil {
			return nil, err
		}
		plan.prefix = prefix
		sl.prefix = prefix
	}

	out := newOutputLog(inst.Name)
	spec := command.Spec{
		Name:            s.builder.name(),
		Dir:             plan.gameDir,
		Args:            s.builder.args(plan),
		Env:             s.builder.env(plan),
		Stdout:          out,
		Stderr:          out,
		NewProcessGroup: true,
	}
	log.Info().Str("profile", inst.Profile).Strs("args", spec.Args).
		Msgf("starting instance %d/%d with %s", sl.index+1, len(s.slots), spec.Name)

	proc, err := s.exec.Spawn(spec)
	if err != nil {
		return nil, fmt.Errorf("failed to spawn %s: %w", spec.Name, err)
	}
	pid := proc.Pid()
	sl.out = out
	s.groups.Track(pid)
	s.ctl.Tune(pid, sl.index, len(s.slots))
	if sl.lock != nil {
		if err := sl.lock.SetHolder(pid); err != nil {
			log.Warn().Err(err).Msgf("failed to record pid %d in lock", pid)
		}
	}
	return proc, nil
}

// prepareWorkingTree rebuilds run/<profile>/fs as a tree of links into
// the game dir, with the Nemirtingas directory pointing at the profile's
// own settings.
func (s *session) prepareWorkingTree(profile, nemirtingasDir string) (string, error) {
	runFS := s.paths.RunFS(profile)
	if err := os.RemoveAll(runFS); err != nil {
		return "", fmt.Errorf("failed to clear %s: %w", runFS, err)
	}
	if err := helpers.CopyDir(s.builder.target.Dir, runFS, helpers.CopyDirOptions{Symlink: true}); err != nil {
		return "", err
	}

	h := s.builder.target.Handler
	if h.NemirtingasPath == "" {
		return runFS, nil
	}
	parent := filepath.Dir(filepath.FromSlash(h.NemirtingasPath))
	if parent == "." {
		return "", fmt.Errorf("%w: %s", errNoNemirtingasParent, h.NemirtingasPath)
	}
	dest := filepath.Join(runFS, parent)
	if err := os.RemoveAll(dest); err != nil {
		return "", fmt.Errorf("failed to remove %s: %w", dest, err)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o750); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", filepath.Dir(dest), err)
	}
	if err := os.Symlink(nemirtingasDir, dest); err != nil {
		return "", fmt.Errorf("failed to link %s: %w", dest, err)
	}
	return runFS, nil
}

// nemirtingasTarget makes sure the directory holding the Nemirtingas
// config exists inside gameDir and returns it.
func nemirtingasTarget(gameDir, rel string) (string, error) {
	parent := filepath.Dir(filepath.FromSlash(rel))
	if parent == "." {
		return "", fmt.Errorf("%w: %s", errNoNemirtingasParent, rel)
	}
	dest := filepath.Join(gameDir, parent)
	if info, err := os.Stat(dest); err == nil && !info.IsDir() {
		if err := os.Remove(dest); err != nil {
			return "", fmt.Errorf("failed to remove %s: %w", dest, err)
		}
	}
	if err := os.MkdirAll(dest, 0o750); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", dest, err)
	}
	return dest, nil
}

// preparePrefix creates the Wine prefix of an instance. The first use of
// a prefix in a session drains any wineserver still holding it.
func (s *session) preparePrefix(ctx context.Context, index int, profile string) (string, error) {
	n := 0
	if s.opts.SeparatePrefixes {
		n = index + 1
	}
	prefix := s.paths.PrefixDir(profile, n)
	if err := os.MkdirAll(prefix, 0o750); err != nil {
		return "", fmt.Errorf("failed to create prefix %s: %w", prefix, err)
	}
	if s.builder.proton.Verified() && s.markDrained(prefix) {
		s.drainPrefix(ctx, prefix)
	}
	return prefix, nil
}

// markDrained reports whether prefix had not been drained yet.
func (s *session) markDrained(prefix string) bool {
	s.drainMu.Lock()
	defer s.drainMu.Unlock()
	if s.drained[prefix] {
		return false
	}
	s.drained[prefix] = true
	return true
}

func (s *session) forgetDrained(prefix string) {
	s.drainMu.Lock()
	defer s.drainMu.Unlock()
	delete(s.drained, prefix)
}

// drainPrefix asks wineserver to shut down cleanly in prefix and waits
// for it. Failures are warnings.
func (s *session) drainPrefix(ctx context.Context, prefix string) {
	env := []string{
		"PROTON_VERB=run",
		"PROTONPATH=" + s.builder.proton.Value,
		"WINEPREFIX=" + prefix,
		"STEAM_COMPAT_DATA_PATH=" + prefix,
		"SDL_JOYSTICK_HIDAPI=0",
		"ENABLE_GAMESCOPE_WSI=0",
		"PROTON_DISABLE_HIDRAW=1",
	}
	steps := []struct {
		flag string
		what string
	}{
		{"-k", "terminate"},
		{"-w", "wait for cleanup of"},
	}
	for _, step := range steps {
		err := s.exec.RunSpec(ctx, command.Spec{
			Name: s.paths.UmuRun(),
			Args: []string{"--", "wineserver", step.flag},
			Env:  env,
		})
		if err == nil {
			continue
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			s.warn.Warn("wineserver %s failed to %s prefix %s: %v", step.flag, step.what, prefix, err)
			continue
		}
		s.warn.Warn("failed to run wineserver %s while preparing prefix %s: %v", step.flag, prefix, err)
		return
	}
}
