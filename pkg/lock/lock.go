//go:build linux

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

// Package lock provides exclusive, cross-process claims on a
// (game, profile) pair backed by flock'd files under run/locks.
//
// A holder that crashed leaves its record behind without the flock. A
// record whose flock is still held is treated as stale when the command
// line of the recorded pid does not name both the profile and a launcher
// helper (see procscan.InstanceMatcher). Until the instance is spawned the
// record names the launcher itself, so a launch racing another one for the
// same profile within that window can still take over the lock.
package lock

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/SplitHappens/split-happens/pkg/helpers"
	"github.com/SplitHappens/split-happens/pkg/helpers/syncutil"
	"github.com/SplitHappens/split-happens/pkg/procscan"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sys/unix"
)

// ErrAlreadyRunning is returned when a live holder owns the lock.
var ErrAlreadyRunning = errors.New("instance already running")

// maxAttempts bounds stale-lock retries.
const maxAttempts = 5

// Record is the JSON content of a lock file.
type Record struct {
	Profile   string `json:"profile"`
	Game      string `json:"game"`
	Session   string `json:"session,omitempty"`
	PID       int    `json:"pid"`
	StartedAt int64  `json:"started_at"`
}

// Lock is a held claim. The zero value is not usable; obtain one from
// Acquire.
type Lock struct {
	file    *os.File
	path    string
	record  Record
	release sync.Once
	mu      syncutil.Mutex
	err     error
}

type options struct {
	now      func() time.Time
	procPath string
	pid      int
}

type Option func(*options)

// WithProcPath points the staleness check at an alternative procfs tree.
func WithProcPath(path string) Option {
	return func(o *options) { o.procPath = path }
}

// WithPID records pid as the holder instead of the current process.
func WithPID(pid int) Option {
	return func(o *options) { o.pid = pid }
}

// WithClock sets the timestamp source for the record.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// Path returns the lock file path for a game and profile under dir.
func Path(dir, game, profile string) string {
	name := fmt.Sprintf("%s_%s.lock", helpers.SanitizeFilename(game), helpers.SanitizeFilename(profile))
	return filepath.Join(dir, name)
}

// Acquire claims the (game, profile) pair. It never blocks on another
// holder: contention either clears a stale record and retries, or fails
// with ErrAlreadyRunning.
func Acquire(dir, game, profile string, opts ...Option) (*Lock, error) {
	o := options{
		now:      time.Now,
		procPath: procscan.DefaultProcPath,
		pid:      os.Getpid(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}
	path := Path(dir, game, profile)

	for attempt := 0; attempt < maxAttempts; attempt++ {
		//nolint:gosec // G304: path is built from sanitized parts
		file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
		if err != nil {
			return nil, fmt.Errorf("failed to open lock file: %w", err)
		}

		err = unix.Flock(int(file.Fd()), unix.LOCK_EX|unix.LOCK_NB)
		if err == nil {
			// The file may have been unlinked by a stale-lock cleanup
			// between open and flock; retry on a fresh inode.
			if !samePath(file, path) {
				_ = file.Close()
				continue
			}
			l := &Lock{
				file: file,
				path: path,
				record: Record{
					PID:       o.pid,
					Profile:   profile,
					Game:      game,
					Session:   uuid.NewString(),
					StartedAt: o.now().Unix(),
				},
			}
			if err := l.writeRecord(); err != nil {
				l.Release()
				return nil, err
			}
			log.Debug().Str("path", path).Msg("acquired profile lock")
			return l, nil
		}
		_ = file.Close()

		if !errors.Is(err, unix.EWOULDBLOCK) {
			return nil, fmt.Errorf("failed to lock %s: %w", path, err)
		}

		rec, readErr := ReadRecord(path)
		if readErr == nil && holderAlive(o.procPath, rec, profile) {
			return nil, fmt.Errorf("%w: %s is held by pid %d", ErrAlreadyRunning, profile, rec.PID)
		}

		log.Info().Str("path", path).Msg("removing stale lock")
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to remove stale lock: %w", err)
		}
	}

	return nil, fmt.Errorf("failed to acquire %s after %d attempts", path, maxAttempts)
}

// ReadRecord parses the lock file at path.
func ReadRecord(path string) (Record, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: lock paths are controlled
	if err != nil {
		return Record{}, fmt.Errorf("failed to read lock: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("failed to parse lock: %w", err)
	}
	return rec, nil
}

func holderAlive(procPath string, rec Record, profile string) bool {
	proc, err := procscan.NewReader(procPath).Read(rec.PID)
	if err != nil {
		return false
	}
	return procscan.NewInstanceMatcher(profile).Match(proc)
}

func samePath(file *os.File, path string) bool {
	fi, err := file.Stat()
	if err != nil {
		return false
	}
	pi, err := os.Stat(path)
	if err != nil {
		return false
	}
	return os.SameFile(fi, pi)
}

func (l *Lock) writeRecord() error {
	data, err := json.Marshal(l.record)
	if err != nil {
		return fmt.Errorf("failed to marshal lock record: %w", err)
	}
	if err := l.file.Truncate(0); err != nil {
		return fmt.Errorf("failed to truncate lock: %w", err)
	}
	if _, err := l.file.WriteAt(data, 0); err != nil {
		return fmt.Errorf("failed to write lock: %w", err)
	}
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync lock: %w", err)
	}
	return nil
}

// SetHolder rewrites the record with the pid of the process that now
// represents this profile, normally the spawned gamescope.
func (l *Lock) SetHolder(pid int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return errors.New("lock already released")
	}
	l.record.PID = pid
	return l.writeRecord()
}

func (l *Lock) Path() string {
	return l.path
}

func (l *Lock) Record() Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.record
}

// Release unlocks and removes the lock file. Only the first call does
// anything; the file is removed only if it is still the inode this lock
// holds.
func (l *Lock) Release() {
	l.release.Do(func() {
		l.mu.Lock()
		defer l.mu.Unlock()

		if samePath(l.file, l.path) {
			if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
				l.err = fmt.Errorf("failed to remove lock: %w", err)
			}
		}
		_ = unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
		if err := l.file.Close(); err != nil && l.err == nil {
			l.err = fmt.Errorf("failed to close lock: %w", err)
		}
		l.file = nil
		log.Debug().Str("path", l.path).Msg("released profile lock")
	})
}

// Err reports a failure from Release.
func (l *Lock) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}
