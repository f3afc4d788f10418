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

package lock

import (
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeProc(t *testing.T, root string, pid int, cmdline string) {
	t.Helper()
	dir := filepath.Join(root, strconv.Itoa(pid))
	require.NoError(t, os.MkdirAll(dir, 0o750))
	//nolint:gosec // G306: test file permissions are fine
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cmdline"), []byte(cmdline), 0o644))
}

func TestAcquire_WritesRecord(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	at := time.Unix(1700000000, 0)

	l, err := Acquire(dir, "My Game.exe", "Alice", WithPID(1234), WithClock(func() time.Time { return at }))
	require.NoError(t, err)
	defer l.Release()

	assert.Equal(t, filepath.Join(dir, "My Game.exe_Alice.lock"), l.Path())

	rec, err := ReadRecord(l.Path())
	require.NoError(t, err)
	assert.Equal(t, 1234, rec.PID)
	assert.Equal(t, "Alice", rec.Profile)
	assert.Equal(t, "My Game.exe", rec.Game)
	assert.Equal(t, int64(1700000000), rec.StartedAt)
	assert.NotEmpty(t, rec.Session)
}

func TestAcquire_LiveHolderBlocks(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	procRoot := t.TempDir()
	fakeProc(t, procRoot, 500, "gamescope\x00-W\x001280\x00--\x00env\x00SPLIT_HAPPENS_PROFILE=Alice\x00game")

	first, err := Acquire(dir, "game", "Alice", WithPID(500), WithProcPath(procRoot))
	require.NoError(t, err)
	defer first.Release()

	_, err = Acquire(dir, "game", "Alice", WithProcPath(procRoot))
	require.ErrorIs(t, err, ErrAlreadyRunning)
	assert.Contains(t, err.Error(), "500")

	other, err := Acquire(dir, "game", "Bob", WithProcPath(procRoot))
	require.NoError(t, err, "different profile is independent")
	other.Release()
}

func TestAcquire_StaleHolderIsReplaced(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cmdline string
		write   bool
	}{
		{name: "holder without helper", cmdline: "vim\x00Alice", write: true},
		{name: "helper for another profile", cmdline: "gamescope\x00--\x00env\x00SPLIT_HAPPENS_PROFILE=Bob", write: true},
		{name: "holder process gone", write: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			procRoot := t.TempDir()
			if tt.write {
				fakeProc(t, procRoot, 600, tt.cmdline)
			}

			first, err := Acquire(dir, "game", "Alice", WithPID(600), WithProcPath(procRoot))
			require.NoError(t, err)
			defer first.Release()

			second, err := Acquire(dir, "game", "Alice", WithPID(601), WithProcPath(procRoot))
			require.NoError(t, err)
			defer second.Release()

			rec, err := ReadRecord(second.Path())
			require.NoError(t, err)
			assert.Equal(t, 601, rec.PID)

			// the superseded handle must not delete the new holder's file
			first.Release()
			assert.FileExists(t, second.Path())
		})
	}
}

func TestAcquire_LeftoverRecordWithoutFlock(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := Path(dir, "game", "Alice")
	//nolint:gosec // G306: test file permissions are fine
	require.NoError(t, os.WriteFile(path, []byte(`{"pid":1,"profile":"Alice","game":"game","started_at":1}`), 0o644))

	l, err := Acquire(dir, "game", "Alice", WithPID(77))
	require.NoError(t, err)
	defer l.Release()

	rec, err := ReadRecord(path)
	require.NoError(t, err)
	assert.Equal(t, 77, rec.PID)
}

func TestLock_ReleaseIsIdempotent(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	l, err := Acquire(dir, "game", "Alice")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Release()
		}()
	}
	wg.Wait()
	l.Release()

	require.NoError(t, l.Err())
	assert.NoFileExists(t, l.Path())
	assert.Error(t, l.SetHolder(1))

	again, err := Acquire(dir, "game", "Alice")
	require.NoError(t, err)
	again.Release()
}

func TestLock_SetHolder(t *testing.T) {
	t.Parallel()

	l, err := Acquire(t.TempDir(), "game", "Alice", WithPID(1))
	require.NoError(t, err)
	defer l.Release()

	require.NoError(t, l.SetHolder(4321))

	rec, err := ReadRecord(l.Path())
	require.NoError(t, err)
	assert.Equal(t, 4321, rec.PID)
	assert.Equal(t, 4321, l.Record().PID)
}

func TestSet_AcquireAllRollsBack(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	procRoot := t.TempDir()
	fakeProc(t, procRoot, 900, "gamescope\x00--\x00env\x00SPLIT_HAPPENS_PROFILE=Carol")

	holder, err := Acquire(dir, "game", "Carol", WithPID(900), WithProcPath(procRoot))
	require.NoError(t, err)
	defer holder.Release()

	var set Set
	err = set.AcquireAll(dir, []Claim{
		{Game: "game", Profile: "Alice"},
		{Game: "game", Profile: "Bob"},
		{Game: "game", Profile: "Carol"},
	}, WithProcPath(procRoot))
	require.ErrorIs(t, err, ErrAlreadyRunning)

	assert.Equal(t, 0, set.Len())
	assert.NoFileExists(t, Path(dir, "game", "Alice"))
	assert.NoFileExists(t, Path(dir, "game", "Bob"))
	assert.FileExists(t, holder.Path())
}

func TestSet_ReleaseAll(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	var set Set
	require.NoError(t, set.AcquireAll(dir, []Claim{
		{Game: "game", Profile: "Alice"},
		{Game: "game", Profile: "Bob"},
	}))
	require.Equal(t, 2, set.Len())
	assert.NotNil(t, set.Get(1))
	assert.Nil(t, set.Get(2))

	set.ReleaseAll()
	set.ReleaseAll()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
