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
	"fmt"

	"github.com/SplitHappens/split-happens/pkg/helpers/syncutil"
)

// Set is the collection of locks held by one launch session. It is safe
// for concurrent use by the spawn loop and the cancellation path.
type Set struct {
	locks []*Lock
	mu    syncutil.Mutex
}

// Claim pairs a game with a profile.
type Claim struct {
	Game    string
	Profile string
}

// AcquireAll acquires every claim in order. If any fails, the locks
// acquired so far are released before returning.
func (s *Set) AcquireAll(dir string, claims []Claim, opts ...Option) error {
	for _, c := range claims {
		l, err := Acquire(dir, c.Game, c.Profile, opts...)
		if err != nil {
			s.ReleaseAll()
			return fmt.Errorf("failed to lock %s: %w", c.Profile, err)
		}
		s.Add(l)
	}
	return nil
}

func (s *Set) Add(l *Lock) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locks = append(s.locks, l)
}

// Get returns the i-th lock or nil.
func (s *Set) Get(i int) *Lock {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.locks) {
		return nil
	}
	return s.locks[i]
}

func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.locks)
}

// ReleaseAll releases and forgets every lock.
func (s *Set) ReleaseAll() {
	s.mu.Lock()
	locks := s.locks
	s.locks = nil
	s.mu.Unlock()

	for _, l := range locks {
		l.Release()
	}
}
