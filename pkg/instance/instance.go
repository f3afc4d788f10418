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

// Package instance plans the players of a launch: which devices each one
// holds, which profile it runs under and how large its window is.
package instance

import (
	"slices"
	"strconv"

	"github.com/SplitHappens/split-happens/pkg/profiles"
	"github.com/rs/zerolog/log"
)

// MinHeight is the smallest window height kept when the low resolution
// fix is enabled.
const MinHeight = 600

// Instance is one player's launch unit.
type Instance struct {
	// Name is shown to the player; guests are Guest1, Guest2, ...
	Name string
	// Profile is the on-disk profile key. Guests get hidden keys.
	Profile string
	// Devices are indices into the launch's device list.
	Devices          []int
	ProfileSelection int
	Width            int
	Height           int
	Guest            bool
}

// Clone returns a copy that shares no memory with i.
func (i Instance) Clone() Instance {
	i.Devices = slices.Clone(i.Devices)
	return i
}

// HasDevice reports whether the device index belongs to i.
func (i Instance) HasDevice(dev int) bool {
	return slices.Contains(i.Devices, dev)
}

// Layout holds the settings that shape window sizes.
type Layout struct {
	VerticalTwoPlayer bool
	FixLowRes         bool
}

// PlanResolution returns the window size of each of count instances on a
// screenW x screenH display.
func PlanResolution(count, screenW, screenH int, layout Layout) (width, height int) {
	switch {
	case count <= 1:
		width, height = screenW, screenH
	case count == 2 && layout.VerticalTwoPlayer:
		width, height = screenW/2, screenH
	case count == 2:
		width, height = screenW, screenH/2
	default:
		width, height = screenW/2, screenH/2
	}

	if layout.FixLowRes && height > 0 && height < MinHeight {
		ratio := float64(width) / float64(height)
		height = MinHeight
		width = int(float64(height) * ratio)
	}
	return width, height
}

// SetResolutions assigns every instance the planned window size.
func SetResolutions(instances []Instance, screenW, screenH int, layout Layout) {
	w, h := PlanResolution(len(instances), screenW, screenH, layout)
	for i := range instances {
		log.Info().Msgf("resolution for instance %d/%d: %dx%d", i+1, len(instances), w, h)
		instances[i].Width = w
		instances[i].Height = h
	}
}

// SetNames resolves each instance's profile selection against choices.
// The Guest choice and selections outside choices become numbered guests
// in instance order.
func SetNames(instances []Instance, choices []string) {
	next := 1
	for i := range instances {
		sel := instances[i].ProfileSelection
		if sel >= 0 && sel < len(choices) && choices[sel] != profiles.GuestName {
			instances[i].Name = choices[sel]
			instances[i].Profile = choices[sel]
			instances[i].Guest = false
			continue
		}
		instances[i].Name = profiles.GuestName + strconv.Itoa(next)
		instances[i].Profile = profiles.GuestKey(next)
		instances[i].Guest = true
		next++
	}
}

// Prune drops instances without devices.
func Prune(instances []Instance) []Instance {
	return slices.DeleteFunc(instances, func(i Instance) bool {
		return len(i.Devices) == 0
	})
}

// Profiles returns the on-disk profile keys in instance order.
func Profiles(instances []Instance) []string {
	out := make([]string, len(instances))
	for i := range instances {
		out[i] = instances[i].Profile
	}
	return out
}
