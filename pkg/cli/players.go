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

package cli

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/SplitHappens/split-happens/pkg/input"
	"github.com/SplitHappens/split-happens/pkg/instance"
	"github.com/SplitHappens/split-happens/pkg/launch"
	"github.com/SplitHappens/split-happens/pkg/profiles"
	"github.com/rs/zerolog/log"
)

var (
	ErrInvalidPlayer = errors.New("invalid player")
	ErrUnknownDevice = errors.New("unknown input device")
	ErrNoDevices     = errors.New("no input devices available")
)

// Player is one -player value: a profile and the devices it holds. An
// empty device list takes the next free device.
type Player struct {
	Profile string
	Devices []string
}

func (p Player) String() string {
	if len(p.Devices) == 0 {
		return p.Profile
	}
	return p.Profile + ":" + strings.Join(p.Devices, ",")
}

// ParsePlayer reads "profile[:device,device]". Devices are event node
// paths or their base names. An empty profile means a guest.
func ParsePlayer(value string) (Player, error) {
	name, devs, _ := strings.Cut(value, ":")
	p := Player{Profile: strings.TrimSpace(name)}
	if p.Profile == "" {
		p.Profile = profiles.GuestName
	}
	if p.Profile != profiles.GuestName {
		if err := profiles.ValidateName(p.Profile); err != nil {
			return Player{}, fmt.Errorf("%w %q: %w", ErrInvalidPlayer, value, err)
		}
		if strings.HasPrefix(p.Profile, ".") {
			return Player{}, fmt.Errorf("%w %q: profile names cannot start with a dot", ErrInvalidPlayer, value)
		}
	}
	for _, d := range strings.Split(devs, ",") {
		if d = strings.TrimSpace(d); d != "" {
			p.Devices = append(p.Devices, d)
		}
	}
	return p, nil
}

// findDevice returns the index of the device named by path or base name.
func findDevice(devices []input.Device, name string) int {
	return slices.IndexFunc(devices, func(d input.Device) bool {
		return d.Path == name || filepath.Base(d.Path) == name
	})
}

// PlanInstances builds the instances of a launch. choices are the
// selectable profiles with the guest entry first; named profiles missing
// from it are appended. With no players, each enabled gamepad gets an
// instance, taking profiles from last in order, and without gamepads one
// instance holds every keyboard and mouse. A named profile given to two
// players fails with launch.ErrDuplicateProfile.
func PlanInstances(
	players []Player,
	devices []input.Device,
	choices []string,
	last []string,
) ([]instance.Instance, []string, error) {
	if len(players) == 0 {
		return autoInstances(devices, choices, last)
	}

	var instances []instance.Instance
	taken := map[int]string{}
	named := map[string]bool{}
	for _, p := range players {
		if p.Profile != profiles.GuestName {
			if named[p.Profile] {
				return nil, nil, fmt.Errorf("%w: %s", launch.ErrDuplicateProfile, p.Profile)
			}
			named[p.Profile] = true
		}
		inst := instance.Instance{ProfileSelection: selection(&choices, p.Profile)}
		for _, name := range p.Devices {
			dev := findDevice(devices, name)
			if dev < 0 {
				return nil, nil, fmt.Errorf("%w: %s", ErrUnknownDevice, name)
			}
			if owner, ok := taken[dev]; ok {
				return nil, nil, fmt.Errorf("device %s is already held by %s", name, owner)
			}
			if !devices[dev].Enabled {
				log.Warn().Msgf("device %s is disabled by the pad filter but was assigned explicitly", name)
			}
			taken[dev] = p.Profile
			inst.Devices = append(inst.Devices, dev)
		}
		instances = append(instances, inst)
	}

	// Players without devices take the next free one, gamepads first.
	for i := range instances {
		if len(instances[i].Devices) != 0 {
			continue
		}
		if free := freeDevices(devices, taken); len(free) > 0 {
			taken[free[0]] = players[i].Profile
			instances[i].Devices = []int{free[0]}
		}
	}

	return instance.Prune(instances), choices, nil
}

// freeDevices lists unassigned enabled gamepads, then keyboards and mice.
func freeDevices(devices []input.Device, taken map[int]string) []int {
	var out []int
	for _, dev := range append(input.Gamepads(devices), input.KeyboardsAndMice(devices)...) {
		if _, ok := taken[dev]; !ok {
			out = append(out, dev)
		}
	}
	return out
}

func autoInstances(devices []input.Device, choices, last []string) ([]instance.Instance, []string, error) {
	pads := input.Gamepads(devices)
	if len(pads) == 0 {
		kbm := input.KeyboardsAndMice(devices)
		if len(kbm) == 0 {
			return nil, nil, ErrNoDevices
		}
		inst := instance.Instance{Devices: kbm, ProfileSelection: lastSelection(choices, last, 0)}
		return []instance.Instance{inst}, choices, nil
	}

	instances := make([]instance.Instance, 0, len(pads))
	used := map[int]bool{}
	for i, pad := range pads {
		sel := lastSelection(choices, last, i)
		if used[sel] {
			sel = 0
		}
		if sel != 0 {
			used[sel] = true
		}
		instances = append(instances, instance.Instance{
			Devices:          []int{pad},
			ProfileSelection: sel,
		})
	}
	return instances, choices, nil
}

// lastSelection reuses the remembered profile of slot i when it still
// exists. A profile remembered for two slots is only reused for the
// first; the caller turns later ones into guests.
func lastSelection(choices, last []string, i int) int {
	if i >= len(last) {
		return 0
	}
	if sel := slices.Index(choices, last[i]); sel > 0 {
		return sel
	}
	return 0
}

func selection(choices *[]string, profile string) int {
	if profile == profiles.GuestName {
		return 0
	}
	if sel := slices.Index(*choices, profile); sel >= 0 {
		return sel
	}
	*choices = append(*choices, profile)
	return len(*choices) - 1
}

// Selections returns the profile each instance chose, guests included by
// their guest choice, in the form remembered between launches.
func Selections(instances []instance.Instance) []string {
	out := make([]string, len(instances))
	for i := range instances {
		if instances[i].Guest {
			out[i] = profiles.GuestName
		} else {
			out[i] = instances[i].Profile
		}
	}
	return out
}
