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

// Package input lists the evdev devices players can be bound to.
package input

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/SplitHappens/split-happens/pkg/config"
)

// DevicesFile is the kernel's input device table.
const DevicesFile = "/proc/bus/input/devices"

// SteamInputVendor is the USB vendor id of Valve's virtual pads.
const SteamInputVendor = 0x28de

// Key codes used to classify devices (linux/input-event-codes.h).
const (
	keySpace  = 57
	btnLeft   = 0x110
	btnSouth  = 0x130
	bitsPerWd = 64
)

type DeviceType int

const (
	Other DeviceType = iota
	Gamepad
	Keyboard
	Mouse
)

func (t DeviceType) String() string {
	switch t {
	case Gamepad:
		return "gamepad"
	case Keyboard:
		return "keyboard"
	case Mouse:
		return "mouse"
	default:
		return "other"
	}
}

// Device is one usable event device.
type Device struct {
	Path    string
	Name    string
	Type    DeviceType
	Vendor  uint16
	Product uint16
	Enabled bool
}

// Label is a friendlier name for well known pads.
func (d Device) Label() string {
	switch d.Vendor {
	case 0x045e:
		return "Xbox Controller"
	case 0x054c:
		return "PS Controller"
	case 0x057e:
		return "NT Pro Controller"
	case SteamInputVendor:
		return "Steam Input"
	default:
		return d.Name
	}
}

// Scan reads path (DevicesFile on a real system).
func Scan(path string, filter config.PadFilter) ([]Device, error) {
	f, err := os.Open(path) //nolint:gosec // G304: procfs path
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() {
		_ = f.Close()
	}()
	return Parse(f, filter)
}

// Parse reads the devices table format. Devices that are not a gamepad,
// keyboard or mouse, or have no event node, are skipped. The result is
// sorted by path; indices into it identify devices for a launch.
func Parse(r io.Reader, filter config.PadFilter) ([]Device, error) {
	var (
		out  []Device
		cur  Device
		keys []uint64
	)
	flush := func() {
		if cur.Path != "" {
			cur.Type = classify(keys)
			if cur.Type != Other {
				cur.Enabled = enabled(filter, cur.Vendor)
				out = append(out, cur)
			}
		}
		cur, keys = Device{}, nil
	}

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			flush()
			continue
		}
		kind, rest, ok := strings.Cut(line, ": ")
		if !ok {
			continue
		}
		switch kind {
		case "I":
			for _, field := range strings.Fields(rest) {
				k, v, _ := strings.Cut(field, "=")
				n, err := strconv.ParseUint(v, 16, 16)
				if err != nil {
					continue
				}
				switch k {
				case "Vendor":
					cur.Vendor = uint16(n)
				case "Product":
					cur.Product = uint16(n)
				}
			}
		case "N":
			cur.Name = strings.Trim(strings.TrimPrefix(rest, "Name="), `"`)
		case "H":
			for _, h := range strings.Fields(strings.TrimPrefix(rest, "Handlers=")) {
				if strings.HasPrefix(h, "event") {
					cur.Path = "/dev/input/" + h
				}
			}
		case "B":
			if v, ok := strings.CutPrefix(rest, "KEY="); ok {
				keys = parseBitmap(v)
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read input devices: %w", err)
	}
	flush()

	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func enabled(filter config.PadFilter, vendor uint16) bool {
	switch filter {
	case config.PadFilterNoSteamInput:
		return vendor != SteamInputVendor
	case config.PadFilterOnlySteamInput:
		return vendor == SteamInputVendor
	default:
		return true
	}
}

func classify(keys []uint64) DeviceType {
	switch {
	case hasBit(keys, btnSouth):
		return Gamepad
	case hasBit(keys, btnLeft):
		return Mouse
	case hasBit(keys, keySpace):
		return Keyboard
	default:
		return Other
	}
}

// parseBitmap decodes a capability bitmap. Words are printed most
// significant first, so they are reversed to make index 0 hold bits 0-63.
func parseBitmap(s string) []uint64 {
	fields := strings.Fields(s)
	out := make([]uint64, len(fields))
	for i, f := range fields {
		n, err := strconv.ParseUint(f, 16, 64)
		if err != nil {
			return nil
		}
		out[len(fields)-1-i] = n
	}
	return out
}

func hasBit(words []uint64, bit int) bool {
	i := bit / bitsPerWd
	if i >= len(words) {
		return false
	}
	return words[i]&(1<<(uint(bit)%bitsPerWd)) != 0
}

// Gamepads returns the indices of enabled gamepads.
func Gamepads(devices []Device) []int {
	var out []int
	for i, d := range devices {
		if d.Enabled && d.Type == Gamepad {
			out = append(out, i)
		}
	}
	return out
}

// KeyboardsAndMice returns the indices of enabled keyboards and mice.
func KeyboardsAndMice(devices []Device) []int {
	var out []int
	for i, d := range devices {
		if d.Enabled && (d.Type == Keyboard || d.Type == Mouse) {
			out = append(out, i)
		}
	}
	return out
}
