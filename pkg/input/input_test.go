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

package input

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/SplitHappens/split-happens/pkg/config"
	testhelpers "github.com/SplitHappens/split-happens/pkg/testing/helpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const devicesTable = `I: Bus=0003 Vendor=28de Product=1205 Version=0111
N: Name="Valve Software Steam Deck Controller"
P: Phys=usb-0000:04:00.4-3/input0
H: Handlers=event9 js0
B: PROP=0
B: EV=1b
B: KEY=7fff000000000000 0 0 0 0

I: Bus=0003 Vendor=045e Product=028e Version=0114
N: Name="Microsoft X-Box 360 pad"
H: Handlers=event12 js1
B: EV=20000b
B: KEY=7cdb000000000000 0 0 0 0

I: Bus=0011 Vendor=0001 Product=0001 Version=ab83
N: Name="AT Translated Set 2 keyboard"
H: Handlers=sysrq kbd event3 leds
B: EV=120013
B: KEY=402000000 3803078f800d001 feffffdfffefffff fffffffffffffffe

I: Bus=0003 Vendor=046d Product=c077 Version=0111
N: Name="Logitech USB Optical Mouse"
H: Handlers=mouse0 event4
B: EV=17
B: KEY=1f0000 0 0 0 0

I: Bus=0019 Vendor=0000 Product=0001 Version=0000
N: Name="Power Button"
H: Handlers=kbd event0
B: EV=3
B: KEY=10000000000000 0

I: Bus=0000 Vendor=0000 Product=0000 Version=0000
N: Name="no event node"
H: Handlers=js5
B: KEY=7fff000000000000 0 0 0 0
`

func TestParse(t *testing.T) {
	t.Parallel()

	devices, err := Parse(strings.NewReader(devicesTable), config.PadFilterAll)
	require.NoError(t, err)
	require.Len(t, devices, 4)

	assert.Equal(t, "/dev/input/event12", devices[0].Path)
	assert.Equal(t, Gamepad, devices[0].Type)
	assert.Equal(t, "Xbox Controller", devices[0].Label())

	assert.Equal(t, "/dev/input/event3", devices[1].Path)
	assert.Equal(t, Keyboard, devices[1].Type)
	assert.Equal(t, "AT Translated Set 2 keyboard", devices[1].Label())

	assert.Equal(t, "/dev/input/event4", devices[2].Path)
	assert.Equal(t, Mouse, devices[2].Type)

	assert.Equal(t, "/dev/input/event9", devices[3].Path)
	assert.Equal(t, Gamepad, devices[3].Type)
	assert.Equal(t, uint16(SteamInputVendor), devices[3].Vendor)
	assert.Equal(t, uint16(0x1205), devices[3].Product)
	assert.Equal(t, "Steam Input", devices[3].Label())

	for _, d := range devices {
		assert.True(t, d.Enabled, d.Path)
	}
	assert.Equal(t, []int{0, 3}, Gamepads(devices))
	assert.Equal(t, []int{1, 2}, KeyboardsAndMice(devices))
}

func TestParse_PadFilter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		filter config.PadFilter
		name   string
		want   []int
	}{
		{name: "all", filter: config.PadFilterAll, want: []int{0, 3}},
		{name: "no_steam_input", filter: config.PadFilterNoSteamInput, want: []int{0}},
		{name: "only_steam_input", filter: config.PadFilterOnlySteamInput, want: []int{3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			devices, err := Parse(strings.NewReader(devicesTable), tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, Gamepads(devices))
		})
	}
}

func TestScan(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	testhelpers.WriteTree(t, dir, map[string]string{"devices": devicesTable})

	devices, err := Scan(filepath.Join(dir, "devices"), config.PadFilterAll)
	require.NoError(t, err)
	assert.Len(t, devices, 4)

	_, err = Scan(filepath.Join(dir, "missing"), config.PadFilterAll)
	require.Error(t, err)
}

func TestHasBit(t *testing.T) {
	t.Parallel()

	words := parseBitmap("1 8000000000000001")
	assert.True(t, hasBit(words, 0))
	assert.True(t, hasBit(words, 63))
	assert.True(t, hasBit(words, 64))
	assert.False(t, hasBit(words, 65))
	assert.False(t, hasBit(words, 200))
	assert.Nil(t, parseBitmap("zz"))
}

func TestDeviceType_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "gamepad", Gamepad.String())
	assert.Equal(t, "keyboard", Keyboard.String())
	assert.Equal(t, "mouse", Mouse.String())
	assert.Equal(t, "other", Other.String())
}
