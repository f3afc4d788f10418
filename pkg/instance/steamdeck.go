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

package instance

import (
	"os"
	"strings"
	"sync"
)

// DeckProbe lists the places a Steam Deck identifies itself.
type DeckProbe struct {
	LookupEnv   func(string) (string, bool)
	OSRelease   string
	ProductName string
}

// DefaultDeckProbe reads the running system.
var DefaultDeckProbe = DeckProbe{
	LookupEnv:   os.LookupEnv,
	OSRelease:   "/etc/os-release",
	ProductName: "/sys/devices/virtual/dmi/id/product_name",
}

var isSteamDeck = sync.OnceValue(func() bool {
	return DetectSteamDeck(DefaultDeckProbe)
})

// IsSteamDeck reports whether this host is a Steam Deck. The result is
// computed once.
func IsSteamDeck() bool {
	return isSteamDeck()
}

// DetectSteamDeck checks the environment, os-release and the DMI product
// name, in that order.
func DetectSteamDeck(p DeckProbe) bool {
	if p.LookupEnv != nil {
		for _, key := range []string{"STEAMDECK", "SteamDeck"} {
			if _, ok := p.LookupEnv(key); ok {
				return true
			}
		}
	}
	if contains(p.OSRelease, "steamos", "steam deck") {
		return true
	}
	return contains(p.ProductName, "jupiter", "galileo")
}

func contains(path string, needles ...string) bool {
	if path == "" {
		return false
	}
	data, err := os.ReadFile(path) //nolint:gosec // G304: fixed system paths
	if err != nil {
		return false
	}
	text := strings.ToLower(string(data))
	for _, n := range needles {
		if strings.Contains(text, n) {
			return true
		}
	}
	return false
}
