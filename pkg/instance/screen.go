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
	"github.com/BurntSushi/xgbutil"
	"github.com/rs/zerolog/log"
)

// Fallback sizes used when no X server answers.
const (
	DeckWidth     = 1280
	DeckHeight    = 800
	DesktopWidth  = 1920
	DesktopHeight = 1080
)

// ScreenResolution reads the root screen size from the X server, falling
// back to the Steam Deck panel or a 1080p desktop.
func ScreenResolution() (width, height int) {
	xu, err := xgbutil.NewConn()
	if err == nil {
		defer xu.Conn().Close()
		screen := xu.Screen()
		width, height = int(screen.WidthInPixels), int(screen.HeightInPixels)
		log.Info().Msgf("got screen resolution: %dx%d", width, height)
		return width, height
	}

	log.Warn().Err(err).Msg("failed to detect screen resolution, using fallback")
	return FallbackResolution(IsSteamDeck())
}

// FallbackResolution is the size assumed when the screen can't be read.
func FallbackResolution(deck bool) (width, height int) {
	if deck {
		return DeckWidth, DeckHeight
	}
	return DesktopWidth, DesktopHeight
}
