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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsGamescopeNoise(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		line string
		want bool
	}{
		{
			name: "gamescope_duplicate_buffer",
			line: "[gamescope] [Warn]  xwm: got the same buffer committed twice, ignoring.",
			want: true,
		},
		{
			name: "kbm_build_with_padding",
			line: "  [gamescope-kbm] [Warn]  xwm: got the same buffer committed twice, ignoring.\r",
			want: true,
		},
		{name: "other_gamescope_warning", line: "[gamescope] [Warn]  vulkan: slow path", want: false},
		{name: "game_output", line: "xwm: got the same buffer committed twice, ignoring.", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, isGamescopeNoise(tt.line))
		})
	}
}

func TestOutputLog_BuffersPartialLines(t *testing.T) {
	t.Parallel()

	o := newOutputLog("Alice")
	n, err := o.Write([]byte("first line\nsecond "))
	require.NoError(t, err)
	assert.Equal(t, 18, n)
	assert.Equal(t, "second ", string(o.buf))

	_, err = o.Write([]byte("half\n"))
	require.NoError(t, err)
	assert.Empty(t, o.buf)

	_, err = o.Write([]byte("tail"))
	require.NoError(t, err)
	o.Flush()
	assert.Empty(t, o.buf)
}

func TestWarnLog_AppendsLines(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "logs", "launch_warnings.txt")
	w := &warnLog{path: path}
	w.Warn("prefix %s busy", "/pfx/Alice")
	w.Warn("second")

	data, err := os.ReadFile(path) //nolint:gosec // G304: test path
	require.NoError(t, err)
	assert.Equal(t, "[WARN] prefix /pfx/Alice busy\n[WARN] second\n", string(data))
}
