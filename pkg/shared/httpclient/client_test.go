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

package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDownloadFile(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		assert.Contains(t, r.Header.Get("User-Agent"), "split-happens/")
		_, _ = w.Write([]byte("jpegdata"))
	}))
	t.Cleanup(srv.Close)

	client := NewClientWithTimeout(DefaultTimeout)

	t.Run("writes_body_to_output", func(t *testing.T) {
		t.Parallel()

		out := filepath.Join(t.TempDir(), "header.jpg")
		err := client.DownloadFile(context.Background(), DownloadFileArgs{URL: srv.URL + "/ok", OutputPath: out})
		require.NoError(t, err)

		assert.FileExists(t, out)
		assert.NoFileExists(t, out+".part")
	})

	t.Run("leaves_nothing_on_bad_status", func(t *testing.T) {
		t.Parallel()

		out := filepath.Join(t.TempDir(), "header.jpg")
		err := client.DownloadFile(context.Background(), DownloadFileArgs{URL: srv.URL + "/missing", OutputPath: out})
		require.Error(t, err)

		assert.NoFileExists(t, out)
		assert.NoFileExists(t, out+".part")
	})
}
