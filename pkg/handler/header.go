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

package handler

import (
	"context"
	"fmt"
	"net/url"

	"github.com/SplitHappens/split-happens/pkg/shared/httpclient"
)

const steamHeaderURL = "https://shared.fastly.steamstatic.com/store_item_assets/steam/apps/%s/header.jpg"

// SteamHeaderFetcher downloads header artwork from the Steam CDN.
type SteamHeaderFetcher struct {
	Client *httpclient.Client
}

// DefaultHeaderFetcher is used by Parse unless overridden.
var DefaultHeaderFetcher HeaderFetcher = &SteamHeaderFetcher{Client: httpclient.DefaultClient}

func (f *SteamHeaderFetcher) FetchHeader(ctx context.Context, appID, dest string) error {
	err := f.Client.DownloadFile(ctx, httpclient.DownloadFileArgs{
		URL:        fmt.Sprintf(steamHeaderURL, url.PathEscape(appID)),
		OutputPath: dest,
	})
	if err != nil {
		return fmt.Errorf("failed to fetch header for %s: %w", appID, err)
	}
	return nil
}
