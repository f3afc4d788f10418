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

// Package httpclient wraps net/http with the timeouts and download
// handling used for artwork fetches.
package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/SplitHappens/split-happens/pkg/config"
	"github.com/rs/zerolog/log"
)

// DefaultTimeout bounds a whole request including the body.
const DefaultTimeout = 30 * time.Second

// UserAgentTransport sets a User-Agent identifying this program.
type UserAgentTransport struct {
	Base http.RoundTripper
}

func (t *UserAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", config.AppName+"/"+config.AppVersion)

	resp, err := base.RoundTrip(req)
	if err != nil {
		return nil, fmt.Errorf("failed to perform HTTP round trip: %w", err)
	}
	return resp, nil
}

// DefaultTransport provides a configured transport with connection pooling and reasonable timeouts
var DefaultTransport = &http.Transport{
	DialContext: (&net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext,
	ResponseHeaderTimeout: 15 * time.Second,
	TLSHandshakeTimeout:   10 * time.Second,
	MaxIdleConns:          10,
	IdleConnTimeout:       90 * time.Second,
}

type Client struct {
	*http.Client
}

// NewClientWithTimeout creates a new HTTP client with a custom timeout
func NewClientWithTimeout(timeout time.Duration) *Client {
	return &Client{
		Client: &http.Client{
			Transport: &UserAgentTransport{Base: DefaultTransport},
			Timeout:   timeout,
		},
	}
}

// DownloadFileArgs contains arguments for file download operations
type DownloadFileArgs struct {
	URL        string
	OutputPath string
	// TempPath receives the body first and is renamed to OutputPath once
	// complete. Defaults to OutputPath + ".part".
	TempPath string
}

// DownloadFile downloads URL to OutputPath. Nothing is left at either path
// when it fails.
func (c *Client) DownloadFile(ctx context.Context, args DownloadFileArgs) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, args.URL, http.NoBody)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}

	resp, err := c.Do(req)
	if err != nil {
		return fmt.Errorf("error getting url: %w", err)
	}
	if resp == nil {
		return errors.New("received nil response")
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			log.Error().Err(closeErr).Msg("error closing response body")
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("invalid status code: %d", resp.StatusCode)
	}

	tempPath := args.TempPath
	if tempPath == "" {
		tempPath = args.OutputPath + ".part"
	}

	file, err := os.Create(tempPath) // #nosec G304 - path is chosen by caller
	if err != nil {
		return fmt.Errorf("error creating file: %w", err)
	}

	written, copyErr := io.Copy(file, resp.Body)
	closeErr := file.Close()

	switch {
	case copyErr != nil:
		err = fmt.Errorf("error downloading file: %w", copyErr)
	case resp.ContentLength > 0 && written != resp.ContentLength:
		err = fmt.Errorf("download incomplete: expected %d bytes, got %d", resp.ContentLength, written)
	case closeErr != nil:
		err = fmt.Errorf("error closing file: %w", closeErr)
	default:
		err = os.Rename(tempPath, args.OutputPath)
		if err != nil {
			err = fmt.Errorf("error renaming temp file: %w", err)
		}
	}

	if err != nil {
		if removeErr := os.Remove(tempPath); removeErr != nil && !errors.Is(removeErr, os.ErrNotExist) {
			log.Warn().Err(removeErr).Msgf("error removing partial download: %s", tempPath)
		}
		return err
	}
	return nil
}

// DefaultClient provides a shared HTTP client instance
var DefaultClient = NewClientWithTimeout(DefaultTimeout)
