// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package inputs normalizes tool inputs to local files.
//
// An input spec can be a local filesystem path, an HTTP/HTTPS URL or an S3
// URL (s3://bucket/key). Remote inputs are downloaded into a temporary
// directory which the caller releases via the returned cleanup function.
package inputs

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/evolution-gaming/viseek/internal/logging"
)

// Fallback filename for remote inputs whose URL carries no usable basename.
const fallbackFileName = "input_file"

var httpClient = &http.Client{Timeout: 10 * time.Minute}

// IsHTTPURL reports whether spec is an HTTP or HTTPS URL.
func IsHTTPURL(spec string) bool {
	u, err := url.Parse(spec)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https")
}

// IsS3URL reports whether spec is an s3://bucket/key URL.
func IsS3URL(spec string) bool {
	u, err := url.Parse(spec)
	return err == nil && u.Scheme == "s3"
}

// IsLocalFile reports whether spec is an existing regular local file.
func IsLocalFile(spec string) bool {
	fi, err := os.Stat(spec)
	return err == nil && fi.Mode().IsRegular()
}

// Resolve prepares an input spec for decoding and returns a local file path.
//
// Local paths are returned as-is, remote inputs are downloaded to a
// temporary directory. The cleanup function releases any temporary state and
// is safe to call unconditionally.
func Resolve(ctx context.Context, spec string) (localPath string, cleanup func(), err error) {
	noop := func() {}

	if IsLocalFile(spec) {
		return spec, noop, nil
	}

	switch {
	case IsHTTPURL(spec):
		return downloadTemp(spec, func(dest string) error {
			return downloadHTTP(ctx, spec, dest)
		})
	case IsS3URL(spec):
		return downloadTemp(spec, func(dest string) error {
			return DownloadS3(ctx, spec, dest)
		})
	default:
		return "", noop, fmt.Errorf("unsupported input spec: %s", spec)
	}
}

// downloadTemp downloads a remote input into a fresh temp dir via fetch.
func downloadTemp(spec string, fetch func(dest string) error) (string, func(), error) {
	noop := func() {}

	tmpDir, err := os.MkdirTemp("", "viseek-input-")
	if err != nil {
		return "", noop, fmt.Errorf("creating temp dir: %w", err)
	}
	cleanup := func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			logging.Infof("Failed to remove temp dir %s: %s", tmpDir, err)
		}
	}

	dest := filepath.Join(tmpDir, fileNameFromSpec(spec))
	logging.Infof("Downloading %s to %s", spec, dest)
	if err := fetch(dest); err != nil {
		cleanup()
		return "", noop, err
	}

	return dest, cleanup, nil
}

// fileNameFromSpec derives a destination filename from URL path basename.
func fileNameFromSpec(spec string) string {
	u, err := url.Parse(spec)
	if err != nil {
		return fallbackFileName
	}
	name := path.Base(u.Path)
	if name == "" || name == "." || name == "/" {
		return fallbackFileName
	}
	return name
}

// downloadHTTP fetches an HTTP(S) URL into dest.
func downloadHTTP(ctx context.Context, rawURL, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetching %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetching %s: unexpected status %s", rawURL, resp.Status)
	}

	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("creating %s: %w", dest, err)
	}
	defer f.Close()

	if _, err := f.ReadFrom(resp.Body); err != nil {
		return fmt.Errorf("writing %s: %w", dest, err)
	}
	return nil
}

// ParseS3URL splits an s3://bucket/key URL into bucket and key.
func ParseS3URL(rawURL string) (bucket, key string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme != "s3" {
		return "", "", fmt.Errorf("not an s3:// URL: %s", rawURL)
	}
	bucket = u.Host
	key = strings.TrimPrefix(u.Path, "/")
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("s3 URL must be s3://bucket/key: %s", rawURL)
	}
	return bucket, key, nil
}

// JoinS3URL joins an s3://bucket/prefix/ with a name.
func JoinS3URL(prefix, name string) string {
	return strings.TrimSuffix(prefix, "/") + "/" + strings.TrimPrefix(name, "/")
}
