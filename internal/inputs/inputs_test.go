// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package inputs

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpecPredicates(t *testing.T) {
	tests := map[string]struct {
		spec   string
		isHTTP bool
		isS3   bool
	}{
		"http URL":   {spec: "http://example.com/video.mp4", isHTTP: true},
		"https URL":  {spec: "https://example.com/video.mp4", isHTTP: true},
		"s3 URL":     {spec: "s3://bucket/key/video.mp4", isS3: true},
		"local path": {spec: "/tmp/video.mp4"},
		"relative":   {spec: "video.mp4"},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.isHTTP, IsHTTPURL(tc.spec))
			assert.Equal(t, tc.isS3, IsS3URL(tc.spec))
		})
	}
}

func TestIsLocalFile(t *testing.T) {
	f := filepath.Join(t.TempDir(), "video.mp4")
	require.NoError(t, os.WriteFile(f, []byte("data"), 0o644))

	assert.True(t, IsLocalFile(f))
	assert.False(t, IsLocalFile(filepath.Dir(f)), "directory is not a file")
	assert.False(t, IsLocalFile(f+".missing"))
}

func TestParseS3URL(t *testing.T) {
	t.Run("valid URL", func(t *testing.T) {
		bucket, key, err := ParseS3URL("s3://my-bucket/path/to/video.mp4")
		require.NoError(t, err)
		assert.Equal(t, "my-bucket", bucket)
		assert.Equal(t, "path/to/video.mp4", key)
	})

	for _, rawURL := range []string{
		"http://bucket/key",
		"s3://bucket",
		"s3:///key",
		"not a url at all s3://",
	} {
		t.Run("invalid "+rawURL, func(t *testing.T) {
			_, _, err := ParseS3URL(rawURL)
			assert.Error(t, err)
		})
	}
}

func TestJoinS3URL(t *testing.T) {
	assert.Equal(t, "s3://bucket/prefix/name.jpg", JoinS3URL("s3://bucket/prefix", "name.jpg"))
	assert.Equal(t, "s3://bucket/prefix/name.jpg", JoinS3URL("s3://bucket/prefix/", "name.jpg"))
	assert.Equal(t, "s3://bucket/prefix/name.jpg", JoinS3URL("s3://bucket/prefix", "/name.jpg"))
}

func TestFileNameFromSpec(t *testing.T) {
	assert.Equal(t, "video.mp4", fileNameFromSpec("https://example.com/a/b/video.mp4"))
	assert.Equal(t, "video.mp4", fileNameFromSpec("s3://bucket/key/video.mp4"))
	assert.Equal(t, fallbackFileName, fileNameFromSpec("https://example.com"))
	assert.Equal(t, fallbackFileName, fileNameFromSpec("https://example.com/"))
}

func TestResolveLocalFile(t *testing.T) {
	f := filepath.Join(t.TempDir(), "video.mp4")
	require.NoError(t, os.WriteFile(f, []byte("data"), 0o644))

	got, cleanup, err := Resolve(context.Background(), f)
	require.NoError(t, err)
	defer cleanup()

	assert.Equal(t, f, got, "local file should pass through untouched")
}

func TestResolveUnsupportedSpec(t *testing.T) {
	_, _, err := Resolve(context.Background(), "no/such/file.mp4")
	assert.Error(t, err)
}

func TestResolveHTTPDownload(t *testing.T) {
	payload := []byte("fake video bytes")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	got, cleanup, err := Resolve(context.Background(), srv.URL+"/clip.mp4")
	require.NoError(t, err)
	defer cleanup()

	b, err := os.ReadFile(got)
	require.NoError(t, err)
	assert.Equal(t, payload, b)
	assert.Equal(t, "clip.mp4", filepath.Base(got))

	// Cleanup removes the temp download.
	cleanup()
	_, err = os.Stat(got)
	assert.True(t, os.IsNotExist(err))
}

func TestResolveHTTPErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, _, err := Resolve(context.Background(), srv.URL+"/missing.mp4")
	assert.Error(t, err)
}
