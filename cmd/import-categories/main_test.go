package main

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketplace/internal/catalog"
)

type fakeOpener struct {
	bucket, key string
	body        string
}

func (f *fakeOpener) Open(_ context.Context, bucket, key string) (io.ReadCloser, error) {
	f.bucket, f.key = bucket, key
	return io.NopCloser(strings.NewReader(f.body)), nil
}

func TestOpenSourceLocal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "categories.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"name":"Vehicles"}]`), 0o600))

	src, err := openSource(context.Background(), path, nil)
	require.NoError(t, err)
	defer src.Close()

	entries, err := catalog.DecodeImport(src)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Vehicles", entries[0].Name)
}

func TestOpenSourceMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nope.json")

	_, err := openSource(context.Background(), path, nil)
	require.Error(t, err)
	assert.Equal(t, "category import file not found: "+path, err.Error())
}

func TestOpenSourceS3(t *testing.T) {
	opener := &fakeOpener{body: `[]`}

	src, err := openSource(context.Background(), "s3://imports/2026/categories.json", opener)
	require.NoError(t, err)
	src.Close()
	assert.Equal(t, "imports", opener.bucket)
	assert.Equal(t, "2026/categories.json", opener.key)

	_, err = openSource(context.Background(), "s3://imports/categories.json", nil)
	assert.ErrorContains(t, err, "S3 storage is not configured")
}

func TestRunMalformedDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"name":`), 0o600))
	t.Setenv("S3_ENDPOINT", "")

	err := run(context.Background(), []string{"-file", path}, io.Discard)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed category import")
}

func TestRunMissingFile(t *testing.T) {
	t.Setenv("S3_ENDPOINT", "")

	err := run(context.Background(), []string{"-file", filepath.Join(t.TempDir(), "missing.json")}, io.Discard)
	assert.ErrorContains(t, err, "category import file not found")
}
