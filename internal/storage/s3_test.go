package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUnconfigured(t *testing.T) {
	c, err := New("", "us-east-1", "", "", "snapshots")
	assert.NoError(t, err)
	assert.Nil(t, c)

	_, err = New("http://localhost:9000", "us-east-1", "key", "secret", "")
	assert.Error(t, err)
}

func TestParseURI(t *testing.T) {
	tests := []struct {
		uri    string
		bucket string
		key    string
		ok     bool
	}{
		{"s3://imports/categories.json", "imports", "categories.json", true},
		{"s3://imports/nested/dir/file.json", "imports", "nested/dir/file.json", true},
		{"s3://imports/", "", "", false},
		{"s3://imports", "", "", false},
		{"s3:///key", "", "", false},
		{"data/categories.json", "", "", false},
		{"https://example.com/x.json", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			bucket, key, ok := ParseURI(tt.uri)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.bucket, bucket)
			assert.Equal(t, tt.key, key)
		})
	}
}

func TestSnapshotKey(t *testing.T) {
	at := time.Date(2026, 3, 4, 5, 6, 7, 0, time.FixedZone("X", 3600))
	assert.Equal(t, "categories/snapshots/20260304T040607Z.json", SnapshotKey(at))
}

// fakeS3 is a minimal path-style object server.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch r.Method {
	case http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.objects[r.URL.Path] = body
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		body, ok := f.objects[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			io.WriteString(w, `<?xml version="1.0"?><Error><Code>NoSuchKey</Code></Error>`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(body)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func TestUploadOpenPresign(t *testing.T) {
	fake := &fakeS3{objects: make(map[string][]byte)}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	c, err := New(srv.URL+"/", "us-east-1", "key", "secret", "snapshots")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, "snapshots", c.Bucket())

	ctx := context.Background()
	doc := []byte(`[{"name":"Vehicles","slug":"vehicles"}]`)
	require.NoError(t, c.Upload(ctx, "categories/a.json", "application/json", doc))
	assert.Equal(t, doc, fake.objects["/snapshots/categories/a.json"])

	rc, err := c.Open(ctx, "snapshots", "categories/a.json")
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	rc.Close()
	require.NoError(t, err)
	assert.Equal(t, doc, got)

	_, err = c.Open(ctx, "snapshots", "missing.json")
	assert.Error(t, err)

	url, err := c.PresignedURL(ctx, "categories/a.json", 15*time.Minute)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, srv.URL+"/snapshots/categories/a.json?"), url)
	assert.Contains(t, url, "X-Amz-Expires=900")
}
