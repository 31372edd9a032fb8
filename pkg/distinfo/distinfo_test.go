package distinfo_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/arthur-debert/distman/pkg/distinfo"
	"github.com/arthur-debert/distman/pkg/filesystem"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPath(t *testing.T) {
	assert.Equal(t, filepath.Join("/deploy/prod/bin", ".tool.dist"),
		distinfo.Path("/deploy/prod/bin/tool"))
}

func TestWriteReadRoundTrip(t *testing.T) {
	fsys := filesystem.NewAferoFS(afero.NewMemMapFs())
	dest := "/deploy/prod/bin/tool"
	require.NoError(t, fsys.MkdirAll("/deploy/prod/bin", 0755))

	want := distinfo.Record{
		Source:    "/repo/bin/tool",
		Version:   3,
		Timestamp: time.Date(2024, 6, 1, 12, 30, 0, 0, time.UTC),
		Author:    "rgalloway",
		Signature: "mtime:00c0ffee",
	}
	require.NoError(t, distinfo.Write(fsys, dest, want))

	got := distinfo.Read(fsys, dest)
	require.NotNil(t, got)
	assert.Equal(t, want, *got)
}

func TestReadMissingReturnsNil(t *testing.T) {
	fsys := filesystem.NewAferoFS(afero.NewMemMapFs())
	assert.Nil(t, distinfo.Read(fsys, "/deploy/prod/bin/tool"))
}

func TestReadMalformedReturnsNil(t *testing.T) {
	fsys := filesystem.NewAferoFS(afero.NewMemMapFs())
	dest := "/deploy/prod/bin/tool"
	require.NoError(t, fsys.MkdirAll("/deploy/prod/bin", 0755))

	tests := []struct {
		name    string
		content string
	}{
		{"garbage", "not a record at all"},
		{"bad_version", "source: /x\nversion: three\ntimestamp: 2024-06-01T12:30:00Z\n"},
		{"bad_timestamp", "source: /x\nversion: 1\ntimestamp: yesterday\n"},
		{"missing_fields", "author: someone\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, fsys.WriteFile(distinfo.Path(dest), []byte(tt.content), 0644))
			assert.Nil(t, distinfo.Read(fsys, dest))
		})
	}
}

func TestRemove(t *testing.T) {
	fsys := filesystem.NewAferoFS(afero.NewMemMapFs())
	dest := "/deploy/prod/bin/tool"
	require.NoError(t, fsys.MkdirAll("/deploy/prod/bin", 0755))
	require.NoError(t, distinfo.Write(fsys, dest, distinfo.Record{
		Source: "/repo/bin/tool", Version: 0, Timestamp: time.Now(), Author: "a",
	}))

	require.NoError(t, distinfo.Remove(fsys, dest))
	assert.Nil(t, distinfo.Read(fsys, dest))

	// removing twice is fine
	require.NoError(t, distinfo.Remove(fsys, dest))
}
