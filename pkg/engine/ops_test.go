// TEST TYPE: Engine Operations Tests (show/reset/pin/delete)
// DEPENDENCIES: Real filesystem (symlinks required)

package engine_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arthur-debert/distman/pkg/distinfo"
	"github.com/arthur-debert/distman/pkg/engine"
	"github.com/arthur-debert/distman/pkg/errors"
)

// publishVersions publishes n distinct versions of bin/tool.
func publishVersions(t *testing.T, h *harness, n int) string {
	t.Helper()
	h.addTarget("tool", "bin/tool", "{DEPLOY_ROOT}/bin/tool")
	for i := 0; i < n; i++ {
		// distinct sizes keep the size+mtime signature unambiguous
		h.writeSource(t, "bin/tool", strings.Repeat(string(rune('a'+i)), i+1))
		summary := h.dist(t, engine.Options{})
		require.Equal(t, 1, summary.Published)
	}
	return filepath.Join(h.deploy, "bin", "tool")
}

func TestShow(t *testing.T) {
	h := setup(t)
	dest := publishVersions(t, h, 3)

	statuses, err := h.engine(t, engine.Options{}).Show(h.manifest, h.project)
	require.NoError(t, err)
	require.Len(t, statuses, 1)

	status := statuses[0]
	assert.Equal(t, "tool", status.Target)
	assert.Equal(t, dest, status.Destination)
	require.Len(t, status.Entries, 3)
	require.NotNil(t, status.Current)
	assert.Equal(t, 2, status.Current.Version)
	require.NotNil(t, status.Record)
	assert.Equal(t, 2, status.Record.Version)
}

func TestPinByNumberAndBack(t *testing.T) {
	h := setup(t)
	dest := publishVersions(t, h, 3)
	e := h.engine(t, engine.Options{})

	zero := 0
	summary, err := e.Pin(context.Background(), h.manifest, h.project, engine.Selector{Version: &zero})
	require.NoError(t, err)
	require.Equal(t, 1, summary.Published)
	assert.Equal(t, 0, summary.Results[0].Version)

	data, err := h.fs.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "a", string(data))

	// the sidecar's version follows the link
	rec := distinfo.Read(h.fs, dest)
	require.NotNil(t, rec)
	assert.Equal(t, 0, rec.Version)

	// one back from the newest
	back := -1
	summary, err = e.Pin(context.Background(), h.manifest, h.project, engine.Selector{Version: &back})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Results[0].Version)
}

func TestPinByShortID(t *testing.T) {
	h := setup(t)
	dest := publishVersions(t, h, 2)
	e := h.engine(t, engine.Options{})

	statuses, err := e.Show(h.manifest, h.project)
	require.NoError(t, err)
	shortID := statuses[0].Entries[0].ShortID
	require.NotEmpty(t, shortID)

	summary, err := e.Pin(context.Background(), h.manifest, h.project, engine.Selector{ShortID: shortID})
	require.NoError(t, err)
	require.Equal(t, 1, summary.Published)

	data, err := h.fs.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "a", string(data))
}

func TestPinRequiresSelector(t *testing.T) {
	h := setup(t)
	publishVersions(t, h, 1)

	_, err := h.engine(t, engine.Options{}).Pin(context.Background(), h.manifest, h.project, engine.Selector{})
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrInvalidInput))
}

func TestResetRepointsToLatest(t *testing.T) {
	h := setup(t)
	dest := publishVersions(t, h, 3)
	e := h.engine(t, engine.Options{})

	zero := 0
	_, err := e.Pin(context.Background(), h.manifest, h.project, engine.Selector{Version: &zero})
	require.NoError(t, err)

	summary, err := e.Reset(context.Background(), h.manifest, h.project)
	require.NoError(t, err)
	require.Equal(t, 1, summary.Published)
	assert.Equal(t, 2, summary.Results[0].Version)

	data, err := h.fs.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "ccc", string(data))
}

func TestDeleteRemovesEverything(t *testing.T) {
	h := setup(t)
	dest := publishVersions(t, h, 2)

	summary, err := h.engine(t, engine.Options{}).Delete(context.Background(), h.manifest, h.project)
	require.NoError(t, err)
	assert.True(t, summary.OK())

	_, err = h.fs.Lstat(dest)
	assert.True(t, os.IsNotExist(err))
	_, err = h.fs.Lstat(filepath.Join(filepath.Dir(dest), "versions"))
	assert.True(t, os.IsNotExist(err))
	assert.Nil(t, distinfo.Read(h.fs, dest))
}

func TestDeleteDryRun(t *testing.T) {
	h := setup(t)
	dest := publishVersions(t, h, 1)

	summary, err := h.engine(t, engine.Options{DryRun: true}).Delete(context.Background(), h.manifest, h.project)
	require.NoError(t, err)
	require.Len(t, summary.Results, 1)
	assert.Contains(t, summary.Results[0].Message, "would delete")

	_, err = h.fs.Lstat(dest)
	assert.NoError(t, err, "dry run must not delete")
}

func TestPinUnknownVersionFails(t *testing.T) {
	h := setup(t)
	publishVersions(t, h, 1)

	nine := 9
	summary, err := h.engine(t, engine.Options{}).Pin(context.Background(), h.manifest, h.project, engine.Selector{Version: &nine})
	require.NoError(t, err)
	require.Equal(t, 1, summary.Failed)
	assert.True(t, errors.IsErrorCode(summary.Results[0].Err, errors.ErrVersionNotFound))
}
