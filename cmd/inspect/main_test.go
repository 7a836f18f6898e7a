package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"career-pulse/internal/ml"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInspectRegistry_ListAndRollback(t *testing.T) {
	dir := t.TempDir()
	mm, err := ml.NewModelManager(dir)
	require.NoError(t, err)
	_, err = mm.AddVersion("v1", filepath.Join(dir, "a.bin"), ml.ModelMetrics{Trees: 10})
	require.NoError(t, err)
	_, err = mm.AddVersion("v2", filepath.Join(dir, "b.bin"), ml.ModelMetrics{Trees: 3})
	require.NoError(t, err)
	require.NoError(t, mm.ActivateVersion("v2"))

	var out bytes.Buffer
	require.NoError(t, inspectRegistry(&out, dir, false))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "(2)")
	assert.True(t, strings.HasPrefix(lines[1], "* v2"), lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "  v1"), lines[2])

	out.Reset()
	require.NoError(t, inspectRegistry(&out, dir, true))
	assert.Contains(t, out.String(), "* v1")

	reopened, err := ml.NewModelManager(dir)
	require.NoError(t, err)
	assert.Equal(t, "v1", reopened.GetCurrentVersion().Version)

	// Nothing older than v1
	assert.Error(t, inspectRegistry(&out, dir, true))
}
