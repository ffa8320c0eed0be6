package modelconfig

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_NoFilePresentYieldsEmptyTable(t *testing.T) {
	table, err := Load()
	require.NoError(t, err)
	_, ok := table.For("en-fr")
	assert.False(t, ok)
}

func TestTable_ForReturnsConfiguredOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "models.yaml")
	contents := `
models:
  en-fr:
    mini_batch_words: 512
    max_length_break: 32
    pivot_slack: 2
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	table := &Table{overrides: map[string]Override{}}
	require.NoError(t, table.loadFrom(path))

	o, ok := table.For("en-fr")
	require.True(t, ok)
	assert.Equal(t, 512, o.MiniBatchWords)
	assert.Equal(t, 32, o.MaxLengthBreak)
	assert.Equal(t, 2, o.PivotSlack)

	_, ok = table.For("fr-de")
	assert.False(t, ok)
}

func TestTable_WatchReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "models.yaml")
	require.NoError(t, os.WriteFile(path, []byte("models:\n  en-fr:\n    mini_batch_words: 100\n"), 0o644))

	table := &Table{overrides: map[string]Override{}, path: path}
	require.NoError(t, table.loadFrom(path))

	stop, err := table.Watch()
	require.NoError(t, err)
	defer stop()

	require.NoError(t, os.WriteFile(path, []byte("models:\n  en-fr:\n    mini_batch_words: 999\n"), 0o644))

	require.Eventually(t, func() bool {
		o, ok := table.For("en-fr")
		return ok && o.MiniBatchWords == 999
	}, 2*time.Second, 10*time.Millisecond, "table did not pick up the file change")
}

func TestTable_WatchNoopWithoutKnownPath(t *testing.T) {
	table := &Table{overrides: map[string]Override{}}
	stop, err := table.Watch()
	require.NoError(t, err)
	stop()
}
