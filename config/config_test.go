package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"walkv/storage/wal"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadOverridesDefaults(t *testing.T) {
	cfg, err := Load(strings.NewReader(`
store:
  dir: /var/lib/walkv
  repair_torn_tail: false
  max_value_size: 1024
`))
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/walkv", cfg.Store.Dir)
	assert.False(t, cfg.Store.RepairTornTail)
	assert.Equal(t, uint32(1024), cfg.Store.MaxValueSize)
	assert.Equal(t, wal.DefaultLogFileName, cfg.Store.LogFileName)
	assert.Equal(t, uint32(DefaultMaxFieldSize), cfg.Store.MaxKeySize)
}

func TestLoadEmptyDocument(t *testing.T) {
	cfg, err := Load(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	_, err := Load(strings.NewReader("store:\n  segment_size: 10\n"))
	assert.Error(t, err)
}

func TestLoadValidates(t *testing.T) {
	_, err := Load(strings.NewReader("store:\n  log_file_name: \"\"\n"))
	assert.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "walkv.yml")
	require.NoError(t, os.WriteFile(path, []byte("store:\n  dir: somewhere\n"), 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "somewhere", cfg.Store.Dir)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := map[string]func(o *StoreOptions){
		"empty dir":             func(o *StoreOptions) { o.Dir = "" },
		"empty suffix":          func(o *StoreOptions) { o.CompactSuffix = "" },
		"zero key size":         func(o *StoreOptions) { o.MaxKeySize = 0 },
		"zero value size":       func(o *StoreOptions) { o.MaxValueSize = 0 },
		"log named lock":        func(o *StoreOptions) { o.LogFileName = wal.LockFileName },
		"target named lock":     func(o *StoreOptions) { o.LogFileName, o.CompactSuffix = "LO", "CK" },
		"log in subdir":         func(o *StoreOptions) { o.LogFileName = "sub/wal.log" },
		"log outside dir":       func(o *StoreOptions) { o.LogFileName = "../wal.log" },
		"backslash":             func(o *StoreOptions) { o.LogFileName = `sub\wal.log` },
		"dot log":               func(o *StoreOptions) { o.LogFileName = "." },
		"suffix with separator": func(o *StoreOptions) { o.CompactSuffix = "/compact" },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			opts := DefaultStoreOptions("data")
			mutate(&opts)
			assert.Error(t, opts.Validate())
		})
	}

	assert.NoError(t, DefaultStoreOptions("data").Validate())
}
