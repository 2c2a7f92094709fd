package config

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"walkv/storage"
	"walkv/storage/wal"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const DefaultMaxFieldSize = storage.MaxFieldLength

type Config struct {
	Store StoreOptions `yaml:"store"`
}

type StoreOptions struct {
	// Dir holds the log file and the lock file.
	Dir           string `yaml:"dir"`
	LogFileName   string `yaml:"log_file_name"`
	CompactSuffix string `yaml:"compact_suffix"`

	// RepairTornTail truncates a partially written trailing record on open
	// instead of failing. Unknown record types always fail.
	RepairTornTail bool `yaml:"repair_torn_tail"`

	MaxKeySize   uint32 `yaml:"max_key_size"`
	MaxValueSize uint32 `yaml:"max_value_size"`
}

func Default() Config {
	return Config{Store: DefaultStoreOptions("data")}
}

func DefaultStoreOptions(dir string) StoreOptions {
	return StoreOptions{
		Dir:            dir,
		LogFileName:    wal.DefaultLogFileName,
		CompactSuffix:  wal.DefaultCompactSuffix,
		RepairTornTail: true,
		MaxKeySize:     DefaultMaxFieldSize,
		MaxValueSize:   DefaultMaxFieldSize,
	}
}

// Load decodes a YAML document on top of the defaults.
func Load(r io.Reader) (Config, error) {
	cfg := Default()

	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)

	if err := decoder.Decode(&cfg); err != nil && err != io.EOF {
		return Config{}, errors.Wrap(err, "decode config")
	}

	if err := cfg.Store.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func LoadFile(path string) (Config, error) {
	f, err := os.Open(path)

	if err != nil {
		return Config{}, errors.Wrap(err, "open config")
	}
	defer f.Close()

	return Load(f)
}

func (o StoreOptions) Validate() error {
	switch {
	case o.Dir == "":
		return errors.New("store dir must not be empty")
	case o.LogFileName == "":
		return errors.New("log file name must not be empty")
	case o.CompactSuffix == "":
		return errors.New("compact suffix must not be empty")
	case o.MaxKeySize == 0:
		return errors.New("max key size must be positive")
	case o.MaxValueSize == 0:
		return errors.New("max value size must be positive")
	}

	if err := validFileName(o.LogFileName); err != nil {
		return errors.Wrap(err, "log file name")
	}

	if err := validFileName(o.LogFileName + o.CompactSuffix); err != nil {
		return errors.Wrap(err, "compaction target name")
	}

	return nil
}

// validFileName accepts a plain file name that cannot resolve outside the
// store dir or onto the lock file.
func validFileName(name string) error {
	switch {
	case strings.ContainsAny(name, `/\`), filepath.Base(name) != name:
		return errors.Errorf("%q must not contain a path separator", name)
	case name == "." || name == "..":
		return errors.Errorf("%q is not a file name", name)
	case name == wal.LockFileName:
		return errors.Errorf("%q is reserved for the directory lock", name)
	}

	return nil
}
