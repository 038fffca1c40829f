// Package config resolves the job configuration from a key-value source.
//
// The source is the process environment layered over an optional dotenv
// file. Resolution happens once per run and produces an explicit Config value
// that is handed to the rest of the program.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// Configuration keys.
const (
	KeyRoot        = "PROJECT_ROOT"
	KeyDepth       = "PROJECT_DEPTH"
	KeyStorageOnly = "STORAGE_ONLY"
)

// DefaultDepth is used when PROJECT_DEPTH is not set.
const DefaultDepth = 2

// ValidDepths lists the supported project depths.
//
//nolint:gochecknoglobals // Config constant
var ValidDepths = []int{1, 2}

// Config is the resolved configuration for a single run.
type Config struct {
	// Root is the absolute directory under which projects are searched.
	Root string
	// Depth is the number of path segments between Root and the storage directory.
	Depth int
	// StorageOnly measures only the storage/app directory when true,
	// and the whole project directory otherwise.
	StorageOnly bool
}

// ConfigError reports a missing or invalid configuration value.
//
//nolint:revive // Name mirrors the error taxonomy.
type ConfigError struct {
	Key    string
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("config %s: %s: %v", e.Key, e.Reason, e.Err)
	}

	return fmt.Sprintf("config %s: %s", e.Key, e.Reason)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Source is a flat key-value configuration source.
type Source map[string]string

// LoadSource reads envFile (if present) and overlays the process environment.
// A missing envFile is only an error when explicit is true.
func LoadSource(envFile string, explicit bool) (Source, error) {
	src := Source{}

	if envFile != "" {
		values, err := godotenv.Read(envFile)

		switch {
		case err == nil:
			for k, v := range values {
				src[k] = v
			}
		case errors.Is(err, fs.ErrNotExist) && !explicit:
		default:
			return nil, fmt.Errorf("reading env file %q: %w", envFile, err)
		}
	}

	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			src[k] = v
		}
	}

	return src, nil
}

// Lookup returns the value for key and whether it was present.
func (s Source) Lookup(key string) (string, bool) {
	v, ok := s[key]

	return v, ok
}

// ResolveRoot returns the configured root directory. Relative values are
// resolved against the user's home directory.
func (s Source) ResolveRoot() (string, error) {
	root, ok := s.Lookup(KeyRoot)

	root = strings.TrimSpace(root)
	if !ok || root == "" {
		return "", &ConfigError{Key: KeyRoot, Reason: "must be set"}
	}

	if filepath.IsAbs(root) {
		return filepath.Clean(root), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", &ConfigError{Key: KeyRoot, Reason: "resolving relative path", Err: err}
	}

	return filepath.Join(home, root), nil
}

// ResolveDepth returns the configured project depth, or DefaultDepth if unset.
func (s Source) ResolveDepth() (int, error) {
	raw, ok := s.Lookup(KeyDepth)
	if !ok {
		return DefaultDepth, nil
	}

	depth, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, &ConfigError{Key: KeyDepth, Reason: fmt.Sprintf("invalid value %q", raw), Err: err}
	}

	if !slices.Contains(ValidDepths, depth) {
		return 0, &ConfigError{
			Key:    KeyDepth,
			Reason: fmt.Sprintf("invalid value %d, must be one of %v", depth, ValidDepths),
		}
	}

	return depth, nil
}

// ResolveScanMode reports whether only storage directories should be measured.
//
// Only an integer value of 0 selects whole-project mode. Any other integer,
// and anything that does not parse, keeps the default of true.
func (s Source) ResolveScanMode(log *zap.Logger) bool {
	raw, ok := s.Lookup(KeyStorageOnly)
	if !ok {
		return true
	}

	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		log.Warn("unparseable scan mode, measuring storage only",
			zap.String("key", KeyStorageOnly),
			zap.String("value", raw),
			zap.Error(err),
		)

		return true
	}

	return v != 0
}

// Resolve builds a Config from the source.
func Resolve(src Source, log *zap.Logger) (Config, error) {
	root, err := src.ResolveRoot()
	if err != nil {
		return Config{}, err
	}

	depth, err := src.ResolveDepth()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Root:        root,
		Depth:       depth,
		StorageOnly: src.ResolveScanMode(log),
	}

	log.Debug("config resolved",
		zap.String("root", cfg.Root),
		zap.Int("depth", cfg.Depth),
		zap.Bool("storage_only", cfg.StorageOnly),
	)

	return cfg, nil
}
