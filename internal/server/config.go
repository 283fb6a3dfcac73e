package server

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/quillbox/quillbox/internal/utils"
)

const (
	DefaultAddr          = "127.0.0.1:8080"
	DefaultRateLimit     = "120-M" // 120 requests/minute per client
	DefaultMaxUploadSize = 32 << 20
)

type Config struct {
	HTTP HTTPConfig
	Data DataConfig
}

type HTTPConfig struct {
	Addr      string
	CertFile  string
	KeyFile   string
	RateLimit string
}

type DataConfig struct {
	// ContentDir is the root of the synchronized file tree.
	ContentDir string
	// DataDir holds server-internal state (manifest db, commit lock).
	DataDir string
	// MaxUploadSize caps a single uploaded file, in bytes.
	MaxUploadSize int64
	// FrontMatter supplies default front-matter keys for the metadata
	// normalizer (e.g. author).
	FrontMatter map[string]string
}

func (c *Config) Validate() error {
	if c.Data.ContentDir == "" {
		return errors.New("content dir is required")
	}

	contentDir, err := utils.ResolvePath(c.Data.ContentDir)
	if err != nil {
		return fmt.Errorf("resolve content dir: %w", err)
	}
	c.Data.ContentDir = contentDir

	if c.Data.DataDir == "" {
		c.Data.DataDir = filepath.Join(filepath.Dir(contentDir), ".quillbox")
	}
	dataDir, err := utils.ResolvePath(c.Data.DataDir)
	if err != nil {
		return fmt.Errorf("resolve data dir: %w", err)
	}
	c.Data.DataDir = dataDir

	if err := utils.EnsureDir(c.Data.ContentDir); err != nil {
		return fmt.Errorf("create content dir: %w", err)
	}
	if err := utils.EnsureDir(c.Data.DataDir); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	if c.HTTP.Addr == "" {
		c.HTTP.Addr = DefaultAddr
	}
	if c.HTTP.RateLimit == "" {
		c.HTTP.RateLimit = DefaultRateLimit
	}
	if c.Data.MaxUploadSize <= 0 {
		c.Data.MaxUploadSize = DefaultMaxUploadSize
	}

	return nil
}

func (c *Config) ManifestDBPath() string {
	return filepath.Join(c.Data.DataDir, "manifest.db")
}

func (c *Config) CommitLockPath() string {
	return filepath.Join(c.Data.DataDir, "commit.lock")
}
