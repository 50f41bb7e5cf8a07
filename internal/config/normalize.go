package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	c.normalizeSevenZip()
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeHistory()
	c.normalizeLogging()
	if c.Progress.BucketSize == 0 {
		c.Progress.BucketSize = defaultProgressBucket
	}
	return nil
}

func (c *Config) normalizeSevenZip() {
	if value, ok := os.LookupEnv(binaryEnvVar); ok && strings.TrimSpace(value) != "" {
		c.SevenZip.Binary = value
	}
	if value, ok := os.LookupEnv(outputEncodingEnvVar); ok && strings.TrimSpace(value) != "" {
		c.SevenZip.OutputEncoding = value
	}
	c.SevenZip.Binary = strings.TrimSpace(c.SevenZip.Binary)
	if c.SevenZip.Binary == "" {
		c.SevenZip.Binary = defaultBinary
	}
	c.SevenZip.OutputEncoding = strings.ToLower(strings.TrimSpace(c.SevenZip.OutputEncoding))
	if c.SevenZip.OutputEncoding == "" {
		c.SevenZip.OutputEncoding = defaultOutputEncoding
	}
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.SevenZip.LockDir) == "" {
		c.SevenZip.LockDir = defaultLockDir
	}
	if c.SevenZip.LockDir, err = expandPath(c.SevenZip.LockDir); err != nil {
		return fmt.Errorf("sevenzip.lock_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeHistory() {
	c.History.Compression = strings.ToLower(strings.TrimSpace(c.History.Compression))
	if c.History.Compression == "" {
		c.History.Compression = defaultCompression
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	c.Logging.FileLevel = strings.ToLower(strings.TrimSpace(c.Logging.FileLevel))
}
