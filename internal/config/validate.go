package config

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/encoding/htmlindex"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateSevenZip(); err != nil {
		return err
	}
	if err := c.validateHistory(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if c.Progress.BucketSize <= 0 || c.Progress.BucketSize > maxProgressBucketPercent {
		return fmt.Errorf("progress.bucket_size must be between 0 and %g", maxProgressBucketPercent)
	}
	return nil
}

// oemEncodings are accepted in addition to the WHATWG encoding labels.
var oemEncodings = map[string]struct{}{
	"cp437": {}, "ibm437": {}, "cp850": {}, "ibm850": {}, "cp852": {}, "cp866": {},
}

func (c *Config) validateSevenZip() error {
	if strings.ContainsAny(c.SevenZip.Binary, "\n\r") {
		return errors.New("sevenzip.binary must be a single path")
	}
	if c.SevenZip.RunTimeout < 0 {
		return errors.New("sevenzip.run_timeout must be zero (unbounded) or positive")
	}
	enc := c.SevenZip.OutputEncoding
	if _, ok := oemEncodings[enc]; !ok && enc != "utf-8" && enc != "utf8" {
		if _, err := htmlindex.Get(enc); err != nil {
			return fmt.Errorf("sevenzip.output_encoding: unsupported encoding %q", enc)
		}
	}
	return nil
}

func (c *Config) validateHistory() error {
	switch c.History.Compression {
	case "zstd", "lz4", "none":
	default:
		return fmt.Errorf("history.compression: unsupported value %q (want zstd, lz4 or none)", c.History.Compression)
	}
	if c.History.RetentionDays < 0 || c.History.RetentionDays > maxRetentionDays {
		return fmt.Errorf("history.retention_days must be between 0 and %d", maxRetentionDays)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	if !validLogLevel(c.Logging.Level) {
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	if c.Logging.FileLevel != "" && !validLogLevel(c.Logging.FileLevel) {
		return fmt.Errorf("logging.file_level: unsupported value %q", c.Logging.FileLevel)
	}
	return nil
}

func validLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}
