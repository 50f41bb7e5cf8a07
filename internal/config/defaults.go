package config

const (
	defaultConfigPath        = "~/.config/sevenstream/config.toml"
	projectConfigName        = "sevenstream.toml"
	historyFileName          = "history.db"
	defaultBinary            = "7z"
	defaultOutputEncoding    = "utf-8"
	defaultStateDir          = "~/.local/share/sevenstream"
	defaultLogDir            = "~/.local/share/sevenstream/logs"
	defaultLockDir           = "~/.local/share/sevenstream/locks"
	defaultHistoryEnabled    = true
	defaultCompression       = "zstd"
	defaultRetentionDays     = 30
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
	defaultProgressBucket    = 5.0
	binaryEnvVar             = "SEVENSTREAM_BINARY"
	outputEncodingEnvVar     = "SEVENSTREAM_OUTPUT_ENCODING"
	maxRetentionDays         = 3650
	maxProgressBucketPercent = 50.0
)

// Default returns a Config populated with defaults.
func Default() Config {
	return Config{
		SevenZip: SevenZip{
			Binary:         defaultBinary,
			OutputEncoding: defaultOutputEncoding,
			LockDir:        defaultLockDir,
		},
		Paths: Paths{
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
		},
		History: History{
			Enabled:       defaultHistoryEnabled,
			Compression:   defaultCompression,
			RetentionDays: defaultRetentionDays,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Progress: Progress{
			BucketSize: defaultProgressBucket,
		},
	}
}
