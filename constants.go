package savex

// Environment variable names
const (
	// EnvPath is the default container path. Relative paths resolve against EnvBaseDir.
	// Default: Data.pak
	EnvPath = "SAVEX_PATH"

	// EnvLocation selects the storage location: file, keyvalue, cache or memory.
	EnvLocation = "SAVEX_LOCATION"

	// EnvBaseDir is the directory relative File and Cache paths resolve against.
	// Default: the working directory
	EnvBaseDir = "SAVEX_BASE_DIR"

	// EnvEncryption selects the encryption transform: none or aes.
	EnvEncryption = "SAVEX_ENCRYPTION"

	// EnvPassword is the encryption password. It is never written to settings files.
	EnvPassword = "SAVEX_PASSWORD"

	// EnvCompression selects the compression transform: none or gzip.
	EnvCompression = "SAVEX_COMPRESSION"

	// EnvEncoding names the text encoding used by the raw string operations.
	// Default: utf-8
	EnvEncoding = "SAVEX_ENCODING"

	// EnvBufferSize is the transform stream chunk size in bytes.
	// Default: 2048
	EnvBufferSize = "SAVEX_BUFFER_SIZE"

	// EnvTypeChecking toggles type tag enforcement on load.
	EnvTypeChecking = "SAVEX_TYPE_CHECKING"

	// EnvSafeReflection toggles safe member introspection.
	EnvSafeReflection = "SAVEX_SAFE_REFLECTION"

	// EnvDepthLimit caps value nesting while encoding and decoding.
	// Default: 64
	EnvDepthLimit = "SAVEX_DEPTH_LIMIT"

	// EnvLogFormat selects the log handler: json, text or console.
	EnvLogFormat = "SAVEX_LOG_FORMAT"
)

// Default values
const (
	DefaultPath       = "Data.pak"
	DefaultEncoding   = "utf-8"
	DefaultBufferSize = 2048
	DefaultDepthLimit = 64

	// BackupSuffix is appended to a container path to name its backup.
	BackupSuffix = ".bak"

	// DefaultJPEGQuality is used by SaveImage when no quality is given.
	DefaultJPEGQuality = 75
)
