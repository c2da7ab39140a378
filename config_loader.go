package savex

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/hengadev/savex/internal/storage"
)

// LoadConfigFromEnvironment builds a configuration from SAVEX_* environment
// variables on top of DefaultConfig.
//
// Recognized variables:
//   - SAVEX_PATH, SAVEX_LOCATION, SAVEX_BASE_DIR
//   - SAVEX_ENCRYPTION, SAVEX_PASSWORD, SAVEX_COMPRESSION
//   - SAVEX_ENCODING, SAVEX_BUFFER_SIZE, SAVEX_DEPTH_LIMIT
//   - SAVEX_TYPE_CHECKING, SAVEX_SAFE_REFLECTION
//
// Example usage:
//
//	// export SAVEX_PATH="saves/slot1.pak"
//	// export SAVEX_ENCRYPTION="aes"
//	// export SAVEX_PASSWORD="correct horse"
//	cfg, err := savex.LoadConfigFromEnvironment()
//	if err != nil {
//	    log.Fatal(err)
//	}
func LoadConfigFromEnvironment() (Config, error) {
	return configFromLookup(os.LookupEnv)
}

// LoadConfigFromDotEnv is LoadConfigFromEnvironment with the given .env
// files as a fallback for variables missing from the process environment.
// Missing files are skipped. Without arguments ".env" is read.
func LoadConfigFromDotEnv(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}

	values := map[string]string{}
	for _, file := range files {
		read, err := godotenv.Read(file)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return Config{}, fmt.Errorf("%w: read %s: %w", ErrInvalidConfiguration, file, err)
		}
		for k, v := range read {
			if _, ok := values[k]; !ok {
				values[k] = v
			}
		}
	}

	return configFromLookup(func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := values[key]
		return v, ok
	})
}

func configFromLookup(lookup func(string) (string, bool)) (Config, error) {
	cfg := DefaultConfig()

	get := func(key, def string) string {
		if v, ok := lookup(key); ok && v != "" {
			return v
		}
		return def
	}

	cfg.Path = get(EnvPath, cfg.Path)
	cfg.BaseDir = get(EnvBaseDir, cfg.BaseDir)
	cfg.Password = get(EnvPassword, "")
	cfg.Encoding = get(EnvEncoding, cfg.Encoding)

	texts := []struct {
		key    string
		target interface{ UnmarshalText([]byte) error }
	}{
		{EnvLocation, &cfg.Location},
		{EnvEncryption, &cfg.Encryption},
		{EnvCompression, &cfg.Compression},
	}
	for _, t := range texts {
		if v, ok := lookup(t.key); ok && v != "" {
			if err := t.target.UnmarshalText([]byte(v)); err != nil {
				return Config{}, fmt.Errorf("%s: %w", t.key, err)
			}
		}
	}

	ints := []struct {
		key    string
		target *int
	}{
		{EnvBufferSize, &cfg.BufferSize},
		{EnvDepthLimit, &cfg.DepthLimit},
	}
	for _, i := range ints {
		if v, ok := lookup(i.key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return Config{}, fmt.Errorf("%w: %s must be an integer, got %q", ErrInvalidConfiguration, i.key, v)
			}
			*i.target = n
		}
	}

	bools := []struct {
		key    string
		target *bool
	}{
		{EnvTypeChecking, &cfg.TypeChecking},
		{EnvSafeReflection, &cfg.SafeReflection},
	}
	for _, b := range bools {
		if v, ok := lookup(b.key); ok && v != "" {
			parsed, err := strconv.ParseBool(v)
			if err != nil {
				return Config{}, fmt.Errorf("%w: %s must be a boolean, got %q", ErrInvalidConfiguration, b.key, v)
			}
			*b.target = parsed
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// LoadSettingsFile reads a YAML settings file over DefaultConfig. Passwords
// are never read from settings files.
func LoadSettingsFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read settings %s: %w", path, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: parse settings %s: %w", ErrInvalidConfiguration, path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// SaveSettingsFile writes cfg, without its password, as YAML.
func SaveSettingsFile(path string, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	return storage.NewOSFileSystem().WriteFile(path, data)
}
