// Package cli implements the savex command line tool.
package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/hengadev/savex"
	"github.com/hengadev/savex/providers/kv/sqlite"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	EnvFiles    []string
	Path        string
	Location    string
	BaseDir     string
	Encryption  string
	Password    string
	Compression string
	Encoding    string
	KVDatabase  string
	Verbose     bool
	Format      string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the savex CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "savex",
		Short: "Inspect and maintain savex archives",
		Long: `Inspect and maintain savex archives.

The archive is chosen with --file and configured by flags, SAVEX_* environment
variables and .env files, in that order of precedence. KeyValue archives live
in a SQLite database (--kv-db).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringSliceVar(&opts.EnvFiles, "env-file", []string{".env"}, "dotenv files read for SAVEX_* variables")
	flags.StringVarP(&opts.Path, "file", "f", "", "archive path (default $SAVEX_PATH or Data.pak)")
	flags.StringVarP(&opts.Location, "location", "l", "", "storage location (file|keyvalue|cache)")
	flags.StringVar(&opts.BaseDir, "base-dir", "", "directory relative paths resolve against")
	flags.StringVar(&opts.Encryption, "encryption", "", "encryption (none|aes)")
	flags.StringVarP(&opts.Password, "password", "p", "", "encryption password, enables aes")
	flags.StringVar(&opts.Compression, "compression", "", "compression (none|gzip)")
	flags.StringVar(&opts.Encoding, "encoding", "", "text encoding of raw strings")
	flags.StringVar(&opts.KVDatabase, "kv-db", "", "SQLite database backing the keyvalue location (default <base-dir>/savex.db)")
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "log operations to stderr")
	flags.StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewKeysCommand(opts))
	cmd.AddCommand(NewGetCommand(opts))
	cmd.AddCommand(NewRawCommand(opts))
	cmd.AddCommand(NewRemoveCommand(opts))
	cmd.AddCommand(NewRemoveKeyCommand(opts))
	cmd.AddCommand(NewBackupCommand(opts))
	cmd.AddCommand(NewRestoreCommand(opts))
	cmd.AddCommand(NewCopyCommand(opts))
	cmd.AddCommand(NewRenameCommand(opts))
	cmd.AddCommand(NewTimestampCommand(opts))
	cmd.AddCommand(NewEncryptCommand(opts))
	cmd.AddCommand(NewDecryptCommand(opts))

	return cmd
}

// session is an engine plus the configuration the flags select.
type session struct {
	engine *savex.Engine
	config savex.Config
	close  func() error
}

// open resolves the configuration and builds the engine. Callers must call
// close.
func (o *RootOptions) open(cmd *cobra.Command) (*session, error) {
	cfg, err := o.config()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	engineOpts := []savex.EngineOption{savex.WithDefaults(cfg)}
	if o.Verbose {
		engineOpts = append(engineOpts, savex.WithLogger(savex.NewConsoleLogger(cmd.ErrOrStderr())))
	}

	closer := func() error { return nil }
	if cfg.Location == savex.KeyValue {
		path := o.KVDatabase
		if path == "" {
			path = filepath.Join(cfg.BaseDir, "savex.db")
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, WrapExitError(ExitCommandError, "create key-value database directory", err)
		}
		store, err := sqlite.Open(path)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "open key-value database", err)
		}
		engineOpts = append(engineOpts, savex.WithKeyValueStore(store))
		closer = store.Close
	}

	engine, err := savex.New(engineOpts...)
	if err != nil {
		closer()
		return nil, WrapExitError(ExitCommandError, "create engine", err)
	}
	return &session{engine: engine, config: engine.Defaults(), close: closer}, nil
}

// config layers flags over the environment and dotenv files.
func (o *RootOptions) config() (savex.Config, error) {
	cfg, err := savex.LoadConfigFromDotEnv(o.EnvFiles...)
	if err != nil {
		return savex.Config{}, err
	}

	var opts []savex.Option
	if o.Path != "" {
		cfg = cfg.WithPath(o.Path)
	}
	if o.BaseDir != "" {
		opts = append(opts, savex.WithBaseDir(o.BaseDir))
	}
	if o.Location != "" {
		var loc savex.Location
		if err := loc.UnmarshalText([]byte(o.Location)); err != nil {
			return savex.Config{}, err
		}
		opts = append(opts, savex.WithLocation(loc))
	}
	if o.Encryption != "" {
		var enc savex.Encryption
		if err := enc.UnmarshalText([]byte(o.Encryption)); err != nil {
			return savex.Config{}, err
		}
		if enc == savex.EncryptionNone {
			opts = append(opts, savex.WithoutEncryption())
		} else {
			opts = append(opts, savex.WithEncryption(cfg.Password))
		}
	}
	if o.Password != "" {
		opts = append(opts, savex.WithEncryption(o.Password))
	}
	if o.Compression != "" {
		var comp savex.Compression
		if err := comp.UnmarshalText([]byte(o.Compression)); err != nil {
			return savex.Config{}, err
		}
		opts = append(opts, savex.WithCompression(comp))
	}
	if o.Encoding != "" {
		opts = append(opts, savex.WithEncoding(o.Encoding))
	}

	cfg, err = cfg.With(opts...)
	if err != nil {
		return savex.Config{}, err
	}
	if cfg.BaseDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return savex.Config{}, fmt.Errorf("resolve working directory: %w", err)
		}
		cfg.BaseDir = wd
	}
	return cfg, nil
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
